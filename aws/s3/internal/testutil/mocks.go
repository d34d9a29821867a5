// Package testutil provides an in-memory S3 stand-in and LocalStack helpers
// for the s3 client tests.
package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bonnerlab/datasets/aws/s3/internal/s3api"
)

// MockS3Client answers S3 calls from an in-memory set of objects. A non-nil
// Func field replaces the in-memory behaviour of its operation.
type MockS3Client struct {
	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObjectFunc               func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObjectFunc              func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)

	mu      sync.Mutex
	objects map[string]object
	uploads map[string]*pending
	nextID  int
}

type object struct {
	body        []byte
	contentType string
	meta        map[string]string
}

type pending struct {
	contentType string
	meta        map[string]string
	parts       map[int32][]byte
}

var _ s3api.S3API = (*MockS3Client)(nil)

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

// Put stores an object.
func (m *MockS3Client) Put(bucket, key string, body []byte) {
	m.store(bucket+"/"+key, object{body: slices.Clone(body)})
}

// Object returns a stored object.
func (m *MockS3Client) Object(bucket, key string) ([]byte, bool) {
	obj, ok := m.lookup(bucket + "/" + key)
	return obj.body, ok
}

// Metadata returns the user metadata an object was stored with.
func (m *MockS3Client) Metadata(bucket, key string) map[string]string {
	obj, _ := m.lookup(bucket + "/" + key)
	return obj.meta
}

func (m *MockS3Client) store(name string, obj object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string]object{}
	}
	m.objects[name] = obj
}

func (m *MockS3Client) lookup(name string) (object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[name]
	return obj, ok
}

// PutObject stores the request body.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.store(objectKey(params.Bucket, params.Key), object{
		body:        body,
		contentType: aws.ToString(params.ContentType),
		meta:        maps.Clone(params.Metadata),
	})
	return &s3.PutObjectOutput{ETag: aws.String(etag(body))}, nil
}

// GetObject serves a stored object or fails with NoSuchKey.
func (m *MockS3Client) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	body, ok := m.Object(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if !ok {
		return nil, &awstypes.NoSuchKey{Message: aws.String(objectKey(params.Bucket, params.Key))}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ETag:          aws.String(etag(body)),
	}, nil
}

// HeadObject reports a stored object or fails with NotFound.
func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	obj, ok := m.lookup(objectKey(params.Bucket, params.Key))
	if !ok {
		return nil, &awstypes.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(etag(obj.body)),
		Metadata:      maps.Clone(obj.meta),
	}, nil
}

// CreateMultipartUpload starts collecting parts.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string]*pending{}
	}
	m.nextID++
	id := fmt.Sprintf("upload-%d", m.nextID)
	m.uploads[id] = &pending{
		contentType: aws.ToString(params.ContentType),
		meta:        maps.Clone(params.Metadata),
		parts:       map[int32][]byte{},
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

// UploadPart records one part of an upload.
func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &awstypes.NoSuchUpload{}
	}
	up.parts[aws.ToInt32(params.PartNumber)] = body
	return &s3.UploadPartOutput{ETag: aws.String(etag(body))}, nil
}

// CompleteMultipartUpload joins the listed parts into the object.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	m.mu.Lock()
	id := aws.ToString(params.UploadId)
	up, ok := m.uploads[id]
	delete(m.uploads, id)
	m.mu.Unlock()
	if !ok {
		return nil, &awstypes.NoSuchUpload{}
	}

	var body []byte
	if params.MultipartUpload != nil {
		for _, p := range params.MultipartUpload.Parts {
			body = append(body, up.parts[aws.ToInt32(p.PartNumber)]...)
		}
	}
	m.store(objectKey(params.Bucket, params.Key), object{body: body, contentType: up.contentType, meta: up.meta})
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(etag(body))}, nil
}

// AbortMultipartUpload drops the collected parts.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	m.mu.Lock()
	delete(m.uploads, aws.ToString(params.UploadId))
	m.mu.Unlock()
	return &s3.AbortMultipartUploadOutput{}, nil
}

func etag(body []byte) string {
	sum := md5.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

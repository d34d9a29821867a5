// Package minio reads and writes dataset objects on S3-compatible mirrors
// (MinIO, Ceph RGW, university object stores) through minio-go. It mirrors the
// method set of the aws/s3 client so either can back a fetch or a package
// upload, and it reports failures with the same sentinels.
package minio

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

// Store is a bucket-agnostic handle on an S3-compatible endpoint.
type Store struct {
	client *minio.Client
	logger *slog.Logger
}

type options struct {
	accessKey string
	secretKey string
	secure    bool
	region    string
	transport http.RoundTripper
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithCredentials sets static access credentials. Without them requests are
// sent unsigned.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithSecure selects HTTPS. Default is true.
func WithSecure(secure bool) Option {
	return func(o *options) {
		o.secure = secure
	}
}

// WithRegion pins the region and skips bucket location lookups.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New connects to endpoint, given as host[:port] without a scheme.
func New(endpoint string, opts ...Option) (*Store, error) {
	o := &options{
		secure: true,
		region: "us-east-1",
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(o.accessKey, o.secretKey, ""),
		Secure:    o.secure,
		Region:    o.region,
		Transport: o.transport,
	})
	if err != nil {
		return nil, errors.NewError("new", err)
	}

	return &Store{client: client, logger: o.logger}, nil
}

// Download streams bucket/key into w.
func (s *Store) Download(
	ctx context.Context,
	bucket, key string,
	w io.Writer,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	if bucket == "" || key == "" {
		return nil, errors.NewObjectError("download", bucket, key, errors.ErrInvalidInput).
			WithMessage("bucket and key are required")
	}

	config := &s3types.DownloadOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	start := time.Now()
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.NewObjectError("download", bucket, key, translateError(err))
	}
	defer obj.Close()

	var dst io.Writer = w
	if config.ProgressTracker != nil {
		dst = &progressWriter{w: w, tracker: config.ProgressTracker}
	}

	n, err := io.Copy(dst, obj)
	if err != nil {
		return nil, errors.NewObjectError("download", bucket, key, translateError(err))
	}
	if config.ProgressTracker != nil {
		config.ProgressTracker.Complete()
	}

	s.logger.DebugContext(ctx, "downloaded object", "bucket", bucket, "key", key, "size", n)
	return &s3types.DownloadResult{
		Key:      key,
		Size:     n,
		Duration: time.Since(start),
	}, nil
}

// Stat describes bucket/key. A missing object fails with ErrObjectNotFound.
func (s *Store) Stat(ctx context.Context, bucket, key string) (*s3types.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, errors.NewObjectError("stat", bucket, key, translateError(err))
	}
	return &s3types.ObjectInfo{
		Key:         key,
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		Metadata:    map[string]string(info.UserMetadata),
	}, nil
}

// Upload stores size bytes from r at bucket/key. minio-go decides between a
// single PUT and a multipart upload from the part size.
func (s *Store) Upload(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size int64,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	config := &s3types.UploadOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  config.ContentType,
		UserMetadata: config.Metadata,
	}
	if config.PartSize > 0 {
		putOpts.PartSize = uint64(config.PartSize)
	}
	if config.Concurrency > 0 {
		putOpts.NumThreads = uint(config.Concurrency)
	}

	start := time.Now()
	info, err := s.client.PutObject(ctx, bucket, key, io.NewSectionReader(r, 0, size), size, putOpts)
	if err != nil {
		return nil, errors.NewObjectError("upload", bucket, key, translateError(err))
	}
	if config.ProgressTracker != nil {
		config.ProgressTracker.Update(info.Size, size)
		config.ProgressTracker.Complete()
	}

	s.logger.InfoContext(ctx, "uploaded object", "bucket", bucket, "key", key, "size", info.Size)
	return &s3types.UploadResult{
		Key:      key,
		Size:     info.Size,
		ETag:     info.ETag,
		Parts:    1,
		Duration: time.Since(start),
	}, nil
}

// translateError maps minio error responses onto the shared sentinels.
func translateError(err error) error {
	var resp minio.ErrorResponse
	if !stderrors.As(err, &resp) {
		return err
	}
	switch resp.Code {
	case minio.NoSuchKey, "NotFound":
		return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
	case minio.NoSuchBucket:
		return fmt.Errorf("%w: %w", errors.ErrBucketNotFound, err)
	case minio.AccessDenied:
		return fmt.Errorf("%w: %w", errors.ErrAccessDenied, err)
	case "InvalidBucketName":
		return fmt.Errorf("%w: %w", errors.ErrInvalidBucketName, err)
	}
	return err
}

type progressWriter struct {
	w       io.Writer
	tracker s3types.ProgressTracker
	written int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.tracker.Update(p.written, 0)
	//nolint:wrapcheck // io.Writer contract
	return n, err
}

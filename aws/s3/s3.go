package s3

import (
	"context"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	s3errors "github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/internal/operations/download"
	"github.com/bonnerlab/datasets/aws/s3/internal/operations/upload"
	"github.com/bonnerlab/datasets/aws/s3/internal/validation"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

// DefaultContentType is used when content type detection fails.
const DefaultContentType = "application/octet-stream"

// sniffLen is how many leading bytes are handed to mimetype.
const sniffLen = 3072

// Download streams an object into writer without buffering it in memory.
//
// Errors:
//   - ErrInvalidInput: If bucket is empty, key is invalid, or writer is nil
//   - ErrObjectNotFound: If the object does not exist
//   - ErrAccessDenied: If the credentials lack permission to read
//   - ErrBucketNotFound: If the bucket does not exist
func (c *Client) Download(
	ctx context.Context,
	bucket, key string,
	writer io.Writer,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	if err := validateObject("download", bucket, key); err != nil {
		return nil, err
	}
	if writer == nil {
		return nil, s3errors.NewObjectError("download", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("writer cannot be nil")
	}

	config := &s3types.DownloadOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	c.logger.DebugContext(ctx, "downloading object", "bucket", bucket, "key", key)
	result, err := download.New(c.s3Client).Download(ctx, bucket, key, writer, &s3types.DownloadConfig{
		ProgressTracker: config.ProgressTracker,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "downloaded object",
		"bucket", bucket,
		"key", key,
		"size", result.Size,
		"duration", result.Duration,
	)
	return result, nil
}

// Stat describes bucket/key without fetching its body.
//
// Errors:
//   - ErrObjectNotFound: If the object does not exist
//   - ErrAccessDenied: If the credentials lack permission to read
func (c *Client) Stat(ctx context.Context, bucket, key string) (*s3types.ObjectInfo, error) {
	if err := validateObject("stat", bucket, key); err != nil {
		return nil, err
	}

	out, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s3errors.NewObjectError("stat", bucket, key, s3errors.Classify(err))
	}
	return &s3types.ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ETag:        aws.ToString(out.ETag),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}, nil
}

// Upload uploads size bytes read from r. Objects of at least one part size
// are sent as a concurrent multipart upload.
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size int64,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if err := validateObject("upload", bucket, key); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, s3errors.NewObjectError("upload", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("reader cannot be nil")
	}

	config := c.uploadConfig(opts)
	if config.ContentType == "" {
		config.ContentType = detectContentType(key, r, size)
	}
	return c.upload(ctx, bucket, key, r, size, config)
}

func (c *Client) upload(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size int64,
	config *s3types.UploadOptionConfig,
) (*s3types.UploadResult, error) {
	c.logger.DebugContext(ctx, "uploading object",
		"bucket", bucket,
		"key", key,
		"size", size,
		"content_type", config.ContentType,
	)
	result, err := upload.New(c.s3Client).Upload(ctx, bucket, key, r, size, &s3types.UploadConfig{
		ContentType:     config.ContentType,
		Metadata:        config.Metadata,
		PartSize:        config.PartSize,
		Concurrency:     config.Concurrency,
		ProgressTracker: config.ProgressTracker,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "uploaded object",
		"bucket", bucket,
		"key", key,
		"parts", result.Parts,
		"duration", result.Duration,
	)
	return result, nil
}

func (c *Client) uploadConfig(opts []s3types.UploadOption) *s3types.UploadOptionConfig {
	config := &s3types.UploadOptionConfig{
		PartSize:    c.config.PartSize,
		Concurrency: c.config.Concurrency,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// ValidateBucket reports whether bucket is a usable S3 bucket name.
func ValidateBucket(bucket string) error {
	return validation.ValidateBucketName(bucket)
}

func validateObject(op, bucket, key string) error {
	if bucket == "" {
		return s3errors.NewObjectError(op, bucket, key, s3errors.ErrInvalidInput).
			WithMessage("bucket name cannot be empty")
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return s3errors.NewObjectError(op, bucket, key, err)
	}
	return nil
}

// detectContentType sniffs the leading bytes with mimetype and falls back to
// the file extension when the content is not recognised.
func detectContentType(name string, r io.ReaderAt, size int64) string {
	buf := make([]byte, min(size, sniffLen))
	n, _ := r.ReadAt(buf, 0)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil && mt.String() != DefaultContentType {
			return mt.String()
		}
	}
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return DefaultContentType
}

package upload

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/internal/s3api"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

const (
	// MinPartSize is the smallest part S3 accepts (except for the last part).
	MinPartSize int64 = 5 * 1024 * 1024

	// DefaultPartSize is used when the config does not set one.
	DefaultPartSize int64 = 16 * 1024 * 1024

	// MaxParts is the S3 limit on parts per upload.
	MaxParts = 10000

	// DefaultConcurrency is the number of parts in flight when unset.
	DefaultConcurrency = 4
)

// Uploader handles S3 upload operations with automatic multipart detection.
type Uploader struct {
	objects s3api.ObjectWriter
}

// New creates a new Uploader instance.
func New(objects s3api.ObjectWriter) *Uploader {
	return &Uploader{
		objects: objects,
	}
}

// Upload uploads size bytes read from r to bucket/key.
// Objects of at least one part size are uploaded with multipart upload.
func (u *Uploader) Upload(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	partSize := effectivePartSize(config.PartSize, size)
	if size < partSize {
		return u.uploadSimple(ctx, bucket, key, r, size, config, startTime)
	}
	return u.uploadMultipart(ctx, bucket, key, r, size, partSize, config, startTime)
}

func (u *Uploader) uploadSimple(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          io.NewSectionReader(r, 0, size),
		ContentLength: aws.Int64(size),
	}
	if config.ContentType != "" {
		input.ContentType = aws.String(config.ContentType)
	}
	if len(config.Metadata) > 0 {
		input.Metadata = config.Metadata
	}

	output, err := u.objects.PutObject(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("upload", bucket, key, errors.Classify(err))
	}

	if config.ProgressTracker != nil {
		config.ProgressTracker.Update(size, size)
		config.ProgressTracker.Complete()
	}

	return &s3types.UploadResult{
		Key:      key,
		Size:     size,
		ETag:     aws.ToString(output.ETag),
		Parts:    1,
		Duration: time.Since(startTime),
	}, nil
}

func (u *Uploader) uploadMultipart(
	ctx context.Context,
	bucket, key string,
	r io.ReaderAt,
	size, partSize int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if config.ContentType != "" {
		createInput.ContentType = aws.String(config.ContentType)
	}
	if len(config.Metadata) > 0 {
		createInput.Metadata = config.Metadata
	}

	createOutput, err := u.objects.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return nil, errors.NewObjectError("upload", bucket, key, errors.Classify(err))
	}
	uploadID := aws.ToString(createOutput.UploadId)

	numParts := int((size + partSize - 1) / partSize)
	parts := make([]awstypes.CompletedPart, numParts)

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var transferred atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range numParts {
		offset := int64(i) * partSize
		length := min(partSize, size-offset)
		partNumber := aws.Int32(int32(i + 1)) //nolint:gosec // bounded by MaxParts

		g.Go(func() error {
			out, err := u.objects.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(key),
				UploadId:      aws.String(uploadID),
				PartNumber:    partNumber,
				Body:          io.NewSectionReader(r, offset, length),
				ContentLength: aws.Int64(length),
			})
			if err != nil {
				return fmt.Errorf("part %d: %w", aws.ToInt32(partNumber), errors.Classify(err))
			}
			parts[i] = awstypes.CompletedPart{ETag: out.ETag, PartNumber: partNumber}
			if config.ProgressTracker != nil {
				config.ProgressTracker.Update(transferred.Add(length), size)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.abortMultipartUpload(ctx, bucket, key, uploadID)
		return nil, errors.NewObjectError("upload", bucket, key, err)
	}

	completeOutput, err := u.objects.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		u.abortMultipartUpload(ctx, bucket, key, uploadID)
		return nil, errors.NewObjectError("upload", bucket, key, errors.Classify(err))
	}

	if config.ProgressTracker != nil {
		config.ProgressTracker.Complete()
	}

	return &s3types.UploadResult{
		Key:      key,
		Size:     size,
		ETag:     aws.ToString(completeOutput.ETag),
		Parts:    numParts,
		Duration: time.Since(startTime),
	}, nil
}

// abortMultipartUpload cleans up a failed multipart upload.
func (u *Uploader) abortMultipartUpload(ctx context.Context, bucket, key, uploadID string) {
	// The caller's context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	_, _ = u.objects.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
}

// effectivePartSize clamps the requested part size to S3 limits, growing it
// when the object would otherwise need more than MaxParts parts.
func effectivePartSize(requested, size int64) int64 {
	partSize := requested
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	partSize = max(partSize, MinPartSize)
	if size/partSize >= MaxParts {
		partSize = size/MaxParts + 1
	}
	return partSize
}

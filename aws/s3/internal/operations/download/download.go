// Package download streams a single object out of the store.
package download

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/internal/s3api"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

// Downloader copies object bodies into writers.
type Downloader struct {
	objects s3api.ObjectReader
}

func New(objects s3api.ObjectReader) *Downloader {
	return &Downloader{objects: objects}
}

// Download writes bucket/key to w. When the store advertises a content length
// the body must deliver exactly that many bytes, otherwise ErrShortRead is
// returned and w holds a truncated copy the caller has to discard.
func (d *Downloader) Download(
	ctx context.Context,
	bucket, key string,
	w io.Writer,
	config *s3types.DownloadConfig,
	start time.Time,
) (*s3types.DownloadResult, error) {
	out, err := d.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewObjectError("download", bucket, key, errors.Classify(err))
	}
	defer out.Body.Close()

	expected := aws.ToInt64(out.ContentLength)
	dst := &meter{w: w, total: expected, tracker: config.ProgressTracker}

	n, err := io.Copy(dst, out.Body)
	if err != nil {
		return nil, errors.NewObjectError("download", bucket, key, err)
	}
	if expected > 0 && n != expected {
		return nil, errors.NewObjectError("download", bucket, key,
			fmt.Errorf("%w: got %d of %d bytes", errors.ErrShortRead, n, expected))
	}
	if config.ProgressTracker != nil {
		config.ProgressTracker.Complete()
	}

	return &s3types.DownloadResult{
		Key:       key,
		Size:      n,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
		Duration:  time.Since(start),
	}, nil
}

// meter reports every write to an optional tracker.
type meter struct {
	w       io.Writer
	tracker s3types.ProgressTracker
	total   int64
	written int64
}

func (m *meter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.written += int64(n)
	if m.tracker != nil && n > 0 {
		m.tracker.Update(m.written, m.total)
	}
	return n, err //nolint:wrapcheck // io.Writer contract
}

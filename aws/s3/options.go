package s3

import (
	"log/slog"
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

// Connection options.

// WithRegion overrides the region found in the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) { c.Region = region }
}

// WithEndpoint points the client at an S3-compatible service such as
// LocalStack or a lab mirror.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) { c.Endpoint = endpoint }
}

// WithForcePathStyle addresses buckets as endpoint/bucket. Most mirrors
// need it together with WithEndpoint.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) { c.ForcePathStyle = forcePathStyle }
}

// WithAnonymousCredentials sends unsigned requests. Public buckets such as
// natural-scenes-dataset accept them.
func WithAnonymousCredentials() s3types.Option {
	return func(c *s3types.ClientConfig) { c.Anonymous = true }
}

// WithAWSConfig replaces default config loading entirely.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) { c.CustomAWSConfig = config }
}

func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) { c.MaxRetries = maxRetries }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) { c.Timeout = timeout }
}

// Transfer tuning.

// WithConcurrency sets how many parts of a multipart upload are in flight.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the multipart part size. Objects smaller than one part
// are sent with a single PUT; sizes below 5 MiB are raised to the S3 minimum.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// Per-upload options.

// WithContentType skips content sniffing.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) { c.ContentType = contentType }
}

// WithMetadata adds user metadata to the stored object. Repeated options
// merge, later keys winning.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, len(metadata))
		}
		maps.Copy(c.Metadata, metadata)
	}
}

func WithUploadProgress(tracker s3types.ProgressTracker) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) { c.ProgressTracker = tracker }
}

func WithUploadPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

func WithUploadConcurrency(concurrency int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// Per-download options.

func WithDownloadProgress(tracker s3types.ProgressTracker) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) { c.ProgressTracker = tracker }
}

// Package s3types holds the configuration and result types shared by the s3
// client and its internal operation packages.
package s3types

import (
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProgressTracker receives byte-level progress for a single transfer.
type ProgressTracker interface {
	// Update is called with the bytes transferred so far and the expected total.
	// totalBytes is 0 when the size is unknown.
	Update(bytesTransferred, totalBytes int64)

	// Complete is called once the transfer has finished successfully.
	Complete()
}

// DownloadResult describes a finished download.
type DownloadResult struct {
	Key       string
	Size      int64
	ETag      string
	VersionID string
	Duration  time.Duration
}

// UploadResult describes a finished upload.
type UploadResult struct {
	Key      string
	Size     int64
	ETag     string
	Parts    int
	Duration time.Duration
}

// ObjectInfo describes a stored object without its body.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string
}

// MetadataValue returns the user metadata entry called name. Names compare
// case-insensitively because S3 lower-cases them and MinIO canonicalises them
// as HTTP headers.
func (o *ObjectInfo) MetadataValue(name string) string {
	for k, v := range o.Metadata {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ClientConfig is populated by Option functions.
type ClientConfig struct {
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	Anonymous       bool
	MaxRetries      int
	Timeout         time.Duration
	Concurrency     int
	PartSize        int64
	CustomAWSConfig *aws.Config
	Logger          *slog.Logger
}

// Option configures a client.
type Option func(*ClientConfig)

// DownloadConfig is the internal per-call download configuration.
type DownloadConfig struct {
	ProgressTracker ProgressTracker
}

// DownloadOptionConfig is populated by DownloadOption functions.
type DownloadOptionConfig struct {
	ProgressTracker ProgressTracker
}

// DownloadOption configures a single download.
type DownloadOption func(*DownloadOptionConfig)

// UploadConfig is the internal per-call upload configuration.
type UploadConfig struct {
	ContentType     string
	Metadata        map[string]string
	PartSize        int64
	Concurrency     int
	ProgressTracker ProgressTracker
}

// UploadOptionConfig is populated by UploadOption functions.
type UploadOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	PartSize        int64
	Concurrency     int
	ProgressTracker ProgressTracker
}

// UploadOption configures a single upload.
type UploadOption func(*UploadOptionConfig)

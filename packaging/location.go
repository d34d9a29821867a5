package packaging

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/bonnerlab/datasets/aws/s3"
	s3errors "github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
)

// Location types.
const (
	LocationLocal = "local"
	LocationS3    = "s3"
)

// Location is where packaged files are stored. For local locations Path is a
// directory; for s3 it is "bucket" or "bucket/prefix", optionally written as
// an s3:// URL.
type Location struct {
	Type string
	Path string
}

// Uploader stores an object in a bucket. It is implemented by the aws/s3
// client and the minio store. Stat lets an unchanged object stay in place.
type Uploader interface {
	Upload(
		ctx context.Context,
		bucket, key string,
		r io.ReaderAt,
		size int64,
		opts ...s3types.UploadOption,
	) (*s3types.UploadResult, error)
	Stat(ctx context.Context, bucket, key string) (*s3types.ObjectInfo, error)
}

// sumKey is the user metadata entry holding an uploaded file's SHA-1.
const sumKey = "sha1"

// Validate checks that l names a supported location.
func (l Location) Validate() error {
	switch l.Type {
	case LocationLocal:
		if l.Path == "" {
			return errors.New(errors.CodeInvalidInput, "packaging.Location", "local location needs a directory")
		}
	case LocationS3:
		bucket, _ := l.bucketPrefix()
		if bucket == "" {
			return errors.Newf(errors.CodeInvalidInput, "packaging.Location", "s3 location %q has no bucket", l.Path)
		}
		if err := s3.ValidateBucket(bucket); err != nil {
			return errors.Wrap(errors.CodeInvalidInput, "packaging.Location", err)
		}
	default:
		return errors.Newf(errors.CodeInvalidInput, "packaging.Location",
			"unknown location type %q (want %s or %s)", l.Type, LocationLocal, LocationS3)
	}
	return nil
}

func (l Location) bucketPrefix() (string, string) {
	p := strings.TrimPrefix(l.Path, "s3://")
	bucket, prefix, _ := strings.Cut(strings.Trim(p, "/"), "/")
	return bucket, prefix
}

// address is the catalog location string of the file called name.
func (l Location) address(name string) string {
	if l.Type == LocationLocal {
		return filepath.Join(l.Path, name)
	}
	bucket, prefix := l.bucketPrefix()
	return "s3://" + path.Join(bucket, prefix, name)
}

// put copies the staged file src of the packager's working filesystem to the
// location under name and returns its address. Uploaded objects carry their
// SHA-1 as metadata, and an object already holding sum is not sent again.
func (p *Packager) put(ctx context.Context, loc Location, src, name, contentType, sum string) (string, error) {
	const op = "packaging.put"

	f, err := p.FS.Open(src)
	if err != nil {
		return "", errors.Wrap(errors.CodeStorage, op, err)
	}
	defer f.Close()

	switch loc.Type {
	case LocationLocal:
		err := fs.WriteAtomic(p.localFS(loc.Path), name, func(w io.Writer) error {
			_, err := io.Copy(w, f)
			return err
		})
		if err != nil {
			return "", errors.Wrap(errors.CodeStorage, op, fmt.Errorf("%s: %w", loc.address(name), err))
		}

	case LocationS3:
		if p.Uploader == nil {
			return "", errors.New(errors.CodeInvalidConfig, op, "s3 location without an uploader")
		}
		info, err := f.Stat()
		if err != nil {
			return "", errors.Wrap(errors.CodeStorage, op, err)
		}
		bucket, prefix := loc.bucketPrefix()
		key := path.Join(prefix, name)
		if p.unchanged(ctx, bucket, key, info.Size(), sum) {
			p.logger().InfoContext(ctx, "package file unchanged", "location", loc.address(name))
			return loc.address(name), nil
		}
		opts := append([]s3types.UploadOption{
			s3.WithContentType(contentType),
			s3.WithMetadata(map[string]string{sumKey: sum}),
			s3.WithUploadProgress(s3.LogProgress(ctx, p.logger(), key)),
		}, p.UploadOptions...)
		_, err = p.Uploader.Upload(ctx, bucket, key, f, info.Size(), opts...)
		if err != nil {
			return "", errors.Wrap(errors.CodeNetwork, op, err)
		}

	default:
		return "", loc.Validate()
	}

	p.logger().InfoContext(ctx, "stored package file", "location", loc.address(name))
	return loc.address(name), nil
}

// unchanged reports whether bucket/key already holds size bytes with SHA-1
// sum. Any failure to tell means the file is uploaded.
func (p *Packager) unchanged(ctx context.Context, bucket, key string, size int64, sum string) bool {
	info, err := p.Uploader.Stat(ctx, bucket, key)
	if err != nil {
		if !s3errors.IsMissing(err) {
			p.logger().DebugContext(ctx, "cannot stat package file", "bucket", bucket, "key", key, "error", err)
		}
		return false
	}
	return info.Size == size && info.MetadataValue(sumKey) == sum
}

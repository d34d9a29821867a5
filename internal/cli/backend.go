package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/bonnerlab/datasets/aws/s3"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/fetch"
	"github.com/bonnerlab/datasets/fs/minio"
	"github.com/bonnerlab/datasets/packaging"
)

// Backend is an object store that can both fetch dataset files and store
// packages.
type Backend interface {
	fetch.Getter
	packaging.Uploader
}

var (
	_ Backend = (*s3.Client)(nil)
	_ Backend = (*minio.Store)(nil)
)

// backend connects to the object store selected by the global flags.
//
//nolint:ireturn // the two backends share no concrete type.
func (o *RootOptions) backend(ctx context.Context) (Backend, error) {
	if o.Dial != nil {
		return o.Dial(ctx)
	}

	if o.Backend == BackendMinio {
		store, err := o.minioBackend()
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	client, err := o.s3Backend(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (o *RootOptions) s3Backend(ctx context.Context) (*s3.Client, error) {
	opts := []s3types.Option{s3.WithLogger(o.Logger())}
	if o.Region != "" {
		opts = append(opts, s3.WithRegion(o.Region))
	}
	if o.Endpoint != "" {
		opts = append(opts, s3.WithEndpoint(o.Endpoint), s3.WithForcePathStyle(true))
	}
	if o.Anonymous {
		opts = append(opts, s3.WithAnonymousCredentials())
	}
	if o.Timeout > 0 {
		opts = append(opts, s3.WithTimeout(o.Timeout))
	}
	opts = append(opts, s3.WithPartSize(o.PartSizeMiB<<20), s3.WithConcurrency(o.Concurrency))

	client, err := s3.New(ctx, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create s3 client", err)
	}
	return client, nil
}

func (o *RootOptions) minioBackend() (*minio.Store, error) {
	if o.Endpoint == "" {
		return nil, NewExitError(ExitCommandError, "the minio backend needs --endpoint")
	}

	host, secure, err := splitEndpoint(o.Endpoint)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid endpoint", err)
	}

	opts := []minio.Option{minio.WithLogger(o.Logger()), minio.WithSecure(secure)}
	if o.Region != "" {
		opts = append(opts, minio.WithRegion(o.Region))
	}
	if !o.Anonymous {
		opts = append(opts, minio.WithCredentials(os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")))
	}
	if o.Timeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default
		transport.ResponseHeaderTimeout = o.Timeout
		opts = append(opts, minio.WithTransport(transport))
	}

	store, err := minio.New(host, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create minio client", err)
	}
	return store, nil
}

// uploadOptions applies the transfer flags to each package upload. The minio
// store only honours them per upload.
func (o *RootOptions) uploadOptions() []s3types.UploadOption {
	var opts []s3types.UploadOption
	if o.PartSizeMiB > 0 {
		opts = append(opts, s3.WithUploadPartSize(o.PartSizeMiB<<20))
	}
	if o.Concurrency > 0 {
		opts = append(opts, s3.WithUploadConcurrency(o.Concurrency))
	}
	return opts
}

// splitEndpoint accepts host[:port] or an http(s) URL.
func splitEndpoint(endpoint string) (host string, secure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

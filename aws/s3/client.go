package s3

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/internal/s3api"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

const (
	// DefaultRegion is used when neither the options nor the environment name one.
	DefaultRegion = "us-east-1"

	// DefaultPartSize is the client-level multipart part size.
	DefaultPartSize int64 = 16 * 1024 * 1024

	// DefaultConcurrency is the client-level number of parts in flight.
	DefaultConcurrency = 4
)

// Client is an S3 client. It is safe for concurrent use.
type Client struct {
	s3Client s3api.S3API
	config   s3types.ClientConfig
	logger   *slog.Logger
}

// New creates a new S3 client with the provided options.
// Credentials come from the default AWS credential chain unless
// WithAnonymousCredentials or WithAWSConfig is given.
//
// Example:
//
//	client, err := s3.New(ctx,
//	    s3.WithRegion("us-east-2"),
//	    s3.WithMaxRetries(5),
//	)
func New(ctx context.Context, opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	var cfg aws.Config
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if clientCfg.Anonymous {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
		}
		var err error
		cfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.NewError("new", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if clientCfg.Timeout > 0 {
		httpClient := &http.Client{Timeout: clientCfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	clientCfg.Logger.Debug("s3 client configured",
		"region", cfg.Region,
		"endpoint", clientCfg.Endpoint,
		"anonymous", clientCfg.Anonymous,
	)

	return newClient(s3.NewFromConfig(cfg, s3Opts...), clientCfg), nil
}

// NewWithClient creates a client around an existing S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...s3types.Option) *Client {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}
	return newClient(s3Client, clientCfg)
}

func newClient(s3Client s3api.S3API, clientCfg s3types.ClientConfig) *Client {
	return &Client{
		s3Client: s3Client,
		config:   clientCfg,
		logger:   clientCfg.Logger,
	}
}

func defaultClientConfig() s3types.ClientConfig {
	return s3types.ClientConfig{
		MaxRetries:  3,
		Concurrency: DefaultConcurrency,
		PartSize:    DefaultPartSize,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

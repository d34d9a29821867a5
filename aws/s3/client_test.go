package s3

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/aws/s3/internal/testutil"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

func TestClient_New(t *testing.T) {
	tests := []struct {
		name string
		opts []s3types.Option
	}{
		{
			name: "custom aws config",
			opts: []s3types.Option{WithAWSConfig(&aws.Config{Region: "eu-west-1"})},
		},
		{
			name: "anonymous with endpoint",
			opts: []s3types.Option{
				WithAWSConfig(&aws.Config{}),
				WithAnonymousCredentials(),
				WithEndpoint("http://localhost:4566"),
				WithForcePathStyle(true),
			},
		},
		{
			name: "with timeout",
			opts: []s3types.Option{WithAWSConfig(&aws.Config{}), WithTimeout(time.Second)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(context.Background(), tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NotNil(t, client.s3Client)
			assert.NotNil(t, client.logger)
		})
	}
}

func TestClient_New_LoadsAnonymousConfig(t *testing.T) {
	client, err := New(context.Background(), WithAnonymousCredentials(), WithRegion("us-east-2"))
	require.NoError(t, err)
	assert.True(t, client.config.Anonymous)
	assert.Equal(t, "us-east-2", client.config.Region)
}

func TestOptions(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cfg := defaultClientConfig()
	for _, opt := range []s3types.Option{
		WithRegion("us-west-2"),
		WithEndpoint("http://minio:9000"),
		WithForcePathStyle(true),
		WithAnonymousCredentials(),
		WithMaxRetries(7),
		WithTimeout(5 * time.Second),
		WithConcurrency(8),
		WithPartSize(32 * 1024 * 1024),
		WithLogger(logger),
	} {
		opt(&cfg)
	}

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "http://minio:9000", cfg.Endpoint)
	assert.True(t, cfg.ForcePathStyle)
	assert.True(t, cfg.Anonymous)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, int64(32*1024*1024), cfg.PartSize)
	assert.Same(t, logger, cfg.Logger)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	cfg := defaultClientConfig()
	WithConcurrency(0)(&cfg)
	WithPartSize(-1)(&cfg)
	WithLogger(nil)(&cfg)

	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultPartSize, cfg.PartSize)
	assert.NotNil(t, cfg.Logger)
}

func TestUploadOptions(t *testing.T) {
	cfg := &s3types.UploadOptionConfig{}
	WithContentType("text/csv")(cfg)
	WithMetadata(map[string]string{"a": "1"})(cfg)
	WithMetadata(map[string]string{"b": "2"})(cfg)
	WithUploadPartSize(6 * 1024 * 1024)(cfg)
	WithUploadConcurrency(2)(cfg)

	assert.Equal(t, "text/csv", cfg.ContentType)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, cfg.Metadata)
	assert.Equal(t, int64(6*1024*1024), cfg.PartSize)
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestNewWithClient(t *testing.T) {
	mock := &testutil.MockS3Client{}

	client := NewWithClient(mock, WithConcurrency(2))
	assert.Same(t, mock, client.s3Client)
	assert.Equal(t, 2, client.config.Concurrency)
}

//go:build integration

package testutil

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const localStackRegion = "us-east-1"

// LocalStack is a running LocalStack container standing in for the dataset
// and package buckets.
type LocalStack struct {
	Endpoint string
	Region   string
	Client   *s3.Client
}

// StartLocalStack starts a container that t.Cleanup terminates.
func StartLocalStack(t *testing.T) *LocalStack {
	t.Helper()
	if testing.Short() {
		t.Skip("LocalStack needs docker")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx, "localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").WithPort("4566").WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err, "start LocalStack")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate LocalStack: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	static := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
	})
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(localStackRegion), config.WithCredentialsProvider(static))
	require.NoError(t, err)

	return &LocalStack{
		Endpoint: endpoint,
		Region:   localStackRegion,
		Client: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(endpoint)
		}),
	}
}

// SeedBucket creates bucket holding objects, keyed the way the remote
// dataset lays them out.
func (l *LocalStack) SeedBucket(t *testing.T, bucket string, objects map[string][]byte) {
	t.Helper()

	ctx := context.Background()
	_, err := l.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err, "create bucket %s", bucket)
	for key, data := range objects {
		_, err := l.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		require.NoError(t, err, "put %s", key)
	}
}

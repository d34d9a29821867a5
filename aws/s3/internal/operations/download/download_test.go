package download

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/aws/s3/internal/testutil"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

const (
	bucket  = "natural-scenes-dataset"
	infoKey = "nsddata/experiments/nsd/nsd_stim_info_merged.csv"
	infoCSV = ",cocoId,nsdId\n0,532481,0\n1,245764,1\n"
)

type recordingTracker struct {
	seen     []int64
	complete bool
}

func (r *recordingTracker) Update(n, _ int64) { r.seen = append(r.seen, n) }
func (r *recordingTracker) Complete()         { r.complete = true }

func TestDownloader_Download(t *testing.T) {
	store := &testutil.MockS3Client{}
	store.Put(bucket, infoKey, []byte(infoCSV))

	t.Run("whole object", func(t *testing.T) {
		var buf bytes.Buffer
		result, err := New(store).Download(context.Background(), bucket, infoKey, &buf, &s3types.DownloadConfig{}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, infoCSV, buf.String())
		assert.Equal(t, int64(len(infoCSV)), result.Size)
		assert.Equal(t, infoKey, result.Key)
		assert.NotEmpty(t, result.ETag)
	})

	t.Run("progress", func(t *testing.T) {
		tracker := &recordingTracker{}
		_, err := New(store).Download(context.Background(), bucket, infoKey, io.Discard,
			&s3types.DownloadConfig{ProgressTracker: tracker}, time.Now())
		require.NoError(t, err)
		assert.True(t, tracker.complete)
		require.NotEmpty(t, tracker.seen)
		assert.Equal(t, int64(len(infoCSV)), tracker.seen[len(tracker.seen)-1])
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := New(store).Download(context.Background(), bucket, "nsddata/absent.csv", io.Discard,
			&s3types.DownloadConfig{}, time.Now())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrObjectNotFound)
		assert.Contains(t, err.Error(), bucket+"/nsddata/absent.csv")
	})
}

func TestDownloader_ShortRead(t *testing.T) {
	store := &testutil.MockS3Client{
		GetObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{
				Body:          io.NopCloser(strings.NewReader("trunc")),
				ContentLength: aws.Int64(1024),
			}, nil
		},
	}

	_, err := New(store).Download(context.Background(), bucket, infoKey, io.Discard, &s3types.DownloadConfig{}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrShortRead)
	assert.Contains(t, err.Error(), "got 5 of 1024 bytes")
}

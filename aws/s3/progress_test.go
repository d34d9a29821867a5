package s3

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := LogProgress(context.Background(), logger, "betas.hdf5")
	for done := int64(0); done <= 100; done += 5 {
		p.Update(done, 100)
	}
	p.Complete()

	out := buf.String()
	assert.Equal(t, 10, strings.Count(out, "transfer progress"))
	assert.Contains(t, out, "transfer complete")
	assert.Contains(t, out, "key=betas.hdf5")
}

func TestLogProgress_UnknownSize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := LogProgress(context.Background(), logger, "stim.csv")
	p.Update(10, 0)
	p.Update(20, 0)
	p.Complete()

	assert.NotContains(t, buf.String(), "transfer progress")
	assert.Contains(t, buf.String(), "bytes=20")
}

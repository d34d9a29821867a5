// Package fetch mirrors remote objects into a local filesystem. A key that is
// already present locally is skipped unless the run is forced, so an
// interrupted download resumes where it stopped.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bonnerlab/datasets/aws/s3"
	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
)

// Getter streams one remote object into w. It is implemented by the aws/s3
// client and the minio store.
type Getter interface {
	Download(
		ctx context.Context,
		bucket, key string,
		w io.Writer,
		opts ...s3types.DownloadOption,
	) (*s3types.DownloadResult, error)
}

// Report summarises a run.
type Report struct {
	Fetched  []string
	Skipped  []string
	Bytes    int64
	Duration time.Duration
}

// Runner fetches keys from Bucket into FS. Keys are used verbatim as local
// paths relative to the root of FS.
type Runner struct {
	Getter Getter
	Bucket string
	FS     fs.Filesystem
	Force  bool
	Logger *slog.Logger
}

// Run fetches keys sequentially. The first failure aborts the run; the
// returned report lists what was done before it.
func (r *Runner) Run(ctx context.Context, keys []string) (*Report, error) {
	logger := r.logger()
	report := &Report{}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(errors.CodeInternal, "fetch.Run", err)
		}

		fetched, n, err := r.fetch(ctx, key)
		if err != nil {
			logger.ErrorContext(ctx, "fetch failed", "key", key, "index", i, "error", err)
			return report, err
		}
		if !fetched {
			report.Skipped = append(report.Skipped, key)
			logger.DebugContext(ctx, "skipped existing file", "key", key)
			continue
		}
		report.Fetched = append(report.Fetched, key)
		report.Bytes += n
		logger.InfoContext(ctx, "fetched", "key", key, "bytes", n, "progress", i+1, "total", len(keys))
	}
	return report, nil
}

// fetch downloads key unless it already exists. It reports whether a download
// happened and how many bytes were written.
func (r *Runner) fetch(ctx context.Context, key string) (bool, int64, error) {
	fail := func(code errors.ErrorCode, err error) (bool, int64, error) {
		return false, 0, errors.Wrap(code, "fetch.Run", fmt.Errorf("%s: %w", key, err))
	}

	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return false, 0, errors.Newf(errors.CodeInvalidInput, "fetch.Run",
			"%s: key does not name a path inside the working directory", key)
	}

	if !r.Force {
		exists, err := r.FS.Exists(key)
		if err != nil {
			return fail(errors.CodeStorage, err)
		}
		if exists {
			return false, 0, nil
		}
	}

	var n int64
	err := fs.WriteAtomic(r.FS, key, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		_, err := r.Getter.Download(ctx, r.Bucket, key, cw,
			s3.WithDownloadProgress(s3.LogProgress(ctx, r.logger(), key)))
		n = cw.n
		return err
	})
	var storeErr *fs.StoreError
	switch {
	case errors.As(err, &storeErr):
		return fail(errors.CodeStorage, err)
	case err != nil:
		return fail(classify(err), err)
	}
	return true, n, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	//nolint:wrapcheck // io.Writer contract
	return n, err
}

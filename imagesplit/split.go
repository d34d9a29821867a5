// Package imagesplit writes every stimulus of an image source to its own PNG
// file. Files that already exist are left alone, so a rerun only does the work
// an earlier run did not finish.
package imagesplit

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/manifest"
)

// DefaultBatchSize is the number of images scheduled per batch.
const DefaultBatchSize = 1000

// Report summarises a run.
type Report struct {
	Written  int
	Skipped  int
	Duration time.Duration
}

// Splitter encodes images into Dir on FS.
type Splitter struct {
	FS        fs.Filesystem
	Dir       string
	Workers   int
	BatchSize int
	Logger    *slog.Logger

	// fsMu guards FS mutations; Filesystem implementations need not be safe
	// for concurrent use.
	fsMu sync.Mutex
}

// Run writes images [0, n) of src. Batches run one after another; inside a
// batch up to Workers images are decoded and encoded at once. The first error
// cancels the rest of its batch and ends the run.
func (s *Splitter) Run(ctx context.Context, src Source, n int) (*Report, error) {
	const op = "imagesplit.Run"

	report := &Report{}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	if n < 0 {
		return report, errors.Newf(errors.CodeInvalidInput, op, "negative image count %d", n)
	}
	if n > src.Len() {
		return report, errors.Newf(errors.CodeIntegrity, op,
			"requested %d images but source holds %d", n, src.Len())
	}
	if err := s.FS.MkdirAll(s.Dir, 0o755); err != nil {
		return report, errors.Wrap(errors.CodeStorage, op, err)
	}

	logger := s.logger()
	workers, batch := s.limits()
	var written, skipped atomic.Int64
	defer func() {
		report.Written = int(written.Load())
		report.Skipped = int(skipped.Load())
	}()

	for lo := 0; lo < n; lo += batch {
		hi := min(lo+batch, n)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				wrote, err := s.split(src, i)
				if err != nil {
					return err
				}
				if wrote {
					written.Add(1)
				} else {
					skipped.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.ErrorContext(ctx, "image batch failed", "first", lo, "last", hi-1, "error", err)
			if errors.CodeOf(err) == errors.CodeUnknown {
				err = errors.Wrap(errors.CodeInternal, op, err)
			}
			return report, err
		}
		logger.InfoContext(ctx, "image batch done", "done", hi, "total", n)
	}
	return report, nil
}

// split writes image i unless its file exists. It reports whether it wrote.
func (s *Splitter) split(src Source, i int) (bool, error) {
	const op = "imagesplit.Run"
	dst := manifest.ImagePath(s.Dir, i)

	s.fsMu.Lock()
	exists, err := s.FS.Exists(dst)
	s.fsMu.Unlock()
	if err != nil {
		return false, errors.Wrap(errors.CodeStorage, op, err)
	}
	if exists {
		return false, nil
	}

	img, err := src.Image(i)
	if err != nil {
		return false, errors.Wrap(errors.CodeDecode, op, fmt.Errorf("image %d: %w", i, err))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return false, errors.Wrap(errors.CodeInternal, op, fmt.Errorf("encode image %d: %w", i, err))
	}

	s.fsMu.Lock()
	defer s.fsMu.Unlock()
	if err := fs.WriteAtomic(s.FS, dst, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	}); err != nil {
		return false, errors.Wrap(errors.CodeStorage, op, fmt.Errorf("image %d: %w", i, err))
	}
	return true, nil
}

func (s *Splitter) limits() (workers, batch int) {
	workers, batch = s.Workers, s.BatchSize
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return workers, batch
}

func (s *Splitter) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

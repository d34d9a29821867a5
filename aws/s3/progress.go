package s3

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bonnerlab/datasets/aws/s3/s3types"
)

// LogProgress returns a tracker that logs a transfer of key at debug level
// each time another tenth of it completes. Transfers of unknown size are only
// logged when they finish. It is safe for the concurrent part uploads of a
// multipart transfer.
func LogProgress(ctx context.Context, logger *slog.Logger, key string) s3types.ProgressTracker {
	return &logProgress{ctx: ctx, logger: logger, key: key}
}

type logProgress struct {
	ctx    context.Context //nolint:containedctx // logged with every update
	logger *slog.Logger
	key    string

	mu    sync.Mutex
	tenth int64
	done  int64
	total int64
}

func (p *logProgress) Update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done, p.total = done, total
	if total <= 0 {
		return
	}
	if tenth := done * 10 / total; tenth > p.tenth {
		p.tenth = tenth
		p.logger.DebugContext(p.ctx, "transfer progress", "key", p.key, "bytes", done, "total", total)
	}
}

func (p *logProgress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.DebugContext(p.ctx, "transfer complete", "key", p.key, "bytes", p.done)
}

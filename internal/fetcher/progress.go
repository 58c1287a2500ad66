package fetcher

import (
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jiegec/rustup-mirror/internal/logger"
)

// progressStep is how often, in percent of the body, a progress line is logged.
const progressStep = 25

// progressReader logs transfer progress of a response body.
type progressReader struct {
	io.ReadCloser

	ctx      context.Context //nolint:containedctx // Needed to log from Read.
	path     string
	total    int64
	read     int64
	nextStep int64
	started  time.Time
	done     bool
}

func newProgressReader(ctx context.Context, path string, body io.ReadCloser, total int64) *progressReader {
	logger.DebugKV(ctx, "Downloading", "path", path, "size", humanize.Bytes(uint64(total)))

	return &progressReader{
		ReadCloser: body,
		ctx:        ctx,
		path:       path,
		total:      total,
		nextStep:   progressStep,
		started:    time.Now(),
	}
}

// Read implements io.Reader.
func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.ReadCloser.Read(buf)
	p.read += int64(n)

	if p.total > 0 {
		for p.nextStep < 100 && p.read*100/p.total >= p.nextStep {
			logger.DebugKV(p.ctx, "Download progress",
				"path", p.path,
				"percent", p.nextStep,
				"transferred", humanize.Bytes(uint64(p.read)))

			p.nextStep += progressStep
		}
	}

	if !p.done && (err == io.EOF || p.read >= p.total) {
		p.done = true

		logger.InfoKV(p.ctx, "Downloaded",
			"path", p.path,
			"size", humanize.Bytes(uint64(p.read)),
			"elapsed", time.Since(p.started).Round(time.Millisecond))
	}

	return n, err
}

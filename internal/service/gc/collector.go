package gc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/metrics"
	"github.com/jiegec/rustup-mirror/internal/refset"
)

// Report summarizes one collection pass.
type Report struct {
	FilesDeleted   int
	DirsDeleted    int
	BytesReclaimed int64
	// Kept counts entries left in place inside the inspected directories.
	Kept int
}

// Collector sweeps the dated directories under root.
type Collector struct {
	root    string
	policy  Policy
	dryRun  bool
	metrics *metrics.Recorder
}

// Option configures a Collector.
type Option func(*Collector)

// WithDryRun logs every decision without deleting anything.
func WithDryRun(dryRun bool) Option {
	return func(c *Collector) {
		c.dryRun = dryRun
	}
}

// WithMetrics counts deletions in recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Collector) {
		c.metrics = recorder
	}
}

// New creates a collector for the dist directory at root.
func New(root string, policy Policy, opts ...Option) *Collector {
	c := &Collector{
		root:   filepath.Clean(root),
		policy: policy,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect removes everything under root that refs does not reference and the
// policy allows to go. Deletion failures do not stop the pass; they are
// returned together once every directory was visited.
func (c *Collector) Collect(ctx context.Context, refs *refset.Snapshot) (*Report, error) {
	ctx = logger.WithName(ctx, "gc")

	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Report{}, nil
		}

		return nil, fmt.Errorf("list %s: %w", c.root, err)
	}

	var (
		report   = &Report{}
		failures *multierror.Error
	)

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		if !entry.IsDir() {
			continue
		}

		date, ok := dist.ParseReleaseDate(entry.Name())
		if !ok {
			logger.DebugKV(ctx, "Skipping directory without a date", "dir", entry.Name())

			continue
		}

		dirErr := c.collectDir(ctx, filepath.Join(c.root, entry.Name()), date, refs, report)
		if dirErr != nil {
			failures = multierror.Append(failures, dirErr)
		}
	}

	logger.InfoKV(ctx, "Garbage collection finished",
		"dry_run", c.dryRun,
		"files", report.FilesDeleted,
		"dirs", report.DirsDeleted,
		"reclaimed", humanize.IBytes(uint64(max(report.BytesReclaimed, 0))),
		"kept", report.Kept)

	return report, failures.ErrorOrNil()
}

func (c *Collector) collectDir(
	ctx context.Context,
	dir string,
	date time.Time,
	refs *refset.Snapshot,
	report *Report,
) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	var (
		eligible = c.policy.RollingEligible(date)
		kept     int
		failures *multierror.Error
	)

	for _, entry := range entries {
		name := entry.Name()

		switch {
		case entry.IsDir():
			kept++
		case dist.IsSidecar(name):
			// Sidecars follow their artifact.
		case refs.Contains(filepath.Join(dir, name)):
			kept++
		default:
			kind := dist.ClassifyArtifact(name)
			if kind == dist.Rolling && !eligible {
				kept++

				continue
			}

			if deleteErr := c.deleteFile(ctx, filepath.Join(dir, name), kind, report); deleteErr != nil {
				kept++

				failures = multierror.Append(failures, deleteErr)
			}
		}
	}

	if kept == 0 {
		if err = c.deleteDir(ctx, dir, report); err != nil {
			failures = multierror.Append(failures, err)
		}
	}

	report.Kept += kept

	return failures.ErrorOrNil()
}

// deleteFile removes path and its sidecar; a missing sidecar is fine.
func (c *Collector) deleteFile(ctx context.Context, path string, kind dist.ChannelKind, report *Report) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat %s: %w", path, err)
	}

	logger.DebugKV(ctx, "Deleting unreferenced file", "path", path, "kind", kind.String(), "dry_run", c.dryRun)

	if !c.dryRun {
		if err = os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}

		if err = os.Remove(path + dist.SidecarExt); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Sidecar not removed", "path", path+dist.SidecarExt, "error", err)
		}
	}

	report.FilesDeleted++
	report.BytesReclaimed += info.Size()

	if c.metrics != nil {
		c.metrics.FilesDeleted.WithLabelValues(kind.String()).Inc()
		c.metrics.BytesReclaimed.Add(float64(info.Size()))
	}

	return nil
}

func (c *Collector) deleteDir(ctx context.Context, dir string, report *Report) error {
	logger.InfoKV(ctx, "Deleting directory", "dir", dir, "dry_run", c.dryRun)

	if !c.dryRun {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}

	report.DirsDeleted++

	if c.metrics != nil {
		c.metrics.DirsDeleted.Inc()
	}

	return nil
}

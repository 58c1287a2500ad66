package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jiegec/rustup-mirror/internal/config"
	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/metrics"
	"github.com/jiegec/rustup-mirror/internal/refset"
	"github.com/jiegec/rustup-mirror/internal/repository/lock"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
	"github.com/jiegec/rustup-mirror/internal/service/gc"
)

var errNoConfig = errors.New("configuration is not set")

// Options are inputs accepted by the mirror entry points.
type Options struct {
	// Config is the validated configuration of the run.
	Config *config.Config
	// Fetcher overrides the HTTP fetcher built from Config.
	Fetcher fetcher.Fetcher
	// Now overrides the clock used for the retention cutoff and metrics.
	Now func() time.Time
	// DryRun makes garbage collection report without deleting.
	DryRun bool
}

// Report is the outcome of a mirror run.
type Report struct {
	Channels   []*ChannelResult
	SelfUpdate *SelfUpdateResult
	// GC is nil when collection was skipped.
	GC *gc.Report
}

// runner holds the state of a single run; call Run or Collect instead.
type runner struct {
	cfg      *config.Config
	channels []dist.Channel
	targets  []dist.Target
	orig     *repository.FileRepository
	repo     *repository.FileRepository
	source   fetcher.Fetcher
	refs     *refset.Builder
	metrics  *metrics.Recorder
	lock     *lock.Lock
	now      func() time.Time
	dryRun   bool
}

// Run synchronizes every configured channel, mirrors rustup itself and
// collects garbage unless that is turned off.
// Any error aborts the run; files written so far stay in place.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "rustup-mirror")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return nil, err
	}

	defer r.cleanup(ctx)

	report, err := r.sync(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Mirror run failed", "error", err)

		return report, err
	}

	logger.Info(ctx, "Mirror run completed")

	return report, nil
}

// Collect runs garbage collection against the manifests already published in
// the mirror, without contacting upstream.
func Collect(ctx context.Context, opts *Options) (*gc.Report, error) {
	ctx = logger.WithName(ctx, "rustup-mirror")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return nil, err
	}

	defer r.cleanup(ctx)

	started := r.now()

	if err = addMirroredReferences(ctx, r.repo, r.refs, r.cfg.MirrorURL, nil); err != nil {
		logger.ErrorKV(ctx, "Collecting references failed", "error", err)

		return nil, err
	}

	report, err := r.collect(ctx, r.refs.Freeze())
	if err != nil {
		logger.ErrorKV(ctx, "Garbage collection failed", "error", err)

		return report, err
	}

	return report, r.finish(ctx, started)
}

// newRunner validates the options and takes the mirror lock.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil || opts.Config == nil {
		return nil, errNoConfig
	}

	cfg := opts.Config

	channels, err := cfg.ParsedChannels()
	if err != nil {
		return nil, err
	}

	targets, err := cfg.ParsedTargets()
	if err != nil {
		return nil, err
	}

	source := opts.Fetcher
	if source == nil {
		source, err = fetcher.NewHTTPFetcher(cfg.UpstreamURL,
			fetcher.WithTimeout(cfg.Timeout),
			fetcher.WithRateLimit(cfg.RateLimit))
		if err != nil {
			return nil, err
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runLock, err := lock.Acquire(ctx, cfg.MirrorDir)
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg:      cfg,
		channels: channels,
		targets:  targets,
		orig:     repository.NewFileRepository(cfg.OrigDir),
		repo:     repository.NewFileRepository(cfg.MirrorDir),
		source:   source,
		refs:     refset.NewBuilder(),
		metrics:  metrics.NewRecorder(),
		lock:     runLock,
		now:      now,
		dryRun:   opts.DryRun,
	}, nil
}

// sync is the whole pipeline of a regular run.
func (r *runner) sync(ctx context.Context) (*Report, error) {
	started := r.now()
	report := &Report{}

	syncer := &channelSyncer{
		orig:   r.orig,
		repo:   r.repo,
		source: r.source,
		planner: &planner{
			repo:      r.repo,
			source:    r.source,
			refs:      r.refs,
			mirrorURL: r.cfg.MirrorURL,
		},
		refs:    r.refs,
		metrics: r.metrics,
		allowed: targetSet(r.targets),
		jobs:    r.cfg.Jobs,
	}

	var (
		synced   = make(map[string]struct{}, len(r.channels))
		observed = make(map[string]dist.Target)
	)

	for _, channel := range r.channels {
		result, err := syncer.sync(ctx, channel)
		if err != nil {
			return report, fmt.Errorf("channel %s: %w", channel, err)
		}

		report.Channels = append(report.Channels, result)
		synced[channel.Name()] = struct{}{}

		for _, target := range result.Targets {
			observed[target.Triple()] = target
		}
	}

	updater := &selfUpdater{
		orig:    r.orig,
		repo:    r.repo,
		source:  r.source,
		metrics: r.metrics,
	}

	selfUpdate, err := updater.sync(ctx, sortedTargets(observed))
	if err != nil {
		return report, fmt.Errorf("rustup: %w", err)
	}

	report.SelfUpdate = selfUpdate

	if r.cfg.SkipGC {
		logger.Info(ctx, "Garbage collection disabled")

		return report, r.finish(ctx, started)
	}

	// Channels published earlier but not part of this run keep their files.
	if err = addMirroredReferences(ctx, r.repo, r.refs, r.cfg.MirrorURL, synced); err != nil {
		return report, err
	}

	report.GC, err = r.collect(ctx, r.refs.Freeze())
	if err != nil {
		return report, err
	}

	return report, r.finish(ctx, started)
}

// collect runs the garbage collector over the dist directory.
func (r *runner) collect(ctx context.Context, refs *refset.Snapshot) (*gc.Report, error) {
	policy := gc.NewPolicy(r.cfg.GCDays, r.now())
	if cutoff, ok := policy.Cutoff(); ok {
		logger.InfoKV(ctx, "Collecting garbage", "cutoff", cutoff.Format(dist.DateLayout), "references", refs.Len())
	} else {
		logger.InfoKV(ctx, "Collecting garbage", "references", refs.Len())
	}

	collector := gc.New(r.repo.Path(dist.DistDir), policy,
		gc.WithDryRun(r.dryRun),
		gc.WithMetrics(r.metrics))

	return collector.Collect(ctx, refs)
}

// finish stamps the run as successful and writes the metrics textfile.
func (r *runner) finish(ctx context.Context, started time.Time) error {
	r.metrics.MarkSuccess(started, r.now())

	if r.cfg.MetricsFile == "" {
		return nil
	}

	if err := r.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Metrics written", "path", r.cfg.MetricsFile)

	return nil
}

// cleanup releases the mirror lock.
func (r *runner) cleanup(ctx context.Context) {
	if err := r.lock.Release(); err != nil {
		logger.WarnKV(ctx, "Failed to release lock", "error", err)
	}
}

func sortedTargets(targets map[string]dist.Target) []dist.Target {
	result := make([]dist.Target, 0, len(targets))
	for _, target := range targets {
		result = append(result, target)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Triple() < result[j].Triple()
	})

	return result
}

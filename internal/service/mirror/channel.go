package mirror

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/manifest"
	"github.com/jiegec/rustup-mirror/internal/metrics"
	"github.com/jiegec/rustup-mirror/internal/refset"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
)

// ChannelResult summarizes one synchronized channel.
type ChannelResult struct {
	Channel dist.Channel
	// Date is the release date declared by the manifest.
	Date string
	// Targets holds the concrete targets that stayed available after filtering.
	Targets []dist.Target
	Fetched int64
	Skipped int64
	Bytes   int64
}

// channelSyncer mirrors one channel manifest and everything it lists.
type channelSyncer struct {
	orig    *repository.FileRepository
	repo    *repository.FileRepository
	source  fetcher.Fetcher
	planner *planner
	refs    *refset.Builder
	metrics *metrics.Recorder
	// allowed is nil when every target is mirrored.
	allowed map[string]struct{}
	jobs    int
}

// sync runs the whole channel pipeline: fetch, verify, plan every artifact,
// then persist the rewritten manifest with its dated snapshot and checksums.
func (s *channelSyncer) sync(ctx context.Context, channel dist.Channel) (*ChannelResult, error) {
	ctx = logger.WithKV(ctx, "channel", channel.Name())

	m, err := s.fetchManifest(ctx, channel)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Manifest verified", "date", m.Date())

	result, err := s.syncArtifacts(ctx, channel, m)
	if err != nil {
		return nil, err
	}

	if err = s.persist(ctx, channel, m); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Channel mirrored",
		"date", result.Date,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"targets", len(result.Targets))

	return result, nil
}

// fetchManifest downloads the manifest and its checksum into the original
// directory and parses the manifest once the checksum matches.
func (s *channelSyncer) fetchManifest(ctx context.Context, channel dist.Channel) (*manifest.Manifest, error) {
	manifestPath := channel.ManifestPath()
	sidecarPath := manifestPath + dist.SidecarExt

	logger.Infof(ctx, "Downloading %s", manifestPath)

	if err := fetcher.Download(ctx, s.source, manifestPath, s.orig.Path(manifestPath)); err != nil {
		return nil, err
	}

	if err := fetcher.Download(ctx, s.source, sidecarPath, s.orig.Path(sidecarPath)); err != nil {
		return nil, err
	}

	declared, ok := s.orig.ReadSidecar(manifestPath)
	if !ok {
		return nil, fmt.Errorf("%s: no digest in checksum file: %w", sidecarPath, dist.ErrIntegrity)
	}

	actual, found, err := s.orig.Hash(manifestPath)
	if err != nil {
		return nil, err
	}

	if !found || actual != declared {
		return nil, fmt.Errorf("%s: hash %s, checksum file declares %s: %w",
			manifestPath, actual, declared, dist.ErrIntegrity)
	}

	data, err := os.ReadFile(s.orig.Path(manifestPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", manifestPath, err)
	}

	m, err := manifest.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	return m, nil
}

// syncArtifacts filters targets and plans every available artifact.
// Both variants of one entry are handled by the same worker because they
// share the entry table.
func (s *channelSyncer) syncArtifacts(
	ctx context.Context,
	channel dist.Channel,
	m *manifest.Manifest,
) (*ChannelResult, error) {
	var (
		entries  []*manifest.TargetEntry
		observed = make(map[string]dist.Target)
	)

	for _, pkg := range m.Packages() {
		for _, entry := range pkg.Targets() {
			if !entry.Available() {
				continue
			}

			if !s.allows(entry.Target) {
				entry.SetAvailable(false)
				logger.DebugKV(ctx, "Target not mirrored, marking unavailable", "entry", entry.String())

				continue
			}

			target, err := dist.ParseTarget(entry.Target)
			switch {
			case err != nil:
				logger.WarnKV(ctx, "Unrecognized target, no installer will be mirrored", "entry", entry.String())
			case !target.IsWildcard():
				observed[target.Triple()] = target
			}

			entries = append(entries, entry)
		}
	}

	var fetched, skipped, size atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(s.jobs, 1))

	for _, entry := range entries {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			for _, variant := range entry.Variants() {
				outcome, n, err := s.planner.plan(groupCtx, entry, variant)
				if err != nil {
					return err
				}

				switch outcome {
				case Fetched:
					fetched.Add(1)
					size.Add(n)
					s.metrics.ArtifactsFetched.WithLabelValues(channel.Name()).Inc()
					s.metrics.BytesFetched.Add(float64(n))
				case Skipped:
					skipped.Add(1)
					s.metrics.ArtifactsSkipped.WithLabelValues(channel.Name()).Inc()
				}
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	targets := make([]dist.Target, 0, len(observed))
	for _, target := range observed {
		targets = append(targets, target)
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Triple() < targets[j].Triple()
	})

	return &ChannelResult{
		Channel: channel,
		Date:    m.Date(),
		Targets: targets,
		Fetched: fetched.Load(),
		Skipped: skipped.Load(),
		Bytes:   size.Load(),
	}, nil
}

// allows reports whether triple passes the allow-list.
// The wildcard target carries target-independent packages such as rust-src
// and always passes.
func (s *channelSyncer) allows(triple string) bool {
	if s.allowed == nil || triple == dist.WildcardTarget {
		return true
	}

	_, ok := s.allowed[triple]

	return ok
}

// persist writes the rewritten manifest under its canonical and dated paths,
// each with a "<digest>  <file name>" checksum file.
func (s *channelSyncer) persist(ctx context.Context, channel dist.Channel, m *manifest.Manifest) error {
	data, err := m.Serialize()
	if err != nil {
		return err
	}

	canonical := channel.ManifestPath()
	if err = s.repo.WriteFile(canonical, data); err != nil {
		return err
	}

	snapshot := channel.SnapshotPath(m.Date())
	if err = s.repo.CopyFile(canonical, snapshot); err != nil {
		return err
	}

	if err = s.refs.Add(s.repo.Path(snapshot)); err != nil {
		return err
	}

	sidecar := []byte(checksumLine(data, channel.ManifestFileName()))

	if err = s.repo.WriteFile(canonical+dist.SidecarExt, sidecar); err != nil {
		return err
	}

	if err = s.repo.WriteFile(snapshot+dist.SidecarExt, sidecar); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Manifest written", "path", canonical, "snapshot", snapshot)

	return nil
}

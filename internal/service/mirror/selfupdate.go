package mirror

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/manifest"
	"github.com/jiegec/rustup-mirror/internal/metrics"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
)

// SelfUpdateResult summarizes the rustup installer mirroring.
type SelfUpdateResult struct {
	Version string
	Fetched int
	Skipped int
	// Failures aggregates per-target download errors; nil when all succeeded.
	Failures error
}

// selfUpdater mirrors the rustup release manifest and one installer per target.
type selfUpdater struct {
	orig    *repository.FileRepository
	repo    *repository.FileRepository
	source  fetcher.Fetcher
	metrics *metrics.Recorder
}

// sync fetches the release manifest, downloads the installers that are not
// mirrored yet and publishes the manifest last, so clients never see a
// version whose installers are still missing.
// A failing installer is logged and skipped; manifest problems are fatal.
func (u *selfUpdater) sync(ctx context.Context, targets []dist.Target) (*SelfUpdateResult, error) {
	ctx = logger.WithName(ctx, "self-update")

	if err := fetcher.Download(ctx, u.source, manifest.ReleasePath, u.orig.Path(manifest.ReleasePath)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(u.orig.Path(manifest.ReleasePath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", manifest.ReleasePath, err)
	}

	release, err := manifest.LoadRelease(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifest.ReleasePath, err)
	}

	result := &SelfUpdateResult{Version: release.Version}

	var failures *multierror.Error

	for _, target := range targets {
		path := release.InstallerPath(target)

		exists, existsErr := u.repo.Exists(path)
		if existsErr != nil {
			return nil, existsErr
		}

		if exists {
			result.Skipped++

			continue
		}

		size, transferErr := transfer(ctx, u.source, u.repo, path, path)
		if transferErr != nil {
			logger.WarnKV(ctx, "Installer not mirrored", "target", target.Triple(), "error", transferErr)
			u.metrics.InstallersFailed.Inc()

			failures = multierror.Append(failures, fmt.Errorf("%s: %w", target.Triple(), transferErr))

			continue
		}

		logger.InfoKV(ctx, "Installer mirrored", "path", path, "size", humanize.IBytes(uint64(size)))
		u.metrics.InstallersFetched.Inc()
		result.Fetched++
	}

	if err = u.repo.Import(u.orig.Path(manifest.ReleasePath), manifest.ReleasePath); err != nil {
		return nil, err
	}

	result.Failures = failures.ErrorOrNil()

	logger.InfoKV(ctx, "rustup mirrored",
		"version", result.Version,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"failed", failedCount(failures))

	return result, nil
}

func failedCount(failures *multierror.Error) int {
	if failures == nil {
		return 0
	}

	return len(failures.Errors)
}

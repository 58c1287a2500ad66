package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/manifest"
	"github.com/jiegec/rustup-mirror/internal/refset"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
)

const (
	manifestPrefix = "channel-rust-"
	manifestSuffix = ".toml"
)

// addMirroredReferences records everything listed by the canonical manifests
// already published in the mirror, except for channels in skip.
// It lets collection run without a sync and keeps the files of channels that
// were not part of the current run.
func addMirroredReferences(
	ctx context.Context,
	repo *repository.FileRepository,
	refs *refset.Builder,
	mirrorURL string,
	skip map[string]struct{},
) error {
	entries, err := os.ReadDir(repo.Path(dist.DistDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("list %s: %w", dist.DistDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, manifestPrefix) || !strings.HasSuffix(name, manifestSuffix) {
			continue
		}

		channel, parseErr := dist.ParseChannel(strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), manifestSuffix))
		if parseErr != nil {
			logger.DebugKV(ctx, "Skipping unrecognized manifest", "file", name)

			continue
		}

		if _, ok := skip[channel.Name()]; ok {
			continue
		}

		data, readErr := os.ReadFile(repo.Path(channel.ManifestPath()))
		if readErr != nil {
			return fmt.Errorf("read %s: %w", channel.ManifestPath(), readErr)
		}

		m, loadErr := manifest.Load(data)
		if loadErr != nil {
			return fmt.Errorf("%s: %w", channel.ManifestPath(), loadErr)
		}

		if err = addManifestReferences(repo, refs, mirrorURL, channel, m); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Retained published manifest", "channel", channel.Name(), "date", m.Date())
	}

	return nil
}

// addManifestReferences records every available artifact of m and its dated snapshot.
// URLs are expected to point under mirrorURL.
func addManifestReferences(
	repo *repository.FileRepository,
	refs *refset.Builder,
	mirrorURL string,
	channel dist.Channel,
	m *manifest.Manifest,
) error {
	for _, pkg := range m.Packages() {
		for _, entry := range pkg.Targets() {
			if !entry.Available() {
				continue
			}

			for _, variant := range entry.Variants() {
				ref, err := manifest.ParseMirroredURL(variant.URL, mirrorURL)
				if err != nil {
					return fmt.Errorf("%s: %w", entry, err)
				}

				if err = refs.Add(repo.Path(ref.LocalPath)); err != nil {
					return err
				}
			}
		}
	}

	return refs.Add(repo.Path(channel.SnapshotPath(m.Date())))
}

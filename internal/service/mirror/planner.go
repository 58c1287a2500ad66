package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	"github.com/jiegec/rustup-mirror/internal/logger"
	"github.com/jiegec/rustup-mirror/internal/manifest"
	"github.com/jiegec/rustup-mirror/internal/refset"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
)

// Outcome is what planning one artifact variant did.
type Outcome int

const (
	// Skipped means the local copy already matched the upstream hash.
	Skipped Outcome = iota
	// Fetched means the artifact was downloaded and verified.
	Fetched
)

// planner brings one artifact variant in line with its manifest entry.
type planner struct {
	repo      *repository.FileRepository
	source    fetcher.Fetcher
	refs      *refset.Builder
	mirrorURL string
}

// plan syncs the artifact behind variant and points the entry at the mirror.
// The artifact is recorded as referenced before anything else happens, so a
// failed fetch never makes a still-listed file collectable.
func (p *planner) plan(
	ctx context.Context,
	entry *manifest.TargetEntry,
	variant manifest.Variant,
) (Outcome, int64, error) {
	ref, err := manifest.ParseArtifactURL(variant.URL)
	if err != nil {
		return Skipped, 0, fmt.Errorf("%s: %w", entry, err)
	}

	if err = p.refs.Add(p.repo.Path(ref.LocalPath)); err != nil {
		return Skipped, 0, err
	}

	cached, sidecarFound := p.repo.ReadSidecar(ref.LocalPath)
	if !sidecarFound {
		digest, found, hashErr := p.repo.Hash(ref.LocalPath)
		if hashErr != nil {
			return Skipped, 0, hashErr
		}

		if found {
			cached = digest
		}
	}

	upstream := strings.ToLower(strings.TrimSpace(variant.Hash))
	needDownload := cached == "" || cached != upstream

	var (
		outcome = Skipped
		size    int64
	)

	if needDownload {
		size, err = p.fetch(ctx, ref, upstream)
		if err != nil {
			return Skipped, size, err
		}

		outcome = Fetched
	} else {
		logger.DebugKV(ctx, "Already mirrored, skipping", "path", ref.LocalPath)
	}

	if needDownload || !sidecarFound {
		if err = p.repo.WriteSidecar(ref.LocalPath, upstream); err != nil {
			return outcome, size, err
		}

		logger.DebugKV(ctx, "Wrote checksum", "path", ref.SidecarPath())
	}

	entry.SetURL(variant.Kind, ref.MirrorURL(p.mirrorURL))

	return outcome, size, nil
}

// fetch downloads the artifact and checks the stored bytes against the declared hash.
// A mismatching file is removed so it is never served.
func (p *planner) fetch(ctx context.Context, ref manifest.ArtifactRef, want string) (int64, error) {
	size, err := transfer(ctx, p.source, p.repo, ref.URLPath, ref.LocalPath)
	if err != nil {
		return size, err
	}

	got, found, err := p.repo.Hash(ref.LocalPath)
	if err != nil {
		return size, err
	}

	if !found || got != want {
		_ = p.repo.Remove(ref.LocalPath)

		return size, fmt.Errorf("%s: hash %s, manifest declares %s: %w", ref.LocalPath, got, want, dist.ErrIntegrity)
	}

	return size, nil
}

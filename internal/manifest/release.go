package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

const (
	// ReleasePath is the rustup self-update manifest path relative to the distribution root.
	ReleasePath = "rustup/release-stable.toml"
	// SupportedReleaseSchema is the only schema-version of the self-update manifest.
	SupportedReleaseSchema = "1"
)

// Release is the rustup self-update manifest.
type Release struct {
	SchemaVersion string `toml:"schema-version"`
	Version       string `toml:"version"`
}

// LoadRelease parses and validates a self-update manifest.
func LoadRelease(data []byte) (*Release, error) {
	var release Release
	if err := toml.Unmarshal(data, &release); err != nil {
		return nil, fmt.Errorf("decode release manifest: %w: %w", dist.ErrParse, err)
	}

	if release.SchemaVersion != SupportedReleaseSchema {
		return nil, fmt.Errorf("schema-version is %q, want %q: %w",
			release.SchemaVersion, SupportedReleaseSchema, dist.ErrSchema)
	}

	if release.Version == "" {
		return nil, fmt.Errorf("release manifest has no version: %w", dist.ErrParse)
	}

	return &release, nil
}

// InstallerPath is rustup/archive/<version>/<triple>/rustup-init[.exe].
func (r *Release) InstallerPath(target dist.Target) string {
	return "rustup/archive/" + r.Version + "/" + target.Triple() + "/" + target.InstallerName()
}

package dist

import (
	"errors"
	"fmt"
	"strings"
)

// OSFamily groups targets by the installer conventions of their operating system.
type OSFamily int

const (
	// Unix covers every non-Windows target.
	Unix OSFamily = iota
	// Windows targets get .exe installers.
	Windows
)

const (
	// WildcardTarget marks target-independent packages such as rust-src.
	WildcardTarget = "*"

	installerBaseName = "rustup-init"
	windowsExt        = ".exe"
	windowsOS         = "windows"
)

var errInvalidTarget = errors.New("invalid target triple")

// Target is a target triple like x86_64-unknown-linux-gnu, or the wildcard.
type Target struct {
	triple     string
	components []string
}

// ParseTarget splits a triple into its components.
func ParseTarget(triple string) (Target, error) {
	triple = strings.TrimSpace(triple)
	if triple == WildcardTarget {
		return Target{triple: triple}, nil
	}

	components := strings.Split(triple, "-")
	if len(components) < 2 {
		return Target{}, fmt.Errorf("%q: %w", triple, errInvalidTarget)
	}

	for _, component := range components {
		if component == "" {
			return Target{}, fmt.Errorf("%q: %w", triple, errInvalidTarget)
		}
	}

	return Target{triple: triple, components: components}, nil
}

// Triple returns the original triple.
func (t Target) Triple() string {
	return t.triple
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.triple
}

// IsWildcard reports whether this is the target-independent wildcard.
func (t Target) IsWildcard() bool {
	return t.triple == WildcardTarget
}

// OSFamily inspects the components after the architecture.
// Triples are arch-vendor-os[-env] or arch-os[-env], so the architecture is never the OS.
func (t Target) OSFamily() OSFamily {
	if len(t.components) < 2 {
		return Unix
	}

	for _, component := range t.components[1:] {
		if component == windowsOS {
			return Windows
		}
	}

	return Unix
}

// InstallerName is the rustup-init file name for this target.
func (t Target) InstallerName() string {
	if t.OSFamily() == Windows {
		return installerBaseName + windowsExt
	}

	return installerBaseName
}

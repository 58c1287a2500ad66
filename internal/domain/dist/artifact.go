package dist

import (
	"path"
	"strings"
	"time"
)

// ClassifyArtifact decides which channel kind a mirrored file belongs to by its name.
// The name is split on '-' and every token is cut at its first '.', so
// "rust-src-nightly.tar.xz" and "channel-rust-nightly.toml" carry a bare
// "nightly" token while "rust-nightlyish-x.tar.gz" does not.
func ClassifyArtifact(fileName string) ChannelKind {
	name := strings.TrimSuffix(path.Base(fileName), SidecarExt)
	name = strings.TrimPrefix(name, ".")

	for _, token := range strings.Split(name, "-") {
		if before, _, _ := strings.Cut(token, "."); before == rollingToken {
			return Rolling
		}
	}

	return Pinned
}

// IsSidecar reports whether a file name is a checksum sidecar.
func IsSidecar(fileName string) bool {
	return strings.HasSuffix(fileName, SidecarExt)
}

// ParseReleaseDate parses a dated directory name.
func ParseReleaseDate(name string) (time.Time, bool) {
	date, err := time.Parse(DateLayout, name)
	if err != nil {
		return time.Time{}, false
	}

	return date, true
}

package manifest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

// ArtifactRef locates a manifest-referenced file on the mirror.
type ArtifactRef struct {
	// URLPath is the escaped path as published upstream, with its leading slash.
	URLPath string
	// LocalPath is the slash-separated path relative to the mirror root, %20 decoded to spaces.
	LocalPath string
}

// ParseArtifactURL derives an ArtifactRef from a download URL.
func ParseArtifactURL(raw string) (ArtifactRef, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("artifact url %q: %w: %w", raw, dist.ErrParse, err)
	}

	escaped := parsed.EscapedPath()

	local := strings.ReplaceAll(strings.TrimPrefix(escaped, "/"), "%20", " ")
	if local == "" || strings.HasSuffix(local, "/") {
		return ArtifactRef{}, fmt.Errorf("artifact url %q has no file path: %w", raw, dist.ErrParse)
	}

	for _, segment := range strings.Split(local, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ArtifactRef{}, fmt.Errorf("artifact url %q has a non-canonical path: %w", raw, dist.ErrParse)
		}
	}

	if !strings.HasPrefix(escaped, "/") {
		escaped = "/" + escaped
	}

	return ArtifactRef{URLPath: escaped, LocalPath: local}, nil
}

// SidecarPath is the local path of the artifact's checksum sidecar.
func (a ArtifactRef) SidecarPath() string {
	return a.LocalPath + dist.SidecarExt
}

// MirrorURL joins the public mirror base and the original path.
func (a ArtifactRef) MirrorURL(base string) string {
	return strings.TrimRight(base, "/") + a.URLPath
}

// ParseMirroredURL recovers the artifact path from a URL that was rewritten to
// point under base. URLs outside base are parsed as upstream URLs.
func ParseMirroredURL(raw, base string) (ArtifactRef, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if rest, ok := strings.CutPrefix(raw, prefix); ok {
		return ParseArtifactURL("/" + rest)
	}

	return ParseArtifactURL(raw)
}

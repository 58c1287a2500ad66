package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiegec/rustup-mirror/internal/checksum"
)

const (
	releaseDate   = "2024-06-13"
	rustupVersion = "1.27.1"
	linuxTriple   = "x86_64-unknown-linux-gnu"
)

// upstreamTree lays out a minimal static.rust-lang.org under root and returns
// the artifact paths it published.
func upstreamTree(t *testing.T, root, baseURL string) []string {
	t.Helper()

	artifacts := []string{
		"dist/" + releaseDate + "/cargo-1.79.0-" + linuxTriple + ".tar.gz",
		"dist/" + releaseDate + "/cargo-1.79.0-" + linuxTriple + ".tar.xz",
		"dist/" + releaseDate + "/rust-src-1.79.0.tar.gz",
	}

	for _, rel := range artifacts {
		writeFile(t, root, rel, []byte("payload of "+rel))
	}

	manifest := fmt.Sprintf(`manifest-version = "2"
date = %q

[pkg.cargo]
version = "1.79.0"

[pkg.cargo.target.%s]
available = true
url = "%s/%s"
hash = %q
xz_url = "%s/%s"
xz_hash = %q

[pkg.rust-src]
version = "1.79.0"

[pkg.rust-src.target."*"]
available = true
url = "%s/%s"
hash = %q
`,
		releaseDate, linuxTriple,
		baseURL, artifacts[0], fileHash(t, root, artifacts[0]),
		baseURL, artifacts[1], fileHash(t, root, artifacts[1]),
		baseURL, artifacts[2], fileHash(t, root, artifacts[2]))

	writeFile(t, root, "dist/channel-rust-stable.toml", []byte(manifest))
	writeFile(t, root, "dist/channel-rust-stable.toml.sha256",
		[]byte(checksum.Bytes([]byte(manifest))+"  channel-rust-stable.toml\n"))

	writeFile(t, root, "rustup/release-stable.toml",
		[]byte(fmt.Sprintf("schema-version = \"1\"\nversion = %q\n", rustupVersion)))
	writeFile(t, root, "rustup/archive/"+rustupVersion+"/"+linuxTriple+"/rustup-init", []byte("installer"))

	return artifacts
}

// serveDir starts a static file server over dir.
func serveDir(t *testing.T, dir string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)

	return server
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func fileHash(t *testing.T, root, rel string) string {
	t.Helper()

	digest, found, err := checksum.File(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	require.True(t, found)

	return digest
}

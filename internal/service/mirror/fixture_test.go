package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiegec/rustup-mirror/internal/checksum"
	"github.com/jiegec/rustup-mirror/internal/config"
	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

const (
	testMirrorURL    = "https://mirror.example.org/rust"
	nightlyDate      = "2024-06-19"
	stableDate       = "2024-06-13"
	rustupVersion    = "1.27.1"
	linuxTriple      = "x86_64-unknown-linux-gnu"
	windowsTriple    = "x86_64-pc-windows-msvc"
	linuxGz          = "dist/" + nightlyDate + "/cargo-nightly-" + linuxTriple + ".tar.gz"
	linuxXz          = "dist/" + nightlyDate + "/cargo-nightly-" + linuxTriple + ".tar.xz"
	windowsGz        = "dist/" + nightlyDate + "/cargo-nightly-" + windowsTriple + ".tar.gz"
	rustSrc          = "dist/" + nightlyDate + "/rust-src-nightly.tar.gz"
	stableCargo      = "dist/" + stableDate + "/cargo-1.79.0-" + linuxTriple + ".tar.gz"
	linuxInstaller   = "rustup/archive/" + rustupVersion + "/" + linuxTriple + "/rustup-init"
	windowsInstaller = "rustup/archive/" + rustupVersion + "/" + windowsTriple + "/rustup-init.exe"
)

var testNow = time.Date(2024, time.June, 20, 8, 0, 0, 0, time.UTC)

// fakeUpstream serves files from memory and counts requests per path.
type fakeUpstream struct {
	mu       sync.Mutex
	files    map[string][]byte
	requests map[string]int
	// broken paths send their first byte and then fail.
	broken   map[string]struct{}
}

var errConnectionReset = errors.New("connection reset by peer")

// Fetch implements fetcher.Fetcher.
func (f *fakeUpstream) Fetch(_ context.Context, relPath string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests[relPath]++

	data, ok := f.files[relPath]
	if !ok {
		return nil, 0, fmt.Errorf("%s: 404 Not Found: %w", relPath, dist.ErrTransfer)
	}

	if _, ok = f.broken[relPath]; ok {
		body := io.MultiReader(bytes.NewReader(data[:1]), iotest.ErrReader(errConnectionReset))

		return io.NopCloser(body), int64(len(data)), nil
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeUpstream) breakBody(relPath string, broken bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if broken {
		f.broken[relPath] = struct{}{}
	} else {
		delete(f.broken, relPath)
	}
}

func (f *fakeUpstream) set(relPath string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[relPath] = data
}

func (f *fakeUpstream) remove(relPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.files, relPath)
}

func (f *fakeUpstream) count(relPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[relPath]
}

// artifactRequests counts requests for anything inside a dated directory.
func (f *fakeUpstream) artifactRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0

	for path, n := range f.requests {
		if strings.HasPrefix(path, "dist/20") {
			total += n
		}
	}

	return total
}

type fixture struct {
	upstream *fakeUpstream
	cfg      *config.Config
}

func upstreamURL(rel string) string {
	return "https://static.rust-lang.org/" + rel
}

func artifactBody(rel string) []byte {
	return []byte("contents of " + rel)
}

func hashOf(rel string) string {
	return checksum.Bytes(artifactBody(rel))
}

func nightlyManifest() string {
	return fmt.Sprintf(`manifest-version = "2"
date = %q

[pkg.cargo]
version = "1.81.0-nightly"

[pkg.cargo.target.%s]
available = true
url = %q
hash = %q
xz_url = %q
xz_hash = %q

[pkg.cargo.target.%s]
available = true
url = %q
hash = %q

[pkg.cargo.target.aarch64-apple-darwin]
available = false

[pkg.rust-src]
version = "1.81.0-nightly"

[pkg.rust-src.target."*"]
available = true
url = %q
hash = %q

[renames.rls]
to = "rls-preview"
`,
		nightlyDate,
		linuxTriple, upstreamURL(linuxGz), hashOf(linuxGz), upstreamURL(linuxXz), hashOf(linuxXz),
		windowsTriple, upstreamURL(windowsGz), hashOf(windowsGz),
		upstreamURL(rustSrc), hashOf(rustSrc))
}

func stableManifest() string {
	return fmt.Sprintf(`manifest-version = "2"
date = %q

[pkg.cargo]
version = "1.79.0"

[pkg.cargo.target.%s]
available = true
url = %q
hash = %q
`, stableDate, linuxTriple, upstreamURL(stableCargo), hashOf(stableCargo))
}

// publishManifest serves a channel manifest with a matching checksum file.
func (f *fakeUpstream) publishManifest(channel, contents string) {
	name := "channel-rust-" + channel + ".toml"
	f.set("dist/"+name, []byte(contents))
	f.set("dist/"+name+".sha256", []byte(checksum.Bytes([]byte(contents))+"  "+name+"\n"))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	upstream := &fakeUpstream{
		files:    make(map[string][]byte),
		requests: make(map[string]int),
		broken:   make(map[string]struct{}),
	}

	upstream.publishManifest("nightly", nightlyManifest())
	upstream.publishManifest("stable", stableManifest())

	for _, rel := range []string{linuxGz, linuxXz, windowsGz, rustSrc, stableCargo, linuxInstaller, windowsInstaller} {
		upstream.set(rel, artifactBody(rel))
	}

	upstream.set("rustup/release-stable.toml",
		[]byte(fmt.Sprintf("schema-version = \"1\"\nversion = %q\n", rustupVersion)))

	root := t.TempDir()

	cfg := config.Default()
	cfg.OrigDir = filepath.Join(root, "orig")
	cfg.MirrorDir = filepath.Join(root, "mirror")
	cfg.MirrorURL = testMirrorURL
	cfg.Channels = []string{"nightly"}

	return &fixture{upstream: upstream, cfg: cfg}
}

func (f *fixture) options() *Options {
	return &Options{
		Config:  f.cfg,
		Fetcher: f.upstream,
		Now:     func() time.Time { return testNow },
	}
}

func (f *fixture) mirrorPath(rel string) string {
	return filepath.Join(f.cfg.MirrorDir, filepath.FromSlash(rel))
}

func (f *fixture) writeMirrorFile(t *testing.T, rel string, data []byte) {
	t.Helper()

	path := f.mirrorPath(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func (f *fixture) readMirrorFile(t *testing.T, rel string) string {
	t.Helper()

	data, err := os.ReadFile(f.mirrorPath(rel))
	require.NoError(t, err)

	return string(data)
}

// tree returns every file of the mirror keyed by relative path.
func (f *fixture) tree(t *testing.T) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(f.cfg.MirrorDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(f.cfg.MirrorDir, path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

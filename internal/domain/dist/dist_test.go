package dist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseChannel covers accepted names, rejected names and derived paths.
func TestParseChannel(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"stable", "beta", "nightly", "1.75.0"} {
		c, err := ParseChannel(name)
		require.NoError(t, err, name)
		require.Equal(t, name, c.Name())
	}

	for _, name := range []string{"", "  ", "../etc", "Stable", "a/b", "1..2"} {
		_, err := ParseChannel(name)
		require.Error(t, err, name)
	}

	nightly := MustParseChannel("nightly")
	require.Equal(t, Rolling, nightly.Kind())
	require.Equal(t, "dist/channel-rust-nightly.toml", nightly.ManifestPath())
	require.Equal(t, "dist/2024-05-01/channel-rust-nightly.toml", nightly.SnapshotPath("2024-05-01"))

	require.Equal(t, Pinned, MustParseChannel("stable").Kind())
	require.Equal(t, Pinned, MustParseChannel("1.75.0").Kind())
	require.Len(t, DefaultChannels(), 3)
}

// TestTargetOSFamily checks installer naming from parsed triples.
func TestTargetOSFamily(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"x86_64-pc-windows-msvc":     "rustup-init.exe",
		"i686-pc-windows-gnu":        "rustup-init.exe",
		"aarch64-pc-windows-gnullvm": "rustup-init.exe",
		"x86_64-unknown-linux-gnu":   "rustup-init",
		"aarch64-apple-darwin":       "rustup-init",
		"wasm32-wasi":                "rustup-init",
	}
	for triple, want := range cases {
		target, err := ParseTarget(triple)
		require.NoError(t, err, triple)
		require.Equal(t, want, target.InstallerName(), triple)
	}

	wildcard, err := ParseTarget("*")
	require.NoError(t, err)
	require.True(t, wildcard.IsWildcard())

	_, err = ParseTarget("x86_64")
	require.Error(t, err)

	_, err = ParseTarget("x86_64--linux")
	require.Error(t, err)
}

// TestClassifyArtifact uses whole tokens rather than substrings.
func TestClassifyArtifact(t *testing.T) {
	t.Parallel()

	rolling := []string{
		"rust-nightly-x86_64-unknown-linux-gnu.tar.xz",
		"rust-src-nightly.tar.gz",
		"rust-src-nightly.tar.gz.sha256",
		"channel-rust-nightly.toml",
		".rust-nightly-x86_64-unknown-linux-gnu.tar.gz.new",
	}
	for _, name := range rolling {
		require.Equal(t, Rolling, ClassifyArtifact(name), name)
	}

	pinned := []string{
		"rust-1.75.0-x86_64-unknown-linux-gnu.tar.gz",
		"rust-beta-aarch64-apple-darwin.tar.xz",
		"channel-rust-stable.toml",
		"rust-nightlyish-x86_64-unknown-linux-gnu.tar.gz",
	}
	for _, name := range pinned {
		require.Equal(t, Pinned, ClassifyArtifact(name), name)
	}
}

// TestParseReleaseDate accepts ISO dates only.
func TestParseReleaseDate(t *testing.T) {
	t.Parallel()

	date, ok := ParseReleaseDate("2024-02-29")
	require.True(t, ok)
	require.Equal(t, 29, date.Day())

	_, ok = ParseReleaseDate("2024-02-30")
	require.False(t, ok)

	_, ok = ParseReleaseDate("staging")
	require.False(t, ok)

	require.True(t, IsSidecar("a.tar.gz.sha256"))
	require.False(t, IsSidecar("a.tar.gz"))
}

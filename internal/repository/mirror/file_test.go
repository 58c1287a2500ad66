package mirror

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/jiegec/rustup-mirror/internal/checksum"
)

// TestApplyArtifact creates a new file and then replaces it.
func TestApplyArtifact(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	rel := "dist/2024-05-02/rust-1.78.0-x86_64-unknown-linux-gnu.tar.gz"

	require.NoError(t, repo.ApplyArtifact(rel, strings.NewReader("first")))

	data, err := os.ReadFile(repo.Path(rel))
	require.NoError(t, err)
	require.Equal(t, "first", string(data))

	require.NoError(t, repo.ApplyArtifact(rel, strings.NewReader("second")))

	digest, found, err := repo.Hash(rel)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, checksum.Bytes([]byte("second")), digest)

	entries, err := os.ReadDir(filepath.Dir(repo.Path(rel)))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
}

// TestSidecarLifecycle writes, reads and removes a sidecar along with its subject.
func TestSidecarLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	rel := "dist/2024-05-02/cargo.tar.xz"

	_, ok := repo.ReadSidecar(rel)
	require.False(t, ok)

	digest := checksum.Bytes([]byte("cargo"))
	require.NoError(t, repo.WriteFile(rel, []byte("cargo")))
	require.NoError(t, repo.WriteSidecar(rel, digest))

	got, ok := repo.ReadSidecar(rel)
	require.True(t, ok)
	require.Equal(t, digest, got)

	exists, err := repo.Exists(rel)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, repo.Remove(rel))

	exists, err = repo.Exists(rel)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = os.Stat(repo.Path(rel + ".sha256"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, repo.Remove(rel), "removing twice is fine")
}

// TestCopyFile duplicates a file into a new directory.
func TestCopyFile(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	require.NoError(t, repo.WriteFile("dist/channel-rust-stable.toml", []byte("manifest")))
	require.NoError(t, repo.CopyFile("dist/channel-rust-stable.toml", "dist/2024-05-02/channel-rust-stable.toml"))

	data, err := os.ReadFile(repo.Path("dist/2024-05-02/channel-rust-stable.toml"))
	require.NoError(t, err)
	require.Equal(t, "manifest", string(data))

	require.Error(t, repo.CopyFile("dist/missing.toml", "dist/x.toml"))
}

// TestApplyArtifactFailedRead verifies a broken body leaves no new file and keeps an old one.
func TestApplyArtifactFailedRead(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	rel := "rustup/archive/1.27.1/x86_64-pc-windows-msvc/rustup-init.exe"
	errReset := errors.New("connection reset")

	broken := io.MultiReader(strings.NewReader("M"), iotest.ErrReader(errReset))
	require.Error(t, repo.ApplyArtifact(rel, broken))

	exists, err := repo.Exists(rel)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.ApplyArtifact(rel, strings.NewReader("installer")))

	broken = io.MultiReader(strings.NewReader("M"), iotest.ErrReader(errReset))
	require.Error(t, repo.ApplyArtifact(rel, broken))

	data, err := os.ReadFile(repo.Path(rel))
	require.NoError(t, err)
	require.Equal(t, "installer", string(data))
}

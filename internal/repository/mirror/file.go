package mirror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/jiegec/rustup-mirror/internal/checksum"
	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

const (
	// DefaultFileMode is used for every mirrored file.
	DefaultFileMode os.FileMode = 0o644
	// DefaultDirMode is used for every created directory.
	DefaultDirMode os.FileMode = 0o755
)

// FileRepository stores mirrored files under a root directory.
type FileRepository struct {
	// root is the mirror directory all relative paths resolve against.
	root string
}

// NewFileRepository creates a repository rooted at root.
func NewFileRepository(root string) *FileRepository {
	return &FileRepository{
		root: filepath.Clean(root),
	}
}

// Root returns the repository root.
func (r *FileRepository) Root() string {
	return r.root
}

// Path converts a slash-separated relative path to a filesystem path.
func (r *FileRepository) Path(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// Hash returns the digest of the file at rel; found is false when it does not exist.
func (r *FileRepository) Hash(rel string) (string, bool, error) {
	return checksum.File(r.Path(rel))
}

// ReadSidecar returns the digest stored in the sidecar of rel.
func (r *FileRepository) ReadSidecar(rel string) (string, bool) {
	return checksum.ReadSidecar(r.Path(rel + dist.SidecarExt))
}

// WriteSidecar stores digest as the sidecar of rel.
func (r *FileRepository) WriteSidecar(rel, digest string) error {
	return r.WriteFile(rel+dist.SidecarExt, []byte(digest))
}

// WriteFile writes data at rel, creating parent directories.
func (r *FileRepository) WriteFile(rel string, data []byte) error {
	target := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	if err := os.WriteFile(target, data, DefaultFileMode); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}

	return nil
}

// CopyFile copies src to dst inside the repository.
func (r *FileRepository) CopyFile(src, dst string) error {
	return r.Import(r.Path(src), dst)
}

// Import copies a file from anywhere on disk to rel.
func (r *FileRepository) Import(source, rel string) error {
	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}

	return r.WriteFile(rel, data)
}

// ApplyArtifact atomically replaces the file at rel with the contents of body.
// A half-written download never shows up under the final name.
func (r *FileRepository) ApplyArtifact(rel string, body io.Reader) error {
	target := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	// go-update swaps the file in by renaming the previous one away first.
	var placeholder bool

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		file, createErr := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, DefaultFileMode)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", rel, createErr)
		}

		_ = file.Close()
		placeholder = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
	}

	if err := goupdate.Apply(body, options); err != nil {
		// An empty placeholder under the final name would pass for a mirrored file.
		if placeholder {
			_ = os.Remove(target)
		}

		return fmt.Errorf("apply %s: %w", rel, err)
	}

	return nil
}

// Exists reports whether a regular file exists at rel.
func (r *FileRepository) Exists(rel string) (bool, error) {
	info, err := os.Stat(r.Path(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat %s: %w", rel, err)
	}

	return info.Mode().IsRegular(), nil
}

// Remove deletes the file at rel together with its sidecar.
// A missing sidecar, or a sidecar that cannot be removed, is not an error.
func (r *FileRepository) Remove(rel string) error {
	if err := os.Remove(r.Path(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}

	_ = os.Remove(r.Path(rel + dist.SidecarExt))

	return nil
}

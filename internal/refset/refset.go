package refset

import (
	"errors"
	"path/filepath"
	"sync"
)

// ErrFrozen is returned by Add after Freeze.
var ErrFrozen = errors.New("reference set is frozen")

// Normalize makes path absolute and collapses . and .. lexically, without touching the filesystem.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}

// Builder is the appendable reference set of the sync phase. It is safe for concurrent use.
type Builder struct {
	mu     sync.Mutex
	paths  map[string]struct{}
	frozen bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		paths: make(map[string]struct{}),
	}
}

// Add records path in normalized form.
func (b *Builder) Add(path string) error {
	normalized := Normalize(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return ErrFrozen
	}

	b.paths[normalized] = struct{}{}

	return nil
}

// Len returns the number of distinct paths recorded so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.paths)
}

// Freeze ends the sync phase and hands the paths over to a Snapshot.
// Calling Freeze again returns a snapshot of the same paths.
func (b *Builder) Freeze() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true

	return &Snapshot{paths: b.paths}
}

// Snapshot is the read-only reference set consumed by the garbage collector.
type Snapshot struct {
	paths map[string]struct{}
}

// Contains reports whether path, once normalized, was referenced.
func (s *Snapshot) Contains(path string) bool {
	_, ok := s.paths[Normalize(path)]

	return ok
}

// Len returns the number of referenced paths.
func (s *Snapshot) Len() int {
	return len(s.paths)
}

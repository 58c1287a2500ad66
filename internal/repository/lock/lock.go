package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/jiegec/rustup-mirror/internal/logger"
)

// Filename is the lock file created in the mirror root.
const Filename = ".rustup-mirror.lock"

const lockFilePermissions = 0o644

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("mirror is locked by another run")

// ProcessAlive reports whether pid belongs to a running process.
type ProcessAlive func(pid int) (bool, error)

// Lock is a held run lock.
type Lock struct {
	path string
}

// Acquire takes the lock in dir, creating dir if needed.
func Acquire(ctx context.Context, dir string) (*Lock, error) {
	return acquire(ctx, dir, os.Getpid(), processAlive)
}

func acquire(ctx context.Context, dir string, self int, alive ProcessAlive) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(filepath.Clean(dir), Filename)

	for range 2 {
		err := create(path, self)
		if err == nil {
			return &Lock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		owner, readErr := readOwner(path)
		if readErr == nil && owner != self {
			running, aliveErr := alive(owner)
			if aliveErr != nil {
				return nil, fmt.Errorf("check lock owner %d: %w", owner, aliveErr)
			}

			if running {
				return nil, fmt.Errorf("%s held by pid %d: %w", path, owner, ErrLocked)
			}
		}

		logger.WarnKV(ctx, "Removing stale lock", "path", path, "pid", owner)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrLocked)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}

func create(path string, pid int) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissions)
	if err != nil {
		return err
	}

	_, err = file.WriteString(strconv.Itoa(pid))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write lock: %w", err)
	}

	return nil
}

func readOwner(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(string(contents)))
}

// processAlive looks the PID up in the process table.
func processAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}

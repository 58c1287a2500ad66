package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DigestLength is the length of a lowercase hex SHA-256 digest.
const DigestLength = sha256.Size * 2

// File returns the hex digest of the whole file at path.
// found is false, with a nil error, when the file does not exist.
func File(path string) (digest string, found bool, err error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("open %s for hashing: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	digest, err = Reader(file)
	if err != nil {
		return "", false, fmt.Errorf("hash %s: %w", path, err)
	}

	return digest, true, nil
}

// Reader streams r through SHA-256 until EOF.
func Reader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Bytes returns the hex digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// ParseSidecar extracts the digest from sidecar contents.
// Upstream sidecars read "<digest>  <file name>"; mirrored artifact sidecars hold the digest alone.
// ok is false when the contents do not start with a full digest.
func ParseSidecar(contents []byte) (string, bool) {
	text := strings.TrimSpace(string(contents))
	if len(text) < DigestLength {
		return "", false
	}

	digest := strings.ToLower(text[:DigestLength])
	if _, err := hex.DecodeString(digest); err != nil {
		return "", false
	}

	return digest, true
}

// ReadSidecar reads and parses the sidecar at path.
// A missing or unreadable sidecar is reported as not found: absence is a normal state.
func ReadSidecar(path string) (string, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", false
	}

	return ParseSidecar(contents)
}

package mirror

import (
	"github.com/jiegec/rustup-mirror/internal/checksum"
	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

// checksumLine formats a sha256sum-compatible line for data stored as fileName.
func checksumLine(data []byte, fileName string) string {
	return checksum.Bytes(data) + "  " + fileName
}

// targetSet turns an allow-list into a lookup set; an empty list means no filter.
func targetSet(targets []dist.Target) map[string]struct{} {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[target.Triple()] = struct{}{}
	}

	return set
}

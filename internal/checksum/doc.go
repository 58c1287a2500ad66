// Package checksum computes the SHA-256 digests that decide whether a mirrored
// file is stale, and reads the .sha256 sidecars published next to artifacts
// and manifests.
package checksum

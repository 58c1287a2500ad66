// Package mirror implements the filesystem side of the mirror.
//
// FileRepository addresses files by slash-separated paths relative to a root
// directory, replaces artifacts atomically, and manages the .sha256 sidecars
// that record the digest of each mirrored file.
package mirror

// Package mirror synchronizes a local Rust distribution mirror.
//
// For every configured channel it fetches the upstream manifest and its
// checksum, verifies it, downloads each available artifact whose local copy
// does not match the declared hash, rewrites the artifact URLs to point at the
// mirror and persists the manifest under its canonical and dated paths. The
// rustup self-update manifest and installers are mirrored afterwards. Every
// referenced file is recorded so that garbage collection, which runs last,
// never removes anything a served manifest still points to.
package mirror

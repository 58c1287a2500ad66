// Package gc removes artifacts of the mirror that no retained manifest
// references any more.
//
// Only the dated directories directly below the dist directory are inspected.
// Referenced files are never touched. Unreferenced stable and beta artifacts
// are removed straight away, unreferenced nightly artifacts only once their
// directory is older than the retention cutoff. Directories left with nothing
// worth keeping are removed as a whole.
package gc

// Package lock keeps two mirror runs from working on the same directory.
//
// The lock is a file holding the owner's PID. A lock whose owner is no longer
// running is considered stale and taken over.
package lock

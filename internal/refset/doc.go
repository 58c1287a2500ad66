// Package refset tracks which mirrored files are still referenced.
//
// A Builder collects paths while channels are synchronized; Freeze turns it
// into a read-only Snapshot for the garbage collector. The two types keep
// the sync phase and the collection phase from overlapping.
package refset

// Package manifest loads and rewrites Rust channel manifests.
//
// A manifest is decoded into a generic TOML tree rather than fixed structs,
// so tables and keys the mirror does not understand (renames, profiles,
// artifacts, components) survive a rewrite untouched. Typed accessors expose
// only what the mirror needs: the release date, packages, their target
// entries and each entry's plain and xz download variants.
package manifest

// Package dist contains the domain vocabulary of a Rust distribution tree.
//
// Channel and Target are structured identifiers: the rolling/pinned split and
// the installer extension are computed once from their parsed form instead of
// by substring search on arbitrary paths. ClassifyArtifact applies the same
// token rule to artifact file names found on disk. The error sentinels define
// the failure taxonomy shared by every mirror stage.
package dist

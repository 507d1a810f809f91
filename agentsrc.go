// Package agentsrc embeds this module's own source tree so a boss can ship
// a buildable copy of the doer to a remote machine over scp, the Go
// analogue of bundling a Cargo.toml/Cargo.lock/src tree for a remote
// "cargo build --release".
//
// Grounded on the teacher's pkg/agent/bundle.go, which embeds prebuilt
// per-platform agent binaries via go:embed; we embed source instead of
// binaries (DESIGN.md explains why the prebuilt-binary fast path is
// skipped) but keep the same "ship yourself over the wire, build on
// arrival" shape.
package agentsrc

import "embed"

//go:embed all:cmd all:internal go.mod
var Source embed.FS

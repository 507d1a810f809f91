//go:build !profiling

package doer

import "github.com/rjrsync/rjrsync/internal/wire"

// finalProfilingData produces the terminal response a doer always sends
// right after Shutdown, so that a boss's receive loop doesn't need a
// separate code path for profiling vs non-profiling builds. A
// non-profiling doer never collected anything, so its payload is empty.
func finalProfilingData() wire.Response {
	return wire.Response{Kind: wire.ResponseProfilingData}
}

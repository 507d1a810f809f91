//go:build profiling

package doer

import (
	"sync"
	"time"

	"github.com/rjrsync/rjrsync/internal/wire"
)

// profilingEntry records one named scope's timing, relative to process
// start rather than wall-clock time, to keep the payload small.
type profilingEntry struct {
	ScopeName string
	Start     time.Duration
	End       time.Duration
}

var (
	profilingStart   = time.Now()
	profilingMu      sync.Mutex
	profilingEntries []profilingEntry
)

// profile records the duration of the caller's scope. Use as:
//
//	defer profile("getEntries")()
func profile(scope string) func() {
	start := time.Since(profilingStart)
	return func() {
		end := time.Since(profilingStart)
		profilingMu.Lock()
		profilingEntries = append(profilingEntries, profilingEntry{ScopeName: scope, Start: start, End: end})
		profilingMu.Unlock()
	}
}

// finalProfilingData gob-encodes every scope timing recorded this session.
// The boss never interprets these bytes itself; it just writes them out for
// an external tool to render.
func finalProfilingData() wire.Response {
	profilingMu.Lock()
	entries := profilingEntries
	profilingMu.Unlock()

	data, err := wire.Encode(entries)
	if err != nil {
		return wire.ErrAsResponse(err)
	}
	return wire.Response{Kind: wire.ResponseProfilingData, ProfilingData: data}
}

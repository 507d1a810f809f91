// Package boss manages a boss-side connection to either a local or a
// remote doer, and drives the deployment-over-SSH dance when a remote doer
// isn't already installed or is running an incompatible version.
//
// Grounded on the teacher's pkg/agent/dial.go (the Local | Remote session
// shape), pkg/ssh/ssh.go (shelling out to the system ssh binary rather
// than an in-process SSH client -- the teacher deliberately does this so
// the user's own ~/.ssh/config, agent forwarding, and host-key handling
// keep working), and pkg/agent/connection.go (close-then-wait teardown).
package boss

import (
	"github.com/rjrsync/rjrsync/internal/memchan"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// commandChannelCapacity and responseChannelCapacity bound the in-flight
// memory used by a local session's command/response memchan pairs.
const (
	commandChannelCapacity  = 64 << 20
	responseChannelCapacity = 64 << 20
)

// Comms is a boss's view of a single doer, whether that doer is running
// in-process (Local) or over a network connection to a remote machine
// (Remote). Both implementations publish their responses through a
// memchan.Receiver so the sync engine can multiplex src/dest responses
// with memchan.SelectReady without caring which kind of Comms it holds.
type Comms interface {
	// SendCommand sends a command to the doer. It does not wait for any
	// response; per spec.md's pipelining model, most commands produce no
	// response at all on success.
	SendCommand(cmd wire.Command) error

	// Responses returns the receiver side of this doer's response stream.
	Responses() *memchan.Receiver[wire.Response]

	// Shutdown sends the terminal Shutdown command and waits for the doer
	// (goroutine or remote process) to finish tearing down.
	Shutdown() error

	String() string
}

// SelectReady blocks until one of the two Comms' response streams has a
// message ready and returns its index (0 for a, 1 for b), without
// consuming it -- the sync engine's query phase uses this to merge
// entries arriving from the source and destination doers in whichever
// order they actually show up.
func SelectReady(a, b Comms) int {
	return memchan.SelectReady(a.Responses(), b.Responses())
}

package boss

import (
	"sync"

	"github.com/rjrsync/rjrsync/internal/doer"
	"github.com/rjrsync/rjrsync/internal/memchan"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// localComms runs a doer engine on a goroutine in the same process,
// connected to the boss via two memchan pairs -- one per direction --
// instead of a network socket. This is the path taken whenever an
// endpoint's host is empty (a plain local path).
type localComms struct {
	cmdSender  *memchan.Sender[wire.Command]
	respRecv   *memchan.Receiver[wire.Response]
	wg         sync.WaitGroup
	shutdownMu sync.Mutex
	done       bool
}

// NewLocalSession spawns a doer engine goroutine rooted at root and wires
// it to the returned Comms.
func NewLocalSession(root string) (Comms, error) {
	cmdSender, cmdRecv := memchan.New[wire.Command](commandChannelCapacity)
	respSender, respRecv := memchan.New[wire.Response](responseChannelCapacity)

	lc := &localComms{cmdSender: cmdSender, respRecv: respRecv}
	lc.wg.Add(1)
	go lc.run(cmdRecv, respSender)

	if err := lc.SendCommand(wire.Command{Kind: wire.CommandSetRoot, Root: root}); err != nil {
		return nil, err
	}
	return lc, nil
}

func (lc *localComms) run(cmdRecv *memchan.Receiver[wire.Command], respSender *memchan.Sender[wire.Response]) {
	defer lc.wg.Done()
	defer respSender.Close()

	engine := doer.NewEngine()
	send := func(r wire.Response) error { return respSender.Send(r) }

	for {
		cmd, err := cmdRecv.Recv()
		if err != nil {
			return
		}
		done, err := engine.Exec(cmd, send)
		if err != nil || done {
			return
		}
	}
}

func (lc *localComms) SendCommand(cmd wire.Command) error {
	return lc.cmdSender.Send(cmd)
}

func (lc *localComms) Responses() *memchan.Receiver[wire.Response] {
	return lc.respRecv
}

func (lc *localComms) Shutdown() error {
	lc.shutdownMu.Lock()
	if lc.done {
		lc.shutdownMu.Unlock()
		return nil
	}
	lc.done = true
	lc.shutdownMu.Unlock()

	if err := lc.cmdSender.Send(wire.Command{Kind: wire.CommandShutdown}); err != nil {
		return err
	}
	lc.cmdSender.Close()
	lc.wg.Wait()
	return nil
}

func (lc *localComms) String() string {
	return "<local>"
}

package doer

import (
	"github.com/rjrsync/rjrsync/internal/transport"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// Serve drives an Engine from commands arriving on sess until a Shutdown
// command (or a transport error) ends the session. It blocks until then.
func Serve(sess *transport.Session) error {
	engine := NewEngine()
	send := func(resp wire.Response) error {
		return sess.Send(resp)
	}

	for {
		var cmd wire.Command
		if err := sess.Recv(&cmd); err != nil {
			return err
		}

		done, err := engine.Exec(cmd, send)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

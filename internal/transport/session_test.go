package transport

import (
	"net"
	"testing"

	"github.com/rjrsync/rjrsync/internal/wire"
)

func newSessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	bossConn, doerConn := net.Pipe()

	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	boss, err := NewSession(bossConn, key, 0, 1)
	if err != nil {
		t.Fatalf("boss session: %v", err)
	}
	doer, err := NewSession(doerConn, key, 1, 0)
	if err != nil {
		t.Fatalf("doer session: %v", err)
	}
	return boss, doer
}

func TestSendRecvRoundTrip(t *testing.T) {
	boss, doer := newSessionPair(t)
	defer boss.Close()
	defer doer.Close()

	cmd := wire.Command{Kind: wire.CommandShutdown}
	done := make(chan error, 1)
	go func() { done <- boss.Send(cmd) }()

	var got wire.Command
	if err := doer.Recv(&got); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Kind != wire.CommandShutdown {
		t.Fatalf("got %+v", got)
	}
}

func TestNonceCountersAdvanceByTwo(t *testing.T) {
	boss, doer := newSessionPair(t)
	defer boss.Close()
	defer doer.Close()

	for i := 0; i < 3; i++ {
		cmd := wire.Command{Kind: wire.CommandMarker}
		done := make(chan error, 1)
		go func() { done <- boss.Send(cmd) }()
		var got wire.Command
		if err := doer.Recv(&got); err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if err := <-done; err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if got := boss.sendCh.Load(); got != 6 {
		t.Fatalf("expected send counter 6, got %d", got)
	}
	if got := doer.recvCh.Load(); got != 6 {
		t.Fatalf("expected recv counter 6, got %d", got)
	}
}

func TestTamperedFrameFailsAuthentication(t *testing.T) {
	boss, doer := newSessionPair(t)
	defer boss.Close()
	defer doer.Close()

	// Break the doer's expectation of the nonce sequence by consuming one
	// extra increment, simulating a corrupted/out-of-sync stream.
	doer.recvCh.Add(2)

	done := make(chan error, 1)
	go func() { done <- boss.Send(wire.Command{Kind: wire.CommandShutdown}) }()

	var got wire.Command
	err := doer.Recv(&got)
	<-done
	if err == nil {
		t.Fatalf("expected authentication failure")
	}
}

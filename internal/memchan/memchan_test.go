package memchan

import (
	"testing"
	"time"
)

func TestSendRecv(t *testing.T) {
	s, r := New[string](1 << 20)
	if err := s.Send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := r.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestTryRecvEmpty(t *testing.T) {
	_, r := New[string](1 << 20)
	if _, ok := r.TryRecv(); ok {
		t.Fatalf("expected no message ready")
	}
}

func TestOversizedMessageAlwaysAdmitted(t *testing.T) {
	s, r := New[[]byte](10)
	big := make([]byte, 10000)
	done := make(chan error, 1)
	go func() { done <- s.Send(big) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send of oversized message deadlocked")
	}
	if _, err := r.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}
}

func TestSelectReadyDoesNotLoseMessage(t *testing.T) {
	sa, ra := New[string](1 << 20)
	_, rb := New[string](1 << 20)

	if err := sa.Send("from-a"); err != nil {
		t.Fatalf("send: %v", err)
	}

	idx := SelectReady(ra, rb)
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}

	got, err := ra.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != "from-a" {
		t.Fatalf("got %q", got)
	}
}

func TestBackpressureBlocksUntilDrained(t *testing.T) {
	s, r := New[[]byte](100)
	if err := s.Send(make([]byte, 200)); err != nil {
		t.Fatalf("send: %v", err)
	}

	sendDone := make(chan error, 1)
	go func() { sendDone <- s.Send(make([]byte, 200)) }()

	select {
	case <-sendDone:
		t.Fatalf("expected send to block while over capacity")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := r.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}

	select {
	case err := <-sendDone:
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send did not unblock after drain")
	}
}

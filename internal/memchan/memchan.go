// Package memchan implements a cross-goroutine communication channel whose
// capacity is measured in serialized bytes rather than message count. It is
// used for in-process boss<->doer links when an endpoint is local, and is
// the primary back-pressure mechanism preventing the boss from buffering an
// entire source tree into memory when the destination is slower.
//
// Ported from the Rust implementation's memory_bound_channel, which wraps
// Crossbeam channels with a shared atomic byte counter. Go's channels plus
// an atomic counter give the same shape directly.
package memchan

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/wire"
)

// sized pairs a message with its precomputed serialized size, so the
// receiving end doesn't need to recompute it.
type sized[T any] struct {
	msg T
	n   int64
}

// Sender is the send half of a memory-bounded channel.
type Sender[T any] struct {
	raw      chan sized[T]
	capacity int64
	usage    *atomic.Int64
}

// Receiver is the receive half of a memory-bounded channel.
//
// A background goroutine continuously forwards from the raw channel into a
// capacity-1 "peeked" channel. SelectReady observes readiness by racing on
// the peeked channels of two receivers with a native select, then stashes
// whatever it pulled out so that a subsequent Recv/TryRecv call returns it
// first -- this way SelectReady never loses a message, satisfying the
// "must not consume" contract at the level callers observe even though the
// implementation has no way to peek a Go channel without removing from it.
type Receiver[T any] struct {
	peeked chan sized[T]
	usage  *atomic.Int64

	mu    sync.Mutex
	stash *sized[T]
}

// New creates a sender/receiver pair with the given capacity, expressed in
// bytes as estimated by wire.SerializedSize.
func New[T any](capacityBytes int64) (*Sender[T], *Receiver[T]) {
	raw := make(chan sized[T], 4096)
	usage := &atomic.Int64{}
	r := &Receiver[T]{peeked: make(chan sized[T], 1), usage: usage}
	go r.forward(raw)
	return &Sender[T]{raw: raw, capacity: capacityBytes, usage: usage}, r
}

func (r *Receiver[T]) forward(raw chan sized[T]) {
	for item := range raw {
		r.peeked <- item
	}
	close(r.peeked)
}

// Send blocks if there is insufficient memory available in the channel,
// using exponential back-off. The counter is incremented before blocking so
// that only one atomic operation is needed in the common case where there
// is already space, and the comparison is against the usage *before* this
// message was added: a single message larger than capacity is always
// admitted, so the channel can never deadlock against an oversized message.
func (s *Sender[T]) Send(msg T) error {
	n, err := wire.SerializedSize(msg)
	if err != nil {
		return errors.Wrap(err, "unable to size message")
	}

	priorUsage := s.usage.Add(n) - n
	if priorUsage > s.capacity {
		backoff := time.Microsecond
		const maxBackoff = 10 * time.Millisecond
		for s.usage.Load()-n > s.capacity {
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}

	s.raw <- sized[T]{msg: msg, n: n}
	return nil
}

// Close closes the underlying channel. Subsequent Recv calls return an
// error once drained.
func (s *Sender[T]) Close() {
	close(s.raw)
}

// Recv blocks until a message is available, then returns it, reducing the
// shared memory counter (which may unblock a sender).
func (r *Receiver[T]) Recv() (T, error) {
	r.mu.Lock()
	if r.stash != nil {
		item := *r.stash
		r.stash = nil
		r.mu.Unlock()
		r.usage.Add(-item.n)
		return item.msg, nil
	}
	r.mu.Unlock()

	item, ok := <-r.peeked
	if !ok {
		var zero T
		return zero, errors.New("channel closed")
	}
	r.usage.Add(-item.n)
	return item.msg, nil
}

// TryRecv returns immediately with ok == false if no message is available,
// instead of blocking. It is used by the sync engine to drain responses
// without blocking command pipelining.
func (r *Receiver[T]) TryRecv() (msg T, ok bool) {
	r.mu.Lock()
	if r.stash != nil {
		item := *r.stash
		r.stash = nil
		r.mu.Unlock()
		r.usage.Add(-item.n)
		return item.msg, true
	}
	r.mu.Unlock()

	select {
	case item, open := <-r.peeked:
		if !open {
			return msg, false
		}
		r.usage.Add(-item.n)
		return item.msg, true
	default:
		return msg, false
	}
}

// SelectReady blocks until one of the two receivers has a message ready and
// returns its index (0 or 1). The message itself is not lost: whichever
// receiver becomes ready has its item stashed so the next Recv/TryRecv call
// on that receiver returns it first, letting the caller decide which
// receiver to actually drain.
func SelectReady[A any, B any](a *Receiver[A], b *Receiver[B]) int {
	a.mu.Lock()
	aStashed := a.stash != nil
	a.mu.Unlock()
	if aStashed {
		return 0
	}
	b.mu.Lock()
	bStashed := b.stash != nil
	b.mu.Unlock()
	if bStashed {
		return 1
	}

	select {
	case item, ok := <-a.peeked:
		if ok {
			a.mu.Lock()
			a.stash = &item
			a.mu.Unlock()
		}
		return 0
	case item, ok := <-b.peeked:
		if ok {
			b.mu.Lock()
			b.stash = &item
			b.mu.Unlock()
		}
		return 1
	}
}

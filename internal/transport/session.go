// Package transport implements the encrypted, framed channel used between a
// boss and a remote doer. Each frame is a little-endian uint64 length
// prefix followed by an AEAD-sealed payload; nonces are partitioned by
// parity so that boss->doer and doer->boss traffic can never collide even
// though both directions share one key.
//
// Ported from the Rust implementation's encrypted_comms module.
package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/wire"
)

// KeySize is the size, in bytes, of the shared AEAD key exchanged during
// the handshake.
const KeySize = 16 // AES-128

// nonceSize matches the 96-bit nonce AES-GCM expects.
const nonceSize = 12

// Session wraps a net.Conn with an AEAD cipher and a pair of nonce
// counters, one per direction. A session is created once per boss<->doer
// link and torn down after a Shutdown command.
type Session struct {
	conn   net.Conn
	aead   cipher.AEAD
	sendCh atomic.Uint64
	recvCh atomic.Uint64

	mu      sync.Mutex // serializes writes; a session is used by one sync engine goroutine but guards against concurrent Shutdown
	dead    error
	closeFn func() error
}

// NewSession constructs a Session from a connected socket, a 16-byte shared
// key, and the initial nonce counters for each direction. sendInitial and
// recvInitial must differ in parity (one even, one odd) and match across the
// boss and doer ends so that the two directions never reuse a nonce value.
func NewSession(conn net.Conn, key [KeySize]byte, sendInitial, recvInitial uint64) (*Session, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct AEAD")
	}

	s := &Session{conn: conn, aead: aead, closeFn: conn.Close}
	s.sendCh.Store(sendInitial)
	s.recvCh.Store(recvInitial)
	return s, nil
}

func nonceFor(counter uint64) []byte {
	nonce := make([]byte, nonceSize)
	binary.LittleEndian.PutUint64(nonce[:8], counter)
	return nonce
}

// Send serializes and seals a message (a Command or Response), writing the
// length-prefixed ciphertext in a single socket write.
// A serialization or AEAD failure marks the session fatally broken; all
// subsequent calls return that same error.
func (s *Session) Send(message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dead != nil {
		return s.dead
	}
	// s.mu is already held here, so failures are recorded directly rather
	// than through fail, which takes the lock itself.
	failLocked := func(err error) error {
		s.dead = err
		return err
	}

	plaintext, err := wire.Encode(message)
	if err != nil {
		return failLocked(errors.Wrap(err, "unable to serialize message"))
	}

	counter := s.sendCh.Load()
	sealed := s.aead.Seal(nil, nonceFor(counter), plaintext, nil)
	s.sendCh.Add(2)

	frame := make([]byte, 8+len(sealed))
	binary.LittleEndian.PutUint64(frame[:8], uint64(len(sealed)))
	copy(frame[8:], sealed)

	if _, err := s.conn.Write(frame); err != nil {
		return failLocked(errors.Wrap(err, "unable to write frame"))
	}

	return nil
}

// Recv blocks until a full frame is available, decrypts it, and decodes it
// into dst (a pointer to a Command or Response).
func (s *Session) Recv(dst interface{}) error {
	s.mu.Lock()
	dead := s.dead
	s.mu.Unlock()
	if dead != nil {
		return dead
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return s.fail(errors.Wrap(err, "unable to read frame length"))
	}
	length := binary.LittleEndian.Uint64(lenBuf[:])

	sealed := make([]byte, length)
	if _, err := io.ReadFull(s.conn, sealed); err != nil {
		return s.fail(errors.Wrap(err, "unable to read frame body"))
	}

	counter := s.recvCh.Load()
	plaintext, err := s.aead.Open(nil, nonceFor(counter), sealed, nil)
	if err != nil {
		return s.fail(errors.Wrap(err, "unable to authenticate frame"))
	}
	s.recvCh.Add(2)

	if err := wire.Decode(plaintext, dst); err != nil {
		return s.fail(errors.Wrap(err, "unable to deserialize message"))
	}

	return nil
}

// fail marks the session dead and returns the error for convenience at call
// sites.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	if s.dead == nil {
		s.dead = err
	}
	dead := s.dead
	s.mu.Unlock()
	return dead
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	return s.closeFn()
}

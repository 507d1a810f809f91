package boss

import (
	"strings"
	"testing"
	"time"

	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/protocol"
)

func TestReadHandshakeParsesVersionAndPort(t *testing.T) {
	stdout := strings.NewReader(protocol.HandshakeStartedPrefix + protocol.Version + "\n" +
		protocol.HandshakeCompletedPrefix + "4242\n")
	stderr := strings.NewReader("")

	version, port, err := readHandshake(stdout, stderr, logging.NewStderr(logging.LevelError))
	if err != nil {
		t.Fatalf("readHandshake: %v", err)
	}
	if version != protocol.Version {
		t.Errorf("version = %q, want %q", version, protocol.Version)
	}
	if port != 4242 {
		t.Errorf("port = %d, want 4242", port)
	}
}

func TestReadHandshakeToleratesChatterOnEitherStream(t *testing.T) {
	stdout := strings.NewReader("some motd banner\n" +
		protocol.HandshakeStartedPrefix + protocol.Version + "\n" +
		protocol.HandshakeCompletedPrefix + "7\n")
	stderr := strings.NewReader("a warning from the remote shell\n")

	_, port, err := readHandshake(stdout, stderr, logging.NewStderr(logging.LevelError))
	if err != nil {
		t.Fatalf("readHandshake: %v", err)
	}
	if port != 7 {
		t.Errorf("port = %d, want 7", port)
	}
}

func TestReadHandshakeEOFWithoutCompletionReturnsError(t *testing.T) {
	// Both streams hit EOF without ever producing a HandshakeCompleted
	// line -- this must return promptly rather than hang.
	stdout := strings.NewReader("doer crashed before handshake\n")
	stderr := strings.NewReader("")

	done := make(chan struct{})
	go func() {
		_, _, err := readHandshake(stdout, stderr, logging.NewStderr(logging.LevelError))
		if err == nil {
			t.Errorf("expected an error when the handshake never completes")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("readHandshake did not return after both streams hit EOF")
	}
}

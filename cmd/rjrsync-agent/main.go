// Command rjrsync-agent is the doer binary: it is never invoked directly by
// a user, only launched by a boss over ssh with --doer --port N.
package main

import (
	"bufio"
	"encoding/base64"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/doer"
	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/protocol"
	"github.com/rjrsync/rjrsync/internal/transport"
)

func main() {
	doerFlag := flag.Bool("doer", false, "run as a doer, speaking the rjrsync wire protocol over a TCP connection")
	port := flag.Int("port", 0, "TCP port to listen on (0 lets the OS choose)")
	logFilter := flag.String("log-filter", "info", "log level: error, warn, info, debug, trace")
	flag.Parse()

	if !*doerFlag {
		fmt.Fprintln(os.Stderr, "rjrsync-agent should not be invoked directly")
		os.Exit(1)
	}

	level, ok := logging.ParseLevel(*logFilter)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewStderr(level)

	if err := runDoer(*port, logger); err != nil {
		logger.Error("doer terminated: %v", err)
		os.Exit(exitDoerFailure)
	}
}

// exitDoerFailure is the exit code the doer exits with when it fails, so a
// doer-side failure has its own exit status. The boss does not inspect the
// doer's exit status.
const exitDoerFailure = 20

// runDoer performs the handshake described in package protocol: listen for
// an incoming connection, announce the version on both stdout and stderr,
// read the shared key from stdin, announce the listening port, then accept
// and serve exactly one connection.
func runDoer(requestedPort int, logger *logging.Logger) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", requestedPort))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}
	defer listener.Close()

	started := protocol.HandshakeStartedPrefix + protocol.Version
	fmt.Fprintln(os.Stdout, started)
	fmt.Fprintln(os.Stderr, started)

	reader := bufio.NewReader(os.Stdin)
	keyLine, err := reader.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "unable to read shared key")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(trimNewline(keyLine))
	if err != nil {
		return errors.Wrap(err, "unable to decode shared key")
	}
	if len(keyBytes) != transport.KeySize {
		return errors.Errorf("shared key has wrong length: got %d, want %d", len(keyBytes), transport.KeySize)
	}
	var key [transport.KeySize]byte
	copy(key[:], keyBytes)

	actualPort := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintln(os.Stdout, protocol.HandshakeCompletedPrefix+fmt.Sprint(actualPort))

	conn, err := listener.Accept()
	if err != nil {
		return errors.Wrap(err, "unable to accept connection")
	}
	defer conn.Close()

	// The doer receives on the even counter and sends on the odd one,
	// mirroring the boss's 0 (send)/1 (recv) so the two directions never
	// share a nonce value.
	sess, err := transport.NewSession(conn, key, 1, 0)
	if err != nil {
		return err
	}

	logger.Info("serving doer connection from %s", conn.RemoteAddr())
	return doer.Serve(sess)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

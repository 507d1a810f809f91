package boss

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/endpoint"
	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/memchan"
	"github.com/rjrsync/rjrsync/internal/protocol"
	"github.com/rjrsync/rjrsync/internal/transport"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// Prompter lets a remote session ask the user for confirmation before
// doing something consequential, such as deploying a fresh copy of the
// doer binary. The CLI front end supplies a terminal prompter; tests
// supply a canned one.
//
// Grounded on the teacher's pkg/prompting package shape: a single-method
// interface so callers don't need to know whether they're talking to a
// terminal, a scripted answer, or a GUI dialog.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// DeployPolicy controls what happens when a remote doer is missing or at
// an incompatible version.
type DeployPolicy int

const (
	DeployPolicyPrompt DeployPolicy = iota
	DeployPolicyAlways
	DeployPolicyError
)

// SessionConfig configures a remote session.
type SessionConfig struct {
	RemotePort    int
	Prompter      Prompter
	DeployPolicy  DeployPolicy
	Logger        *logging.Logger
	ForceRedeploy bool
}

// remoteComms drives a doer over SSH: a child ssh process providing the
// control channel for the handshake, and a direct TCP connection (wrapped
// in an encrypted transport.Session) for the bulk command/response
// traffic.
type remoteComms struct {
	cmd     *exec.Cmd
	session *transport.Session
	conn    net.Conn

	respSender *memchan.Sender[wire.Response]
	respRecv   *memchan.Receiver[wire.Response]

	wg         sync.WaitGroup
	shutdownMu sync.Mutex
	done       bool

	log *logging.Logger
}

// NewRemoteSession launches (and, if necessary, deploys) a doer on ep's
// host and returns a Comms backed by an encrypted TCP session.
func NewRemoteSession(ctx context.Context, ep endpoint.Endpoint, cfg SessionConfig) (Comms, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStderr(logging.LevelInfo)
	}

	cmd, stdin, stdout, stderr, err := launchDoer(ctx, ep, cfg.RemotePort)
	if err != nil {
		return nil, errors.Wrap(err, "unable to launch remote doer")
	}

	version, port, launchErr := readHandshake(stdout, stderr, cfg.Logger)
	needsDeploy := cfg.ForceRedeploy || launchErr != nil || (version != "" && version != protocol.Version)
	if needsDeploy {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()

		if err := authorizeDeploy(cfg); err != nil {
			return nil, err
		}
		if err := Deploy(ctx, ep); err != nil {
			return nil, errors.Wrap(err, "deployment failed")
		}

		cmd, stdin, stdout, stderr, err = launchDoer(ctx, ep, cfg.RemotePort)
		if err != nil {
			return nil, errors.Wrap(err, "unable to launch remote doer after deployment")
		}
		version, port, launchErr = readHandshake(stdout, stderr, cfg.Logger)
		if launchErr != nil {
			return nil, errors.Wrap(launchErr, "doer failed to start even after deployment")
		}
		if version != protocol.Version {
			return nil, errors.Errorf("doer version %q still incompatible after deployment (want %q)", version, protocol.Version)
		}
	}

	key, err := randomKey()
	if err != nil {
		return nil, err
	}
	if _, err := stdin.Write([]byte(base64.StdEncoding.EncodeToString(key[:]) + "\n")); err != nil {
		return nil, errors.Wrap(err, "unable to send shared key")
	}

	host := ep.Host
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to doer")
	}

	sess, err := transport.NewSession(conn, key, 0, 1)
	if err != nil {
		conn.Close()
		return nil, err
	}

	respSender, respRecv := memchan.New[wire.Response](responseChannelCapacity)
	rc := &remoteComms{
		cmd: cmd, session: sess, conn: conn,
		respSender: respSender, respRecv: respRecv,
		log: cfg.Logger,
	}
	rc.wg.Add(1)
	go rc.forward()

	if err := rc.SendCommand(wire.Command{Kind: wire.CommandSetRoot, Root: ep.Path}); err != nil {
		return nil, err
	}
	return rc, nil
}

// forward reads responses off the encrypted session and republishes them
// through a memchan so the sync engine can multiplex this Comms with a
// local one using the same SelectReady call regardless of transport kind.
func (rc *remoteComms) forward() {
	defer rc.wg.Done()
	defer rc.respSender.Close()
	for {
		var resp wire.Response
		if err := rc.session.Recv(&resp); err != nil {
			return
		}
		if err := rc.respSender.Send(resp); err != nil {
			return
		}
		if resp.IsFinalMessage() {
			return
		}
	}
}

func (rc *remoteComms) SendCommand(cmd wire.Command) error {
	return rc.session.Send(cmd)
}

func (rc *remoteComms) Responses() *memchan.Receiver[wire.Response] {
	return rc.respRecv
}

func (rc *remoteComms) Shutdown() error {
	rc.shutdownMu.Lock()
	if rc.done {
		rc.shutdownMu.Unlock()
		return nil
	}
	rc.done = true
	rc.shutdownMu.Unlock()

	sendErr := rc.session.Send(wire.Command{Kind: wire.CommandShutdown})
	rc.wg.Wait()
	closeErr := rc.conn.Close()
	waitErr := rc.cmd.Wait()
	if sendErr != nil {
		return sendErr
	}
	if closeErr != nil {
		return closeErr
	}
	return waitErr
}

func (rc *remoteComms) String() string {
	return fmt.Sprintf("<remote %s>", rc.cmd.Args)
}

func authorizeDeploy(cfg SessionConfig) error {
	switch cfg.DeployPolicy {
	case DeployPolicyAlways:
		return nil
	case DeployPolicyError:
		return errors.New("remote doer is missing or incompatible, and deployment is disabled")
	default:
		if cfg.Prompter == nil {
			return errors.New("remote doer is missing or incompatible, and no prompter is configured")
		}
		ok, err := cfg.Prompter.Confirm("The remote doer is missing or out of date. Deploy a fresh copy?")
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("deployment declined")
		}
		return nil
	}
}

// launchDoer starts "ssh [user@]host <launch-command>", where
// launch-command is a cross-shell polyglot line that works whether the
// remote default shell is POSIX or Windows cmd.exe, per spec.md's
// §4.6 design and grounded on the teacher's own cross-shell ssh.Command
// construction in pkg/ssh/ssh.go.
func launchDoer(ctx context.Context, ep endpoint.Endpoint, port int) (cmd *exec.Cmd, stdin io.WriteCloser, stdout, stderr io.Reader, err error) {
	target := ep.Host
	if ep.User != "" {
		target = ep.User + "@" + ep.Host
	}

	launchLine := remoteLaunchCommand(port)
	cmd = exec.CommandContext(ctx, "ssh", target, launchLine)

	stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, nil, err
	}
	return cmd, stdin, stdoutPipe, stderrPipe, nil
}

// remoteLaunchCommand builds the two-shell polyglot: on the first line a
// POSIX shell runs only an echo redirected to /dev/null and treats the rest
// as a comment, while cmd.exe runs the Windows command after the '&'; the
// second line is the POSIX command. This lets one ssh invocation work
// against either remote shell.
func remoteLaunchCommand(port int) string {
	unix := fmt.Sprintf("exec $HOME/.rjrsync/rjrsync-agent --doer --port %d", port)
	win := fmt.Sprintf(`%%HOMEPATH%%\.rjrsync\rjrsync-agent.exe --doer --port %d`, port)
	return fmt.Sprintf("echo >/dev/null # >nul & %s\n%s", win, unix)
}

// readHandshake scans both stdout and stderr for the doer's handshake
// lines, since the remote shell may interleave its own startup chatter on
// either stream before the doer's own output begins.
func readHandshake(stdout, stderr io.Reader, log *logging.Logger) (version string, port int, err error) {
	type line struct {
		text string
		err  error
	}
	lines := make(chan line, 16)
	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- line{text: sc.Text()}
		}
		if err := sc.Err(); err != nil {
			lines <- line{err: err}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	go func() {
		wg.Wait()
		close(lines)
	}()

	for l := range lines {
		if l.err != nil {
			return "", 0, l.err
		}
		log.Trace("doer output: %s", l.text)
		if strings.HasPrefix(l.text, protocol.HandshakeStartedPrefix) {
			version = strings.TrimPrefix(l.text, protocol.HandshakeStartedPrefix)
		}
		if strings.HasPrefix(l.text, protocol.HandshakeCompletedPrefix) {
			portStr := strings.TrimPrefix(l.text, protocol.HandshakeCompletedPrefix)
			p, convErr := strconv.Atoi(strings.TrimSpace(portStr))
			if convErr != nil {
				return version, 0, errors.Wrap(convErr, "unable to parse doer port")
			}
			return version, p, nil
		}
	}
	return "", 0, errors.New("doer exited before completing the handshake")
}

func randomKey() ([transport.KeySize]byte, error) {
	var key [transport.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, errors.Wrap(err, "unable to generate session key")
	}
	return key, nil
}

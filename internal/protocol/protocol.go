// Package protocol holds constants shared between the boss and doer
// binaries: the version string exchanged during the handshake and the
// plaintext line prefixes that bracket it.
//
// Grounded on boss_doer_interface.rs's VERSION/HANDSHAKE_*_MSG constants.
package protocol

// Version identifies the wire protocol. A profiling build appends
// "+profiling"; non-profiling and profiling builds are considered
// incompatible, so a version mismatch on either side triggers a redeploy.
var Version = "1" + profilingSuffix

// HandshakeStartedPrefix is written (with Version appended) by a doer to
// both stdout and stderr as soon as it starts up, before reading anything
// from stdin. The boss reads both streams to detect that ssh connected
// successfully and to learn the doer's version.
const HandshakeStartedPrefix = "rjrsync doer v"

// HandshakeCompletedPrefix is written (with the listening port appended) by
// a doer once it has received the shared key and is listening for the
// incoming TCP connection.
const HandshakeCompletedPrefix = "Waiting for incoming network connection on port "

// DefaultRemotePort is the default --remote-port value: the TCP port a
// remote doer listens on for the boss's encrypted connection. It is only a
// default; the doer always binds port 0 and reports back whatever the OS
// assigned unless a specific port is requested.
const DefaultRemotePort = 40129

// CommandNotFoundExitCode is the shell exit code produced when ssh (or the
// remote shell) can't find the doer executable at all, distinguishing "not
// installed" from other launch failures.
const CommandNotFoundExitCode = 127

// RemoteTempDirName names the hidden directory (".rjrsync") under the remote
// user's home directory where a deployed build of the doer is cached. The
// remote host's temp directory is not used.
const RemoteTempDirName = "rjrsync"

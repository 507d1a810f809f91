// Package endpoint parses a sync endpoint argument, either
// "[[user@]host:]path" for a remote endpoint reached over SSH, or a bare
// path for a local one.
//
// Grounded on the teacher's pkg/url package: isSCPSSHURL's heuristic for
// telling a Windows drive-letter path ("C:\foo") apart from a genuine
// host:path remote reference, and parseSCPSSH's left-to-right
// username/host/path splitting (parse_ssh.go, parse_ssh_windows.go,
// parse_utils.go), adapted from mutagen's general-purpose URL type down to
// exactly the grammar spec.md needs.
package endpoint

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Endpoint is a parsed sync endpoint: either local (Host == "") or remote,
// reached by `ssh [User@]Host`.
type Endpoint struct {
	User string
	Host string
	Path string
}

// IsRemote reports whether this endpoint must be reached over SSH.
func (e Endpoint) IsRemote() bool {
	return e.Host != ""
}

// Parse classifies and parses raw into an Endpoint.
func Parse(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, errors.New("empty endpoint")
	}
	if !looksLikeRemote(raw) {
		return Endpoint{Path: raw}, nil
	}
	return parseRemote(raw)
}

// looksLikeRemote applies the teacher's isSCPSSHURL heuristic: a colon that
// appears before any forward slash indicates "host:path", unless (on
// Windows, or when the path carries an explicit drive letter regardless of
// host OS) that colon is actually a drive-letter separator like "C:\foo" or
// "C:/foo".
func looksLikeRemote(raw string) bool {
	if isWindowsDriveLetterPath(raw) {
		return false
	}
	for _, r := range raw {
		if r == ':' {
			return true
		}
		if r == '/' || r == '\\' {
			break
		}
	}
	return false
}

// isWindowsDriveLetterPath reports whether raw starts with "X:\" or "X:/"
// for a single letter X. This is checked unconditionally (not just when
// runtime.GOOS == "windows") because the boss may be parsing a path destined
// for a remote Windows doer while running on a POSIX machine, or vice
// versa -- the ambiguity is about the string's shape, not the local OS, so
// no runtime.GOOS check is made.
func isWindowsDriveLetterPath(raw string) bool {
	if len(raw) < 3 {
		return false
	}
	c := raw[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && raw[1] == ':' && (raw[2] == '/' || raw[2] == '\\')
}

func parseRemote(raw string) (Endpoint, error) {
	var user string
	for i, r := range raw {
		if r == ':' {
			break
		}
		if r == '@' {
			if i == 0 {
				return Endpoint{}, errors.New("empty username specified")
			}
			user = raw[:i]
			raw = raw[i+1:]
			break
		}
	}

	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return Endpoint{}, errors.New("missing ':' in remote endpoint")
	}
	host := raw[:idx]
	path := raw[idx+1:]
	if host == "" {
		return Endpoint{}, errors.New("empty host specified")
	}
	if path == "" {
		path = "."
	}

	return Endpoint{User: user, Host: host, Path: path}, nil
}

// CurrentOSIsWindows reports whether the boss itself is running on Windows.
// The drive-letter check above does not consult it.
func CurrentOSIsWindows() bool {
	return runtime.GOOS == "windows"
}

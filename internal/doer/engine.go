// Package doer implements the side of the boss/doer protocol that runs
// against a filesystem: it executes Commands received from a boss and
// streams back Responses. A doer never initiates anything; it reacts.
//
// Grounded on the older doer.rs's exec_command dispatch loop, generalized
// to the full Command set and to a fire-and-forget write convention: only
// queries (SetRoot, GetEntries, GetFileContent), Marker, ProfilingTimeSync,
// Shutdown (which answers with ProfilingData), and errors produce a
// Response. A successful write command (CreateOrUpdateFile, CreateFolder,
// the Delete* family, CreateRootAncestors) produces no Response at all,
// which is what lets a boss pipeline thousands of them without waiting for
// each to be acknowledged.
package doer

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/rrpath"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// fileContentChunkSize bounds how much of a file is read into memory and
// sent as a single FileContent response.
const fileContentChunkSize = 4 * 1024 * 1024

// Engine executes Commands against the local filesystem. It is not safe
// for concurrent use by multiple goroutines; a session has exactly one
// command stream in flight at a time.
type Engine struct {
	root string

	// openWrites holds the in-progress file handle for a path currently
	// receiving a chunked CreateOrUpdateFile, keyed by its native path.
	// The boss never interleaves chunks of two different files (each
	// transfer runs to completion before the next starts), so this only
	// ever holds at most one entry in practice, but keying by path keeps
	// the engine correct even if that assumption ever changes.
	openWrites map[string]*os.File
}

// NewEngine constructs an Engine with no root set yet. SetRoot must be the
// first command executed.
func NewEngine() *Engine {
	return &Engine{openWrites: make(map[string]*os.File)}
}

// Exec executes a single command, invoking send zero or more times with
// Responses it produces. It returns done=true once Shutdown has been fully
// processed, at which point the caller should stop reading commands.
func (e *Engine) Exec(cmd wire.Command, send func(wire.Response) error) (done bool, err error) {
	switch cmd.Kind {
	case wire.CommandSetRoot:
		return false, e.setRoot(cmd, send)
	case wire.CommandGetEntries:
		return false, e.getEntries(cmd, send)
	case wire.CommandCreateRootAncestors:
		return false, reportErr(send, e.createRootAncestors())
	case wire.CommandGetFileContent:
		return false, e.getFileContent(cmd, send)
	case wire.CommandCreateOrUpdateFile:
		return false, reportErr(send, e.createOrUpdateFile(cmd))
	case wire.CommandCreateSymlink:
		return false, reportErr(send, createSymlink(cmd.Path.Join(e.root), targetNativeValue(cmd.SymlinkTarget), cmd.SymlinkKind))
	case wire.CommandCreateFolder:
		return false, reportErr(send, os.MkdirAll(cmd.Path.Join(e.root), 0o777))
	case wire.CommandDeleteFile, wire.CommandDeleteSymlink:
		return false, reportErr(send, os.Remove(cmd.Path.Join(e.root)))
	case wire.CommandDeleteFolder:
		return false, reportErr(send, os.Remove(cmd.Path.Join(e.root)))
	case wire.CommandProfilingTimeSync:
		return false, send(wire.Response{Kind: wire.ResponseProfilingTimeSync})
	case wire.CommandMarker:
		return false, send(wire.Response{Kind: wire.ResponseMarker, Marker: cmd.Marker})
	case wire.CommandShutdown:
		if err := send(finalProfilingData()); err != nil {
			return true, err
		}
		return true, nil
	default:
		return false, errors.Errorf("unknown command kind %d", cmd.Kind)
	}
}

// reportErr turns a non-nil error into an Error response; a nil error
// produces no response at all, per the fire-and-forget write convention.
func reportErr(send func(wire.Response) error, err error) error {
	if err == nil {
		return nil
	}
	return send(wire.ErrAsResponse(err))
}

func targetNativeValue(t wire.SymlinkTarget) string {
	if t.Normalized {
		return rrpath.Path(t.Value).DisplayWithSeparator(rune(os.PathSeparator))
	}
	return t.Value
}

func (e *Engine) setRoot(cmd wire.Command, send func(wire.Response) error) error {
	e.root = cmd.Root

	info, err := os.Lstat(e.root)
	resp := wire.Response{
		Kind:                            wire.ResponseRootDetails,
		PlatformDifferentiatesSymlinks: PlatformDifferentiatesSymlinks(),
		PlatformDirSeparator:           DirSeparator(),
	}
	if err != nil {
		if os.IsNotExist(err) {
			return send(resp)
		}
		return send(wire.ErrAsResponse(err))
	}

	details, err := e.statToDetails(e.root, info)
	if err != nil {
		return send(wire.ErrAsResponse(err))
	}
	resp.RootDetails = &details
	return send(resp)
}

func (e *Engine) createRootAncestors() error {
	parent := parentDir(e.root)
	if parent == "" {
		return nil
	}
	return os.MkdirAll(parent, 0o777)
}

func (e *Engine) createOrUpdateFile(cmd wire.Command) error {
	full := cmd.Path.Join(e.root)

	f := e.openWrites[full]
	if f == nil {
		var err error
		f, err = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return err
		}
		e.openWrites[full] = f
	}

	if _, err := f.Write(cmd.Data); err != nil {
		delete(e.openWrites, full)
		f.Close()
		return err
	}

	if cmd.MoreToFollow {
		return nil
	}

	delete(e.openWrites, full)
	if err := f.Close(); err != nil {
		return err
	}
	if cmd.SetModifiedTime != nil {
		return os.Chtimes(full, *cmd.SetModifiedTime, *cmd.SetModifiedTime)
	}
	return nil
}

func (e *Engine) getFileContent(cmd wire.Command, send func(wire.Response) error) error {
	full := cmd.Path.Join(e.root)
	f, err := os.Open(full)
	if err != nil {
		return send(wire.ErrAsResponse(err))
	}
	defer f.Close()

	buf := make([]byte, fileContentChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			more := readErr == nil
			if err := send(wire.Response{Kind: wire.ResponseFileContent, Data: chunk, MoreToFollow: more}); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			if n == 0 {
				return send(wire.Response{Kind: wire.ResponseFileContent, Data: nil, MoreToFollow: false})
			}
			return nil
		}
		if readErr != nil {
			return send(wire.ErrAsResponse(readErr))
		}
	}
}

func (e *Engine) statToDetails(fullPath string, info os.FileInfo) (wire.EntryDetails, error) {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		kind, err := classifySymlink(fullPath)
		if err != nil && kind == wire.SymlinkKindUnknown {
			// classifySymlink only returns a hard error alongside Unknown
			// when it couldn't even read the link itself.
			return wire.EntryDetails{}, err
		}
		target, err := os.Readlink(fullPath)
		if err != nil {
			return wire.EntryDetails{}, err
		}
		return wire.NewSymlinkDetails(kind, normalizeSymlinkTarget(target)), nil
	case info.IsDir():
		return wire.NewFolderDetails(), nil
	default:
		return wire.NewFileDetails(info.ModTime(), uint64(info.Size())), nil
	}
}

// normalizeSymlinkTarget converts a native symlink target to forward
// slashes when it's safe to do so (a relative path with no drive letter);
// anything else is passed through verbatim, since re-slashifying an
// absolute Windows path like "C:\foo" on the other side would corrupt it.
func normalizeSymlinkTarget(target string) wire.SymlinkTarget {
	if os.PathSeparator == '/' {
		return wire.SymlinkTarget{Normalized: true, Value: target}
	}
	// A Windows target that is itself absolute (drive letter or UNC)
	// can't be meaningfully normalized for the other side.
	if len(target) >= 2 && (target[1] == ':' || (target[0] == '\\' && target[1] == '\\')) {
		return wire.SymlinkTarget{Normalized: false, Value: target}
	}
	normalized := ""
	for _, r := range target {
		if r == '\\' {
			normalized += "/"
		} else {
			normalized += string(r)
		}
	}
	return wire.SymlinkTarget{Normalized: true, Value: normalized}
}

func parentDir(native string) string {
	i := len(native) - 1
	for i >= 0 && !os.IsPathSeparator(native[i]) {
		i--
	}
	for i >= 0 && os.IsPathSeparator(native[i]) {
		i--
	}
	if i < 0 {
		return ""
	}
	return native[:i+1]
}

// Package wire defines the tagged-union message types exchanged between a
// boss and a doer: Commands flow boss -> doer, Responses flow doer -> boss.
// Entry details and progress markers are embedded in both.
//
// Each tagged union is represented the way the teacher's protobuf-generated
// core.Entry is: a single struct carrying a Kind discriminant plus every
// variant's fields rather than split across one Go type per variant. That
// keeps gob encoding to one concrete type per message direction, with no
// per-variant type registration.
package wire

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/rrpath"
)

// SymlinkKind distinguishes what a symbolic link points to. POSIX systems
// have only one kind of symlink; Windows differentiates file and folder
// symlinks at creation time.
type SymlinkKind int

const (
	// SymlinkKindFile is a symlink that points at a file.
	SymlinkKindFile SymlinkKind = iota
	// SymlinkKindFolder is a symlink that points at a folder.
	SymlinkKindFolder
	// SymlinkKindUnknown is produced only by POSIX doers for symlinks whose
	// target can't be classified (e.g. broken links). Creating an Unknown
	// symlink on a platform that differentiates kinds is a hard error.
	SymlinkKindUnknown
)

func (k SymlinkKind) String() string {
	switch k {
	case SymlinkKindFile:
		return "file"
	case SymlinkKindFolder:
		return "folder"
	case SymlinkKindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("SymlinkKind(%d)", int(k))
	}
}

// SymlinkTarget is a symlink's target string, tagged with whether it was
// successfully normalized to forward slashes.
type SymlinkTarget struct {
	// Normalized is true if Value uses forward slashes and can be
	// re-slashified to the destination's native separator.
	Normalized bool
	// Value is the target path: either normalized (forward slashes) or
	// passed through verbatim (e.g. an absolute path, which can't be
	// safely re-slashified).
	Value string
}

// EntryKind identifies which variant of EntryDetails is populated.
type EntryKind int

const (
	// EntryKindFile is a regular file.
	EntryKindFile EntryKind = iota
	// EntryKindFolder is a directory.
	EntryKindFolder
	// EntryKindSymlink is a symbolic link.
	EntryKindSymlink
)

// EntryDetails describes a single filesystem entry: a file, folder, or
// symbolic link. Only the fields relevant to Kind are populated; this
// mirrors spec's tagged variant over File{modified_time, size},
// Folder, and Symlink{kind, target}.
type EntryDetails struct {
	Kind EntryKind

	// ModifiedTime and Size are populated only when Kind == EntryKindFile.
	// ModifiedTime is wall-clock time, platform-independent on the wire.
	ModifiedTime time.Time
	Size         uint64

	// SymlinkKind and SymlinkTarget are populated only when
	// Kind == EntryKindSymlink.
	SymlinkKind   SymlinkKind
	SymlinkTarget SymlinkTarget
}

// NewFileDetails constructs file entry details.
func NewFileDetails(modified time.Time, size uint64) EntryDetails {
	return EntryDetails{Kind: EntryKindFile, ModifiedTime: modified, Size: size}
}

// NewFolderDetails constructs folder entry details.
func NewFolderDetails() EntryDetails {
	return EntryDetails{Kind: EntryKindFolder}
}

// NewSymlinkDetails constructs symlink entry details.
func NewSymlinkDetails(kind SymlinkKind, target SymlinkTarget) EntryDetails {
	return EntryDetails{Kind: EntryKindSymlink, SymlinkKind: kind, SymlinkTarget: target}
}

func (d EntryDetails) String() string {
	switch d.Kind {
	case EntryKindFile:
		return fmt.Sprintf("file(size=%d, modified=%s)", d.Size, d.ModifiedTime)
	case EntryKindFolder:
		return "folder"
	case EntryKindSymlink:
		return fmt.Sprintf("symlink(kind=%s, target=%q)", d.SymlinkKind, d.SymlinkTarget.Value)
	default:
		return "invalid entry"
	}
}

// FilterKind distinguishes include rules from exclude rules in a FilterSet.
type FilterKind int

const (
	// FilterInclude marks a rule as an include rule.
	FilterInclude FilterKind = iota
	// FilterExclude marks a rule as an exclude rule.
	FilterExclude
)

// FilterRule is one (kind, pattern) pair in an ordered FilterSet.
type FilterRule struct {
	Kind    FilterKind
	Pattern string
}

// FilterSet is an ordered list of include/exclude rules. Patterns are
// anchored to the whole path string, and evaluation is last-match-wins; see
// CompiledFilterSet.Matches for the default applied when no rule matches at
// all.
type FilterSet struct {
	Rules []FilterRule
}

// ProgressPhaseKind identifies which variant of ProgressPhase is populated.
type ProgressPhaseKind int

const (
	// ProgressPhaseDeleting indicates the doer is deleting obsolete entries.
	ProgressPhaseDeleting ProgressPhaseKind = iota
	// ProgressPhaseCopying indicates the doer is copying new or updated entries.
	ProgressPhaseCopying
	// ProgressPhaseDone indicates the sync has finished.
	ProgressPhaseDone
)

// ProgressPhase describes where execution currently stands.
type ProgressPhase struct {
	Kind ProgressPhaseKind
	// N is populated for both Deleting and Copying: the count of entries
	// processed in that phase so far.
	N uint32
	// Bytes is populated only for Copying: total file bytes copied so far.
	Bytes uint64
}

// ProgressMarker is an in-band progress token the boss inserts into the
// command stream and the doer echoes back once every preceding command has
// been executed.
type ProgressMarker struct {
	CompletedWork uint64
	Phase         ProgressPhase
}

// CommandKind identifies which variant of Command is populated.
type CommandKind int

const (
	CommandSetRoot CommandKind = iota
	CommandGetEntries
	CommandCreateRootAncestors
	CommandGetFileContent
	CommandCreateOrUpdateFile
	CommandCreateSymlink
	CommandCreateFolder
	CommandDeleteFile
	CommandDeleteFolder
	CommandDeleteSymlink
	CommandProfilingTimeSync
	CommandMarker
	CommandShutdown
)

// Command is a message sent from the boss to a doer requesting that
// something be done. SetRoot must always be the first command sent on a
// session.
type Command struct {
	Kind CommandKind

	// Root is populated for SetRoot: a native path string (not a
	// rrpath.Path, since it isn't relative to any root -- it is the root).
	Root string

	// Filters is populated for GetEntries.
	Filters FilterSet

	// Path is populated for GetFileContent, CreateOrUpdateFile,
	// CreateSymlink, CreateFolder, DeleteFile, DeleteFolder, and
	// DeleteSymlink.
	Path rrpath.Path

	// Data, SetModifiedTime, and MoreToFollow are populated for
	// CreateOrUpdateFile.
	Data            []byte
	SetModifiedTime *time.Time
	MoreToFollow    bool

	// SymlinkKind and SymlinkTarget are populated for CreateSymlink and (kind
	// only) DeleteSymlink.
	SymlinkKind   SymlinkKind
	SymlinkTarget SymlinkTarget

	// Marker is populated for Marker.
	Marker ProgressMarker
}

// IsFinalMessage reports whether this command terminates the session; only
// Shutdown does.
func (c Command) IsFinalMessage() bool {
	return c.Kind == CommandShutdown
}

// GoString redacts the payload of CreateOrUpdateFile commands so that
// logging a command never dumps an entire file's contents.
func (c Command) GoString() string {
	if c.Kind == CommandCreateOrUpdateFile {
		return fmt.Sprintf("Command{Kind: CreateOrUpdateFile, Path: %s, Data: ...(%d bytes), MoreToFollow: %v}",
			c.Path, len(c.Data), c.MoreToFollow)
	}
	return fmt.Sprintf("Command{Kind: %d, Path: %s}", c.Kind, c.Path)
}

// ResponseKind identifies which variant of Response is populated.
type ResponseKind int

const (
	ResponseRootDetails ResponseKind = iota
	ResponseEntry
	ResponseEndOfEntries
	ResponseFileContent
	ResponseProfilingTimeSync
	ResponseProfilingData
	ResponseMarker
	ResponseError
)

// Response is a message sent from a doer back to the boss, usually
// reporting the result of a Command.
type Response struct {
	Kind ResponseKind

	// RootDetails, PlatformDifferentiatesSymlinks, and
	// PlatformDirSeparator are populated for RootDetails. RootDetails is
	// nil if the root doesn't exist.
	RootDetails                    *EntryDetails
	PlatformDifferentiatesSymlinks bool
	PlatformDirSeparator           rune

	// EntryPath and EntryDetailsValue are populated for Entry.
	EntryPath         rrpath.Path
	EntryDetailsValue EntryDetails

	// Data and MoreToFollow are populated for FileContent.
	Data         []byte
	MoreToFollow bool

	// ProfilingRoundTrip belongs to ProfilingTimeSync; the doer's reply
	// leaves it zero.
	ProfilingRoundTrip time.Duration

	// ProfilingData is populated for ProfilingData. The core never
	// interprets its contents; rendering profiling data is an external
	// collaborator's job.
	ProfilingData []byte

	// Marker is populated for Marker.
	Marker ProgressMarker

	// ErrorMessage is populated for Error.
	ErrorMessage string
}

// IsFinalMessage reports whether this response terminates the session; only
// ProfilingData does.
func (r Response) IsFinalMessage() bool {
	return r.Kind == ResponseProfilingData
}

// GoString redacts the payload of FileContent responses.
func (r Response) GoString() string {
	if r.Kind == ResponseFileContent {
		return fmt.Sprintf("Response{Kind: FileContent, Data: ...(%d bytes), MoreToFollow: %v}",
			len(r.Data), r.MoreToFollow)
	}
	return fmt.Sprintf("Response{Kind: %d}", r.Kind)
}

// ErrAsResponse wraps an error as an Error response.
func ErrAsResponse(err error) Response {
	return Response{Kind: ResponseError, ErrorMessage: err.Error()}
}

// AsError converts an Error response back into a Go error, or nil if the
// response isn't an Error response.
func (r Response) AsError() error {
	if r.Kind != ResponseError {
		return nil
	}
	return errors.New(r.ErrorMessage)
}

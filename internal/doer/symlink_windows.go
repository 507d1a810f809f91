//go:build windows

package doer

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/rjrsync/rjrsync/internal/wire"
)

// PlatformDifferentiatesSymlinks reports whether this platform tracks a
// file-vs-folder distinction for symlinks at creation time. Windows does:
// the reparse point itself carries FILE_ATTRIBUTE_DIRECTORY when it targets
// a folder, without needing to resolve the target.
func PlatformDifferentiatesSymlinks() bool {
	return true
}

// DirSeparator is this platform's native path separator.
func DirSeparator() rune {
	return '\\'
}

// classifySymlink reads the kind directly off the reparse point's
// attributes, which Windows sets at creation time -- no target resolution
// needed, and so Windows never produces SymlinkKindUnknown.
func classifySymlink(fullPath string) (wire.SymlinkKind, error) {
	info, err := os.Lstat(fullPath)
	if err != nil {
		return wire.SymlinkKindUnknown, err
	}
	if info.IsDir() {
		return wire.SymlinkKindFolder, nil
	}
	return wire.SymlinkKindFile, nil
}

// createSymlink creates a symlink at fullPath, explicitly tagging it as a
// file or folder symlink per kind. SymlinkKindUnknown is a hard error on
// Windows, since the platform requires a definite kind at creation time.
func createSymlink(fullPath, target string, kind wire.SymlinkKind) error {
	var flags uint32
	switch kind {
	case wire.SymlinkKindFile:
		flags = 0 // SYMBOLIC_LINK_FLAG_FILE
	case wire.SymlinkKindFolder:
		flags = windows.SYMBOLIC_LINK_FLAG_DIRECTORY
	default:
		return errors.New("cannot create a symlink of unknown kind on a platform that differentiates symlink kinds")
	}
	// SYMBOLIC_LINK_FLAG_ALLOW_UNPRIVILEGED_CREATE lets Developer-Mode
	// Windows builds create symlinks without elevated privileges.
	const allowUnprivilegedCreate = 0x2
	return windows.CreateSymbolicLink(
		windows.StringToUTF16Ptr(fullPath),
		windows.StringToUTF16Ptr(target),
		flags|allowUnprivilegedCreate,
	)
}

//go:build !windows

package doer

import (
	"os"
	"path/filepath"

	"github.com/rjrsync/rjrsync/internal/wire"
)

// PlatformDifferentiatesSymlinks reports whether this platform tracks a
// file-vs-folder distinction for symlinks at creation time. POSIX doesn't:
// a symlink is a symlink, and what it points to can only be discovered (or
// fail to be discovered, if broken) by resolving the target.
func PlatformDifferentiatesSymlinks() bool {
	return false
}

// DirSeparator is this platform's native path separator.
func DirSeparator() rune {
	return '/'
}

// classifySymlink resolves a symlink's target to determine whether it
// points at a file or a folder. If the target can't be resolved (e.g. a
// broken link), the symlink is classified as Unknown, matching the rule
// that Unknown is only ever produced by POSIX doers.
func classifySymlink(fullPath string) (wire.SymlinkKind, error) {
	target, err := os.Readlink(fullPath)
	if err != nil {
		return wire.SymlinkKindUnknown, err
	}
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(fullPath), target)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return wire.SymlinkKindUnknown, nil
	}
	if info.IsDir() {
		return wire.SymlinkKindFolder, nil
	}
	return wire.SymlinkKindFile, nil
}

// createSymlink creates a symlink at fullPath pointing at target. kind is
// ignored on POSIX: any kind is accepted, since the filesystem doesn't
// distinguish.
func createSymlink(fullPath, target string, kind wire.SymlinkKind) error {
	return os.Symlink(target, fullPath)
}

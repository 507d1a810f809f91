// Package synctest provides an in-memory filesystem-tree DSL for building
// expected directory layouts and comparing them against a real directory on
// disk, for use in internal/sync's own tests.
//
// Grounded on original_source's tests/filesystem_node.rs and
// tests/test_utils.rs: a tagged-union Node (folder/file/symlink), small
// builder functions (File, Folder, Symlink) instead of the original's
// macro, and a save/compare pair that mirrors a Node tree onto disk and
// diffs a real directory back into a comparable Node tree.
package synctest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// NodeKind identifies which variant of Node is populated.
type NodeKind int

const (
	NodeFolder NodeKind = iota
	NodeFile
	NodeSymlink
)

// Node is an in-memory description of a file, folder, or symlink and its
// descendants. Unlike a real directory entry, a Node doesn't carry its own
// name -- the name only exists as a key in a parent Folder's Children map,
// matching the original's "name isn't part of the node" design, which
// keeps comparisons independent of the order children were inserted in.
type Node struct {
	Kind NodeKind

	// Children is populated for NodeFolder.
	Children map[string]Node

	// Contents and Modified are populated for NodeFile.
	Contents string
	Modified time.Time

	// Target is populated for NodeSymlink.
	Target string
}

// Folder builds a folder node with the given children.
func Folder(children map[string]Node) Node {
	return Node{Kind: NodeFolder, Children: children}
}

// EmptyFolder builds a folder node with no children.
func EmptyFolder() Node {
	return Node{Kind: NodeFolder, Children: map[string]Node{}}
}

// File builds a file node with the given contents and the current time as
// its modification time.
func File(contents string) Node {
	return Node{Kind: NodeFile, Contents: contents, Modified: time.Now()}
}

// FileWithModified builds a file node with an explicit modification time.
func FileWithModified(contents string, modified time.Time) Node {
	return Node{Kind: NodeFile, Contents: contents, Modified: modified}
}

// Symlink builds a symlink node pointing at target.
func Symlink(target string) Node {
	return Node{Kind: NodeSymlink, Target: target}
}

// SaveToDisk mirrors node and its descendants onto disk at path, which must
// not already exist.
func SaveToDisk(node Node, path string) error {
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	switch node.Kind {
	case NodeFolder:
		if err := os.Mkdir(path, 0o777); err != nil {
			return err
		}
		for name, child := range node.Children {
			if err := SaveToDisk(child, filepath.Join(path, name)); err != nil {
				return err
			}
		}
		return nil
	case NodeFile:
		if err := os.WriteFile(path, []byte(node.Contents), 0o666); err != nil {
			return err
		}
		return os.Chtimes(path, node.Modified, node.Modified)
	case NodeSymlink:
		return os.Symlink(node.Target, path)
	default:
		return fmt.Errorf("unknown node kind %d", node.Kind)
	}
}

// LoadFromDisk reads path (and, for a folder, its full subtree) back into a
// comparable Node tree.
func LoadFromDisk(path string) (Node, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Node{}, err
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return Node{}, err
		}
		return Symlink(target), nil
	case info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return Node{}, err
		}
		children := map[string]Node{}
		for _, e := range entries {
			child, err := LoadFromDisk(filepath.Join(path, e.Name()))
			if err != nil {
				return Node{}, err
			}
			children[e.Name()] = child
		}
		return Folder(children), nil
	default:
		contents, err := os.ReadFile(path)
		if err != nil {
			return Node{}, err
		}
		return FileWithModified(string(contents), info.ModTime()), nil
	}
}

// Diff compares two Node trees, ignoring file modification times (which are
// rarely worth asserting on exactly), and returns a human-readable list of
// differences. An empty result means the trees match.
func Diff(want, got Node) []string {
	return diffAt("<ROOT>", want, got)
}

func diffAt(path string, want, got Node) []string {
	if want.Kind != got.Kind {
		return []string{fmt.Sprintf("%s: kind = %v, want %v", path, got.Kind, want.Kind)}
	}
	switch want.Kind {
	case NodeFile:
		if want.Contents != got.Contents {
			return []string{fmt.Sprintf("%s: contents = %q, want %q", path, got.Contents, want.Contents)}
		}
		return nil
	case NodeSymlink:
		if want.Target != got.Target {
			return []string{fmt.Sprintf("%s: symlink target = %q, want %q", path, got.Target, want.Target)}
		}
		return nil
	case NodeFolder:
		var diffs []string
		names := map[string]bool{}
		for n := range want.Children {
			names[n] = true
		}
		for n := range got.Children {
			names[n] = true
		}
		sorted := make([]string, 0, len(names))
		for n := range names {
			sorted = append(sorted, n)
		}
		sort.Strings(sorted)
		for _, n := range sorted {
			wantChild, wantOk := want.Children[n]
			gotChild, gotOk := got.Children[n]
			childPath := path + "/" + n
			switch {
			case wantOk && !gotOk:
				diffs = append(diffs, fmt.Sprintf("%s: missing, want %v", childPath, wantChild.Kind))
			case !wantOk && gotOk:
				diffs = append(diffs, fmt.Sprintf("%s: unexpected %v present", childPath, gotChild.Kind))
			default:
				diffs = append(diffs, diffAt(childPath, wantChild, gotChild)...)
			}
		}
		return diffs
	default:
		return []string{fmt.Sprintf("%s: unknown node kind", path)}
	}
}

// Package rrpath implements a portable, root-relative path representation
// used on the wire between the boss and a doer. It is independent of either
// host's native path separator.
package rrpath

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Path is a root-relative path: a UTF-8 string using "/" as the only
// separator. The zero value is Root.
//
// Invariants: never absolute, never contains a literal backslash or a
// doubled slash. New enforces these invariants; Child appends a component
// without checking it, and neither checks that a component is a valid
// filename on every platform.
type Path string

// Root is the path referring to the synchronization root itself.
const Root Path = ""

// New converts a native relative path (using the host's separator) into a
// Path. It mirrors the validation performed by the Rust implementation this
// tool was ported from: absolute paths and paths with stray separators are
// rejected with the same error text.
func New(native string) (Path, error) {
	if filepath.IsAbs(native) {
		return "", errors.New("must be relative")
	}

	var components []string
	for _, part := range strings.Split(filepath.ToSlash(native), "/") {
		if part == "" {
			continue
		}
		components = append(components, part)
	}

	var b strings.Builder
	for i, c := range components {
		if strings.ContainsAny(c, `\`) {
			return "", errors.New("illegal characters in path")
		}
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(c)
	}

	return Path(b.String()), nil
}

// IsRoot reports whether this path refers to the root itself.
func (p Path) IsRoot() bool {
	return p == Root
}

// Join resolves this path against a native root, producing a native path
// using the host's separator. A Path is never promoted to a native path
// except by pairing it with a root this way.
func (p Path) Join(root string) string {
	if p.IsRoot() {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(string(p)))
}

// Child appends a single path component to p, without going through a
// native path at all. Used by a directory walk to build each entry's Path
// directly from its parent.
func (p Path) Child(name string) Path {
	if p.IsRoot() {
		return Path(name)
	}
	return Path(string(p) + "/" + name)
}

// String renders the path for display using forward slashes, or "<ROOT>"
// for the root path.
func (p Path) String() string {
	if p.IsRoot() {
		return "<ROOT>"
	}
	return string(p)
}

// DisplayWithSeparator renders the path for display using the given
// separator instead of the forward slash used on the wire.
func (p Path) DisplayWithSeparator(sep rune) string {
	if p.IsRoot() {
		return "<ROOT>"
	}
	return strings.ReplaceAll(string(p), "/", string(sep))
}

// MatchesAny reports whether this path matches any of the supplied compiled
// patterns. The patterns are applied as given, so a pattern matches only the
// whole path if it is itself anchored.
func (p Path) MatchesAny(patterns []*regexp.Regexp) bool {
	s := string(p)
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

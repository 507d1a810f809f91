package doer

import (
	"os"
	"sort"

	"github.com/rjrsync/rjrsync/internal/rrpath"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// getEntries walks every entry under the root (the root itself was already
// reported by SetRoot and is never re-sent here), applying filters and
// streaming one Entry response per surviving entry before a final
// EndOfEntries. Filtering a folder out prevents descending into it at all,
// so an excluded subtree costs only its name in the parent's listing: it is
// neither stat'ed nor walked.
func (e *Engine) getEntries(cmd wire.Command, send func(wire.Response) error) error {
	filters, err := cmd.Filters.Compile()
	if err != nil {
		if err := send(wire.ErrAsResponse(err)); err != nil {
			return err
		}
		return send(wire.Response{Kind: wire.ResponseEndOfEntries})
	}

	if err := e.walkDir(e.root, rrpath.Root, filters, send); err != nil {
		if err := send(wire.ErrAsResponse(err)); err != nil {
			return err
		}
	}
	return send(wire.Response{Kind: wire.ResponseEndOfEntries})
}

func (e *Engine) walkDir(nativeDir string, relDir rrpath.Path, filters *wire.CompiledFilterSet, send func(wire.Response) error) error {
	names, err := readDirNames(nativeDir)
	if err != nil {
		return err
	}

	for _, name := range names {
		childRel := relDir.Child(name)
		if !filters.Matches(childRel.String()) {
			continue
		}

		childNative := childRel.Join(e.root)
		info, err := os.Lstat(childNative)
		if err != nil {
			if err := send(wire.ErrAsResponse(err)); err != nil {
				return err
			}
			continue
		}

		details, err := e.statToDetails(childNative, info)
		if err != nil {
			if err := send(wire.ErrAsResponse(err)); err != nil {
				return err
			}
			continue
		}

		if err := send(wire.Response{Kind: wire.ResponseEntry, EntryPath: childRel, EntryDetailsValue: details}); err != nil {
			return err
		}

		if details.Kind == wire.EntryKindFolder {
			if err := e.walkDir(childNative, childRel, filters, send); err != nil {
				return err
			}
		}
	}
	return nil
}

// readDirNames lists a directory's immediate children, sorted for
// deterministic traversal order across platforms.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

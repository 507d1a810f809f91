package sync

import (
	"github.com/rjrsync/rjrsync/internal/rrpath"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// DeleteReason records why an entry was placed in the to-delete list.
type DeleteReason int

const (
	// DeleteNotOnSource means the dest entry has no corresponding source entry.
	DeleteNotOnSource DeleteReason = iota
	// DeleteIncompatible means the dest entry exists but is the wrong kind
	// (or, for symlinks, points somewhere incompatible) and must be removed
	// before the source entry can be copied over.
	DeleteIncompatible
)

// CopyReason records why an entry was placed in the to-copy list.
type CopyReason int

const (
	// CopyNotOnDest means the dest has no entry at this path at all.
	CopyNotOnDest CopyReason = iota
	// CopyDestOlder means the dest file's modified time is older than the source's.
	CopyDestOlder
	// CopyDestNewer means the dest file's modified time is newer than the source's.
	CopyDestNewer
)

// DeleteEntry pairs a dest entry slated for deletion with the reason.
type DeleteEntry struct {
	Details wire.EntryDetails
	Reason  DeleteReason
}

// CopyEntry pairs a source entry slated for copying with the reason.
type CopyEntry struct {
	Details wire.EntryDetails
	Reason  CopyReason
}

// Actions is the result of the query phase: everything the execution phase
// needs to do.
type Actions struct {
	ToDelete *ActionMap[DeleteEntry]
	ToCopy   *ActionMap[CopyEntry]
}

// entryDiffState is the mutable state threaded through the query phase's
// merge loop as entries arrive from either side in any order.
type entryDiffState struct {
	srcEntries  *ActionMap[wire.EntryDetails]
	destEntries *ActionMap[wire.EntryDetails]
	actions     Actions

	destPlatformDifferentiatesSymlinks bool
}

func newEntryDiffState(destPlatformDifferentiatesSymlinks bool) *entryDiffState {
	return &entryDiffState{
		srcEntries:                         NewActionMap[wire.EntryDetails](),
		destEntries:                        NewActionMap[wire.EntryDetails](),
		actions:                            Actions{ToDelete: NewActionMap[DeleteEntry](), ToCopy: NewActionMap[CopyEntry]()},
		destPlatformDifferentiatesSymlinks: destPlatformDifferentiatesSymlinks,
	}
}

// processSrcEntry folds a newly-arrived source entry into the running
// diff, adding or updating to-copy/to-delete entries as needed.
//
// Grounded on boss_sync.rs's process_src_entry: a source entry not yet
// present on the dest is a plain copy; one that is present but
// incompatible both needs a delete (with an updated reason) and a copy;
// one that's present and compatible only needs a copy if needs_copy says
// so, and must be pulled back out of to_delete in case an earlier dest
// entry had speculatively added it there.
func (s *entryDiffState) processSrcEntry(p rrpath.Path, srcEntry wire.EntryDetails) {
	if destEntry, ok := s.destEntries.Lookup(p); ok {
		if !needsDelete(srcEntry, destEntry, s.destPlatformDifferentiatesSymlinks) {
			s.actions.ToDelete.Remove(p)
			if reason, needs := needsCopy(srcEntry, destEntry); needs {
				s.actions.ToCopy.Add(p, CopyEntry{Details: srcEntry, Reason: reason})
			}
		} else {
			s.actions.ToDelete.Update(p, DeleteEntry{Details: destEntry, Reason: DeleteIncompatible})
			s.actions.ToCopy.Add(p, CopyEntry{Details: srcEntry, Reason: CopyNotOnDest})
		}
	} else {
		s.actions.ToCopy.Add(p, CopyEntry{Details: srcEntry, Reason: CopyNotOnDest})
	}
	s.srcEntries.Add(p, srcEntry)
}

// processDestEntry is process_src_entry's mirror image for a newly-arrived
// dest entry.
func (s *entryDiffState) processDestEntry(p rrpath.Path, destEntry wire.EntryDetails) {
	s.destEntries.Add(p, destEntry)

	srcEntry, ok := s.srcEntries.Lookup(p)
	if !ok {
		s.actions.ToDelete.Add(p, DeleteEntry{Details: destEntry, Reason: DeleteNotOnSource})
		return
	}
	if needsDelete(srcEntry, destEntry, s.destPlatformDifferentiatesSymlinks) {
		s.actions.ToDelete.Add(p, DeleteEntry{Details: destEntry, Reason: DeleteIncompatible})
		return
	}
	if reason, needs := needsCopy(srcEntry, destEntry); needs {
		s.actions.ToCopy.Update(p, CopyEntry{Details: srcEntry, Reason: reason})
	} else {
		s.actions.ToCopy.Remove(p)
	}
}

// needsDelete reports whether an existing dest entry is incompatible with
// the corresponding source entry and must be removed (rather than updated
// in place) before the source entry can be copied.
func needsDelete(src, dest wire.EntryDetails, destPlatformDifferentiatesSymlinks bool) bool {
	switch src.Kind {
	case wire.EntryKindFile:
		return dest.Kind != wire.EntryKindFile
	case wire.EntryKindFolder:
		return dest.Kind != wire.EntryKindFolder
	case wire.EntryKindSymlink:
		if dest.Kind != wire.EntryKindSymlink {
			return true
		}
		if src.SymlinkTarget != dest.SymlinkTarget {
			return true
		}
		if src.SymlinkKind != dest.SymlinkKind && destPlatformDifferentiatesSymlinks {
			return true
		}
		return false
	default:
		return true
	}
}

// needsCopy reports whether a source entry that already has a compatible
// dest counterpart still needs to be (re)copied: a file is recopied when its
// modified time differs from the dest's; content is not compared.
func needsCopy(src, dest wire.EntryDetails) (CopyReason, bool) {
	if src.Kind != wire.EntryKindFile {
		// Folders and symlinks that passed needsDelete are always
		// considered up to date.
		return 0, false
	}
	switch {
	case src.ModifiedTime.Equal(dest.ModifiedTime):
		return 0, false
	case src.ModifiedTime.After(dest.ModifiedTime):
		return CopyDestOlder, true
	default:
		return CopyDestNewer, true
	}
}

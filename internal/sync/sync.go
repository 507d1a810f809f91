// Package sync implements the three-party sync engine: given a boss.Comms
// to a source doer and one to a destination doer, it queries both sides'
// directory trees, decides what needs copying or deleting, confirms
// anything the configured policies require confirming, and then drives
// execution.
//
// Grounded file-for-file on original_source's boss_sync.rs (query_entries,
// process_src_entry, process_dest_entry, needs_delete, needs_copy,
// confirm_actions, the execution loop) and on the teacher's
// pkg/synchronization/controller.go for the single-goroutine ownership of
// all sync state.
package sync

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/rjrsync/rjrsync/internal/boss"
	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/progress"
	"github.com/rjrsync/rjrsync/internal/rrpath"
	"github.com/rjrsync/rjrsync/internal/wire"
)

// markerWorkThreshold is how much accumulated work triggers an in-band
// Marker command to the destination, letting the boss advance its
// progress bar only for work that's actually been performed.
const markerWorkThreshold = 1 << 20

// Config holds everything about one sync that isn't part of the Comms
// themselves.
type Config struct {
	Filters   []string
	Policies  Policies
	DryRun    bool
	ShowStats bool
	Prompter  boss.Prompter
}

// Summary reports what a completed sync did.
type Summary struct {
	NumSrcEntries, NumDestEntries   int
	NumDeleted, NumCopied, NumBytes uint64
}

// RunSync drives one sync to completion: root resolution, query, confirm,
// and execution phases, in that order.
func RunSync(srcComms, destComms boss.Comms, cfg Config, tracker *progress.Tracker, logger *logging.Logger) (*Summary, error) {
	filterSet, err := compileFilters(cfg.Filters)
	if err != nil {
		return nil, err
	}

	srcRoot, destRoot, destDiffersSymlinks, err := resolveRoots(srcComms, destComms)
	if err != nil {
		return nil, err
	}

	res := newResolver(cfg.Policies, cfg.Prompter)

	if destRoot != nil {
		if needsDelete(*srcRoot, *destRoot, destDiffersSymlinks) {
			proceed, err := res.resolve(cfg.Policies.DestRootNeedsDelete, "destination root is incompatible with source root and needs deleting")
			if err != nil {
				return nil, err
			}
			if !proceed {
				logger.Info("skipping sync: destination root needs deleting but policy declined")
				return &Summary{}, nil
			}
		}
	}

	actions, numSrc, numDest, err := queryEntries(srcComms, destComms, *srcRoot, destRoot, destDiffersSymlinks, filterSet)
	if err != nil {
		return nil, err
	}

	if err := confirmActions(res, actions, tracker); err != nil {
		return nil, err
	}

	summary := &Summary{NumSrcEntries: numSrc, NumDestEntries: numDest}
	if cfg.DryRun {
		logDryRun(logger, actions, summary)
		return summary, nil
	}

	if err := execute(srcComms, destComms, actions, tracker, summary); err != nil {
		return nil, err
	}

	return summary, nil
}

// compileFilters parses the +/- filter strings from the CLI into a
// wire.FilterSet, validating that each compiles as a regex (exit codes
// 18/19 are produced by the caller based on this error).
func compileFilters(filters []string) (wire.FilterSet, error) {
	set := wire.FilterSet{}
	for _, f := range filters {
		if len(f) < 2 {
			return wire.FilterSet{}, errors.Errorf("invalid filter %q: must start with '+' or '-' and have a pattern", f)
		}
		var kind wire.FilterKind
		switch f[0] {
		case '+':
			kind = wire.FilterInclude
		case '-':
			kind = wire.FilterExclude
		default:
			return wire.FilterSet{}, errors.Errorf("invalid filter %q: must start with '+' or '-'", f)
		}
		set.Rules = append(set.Rules, wire.FilterRule{Kind: kind, Pattern: f[1:]})
	}
	if _, err := set.Compile(); err != nil {
		return wire.FilterSet{}, errors.Wrap(err, "invalid filter")
	}
	return set, nil
}

// resolveRoots waits for both sides' SetRoot response (sent automatically
// when the Comms was constructed), concurrently, grounded on
// get_root_details's fan-out of both sides' initial stat.
func resolveRoots(srcComms, destComms boss.Comms) (srcRoot, destRoot *wire.EntryDetails, destDiffersSymlinks bool, err error) {
	var srcResp, destResp wire.Response
	var g errgroup.Group
	g.Go(func() error {
		r, err := srcComms.Responses().Recv()
		if err != nil {
			return errors.Wrap(err, "receiving source root details")
		}
		srcResp = r
		return nil
	})
	g.Go(func() error {
		r, err := destComms.Responses().Recv()
		if err != nil {
			return errors.Wrap(err, "receiving destination root details")
		}
		destResp = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}

	if srcResp.Kind == wire.ResponseError {
		return nil, nil, false, errors.Wrap(srcResp.AsError(), "source")
	}
	if destResp.Kind == wire.ResponseError {
		return nil, nil, false, errors.Wrap(destResp.AsError(), "destination")
	}
	if srcResp.RootDetails == nil {
		return nil, nil, false, errors.New("source root does not exist")
	}

	return srcResp.RootDetails, destResp.RootDetails, destResp.PlatformDifferentiatesSymlinks, nil
}

// queryEntries runs the concurrent GetEntries fan-out and the
// memchan.SelectReady-driven merge loop, producing the full Actions set.
//
// Grounded on query_entries: the root entries (already known from
// resolveRoots) are processed first, then GetEntries is issued to whichever
// side is a folder, and responses are drained using a ready-aware select so
// that neither side can stall the other.
func queryEntries(srcComms, destComms boss.Comms, srcRootDetails wire.EntryDetails, destRootDetails *wire.EntryDetails, destDiffersSymlinks bool, filters wire.FilterSet) (*Actions, int, int, error) {
	state := newEntryDiffState(destDiffersSymlinks)

	state.processSrcEntry(rrpath.Root, srcRootDetails)
	srcDone := true
	if srcRootDetails.Kind == wire.EntryKindFolder {
		if err := srcComms.SendCommand(wire.Command{Kind: wire.CommandGetEntries, Filters: filters}); err != nil {
			return nil, 0, 0, err
		}
		srcDone = false
	}

	destDone := true
	if destRootDetails != nil {
		state.processDestEntry(rrpath.Root, *destRootDetails)
		if destRootDetails.Kind == wire.EntryKindFolder {
			if err := destComms.SendCommand(wire.Command{Kind: wire.CommandGetEntries, Filters: filters}); err != nil {
				return nil, 0, 0, err
			}
			destDone = false
		}
	}

	for !srcDone || !destDone {
		switch pickReady(srcComms, destComms, srcDone, destDone) {
		case 0:
			resp, err := srcComms.Responses().Recv()
			if err != nil {
				return nil, 0, 0, errors.Wrap(err, "receiving source entries")
			}
			switch resp.Kind {
			case wire.ResponseEntry:
				state.processSrcEntry(resp.EntryPath, resp.EntryDetailsValue)
			case wire.ResponseEndOfEntries:
				srcDone = true
			case wire.ResponseError:
				return nil, 0, 0, errors.Wrap(resp.AsError(), "source")
			default:
				return nil, 0, 0, errors.Errorf("unexpected response getting entries from source: %#v", resp)
			}
		case 1:
			resp, err := destComms.Responses().Recv()
			if err != nil {
				return nil, 0, 0, errors.Wrap(err, "receiving destination entries")
			}
			switch resp.Kind {
			case wire.ResponseEntry:
				state.processDestEntry(resp.EntryPath, resp.EntryDetailsValue)
			case wire.ResponseEndOfEntries:
				destDone = true
			case wire.ResponseError:
				return nil, 0, 0, errors.Wrap(resp.AsError(), "destination")
			default:
				return nil, 0, 0, errors.Errorf("unexpected response getting entries from destination: %#v", resp)
			}
		}
	}

	// Delete children before their parent folder: see
	// test_remove_dest_folder_with_excluded_files in the original test
	// suite for why this matters when a folder has filtered-out children
	// that are still present on disk.
	state.actions.ToDelete.ReverseOrder()

	return &state.actions, state.srcEntries.Len(), state.destEntries.Len(), nil
}

// pickReady calls memchan.SelectReady against whichever sides are still
// active; a side that's already finished is never selected.
func pickReady(srcComms, destComms boss.Comms, srcDone, destDone bool) int {
	if srcDone {
		return 1
	}
	if destDone {
		return 0
	}
	return boss.SelectReady(srcComms, destComms)
}

// confirmActions walks both action lists, consulting the configured
// policy for every entry whose reason requires confirmation, and removes
// anything the policy or prompter declines. Surviving entries contribute
// their expected work to tracker.
func confirmActions(res *resolver, actions *Actions, tracker *progress.Tracker) error {
	var toRemoveFromDelete []rrpath.Path
	var totalAdd progress.Values
	var resolveErr error

	actions.ToDelete.Iterate(func(path rrpath.Path, entry DeleteEntry) {
		if resolveErr != nil {
			return
		}
		if entry.Reason == DeleteNotOnSource || entry.Reason == DeleteIncompatible {
			proceed, err := res.resolve(res.policies.DestEntryNeedsDelete, "destination "+path.String()+" needs deleting")
			if err != nil {
				resolveErr = err
				return
			}
			if !proceed {
				toRemoveFromDelete = append(toRemoveFromDelete, path)
				return
			}
		}
		totalAdd.DeleteCount++
		totalAdd.Work += workForDelete(entry.Details)
	})
	if resolveErr != nil {
		return resolveErr
	}
	for _, p := range toRemoveFromDelete {
		actions.ToDelete.Remove(p)
	}

	var toRemoveFromCopy []rrpath.Path
	resolveErr = nil
	actions.ToCopy.Iterate(func(path rrpath.Path, entry CopyEntry) {
		if resolveErr != nil {
			return
		}
		var behavior *Behavior
		switch entry.Reason {
		case CopyDestNewer:
			behavior = &res.policies.DestFileNewer
		case CopyDestOlder:
			behavior = &res.policies.DestFileOlder
		}
		if behavior != nil {
			proceed, err := res.resolve(*behavior, "destination "+path.String()+" is newer or older than source")
			if err != nil {
				resolveErr = err
				return
			}
			if !proceed {
				toRemoveFromCopy = append(toRemoveFromCopy, path)
				return
			}
		}
		totalAdd.CopyCount++
		totalAdd.Work += workForCopy(entry.Details)
		if entry.Details.Kind == wire.EntryKindFile {
			totalAdd.CopyBytes += entry.Details.Size
		}
	})
	if resolveErr != nil {
		return resolveErr
	}
	for _, p := range toRemoveFromCopy {
		actions.ToCopy.Remove(p)
	}

	tracker.AddTotal(totalAdd)
	return nil
}

func workForDelete(details wire.EntryDetails) uint64 {
	if details.Kind == wire.EntryKindSymlink {
		return progress.SymlinkWork()
	}
	return progress.DeleteWork()
}

func workForCopy(details wire.EntryDetails) uint64 {
	switch details.Kind {
	case wire.EntryKindFile:
		return progress.CopyWork(details.Size)
	case wire.EntryKindFolder:
		return progress.FolderWork()
	default:
		return progress.SymlinkWork()
	}
}

func logDryRun(logger *logging.Logger, actions *Actions, summary *Summary) {
	actions.ToDelete.Iterate(func(path rrpath.Path, entry DeleteEntry) {
		logger.Info("would delete %s (%v)", path, entry.Details.Kind)
		summary.NumDeleted++
	})
	actions.ToCopy.Iterate(func(path rrpath.Path, entry CopyEntry) {
		logger.Info("would copy %s (%v)", path, entry.Details.Kind)
		summary.NumCopied++
		summary.NumBytes += entry.Details.Size
	})
}

// execute pipelines delete and copy commands to the doers without waiting
// for each to complete, periodically draining the destination's response
// stream, and finishes with a blocking drain for the terminal Done marker.
//
// Grounded on boss_sync.rs's execution loop and process_dest_responses.
func execute(srcComms, destComms boss.Comms, actions *Actions, tracker *progress.Tracker, summary *Summary) error {
	var accumulated uint64
	var pendingErr error

	markerIfNeeded := func(work uint64) error {
		accumulated += work
		if accumulated < markerWorkThreshold {
			return nil
		}
		m := accumulated
		accumulated = 0
		return destComms.SendCommand(wire.Command{Kind: wire.CommandMarker, Marker: wire.ProgressMarker{CompletedWork: m}})
	}

	drainNonBlocking := func() {
		for {
			resp, ok := destComms.Responses().TryRecv()
			if !ok {
				return
			}
			if resp.Kind == wire.ResponseError && pendingErr == nil {
				pendingErr = errors.Wrap(resp.AsError(), "destination")
			}
			if resp.Kind == wire.ResponseMarker {
				tracker.AddCompleted(progress.Values{Work: resp.Marker.CompletedWork})
			}
		}
	}

	actions.ToDelete.Iterate(func(path rrpath.Path, entry DeleteEntry) {
		if pendingErr != nil {
			return
		}
		var cmd wire.Command
		switch entry.Details.Kind {
		case wire.EntryKindFile:
			cmd = wire.Command{Kind: wire.CommandDeleteFile, Path: path}
		case wire.EntryKindFolder:
			cmd = wire.Command{Kind: wire.CommandDeleteFolder, Path: path}
		case wire.EntryKindSymlink:
			cmd = wire.Command{Kind: wire.CommandDeleteSymlink, Path: path, SymlinkKind: entry.Details.SymlinkKind}
		}
		if err := destComms.SendCommand(cmd); err != nil {
			pendingErr = err
			return
		}
		summary.NumDeleted++
		if err := markerIfNeeded(workForDelete(entry.Details)); err != nil {
			pendingErr = err
		}
		drainNonBlocking()
	})
	if pendingErr != nil {
		return pendingErr
	}

	actions.ToCopy.Iterate(func(path rrpath.Path, entry CopyEntry) {
		if pendingErr != nil {
			return
		}
		if err := copyEntry(srcComms, destComms, path, entry); err != nil {
			pendingErr = err
			return
		}
		summary.NumCopied++
		if entry.Details.Kind == wire.EntryKindFile {
			summary.NumBytes += entry.Details.Size
		}
		if err := markerIfNeeded(workForCopy(entry.Details)); err != nil {
			pendingErr = err
		}
		drainNonBlocking()
	})
	if pendingErr != nil {
		return pendingErr
	}

	if err := destComms.SendCommand(wire.Command{Kind: wire.CommandMarker, Marker: wire.ProgressMarker{Phase: wire.ProgressPhase{Kind: wire.ProgressPhaseDone}}}); err != nil {
		return err
	}
	for {
		resp, err := destComms.Responses().Recv()
		if err != nil {
			return errors.Wrap(err, "waiting for destination to finish")
		}
		if resp.Kind == wire.ResponseError {
			return errors.Wrap(resp.AsError(), "destination")
		}
		if resp.Kind == wire.ResponseMarker {
			tracker.AddCompleted(progress.Values{Work: resp.Marker.CompletedWork})
			if resp.Marker.Phase.Kind == wire.ProgressPhaseDone {
				return nil
			}
		}
	}
}

// copyEntry issues whatever commands are needed to copy a single source
// entry to the destination. Files stream in chunks straight from the
// source's GetFileContent response into the destination's
// CreateOrUpdateFile command, preserving MoreToFollow so the destination
// doer's chunked-write state machine works the same way it does for a
// local copy.
func copyEntry(srcComms, destComms boss.Comms, path rrpath.Path, entry CopyEntry) error {
	switch entry.Details.Kind {
	case wire.EntryKindFolder:
		return destComms.SendCommand(wire.Command{Kind: wire.CommandCreateFolder, Path: path})
	case wire.EntryKindSymlink:
		return destComms.SendCommand(wire.Command{
			Kind:          wire.CommandCreateSymlink,
			Path:          path,
			SymlinkKind:   entry.Details.SymlinkKind,
			SymlinkTarget: entry.Details.SymlinkTarget,
		})
	case wire.EntryKindFile:
		if err := srcComms.SendCommand(wire.Command{Kind: wire.CommandGetFileContent, Path: path}); err != nil {
			return err
		}
		modified := entry.Details.ModifiedTime
		for {
			resp, err := srcComms.Responses().Recv()
			if err != nil {
				return errors.Wrap(err, "reading source file content")
			}
			if resp.Kind == wire.ResponseError {
				return errors.Wrap(resp.AsError(), "source")
			}
			if resp.Kind != wire.ResponseFileContent {
				return errors.Errorf("unexpected response reading source file content: %#v", resp)
			}
			cmd := wire.Command{Kind: wire.CommandCreateOrUpdateFile, Path: path, Data: resp.Data, MoreToFollow: resp.MoreToFollow}
			if !resp.MoreToFollow {
				t := modified
				cmd.SetModifiedTime = &t
			}
			if err := destComms.SendCommand(cmd); err != nil {
				return err
			}
			if !resp.MoreToFollow {
				return nil
			}
		}
	default:
		return errors.Errorf("unknown entry kind %v", entry.Details.Kind)
	}
}

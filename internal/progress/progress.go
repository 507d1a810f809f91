// Package progress tracks and reports how far a sync has gotten, in
// arbitrary "work units" rather than raw byte counts, so that deletes,
// folder creations, and file copies of wildly different sizes all
// contribute proportionally to one completion percentage.
//
// Grounded on original_source's boss_progress.rs for the unit constants and
// the total/completed accounting (work that has been sent but not yet
// completed is not tracked separately), and on the teacher's
// pkg/synchronization/state.go for the single-slot atomic state cell handed
// to a polling UI instead of a mutex-guarded struct.
package progress

import "sync/atomic"

// Work-unit constants, exactly as spec.md's sync engine assigns them.
const (
	minCopyWork = 1 << 20
	deleteWork  = 512 << 10
	folderWork  = 1 << 20
	symlinkWork = 1 << 20
)

// CopyWork is the work assigned to copying a file of the given size.
func CopyWork(size uint64) uint64 {
	if size > minCopyWork {
		return size
	}
	return minCopyWork
}

// DeleteWork is the work assigned to deleting a single file or folder;
// deleting a symlink is assigned SymlinkWork.
func DeleteWork() uint64 { return deleteWork }

// FolderWork is the work assigned to creating a folder.
func FolderWork() uint64 { return folderWork }

// SymlinkWork is the work assigned to creating or deleting a symlink.
func SymlinkWork() uint64 { return symlinkWork }

// Values is a snapshot of accumulated counts at one point in time.
type Values struct {
	Work        uint64
	DeleteCount uint64
	CopyCount   uint64
	CopyBytes   uint64
}

// Tracker accumulates total expected work (known once the query phase
// finishes) against completed work (reported by Marker echoes as the
// execution phase proceeds). Both slots are swapped atomically so a
// concurrent Snapshot never observes a torn read. There is no slot for work
// that has been sent to a doer but not yet completed.
type Tracker struct {
	total     atomic.Pointer[Values]
	completed atomic.Pointer[Values]
}

// NewTracker constructs a Tracker with a zeroed total and completed state.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.total.Store(&Values{})
	t.completed.Store(&Values{})
	return t
}

// AddTotal folds v into the running total, e.g. as each action is decided
// during the query phase.
func (t *Tracker) AddTotal(v Values) {
	for {
		old := t.total.Load()
		next := add(*old, v)
		if t.total.CompareAndSwap(old, &next) {
			return
		}
	}
}

// AddCompleted folds v into the running completed count, e.g. as each
// Marker response arrives during the execution phase.
func (t *Tracker) AddCompleted(v Values) {
	for {
		old := t.completed.Load()
		next := add(*old, v)
		if t.completed.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Snapshot returns the current total and completed values. Safe to call
// concurrently with AddTotal/AddCompleted from another goroutine, which is
// the whole point: a UI polling this never blocks the sync engine.
func (t *Tracker) Snapshot() (total, completed Values) {
	return *t.total.Load(), *t.completed.Load()
}

func add(a, b Values) Values {
	return Values{
		Work:        a.Work + b.Work,
		DeleteCount: a.DeleteCount + b.DeleteCount,
		CopyCount:   a.CopyCount + b.CopyCount,
		CopyBytes:   a.CopyBytes + b.CopyBytes,
	}
}

// Printer renders a Tracker's state to the user. The bar/spinner rendering
// itself is an external collaborator's job; the core only depends on this
// small interface, the same separation the teacher keeps between its
// synchronization state and its CLI-side renderer.
type Printer interface {
	// Update is called periodically (and at least once at completion)
	// with the latest total/completed snapshot.
	Update(total, completed Values)
	// Done is called once after the final Update, so a terminal printer
	// can clear a spinner line or print a trailing newline.
	Done()
}

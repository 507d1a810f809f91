package sync

import (
	"testing"

	"github.com/rjrsync/rjrsync/internal/boss"
	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/progress"
	"github.com/rjrsync/rjrsync/internal/synctest"
)

func dialLocal(t *testing.T, root string) boss.Comms {
	t.Helper()
	c, err := boss.NewLocalSession(root)
	if err != nil {
		t.Fatalf("NewLocalSession(%q): %v", root, err)
	}
	t.Cleanup(func() { c.Shutdown() })
	return c
}

func defaultPolicies() Policies {
	return Policies{
		DestFileNewer:        BehaviorOverwrite,
		DestFileOlder:        BehaviorOverwrite,
		DestEntryNeedsDelete: BehaviorOverwrite,
		DestRootNeedsDelete:  BehaviorOverwrite,
	}
}

func TestRunSyncCopiesNewTreeIntoEmptyDest(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()

	tree := synctest.Folder(map[string]synctest.Node{
		"a.txt": synctest.File("hello"),
		"sub": synctest.Folder(map[string]synctest.Node{
			"b.txt": synctest.File("world"),
		}),
	})
	if err := synctest.SaveToDisk(tree, srcRoot+"/root"); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}
	srcRoot = srcRoot + "/root"

	srcComms := dialLocal(t, srcRoot)
	destComms := dialLocal(t, destRoot)

	tracker := progress.NewTracker()
	logger := logging.NewStderr(logging.LevelError)

	summary, err := RunSync(srcComms, destComms, Config{Policies: defaultPolicies()}, tracker, logger)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if summary.NumCopied == 0 {
		t.Fatalf("expected some entries to be copied")
	}

	got, err := synctest.LoadFromDisk(destRoot)
	if err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	if diffs := synctest.Diff(tree, got); len(diffs) != 0 {
		t.Fatalf("destination tree mismatch: %v", diffs)
	}
}

func TestRunSyncDeletesStaleDestEntry(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()

	srcTree := synctest.EmptyFolder()
	if err := synctest.SaveToDisk(srcTree, srcRoot+"/root"); err != nil {
		t.Fatalf("SaveToDisk(src): %v", err)
	}
	srcRoot = srcRoot + "/root"

	destTree := synctest.Folder(map[string]synctest.Node{
		"stale.txt": synctest.File("leftover"),
	})
	if err := synctest.SaveToDisk(destTree, destRoot+"/root"); err != nil {
		t.Fatalf("SaveToDisk(dest): %v", err)
	}
	destRoot = destRoot + "/root"

	srcComms := dialLocal(t, srcRoot)
	destComms := dialLocal(t, destRoot)

	tracker := progress.NewTracker()
	logger := logging.NewStderr(logging.LevelError)

	summary, err := RunSync(srcComms, destComms, Config{Policies: defaultPolicies()}, tracker, logger)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if summary.NumDeleted != 1 {
		t.Fatalf("NumDeleted = %d, want 1", summary.NumDeleted)
	}

	got, err := synctest.LoadFromDisk(destRoot)
	if err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	if diffs := synctest.Diff(synctest.EmptyFolder(), got); len(diffs) != 0 {
		t.Fatalf("destination tree mismatch: %v", diffs)
	}
}

func TestRunSyncDryRunMakesNoChanges(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()

	tree := synctest.Folder(map[string]synctest.Node{
		"a.txt": synctest.File("hello"),
	})
	if err := synctest.SaveToDisk(tree, srcRoot+"/root"); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}
	srcRoot = srcRoot + "/root"

	if err := synctest.SaveToDisk(synctest.EmptyFolder(), destRoot+"/root"); err != nil {
		t.Fatalf("SaveToDisk(dest): %v", err)
	}
	destRoot = destRoot + "/root"

	srcComms := dialLocal(t, srcRoot)
	destComms := dialLocal(t, destRoot)

	tracker := progress.NewTracker()
	logger := logging.NewStderr(logging.LevelError)

	summary, err := RunSync(srcComms, destComms, Config{Policies: defaultPolicies(), DryRun: true}, tracker, logger)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if summary.NumCopied == 0 {
		t.Fatalf("expected the dry run to report what it would have copied")
	}

	got, err := synctest.LoadFromDisk(destRoot)
	if err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	if diffs := synctest.Diff(synctest.EmptyFolder(), got); len(diffs) != 0 {
		t.Fatalf("dry run should not have touched the destination: %v", diffs)
	}
}

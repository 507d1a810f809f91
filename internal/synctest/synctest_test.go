package synctest

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tree := Folder(map[string]Node{
		"a.txt": File("hello"),
		"sub": Folder(map[string]Node{
			"b.txt": File("world"),
		}),
	})

	root := filepath.Join(t.TempDir(), "tree")
	if err := SaveToDisk(tree, root); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	loaded, err := LoadFromDisk(root)
	if err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}

	if diffs := Diff(tree, loaded); len(diffs) != 0 {
		t.Errorf("unexpected diffs: %v", diffs)
	}
}

func TestDiffReportsMissingAndExtraEntries(t *testing.T) {
	want := Folder(map[string]Node{
		"keep.txt":   File("x"),
		"missing.txt": File("x"),
	})
	got := Folder(map[string]Node{
		"keep.txt": File("x"),
		"extra.txt": File("x"),
	})

	diffs := Diff(want, got)
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2: %v", len(diffs), diffs)
	}
}

func TestSymlinkSave(t *testing.T) {
	tree := Symlink("target.txt")
	root := filepath.Join(t.TempDir(), "link")
	if err := SaveToDisk(tree, root); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}
	loaded, err := LoadFromDisk(root)
	if err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	if loaded.Target != "target.txt" {
		t.Errorf("target = %q", loaded.Target)
	}
}

package doer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjrsync/rjrsync/internal/rrpath"
	"github.com/rjrsync/rjrsync/internal/wire"
)

func mustModTime() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func mustPath(t *testing.T, s string) rrpath.Path {
	t.Helper()
	p, err := rrpath.New(s)
	if err != nil {
		t.Fatalf("rrpath.New(%q): %v", s, err)
	}
	return p
}

func collectResponses(exec func(send func(wire.Response) error) error) ([]wire.Response, error) {
	var got []wire.Response
	err := exec(func(r wire.Response) error {
		got = append(got, r)
		return nil
	})
	return got, err
}

func TestSetRootMissing(t *testing.T) {
	e := NewEngine()
	root := filepath.Join(t.TempDir(), "does-not-exist")
	resps, err := collectResponses(func(send func(wire.Response) error) error {
		_, err := e.Exec(wire.Command{Kind: wire.CommandSetRoot, Root: root}, send)
		return err
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(resps) != 1 || resps[0].Kind != wire.ResponseRootDetails || resps[0].RootDetails != nil {
		t.Fatalf("expected a single RootDetails response with nil details, got %+v", resps)
	}
}

func TestCreateFolderThenFile(t *testing.T) {
	root := t.TempDir()
	e := NewEngine()
	if _, err := e.Exec(wire.Command{Kind: wire.CommandSetRoot, Root: root}, func(wire.Response) error { return nil }); err != nil {
		t.Fatalf("SetRoot: %v", err)
	}

	sub := mustPath(t, "sub")
	if _, err := e.Exec(wire.Command{Kind: wire.CommandCreateFolder, Path: sub}, failOnResponse(t)); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	file := mustPath(t, "sub/file.txt")
	modTime := mustModTime()
	if _, err := e.Exec(wire.Command{
		Kind: wire.CommandCreateOrUpdateFile, Path: file,
		Data: []byte("hello "), MoreToFollow: true,
	}, failOnResponse(t)); err != nil {
		t.Fatalf("CreateOrUpdateFile (chunk 1): %v", err)
	}
	if _, err := e.Exec(wire.Command{
		Kind: wire.CommandCreateOrUpdateFile, Path: file,
		Data: []byte("world"), MoreToFollow: false, SetModifiedTime: &modTime,
	}, failOnResponse(t)); err != nil {
		t.Fatalf("CreateOrUpdateFile (chunk 2): %v", err)
	}

	contents, err := os.ReadFile(file.Join(root))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(contents) != "hello world" {
		t.Fatalf("contents = %q, want %q", contents, "hello world")
	}
}

func TestGetEntriesAppliesFilters(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "c1"), "x")
	mustWrite(t, filepath.Join(root, "c2"), "x")
	if err := os.Mkdir(filepath.Join(root, "c3"), 0o777); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(root, "c3", "sc1"), "x")
	mustWrite(t, filepath.Join(root, "c3", "sc2"), "x")

	e := NewEngine()
	e.root = root

	filters := wire.FilterSet{Rules: []wire.FilterRule{
		{Kind: wire.FilterInclude, Pattern: "c3.*"},
		{Kind: wire.FilterInclude, Pattern: "c1"},
		{Kind: wire.FilterExclude, Pattern: ".*/sc1"},
	}}

	resps, err := collectResponses(func(send func(wire.Response) error) error {
		return e.getEntries(wire.Command{Kind: wire.CommandGetEntries, Filters: filters}, send)
	})
	if err != nil {
		t.Fatalf("getEntries: %v", err)
	}

	var got []string
	for _, r := range resps {
		if r.Kind == wire.ResponseEntry {
			got = append(got, r.EntryPath.String())
		}
	}
	want := map[string]bool{"c1": true, "c3": true, "c3/sc2": true}
	if len(got) != len(want) {
		t.Fatalf("got entries %v, want exactly %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected entry %q in results %v", p, got)
		}
	}
	if resps[len(resps)-1].Kind != wire.ResponseEndOfEntries {
		t.Errorf("last response kind = %d, want EndOfEntries", resps[len(resps)-1].Kind)
	}
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "gone.txt")
	mustWrite(t, full, "x")

	e := NewEngine()
	e.root = root
	if _, err := e.Exec(wire.Command{Kind: wire.CommandDeleteFile, Path: mustPath(t, "gone.txt")}, failOnResponse(t)); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err = %v", err)
	}
}

func TestShutdownProducesFinalProfilingData(t *testing.T) {
	e := NewEngine()
	resps, err := collectResponses(func(send func(wire.Response) error) error {
		done, err := e.Exec(wire.Command{Kind: wire.CommandShutdown}, send)
		if err != nil {
			return err
		}
		if !done {
			t.Fatal("Exec(Shutdown) did not report done")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(resps) != 1 || !resps[0].IsFinalMessage() {
		t.Fatalf("expected a single final response, got %+v", resps)
	}
}

func failOnResponse(t *testing.T) func(wire.Response) error {
	t.Helper()
	return func(r wire.Response) error {
		t.Fatalf("unexpected response for a write command: %+v", r)
		return nil
	}
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o666); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}

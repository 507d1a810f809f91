package specfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSpec(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMultipleSyncs(t *testing.T) {
	path := writeSpec(t, `
syncs:
  - src: ./a
    dest: user@host:/remote/a
    filters: ["+keep", "-.*"]
  - src: ./b
    dest: ./b-copy
    policy:
      destFileNewer: skip
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Syncs) != 2 {
		t.Fatalf("got %d syncs, want 2", len(s.Syncs))
	}
	if s.Syncs[0].Dest != "user@host:/remote/a" || len(s.Syncs[0].Filters) != 2 {
		t.Errorf("syncs[0] = %+v", s.Syncs[0])
	}
	if s.Syncs[1].Policy.DestFileNewer != "skip" {
		t.Errorf("syncs[1].Policy = %+v", s.Syncs[1].Policy)
	}
}

func TestLoadRejectsEmptySyncs(t *testing.T) {
	path := writeSpec(t, "syncs: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an empty sync list")
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	path := writeSpec(t, "syncs:\n  - src: ./a\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a sync missing dest")
	}
}

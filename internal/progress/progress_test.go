package progress

import "testing"

func TestCopyWorkFloorsSmallFiles(t *testing.T) {
	if got := CopyWork(10); got != minCopyWork {
		t.Errorf("CopyWork(10) = %d, want %d", got, minCopyWork)
	}
	if got := CopyWork(10 << 20); got != 10<<20 {
		t.Errorf("CopyWork(10MiB) = %d, want %d", got, 10<<20)
	}
}

func TestTrackerAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.AddTotal(Values{Work: 100, CopyCount: 2})
	tr.AddTotal(Values{Work: 50, DeleteCount: 1})
	tr.AddCompleted(Values{Work: 30})

	total, completed := tr.Snapshot()
	if total.Work != 150 || total.CopyCount != 2 || total.DeleteCount != 1 {
		t.Errorf("total = %+v", total)
	}
	if completed.Work != 30 {
		t.Errorf("completed = %+v", completed)
	}
}

package sync

import (
	"reflect"
	"testing"

	"github.com/rjrsync/rjrsync/internal/rrpath"
)

func mustPath(t *testing.T, s string) rrpath.Path {
	t.Helper()
	p, err := rrpath.New(s)
	if err != nil {
		t.Fatalf("rrpath.New(%q): %v", s, err)
	}
	return p
}

func TestActionMapPreservesInsertionOrder(t *testing.T) {
	m := NewActionMap[int]()
	a, b, c := mustPath(t, "a"), mustPath(t, "b"), mustPath(t, "c")
	m.Add(a, 1)
	m.Add(b, 2)
	m.Add(c, 3)

	var got []rrpath.Path
	m.Iterate(func(key rrpath.Path, value int) { got = append(got, key) })
	want := []rrpath.Path{a, b, c}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
}

func TestActionMapRemoveLeavesTombstone(t *testing.T) {
	m := NewActionMap[int]()
	a, b, c := mustPath(t, "a"), mustPath(t, "b"), mustPath(t, "c")
	m.Add(a, 1)
	m.Add(b, 2)
	m.Add(c, 3)
	m.Remove(b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if _, ok := m.Lookup(b); ok {
		t.Fatalf("Lookup(b) should report absent after Remove")
	}

	var got []rrpath.Path
	m.Iterate(func(key rrpath.Path, value int) { got = append(got, key) })
	want := []rrpath.Path{a, c}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestActionMapReAddAfterRemoveKeepsOriginalPosition(t *testing.T) {
	m := NewActionMap[int]()
	a, b := mustPath(t, "a"), mustPath(t, "b")
	m.Add(a, 1)
	m.Add(b, 2)
	m.Remove(a)
	m.Add(a, 99)

	var got []rrpath.Path
	m.Iterate(func(key rrpath.Path, value int) { got = append(got, key) })
	want := []rrpath.Path{a, b}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	v, ok := m.Lookup(a)
	if !ok || v != 99 {
		t.Fatalf("Lookup(a) = %v, %v, want 99, true", v, ok)
	}
}

func TestActionMapUpdateDoesNotMovePosition(t *testing.T) {
	m := NewActionMap[int]()
	a, b := mustPath(t, "a"), mustPath(t, "b")
	m.Add(a, 1)
	m.Add(b, 2)
	m.Update(a, 100)

	var got []rrpath.Path
	m.Iterate(func(key rrpath.Path, value int) { got = append(got, key) })
	want := []rrpath.Path{a, b}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if v, _ := m.Lookup(a); v != 100 {
		t.Fatalf("Lookup(a) = %d, want 100", v)
	}
}

func TestActionMapReverseOrder(t *testing.T) {
	m := NewActionMap[int]()
	a, b, c := mustPath(t, "a"), mustPath(t, "b"), mustPath(t, "c")
	m.Add(a, 1)
	m.Add(b, 2)
	m.Add(c, 3)
	m.ReverseOrder()

	var got []rrpath.Path
	m.Iterate(func(key rrpath.Path, value int) { got = append(got, key) })
	want := []rrpath.Path{c, b, a}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

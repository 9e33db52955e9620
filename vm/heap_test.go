package vm

import (
	"fmt"
	"testing"
)

func TestInterningIdentity(t *testing.T) {
	h := newHeap()
	a := h.InternString("hello")
	b := h.InternString("hel" + "lo")
	if a != b {
		t.Error("equal contents must intern to one object")
	}
	c := h.InternString("other")
	if a == c {
		t.Error("distinct contents interned to one object")
	}
}

func TestCollectPrunesUnreachable(t *testing.T) {
	h := newHeap()

	kept := h.InternString("kept")
	h.PushTempRoot(ObjValue(&kept.Obj))
	defer h.PopTempRoot()

	for i := 0; i < 100; i++ {
		h.InternString(fmt.Sprintf("garbage-%d", i))
	}
	liveBefore := h.ObjectCount()

	h.Collect()

	if got := h.ObjectCount(); got != 1 {
		t.Errorf("ObjectCount after collect = %d, want 1 (had %d)", got, liveBefore)
	}
	// The intern table forgot the dead strings, so re-interning allocates
	// fresh objects rather than resurrecting stale pointers.
	if h.strings.FindString("garbage-0", HashString("garbage-0")) != nil {
		t.Error("intern table still holds a collected string")
	}
	// The survivor is still interned.
	if h.InternString("kept") != kept {
		t.Error("rooted string lost its intern identity")
	}
}

func TestCollectTracesReferences(t *testing.T) {
	h := newHeap()

	inner := h.InternString("inner")
	h.PushTempRoot(ObjValue(&inner.Obj))
	list := h.NewList([]Value{ObjValue(&inner.Obj), NumberValue(1)})
	h.PopTempRoot()

	h.PushTempRoot(ObjValue(&list.Obj))
	defer h.PopTempRoot()

	h.Collect()

	if h.ObjectCount() != 2 {
		t.Errorf("ObjectCount = %d, want 2 (list and its element)", h.ObjectCount())
	}
	if list.Items[0].AsString().Chars != "inner" {
		t.Error("list element corrupted by collection")
	}
}

func TestCollectAccounting(t *testing.T) {
	h := newHeap()
	if h.BytesAllocated() != 0 {
		t.Fatalf("fresh heap reports %d bytes", h.BytesAllocated())
	}
	for i := 0; i < 50; i++ {
		h.InternString(fmt.Sprintf("acct-%d", i))
	}
	if h.BytesAllocated() == 0 {
		t.Fatal("allocation not charged")
	}
	h.Collect()
	if h.BytesAllocated() != 0 {
		t.Errorf("bytesAllocated = %d after collecting everything", h.BytesAllocated())
	}
}

func TestStressModeSurvivesInterpretation(t *testing.T) {
	// With a collection before every allocation, any missing root shows up
	// as a corrupted object almost immediately.
	h := newHeap()
	h.Stress = true

	var lists []*ObjList
	for i := 0; i < 20; i++ {
		s := h.InternString(fmt.Sprintf("v-%d", i))
		h.PushTempRoot(ObjValue(&s.Obj))
		l := h.NewList([]Value{ObjValue(&s.Obj)})
		h.PopTempRoot()
		h.PushTempRoot(ObjValue(&l.Obj))
		lists = append(lists, l)
	}
	for i, l := range lists {
		want := fmt.Sprintf("v-%d", i)
		if got := l.Items[0].AsString().Chars; got != want {
			t.Fatalf("list %d holds %q, want %q", i, got, want)
		}
	}
	for range lists {
		h.PopTempRoot()
	}
}

func TestTypeInstanceRetention(t *testing.T) {
	h := newHeap()

	name := h.InternString("Point")
	h.PushTempRoot(ObjValue(&name.Obj))
	typ := h.NewType(name)
	h.PopTempRoot()
	h.PushTempRoot(ObjValue(&typ.Obj))

	fieldName := h.InternString("x")
	h.PushTempRoot(ObjValue(&fieldName.Obj))
	typ.FieldDefaults.Set(ObjValue(&fieldName.Obj), NumberValue(0))
	h.PopTempRoot()

	inst := h.NewInstance(typ)
	h.PushTempRoot(ObjValue(&inst.Obj))

	h.Collect()

	// Type, its name, the field name and the instance all survive through
	// the instance's references.
	if inst.Type.Name.Chars != "Point" {
		t.Error("type name lost")
	}
	if v, ok := inst.Fields.Get(ObjValue(&fieldName.Obj)); !ok || v.AsNumber() != 0 {
		t.Error("copied field default lost")
	}

	h.PopTempRoot()
	h.PopTempRoot()
}

func TestAllocationDuringCollectionPanics(t *testing.T) {
	h := newHeap()
	h.collecting = true
	defer func() {
		if recover() == nil {
			t.Error("expected panic on allocation during collection")
		}
	}()
	h.InternString("boom")
}

func TestSetGCThreshold(t *testing.T) {
	h := newHeap()
	h.SetGCThreshold(123)
	if h.nextGC != 123 {
		t.Errorf("nextGC = %d, want 123", h.nextGC)
	}
	h.SetGCThreshold(0)
	if h.nextGC != 123 {
		t.Error("non-positive threshold should be ignored")
	}
}

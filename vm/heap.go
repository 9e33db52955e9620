package vm

import (
	"os"
	"unsafe"

	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("mica.gc")

// Heap owns every script-visible allocation and the collector state.
// Each VM carries its own Heap, so independent interpreters never share
// object graphs.
//
// Objects are linked through their headers into a single all-objects list.
// The list drives the sweep and doubles as the Go-visible reference that
// keeps NaN-boxed pointers valid between collections.
type Heap struct {
	vm      *VM
	objects *Obj

	// strings is the intern table. It holds weak references: keys are
	// pruned before the sweep when their strings are otherwise dead.
	strings Table

	bytesAllocated int
	nextGC         int

	grayStack []*Obj

	// tempRoots anchors values with no stack presence yet: the compiler's
	// in-progress functions and natives' scratch allocations.
	tempRoots []Value

	collecting bool

	// Stress forces a full collection before every allocation.
	Stress bool
}

const initialGCThreshold = 1 << 20 // 1 MiB
const gcGrowthFactor = 2

func newHeap() *Heap {
	return &Heap{nextGC: initialGCThreshold}
}

// SetGCThreshold overrides the byte count that triggers the next
// collection. Values below one are ignored.
func (h *Heap) SetGCThreshold(bytes int) {
	if bytes > 0 {
		h.nextGC = bytes
	}
}

// PushTempRoot anchors v against collection until the matching PopTempRoot.
// The compiler uses this for functions it is still filling in.
func (h *Heap) PushTempRoot(v Value) {
	h.tempRoots = append(h.tempRoots, v)
}

// PopTempRoot removes the most recently pushed temporary root.
func (h *Heap) PopTempRoot() {
	h.tempRoots = h.tempRoots[:len(h.tempRoots)-1]
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// allocate links a freshly constructed object into the heap and charges its
// size against the collection threshold. It may run a full collection
// first, so the object being linked must not yet be reachable only from
// unrooted Go locals holding other fresh allocations.
func (h *Heap) allocate(o *Obj, kind ObjKind, size int) {
	if h.Stress || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}
	if h.collecting {
		panic("heap: allocation during collection")
	}
	o.Kind = kind
	o.Next = h.objects
	h.objects = o
	h.bytesAllocated += size
}

// InternString returns the canonical ObjString for chars, allocating one if
// the string has never been seen. All strings flow through here, so equal
// contents always share one object.
func (h *Heap) InternString(chars string) *ObjString {
	hash := HashString(chars)
	if s := h.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := &ObjString{Chars: chars, Hash: hash}
	h.allocate(&s.Obj, KindString, int(unsafe.Sizeof(*s))+len(chars))
	// Root the new string across the table's own potential allocation.
	h.PushTempRoot(ObjValue(&s.Obj))
	h.strings.Set(ObjValue(&s.Obj), Nil)
	h.PopTempRoot()
	return s
}

// NewFunction allocates a blank function for the compiler to fill in.
func (h *Heap) NewFunction() *ObjFunction {
	f := &ObjFunction{Chunk: *NewChunk()}
	h.allocate(&f.Obj, KindFunction, int(unsafe.Sizeof(*f)))
	return f
}

// NewClosure wraps a compiled function with space for its upvalues.
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	h.allocate(&c.Obj, KindClosure, int(unsafe.Sizeof(*c))+fn.UpvalueCount*8)
	return c
}

// NewUpvalue creates an open upvalue aliasing the given stack slot.
func (h *Heap) NewUpvalue(location *Value, slot int) *ObjUpvalue {
	u := &ObjUpvalue{Location: location, Closed: Nil, Slot: slot}
	h.allocate(&u.Obj, KindUpvalue, int(unsafe.Sizeof(*u)))
	return u
}

// NewNative registers a host function object.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	s := h.InternString(name)
	h.PushTempRoot(ObjValue(&s.Obj))
	n := &ObjNative{Name: s, Arity: arity, Fn: fn}
	h.allocate(&n.Obj, KindNative, int(unsafe.Sizeof(*n)))
	h.PopTempRoot()
	return n
}

// NewBoundNative pairs a native method with its receiver.
func (h *Heap) NewBoundNative(receiver Value, native *ObjNative) *ObjBoundNative {
	b := &ObjBoundNative{Receiver: receiver, Native: native}
	h.allocate(&b.Obj, KindBoundNative, int(unsafe.Sizeof(*b)))
	return b
}

// NewType allocates a type object with empty tables.
func (h *Heap) NewType(name *ObjString) *ObjType {
	t := &ObjType{Name: name}
	h.allocate(&t.Obj, KindType, int(unsafe.Sizeof(*t)))
	t.MRO = []*ObjType{t}
	return t
}

// NewInstance allocates an instance and copies the type's field defaults.
func (h *Heap) NewInstance(t *ObjType) *ObjInstance {
	inst := &ObjInstance{Type: t}
	h.allocate(&inst.Obj, KindInstance, int(unsafe.Sizeof(*inst)))
	h.PushTempRoot(ObjValue(&inst.Obj))
	inst.Fields.AddAll(&t.FieldDefaults)
	h.PopTempRoot()
	return inst
}

// NewBoundMethod pairs a receiver with a method closure.
func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	h.allocate(&b.Obj, KindBoundMethod, int(unsafe.Sizeof(*b)))
	return b
}

// NewList allocates a list taking ownership of items.
func (h *Heap) NewList(items []Value) *ObjList {
	l := &ObjList{Items: items}
	h.allocate(&l.Obj, KindList, int(unsafe.Sizeof(*l))+len(items)*8)
	return l
}

// NewMap allocates an empty map.
func (h *Heap) NewMap() *ObjMap {
	m := &ObjMap{}
	h.allocate(&m.Obj, KindMap, int(unsafe.Sizeof(*m)))
	return m
}

// NewFile wraps an open OS handle.
func (h *Heap) NewFile(path *ObjString, handle *os.File) *ObjFile {
	f := &ObjFile{Path: path, Handle: handle}
	h.allocate(&f.Obj, KindFile, int(unsafe.Sizeof(*f)))
	return f
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Collect runs a full stop-the-world mark-sweep cycle.
func (h *Heap) Collect() {
	if h.collecting {
		panic("heap: collection re-entered")
	}
	h.collecting = true
	before := h.bytesAllocated

	h.markRoots()
	h.traceReferences()
	h.strings.deleteUnmarked()
	h.sweep()

	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < initialGCThreshold {
		h.nextGC = initialGCThreshold
	}
	h.collecting = false

	gcLog.Debugf("collected %d bytes (%d -> %d), next at %d",
		before-h.bytesAllocated, before, h.bytesAllocated, h.nextGC)
}

func (h *Heap) markRoots() {
	if v := h.vm; v != nil {
		for i := 0; i < v.stackTop; i++ {
			h.markValue(v.stack[i])
		}
		for i := 0; i < v.frameCount; i++ {
			h.markObject(&v.frames[i].closure.Obj)
		}
		for u := v.openUpvalues; u != nil; u = u.NextOpen {
			h.markObject(&u.Obj)
		}
		h.markTable(&v.globals)
		if v.initString != nil {
			h.markObject(&v.initString.Obj)
		}
	}
	for _, v := range h.tempRoots {
		h.markValue(v)
	}
}

func (h *Heap) markValue(v Value) {
	if v.IsObj() {
		h.markObject(v.AsObj())
	}
}

func (h *Heap) markObject(o *Obj) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	h.grayStack = append(h.grayStack, o)
}

func (h *Heap) markTable(t *Table) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != Empty {
			h.markValue(e.key)
			h.markValue(e.value)
		}
	}
}

func (h *Heap) traceReferences() {
	for len(h.grayStack) > 0 {
		o := h.grayStack[len(h.grayStack)-1]
		h.grayStack = h.grayStack[:len(h.grayStack)-1]
		h.blacken(o)
	}
}

// blacken marks everything an object refers to. Strings, natives and files
// hold no Values (a native's name string is reached through the globals or
// a method table independently, but marking it here keeps detached natives
// sound).
func (h *Heap) blacken(o *Obj) {
	switch o.Kind {
	case KindString:
		// No references.
	case KindFunction:
		f := o.AsFunction()
		if f.Name != nil {
			h.markObject(&f.Name.Obj)
		}
		for _, c := range f.Chunk.Constants {
			h.markValue(c)
		}
	case KindClosure:
		c := o.AsClosure()
		h.markObject(&c.Function.Obj)
		for _, u := range c.Upvalues {
			if u != nil {
				h.markObject(&u.Obj)
			}
		}
	case KindUpvalue:
		h.markValue(o.AsUpvalue().Closed)
	case KindNative:
		h.markObject(&o.AsNative().Name.Obj)
	case KindBoundNative:
		b := o.AsBoundNative()
		h.markValue(b.Receiver)
		h.markObject(&b.Native.Obj)
	case KindType:
		t := o.AsType()
		h.markObject(&t.Name.Obj)
		h.markTable(&t.Methods)
		h.markTable(&t.FieldDefaults)
		if t.Super != nil {
			h.markObject(&t.Super.Obj)
		}
		for _, a := range t.MRO {
			h.markObject(&a.Obj)
		}
	case KindInstance:
		inst := o.AsInstance()
		h.markObject(&inst.Type.Obj)
		h.markTable(&inst.Fields)
	case KindBoundMethod:
		b := o.AsBoundMethod()
		h.markValue(b.Receiver)
		h.markObject(&b.Method.Obj)
	case KindList:
		for _, it := range o.AsList().Items {
			h.markValue(it)
		}
	case KindMap:
		h.markTable(&o.AsMap().Entries)
	case KindFile:
		h.markObject(&o.AsFile().Path.Obj)
	}
}

func (h *Heap) sweep() {
	var prev *Obj
	o := h.objects
	for o != nil {
		if o.Marked {
			o.Marked = false
			prev = o
			o = o.Next
			continue
		}
		dead := o
		o = o.Next
		if prev == nil {
			h.objects = o
		} else {
			prev.Next = o
		}
		h.release(dead)
	}
}

// release uncharges a dead object and lets Go reclaim it. Files that were
// never closed by the script are closed here.
func (h *Heap) release(o *Obj) {
	switch o.Kind {
	case KindString:
		s := o.AsString()
		h.bytesAllocated -= int(unsafe.Sizeof(*s)) + len(s.Chars)
	case KindFunction:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjFunction{}))
	case KindClosure:
		c := o.AsClosure()
		h.bytesAllocated -= int(unsafe.Sizeof(*c)) + len(c.Upvalues)*8
	case KindUpvalue:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjUpvalue{}))
	case KindNative:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjNative{}))
	case KindBoundNative:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjBoundNative{}))
	case KindType:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjType{}))
	case KindInstance:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjInstance{}))
	case KindBoundMethod:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjBoundMethod{}))
	case KindList:
		l := o.AsList()
		h.bytesAllocated -= int(unsafe.Sizeof(*l)) + len(l.Items)*8
	case KindMap:
		h.bytesAllocated -= int(unsafe.Sizeof(ObjMap{}))
	case KindFile:
		f := o.AsFile()
		if !f.Closed && f.Handle != nil {
			f.Handle.Close()
		}
		h.bytesAllocated -= int(unsafe.Sizeof(ObjFile{}))
	}
	o.Next = nil
}

// BytesAllocated reports the heap's current accounted size.
func (h *Heap) BytesAllocated() int {
	return h.bytesAllocated
}

// ObjectCount walks the all-objects list. Intended for tests.
func (h *Heap) ObjectCount() int {
	n := 0
	for o := h.objects; o != nil; o = o.Next {
		n++
	}
	return n
}

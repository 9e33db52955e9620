package vm

import (
	"fmt"
	"os"
	"strings"
	"unsafe"
)

// ObjKind identifies the concrete type behind an object header.
type ObjKind uint8

const (
	KindString ObjKind = iota
	KindFunction
	KindClosure
	KindUpvalue
	KindNative
	KindBoundNative
	KindType
	KindInstance
	KindBoundMethod
	KindList
	KindMap
	KindFile
)

// String returns the user-visible name of the kind, as reported by the `is`
// native and in runtime error messages.
func (k ObjKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindClosure:
		return "function"
	case KindUpvalue:
		return "upvalue"
	case KindNative:
		return "native"
	case KindBoundNative:
		return "native"
	case KindType:
		return "type"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "method"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Obj is the header shared by every heap object. Concrete object structs
// embed it as their first field so a *Obj and a pointer to the concrete
// struct are interchangeable via unsafe.Pointer.
//
// Next links every allocation into the heap's all-objects list. Besides
// driving the sweep, that list holds a Go-visible reference to each object,
// which keeps the 48-bit pointers packed into Values valid.
type Obj struct {
	Kind   ObjKind
	Marked bool
	Next   *Obj
}

// ---------------------------------------------------------------------------
// Concrete object types
// ---------------------------------------------------------------------------

// ObjString is an interned, immutable string with its FNV-1a hash cached at
// construction. Interning makes reference equality equivalent to content
// equality, so Value comparison and table probing never touch the bytes.
type ObjString struct {
	Obj
	Chars string
	Hash  uint32
}

// ObjFunction is a compiled function: its bytecode chunk plus the metadata
// calls need. Name is nil for the top-level script.
type ObjFunction struct {
	Obj
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

// ObjUpvalue is a captured variable. While open it aliases a live stack
// slot; Close moves the value into the upvalue itself and repoints Location
// at it. Slot orders the VM's open-upvalue list by stack depth and is -1
// once closed. NextOpen threads the VM's sorted open-upvalue list.
type ObjUpvalue struct {
	Obj
	Location *Value
	Closed   Value
	Slot     int
	NextOpen *ObjUpvalue
}

// Close copies the captured stack value into the upvalue and detaches it
// from the stack.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.Slot = -1
}

// ObjClosure pairs a function with the upvalues captured at the point the
// CLOSURE instruction ran. All runtime calls go through closures; bare
// ObjFunctions only exist inside constant pools and the compiler.
type ObjClosure struct {
	Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// NativeFn is the signature of host-registered functions and native
// methods. Errors become runtime errors at the call site.
type NativeFn func(v *VM, args []Value) (Value, error)

// VariadicArity accepts any argument count when used as a native's arity.
const VariadicArity = -1

// ObjNative is a host function callable from scripts.
type ObjNative struct {
	Obj
	Name  *ObjString
	Arity int
	Fn    NativeFn
}

// ObjBoundNative is a native method paired with its receiver, produced when
// a built-in method is read as a property rather than invoked directly.
type ObjBoundNative struct {
	Obj
	Receiver Value
	Native   *ObjNative
}

// ObjType is a user-declared type. Methods and FieldDefaults are copied
// down from the supertype at declaration time, then overridden; MRO is the
// linearized ancestor chain (self first), computed once when inheritance is
// established.
type ObjType struct {
	Obj
	Name          *ObjString
	Methods       Table
	FieldDefaults Table
	Super         *ObjType
	MRO           []*ObjType
}

// HasAncestor reports whether t is other or inherits from it.
func (t *ObjType) HasAncestor(other *ObjType) bool {
	for _, a := range t.MRO {
		if a == other {
			return true
		}
	}
	return false
}

// ObjInstance is an instance of a user type with its own field table.
type ObjInstance struct {
	Obj
	Type   *ObjType
	Fields Table
}

// ObjBoundMethod pairs a receiver with a method closure so methods read as
// properties can be called later.
type ObjBoundMethod struct {
	Obj
	Receiver Value
	Method   *ObjClosure
}

// ObjList is a mutable growable array.
type ObjList struct {
	Obj
	Items []Value
}

// ObjMap is a mutable hash map over Value keys.
type ObjMap struct {
	Obj
	Entries Table
}

// ObjFile wraps an open OS file handle. Closed is flipped by the close
// method; operations on a closed file are runtime errors.
type ObjFile struct {
	Obj
	Path   *ObjString
	Handle *os.File
	Closed bool
}

// ---------------------------------------------------------------------------
// Header casts
// ---------------------------------------------------------------------------

// The As* accessors cast a header pointer back to its concrete struct.
// They do not re-check Kind; callers test Kind (or use the Value helpers
// below) first.

func (o *Obj) AsString() *ObjString           { return (*ObjString)(unsafe.Pointer(o)) }
func (o *Obj) AsFunction() *ObjFunction       { return (*ObjFunction)(unsafe.Pointer(o)) }
func (o *Obj) AsClosure() *ObjClosure         { return (*ObjClosure)(unsafe.Pointer(o)) }
func (o *Obj) AsUpvalue() *ObjUpvalue         { return (*ObjUpvalue)(unsafe.Pointer(o)) }
func (o *Obj) AsNative() *ObjNative           { return (*ObjNative)(unsafe.Pointer(o)) }
func (o *Obj) AsBoundNative() *ObjBoundNative { return (*ObjBoundNative)(unsafe.Pointer(o)) }
func (o *Obj) AsType() *ObjType               { return (*ObjType)(unsafe.Pointer(o)) }
func (o *Obj) AsInstance() *ObjInstance       { return (*ObjInstance)(unsafe.Pointer(o)) }
func (o *Obj) AsBoundMethod() *ObjBoundMethod { return (*ObjBoundMethod)(unsafe.Pointer(o)) }
func (o *Obj) AsList() *ObjList               { return (*ObjList)(unsafe.Pointer(o)) }
func (o *Obj) AsMap() *ObjMap                 { return (*ObjMap)(unsafe.Pointer(o)) }
func (o *Obj) AsFile() *ObjFile               { return (*ObjFile)(unsafe.Pointer(o)) }

// ---------------------------------------------------------------------------
// Value-level helpers
// ---------------------------------------------------------------------------

func (v Value) isObjKind(k ObjKind) bool {
	return v.IsObj() && v.AsObj().Kind == k
}

func (v Value) IsString() bool   { return v.isObjKind(KindString) }
func (v Value) IsFunction() bool { return v.isObjKind(KindFunction) }
func (v Value) IsClosure() bool  { return v.isObjKind(KindClosure) }
func (v Value) IsType() bool     { return v.isObjKind(KindType) }
func (v Value) IsInstance() bool { return v.isObjKind(KindInstance) }
func (v Value) IsList() bool     { return v.isObjKind(KindList) }
func (v Value) IsMap() bool      { return v.isObjKind(KindMap) }
func (v Value) IsFile() bool     { return v.isObjKind(KindFile) }

func (v Value) AsString() *ObjString     { return v.AsObj().AsString() }
func (v Value) AsFunction() *ObjFunction { return v.AsObj().AsFunction() }
func (v Value) AsClosure() *ObjClosure   { return v.AsObj().AsClosure() }
func (v Value) AsType() *ObjType         { return v.AsObj().AsType() }
func (v Value) AsInstance() *ObjInstance { return v.AsObj().AsInstance() }
func (v Value) AsList() *ObjList         { return v.AsObj().AsList() }
func (v Value) AsMap() *ObjMap           { return v.AsObj().AsMap() }
func (v Value) AsFile() *ObjFile         { return v.AsObj().AsFile() }

// TypeName returns the user-visible type name of any value, used by the
// `is` native and error messages.
func (v Value) TypeName() string {
	switch {
	case v.IsNumber():
		return "number"
	case v.IsBool():
		return "bool"
	case v == Nil:
		return "nil"
	case v.IsObj():
		o := v.AsObj()
		if o.Kind == KindInstance {
			return o.AsInstance().Type.Name.Chars
		}
		return o.Kind.String()
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func (o *Obj) String() string {
	switch o.Kind {
	case KindString:
		return o.AsString().Chars
	case KindFunction:
		return o.AsFunction().describe()
	case KindClosure:
		return o.AsClosure().Function.describe()
	case KindUpvalue:
		return "<upvalue>"
	case KindNative:
		return fmt.Sprintf("<native fn %s>", o.AsNative().Name.Chars)
	case KindBoundNative:
		return fmt.Sprintf("<native fn %s>", o.AsBoundNative().Native.Name.Chars)
	case KindType:
		return fmt.Sprintf("<type %s>", o.AsType().Name.Chars)
	case KindInstance:
		return fmt.Sprintf("<%s instance>", o.AsInstance().Type.Name.Chars)
	case KindBoundMethod:
		return o.AsBoundMethod().Method.Function.describe()
	case KindList:
		return o.AsList().describe()
	case KindMap:
		return o.AsMap().describe()
	case KindFile:
		return fmt.Sprintf("<file %s>", o.AsFile().Path.Chars)
	default:
		return "<object>"
	}
}

func (f *ObjFunction) describe() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

func (l *ObjList) describe() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, it := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		if it.IsString() {
			fmt.Fprintf(&b, "%q", it.AsString().Chars)
		} else {
			b.WriteString(it.String())
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (m *ObjMap) describe() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, e := range m.Entries.entries {
		if e.key == Empty {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(e.key.String())
		b.WriteString(": ")
		b.WriteString(e.value.String())
	}
	b.WriteByte('}')
	return b.String()
}

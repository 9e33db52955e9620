// Package builtins installs the global native functions every interpreter
// instance starts with.
package builtins

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/mica/vm"
)

var processStart = time.Now()

// Register installs the standard natives on v. Call it once, after
// vm.New and before the first Interpret.
func Register(v *vm.VM) {
	v.DefineNative("print", vm.VariadicArity, nativePrint)
	v.DefineNative("println", vm.VariadicArity, nativePrintln)
	v.DefineNative("clock", 0, nativeClock)
	v.DefineNative("env", 1, nativeEnv)
	v.DefineNative("args", 0, nativeArgs)
	v.DefineNative("str", 1, nativeStr)
	v.DefineNative("number", 1, nativeNumber)
	v.DefineNative("bool", 1, nativeBool)
	v.DefineNative("list", 1, nativeList)
	v.DefineNative("map", 0, nativeMap)
	v.DefineNative("is", 2, nativeIs)
	v.DefineNative("has_field", 2, nativeHasField)
	v.DefineNative("get_field", 2, nativeGetField)
	v.DefineNative("set_field", 3, nativeSetField)
	v.DefineNative("open", vm.VariadicArity, nativeOpen)
}

// ---------------------------------------------------------------------------
// Output and process
// ---------------------------------------------------------------------------

func writeAll(v *vm.VM, args []vm.Value) {
	out := v.Stdout()
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(out, " ")
		}
		fmt.Fprint(out, a.String())
	}
}

func nativePrint(v *vm.VM, args []vm.Value) (vm.Value, error) {
	writeAll(v, args)
	return vm.Nil, nil
}

func nativePrintln(v *vm.VM, args []vm.Value) (vm.Value, error) {
	writeAll(v, args)
	fmt.Fprintln(v.Stdout())
	return vm.Nil, nil
}

// nativeClock reports seconds elapsed since process start, with
// sub-millisecond resolution from Go's monotonic clock.
func nativeClock(v *vm.VM, args []vm.Value) (vm.Value, error) {
	return vm.NumberValue(time.Since(processStart).Seconds()), nil
}

func nativeEnv(v *vm.VM, args []vm.Value) (vm.Value, error) {
	if !args[0].IsString() {
		return vm.Nil, fmt.Errorf("env: variable name must be a string")
	}
	value, ok := os.LookupEnv(args[0].AsString().Chars)
	if !ok {
		return vm.Nil, nil
	}
	return v.StringValue(value), nil
}

func nativeArgs(v *vm.VM, args []vm.Value) (vm.Value, error) {
	heap := v.Heap()
	items := make([]vm.Value, len(v.Args()))
	for i, a := range v.Args() {
		s := heap.InternString(a)
		heap.PushTempRoot(vm.ObjValue(&s.Obj))
		items[i] = vm.ObjValue(&s.Obj)
	}
	l := heap.NewList(items)
	for range items {
		heap.PopTempRoot()
	}
	return vm.ObjValue(&l.Obj), nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func nativeStr(v *vm.VM, args []vm.Value) (vm.Value, error) {
	if args[0].IsString() {
		return args[0], nil
	}
	return v.StringValue(args[0].String()), nil
}

// nativeNumber converts strings, booleans and numbers; anything else, and
// any unparseable string, yields nil rather than an error so scripts can
// probe with a nil check.
func nativeNumber(v *vm.VM, args []vm.Value) (vm.Value, error) {
	a := args[0]
	switch {
	case a.IsNumber():
		return a, nil
	case a == vm.True:
		return vm.NumberValue(1), nil
	case a == vm.False:
		return vm.NumberValue(0), nil
	case a.IsString():
		chars := a.AsString().Chars
		if n, ok := parsePrefixed(chars); ok {
			return vm.NumberValue(n), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(chars), 64)
		if err != nil {
			return vm.Nil, nil
		}
		return vm.NumberValue(f), nil
	}
	return vm.Nil, nil
}

// parsePrefixed handles the 0x/0b/0o integer forms number literals accept.
func parsePrefixed(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s[0] != '0' {
		return 0, false
	}
	var base int
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	default:
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], base, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

func nativeBool(v *vm.VM, args []vm.Value) (vm.Value, error) {
	return vm.BoolValue(args[0].IsTruthy()), nil
}

// nativeList builds a fresh list: a shallow copy of a list, the single
// character strings of a string, or the keys of a map.
func nativeList(v *vm.VM, args []vm.Value) (vm.Value, error) {
	heap := v.Heap()
	a := args[0]
	switch {
	case a.IsList():
		src := a.AsList()
		items := make([]vm.Value, len(src.Items))
		copy(items, src.Items)
		l := heap.NewList(items)
		return vm.ObjValue(&l.Obj), nil

	case a.IsString():
		chars := a.AsString().Chars
		items := make([]vm.Value, 0, len(chars))
		rooted := 0
		for _, r := range chars {
			s := heap.InternString(string(r))
			heap.PushTempRoot(vm.ObjValue(&s.Obj))
			rooted++
			items = append(items, vm.ObjValue(&s.Obj))
		}
		l := heap.NewList(items)
		for ; rooted > 0; rooted-- {
			heap.PopTempRoot()
		}
		return vm.ObjValue(&l.Obj), nil

	case a.IsMap():
		var items []vm.Value
		a.AsMap().Entries.Range(func(key, _ vm.Value) bool {
			items = append(items, key)
			return true
		})
		l := heap.NewList(items)
		return vm.ObjValue(&l.Obj), nil
	}
	return vm.Nil, fmt.Errorf("cannot convert %s to list", a.TypeName())
}

func nativeMap(v *vm.VM, args []vm.Value) (vm.Value, error) {
	m := v.Heap().NewMap()
	return vm.ObjValue(&m.Obj), nil
}

// ---------------------------------------------------------------------------
// Reflection
// ---------------------------------------------------------------------------

// nativeIs answers type membership. Against a type object it walks the
// ancestry of instances; against a string it compares the value's type
// name, which also covers primitives: is(1, "number").
func nativeIs(v *vm.VM, args []vm.Value) (vm.Value, error) {
	value, query := args[0], args[1]
	switch {
	case query.IsType():
		if !value.IsInstance() {
			return vm.False, nil
		}
		return vm.BoolValue(value.AsInstance().Type.HasAncestor(query.AsType())), nil
	case query.IsString():
		return vm.BoolValue(value.TypeName() == query.AsString().Chars), nil
	}
	return vm.Nil, fmt.Errorf("is: second argument must be a type or a string")
}

func instanceField(args []vm.Value, fn string) (*vm.ObjInstance, *vm.ObjString, error) {
	if !args[0].IsInstance() {
		return nil, nil, fmt.Errorf("%s: first argument must be an instance, got %s", fn, args[0].TypeName())
	}
	if !args[1].IsString() {
		return nil, nil, fmt.Errorf("%s: field name must be a string", fn)
	}
	return args[0].AsInstance(), args[1].AsString(), nil
}

func nativeHasField(v *vm.VM, args []vm.Value) (vm.Value, error) {
	inst, name, err := instanceField(args, "has_field")
	if err != nil {
		return vm.Nil, err
	}
	_, ok := inst.Fields.Get(vm.ObjValue(&name.Obj))
	return vm.BoolValue(ok), nil
}

func nativeGetField(v *vm.VM, args []vm.Value) (vm.Value, error) {
	inst, name, err := instanceField(args, "get_field")
	if err != nil {
		return vm.Nil, err
	}
	value, ok := inst.Fields.Get(vm.ObjValue(&name.Obj))
	if !ok {
		return vm.Nil, fmt.Errorf("undefined field '%s'", name.Chars)
	}
	return value, nil
}

func nativeSetField(v *vm.VM, args []vm.Value) (vm.Value, error) {
	inst, name, err := instanceField(args, "set_field")
	if err != nil {
		return vm.Nil, err
	}
	inst.Fields.Set(vm.ObjValue(&name.Obj), args[2])
	return args[2], nil
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// nativeOpen opens a file for reading ("r", the default), truncating
// write ("w") or append ("a").
func nativeOpen(v *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return vm.Nil, fmt.Errorf("open: expected 1 or 2 arguments, got %d", len(args))
	}
	if !args[0].IsString() {
		return vm.Nil, fmt.Errorf("open: path must be a string")
	}
	mode := "r"
	if len(args) == 2 {
		if !args[1].IsString() {
			return vm.Nil, fmt.Errorf("open: mode must be a string")
		}
		mode = args[1].AsString().Chars
	}

	var flags int
	switch mode {
	case "r":
		flags = os.O_RDONLY
	case "w":
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a":
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return vm.Nil, fmt.Errorf("open: invalid mode %q", mode)
	}

	path := args[0].AsString()
	handle, err := os.OpenFile(path.Chars, flags, 0o644)
	if err != nil {
		return vm.Nil, fmt.Errorf("open: %w", err)
	}
	f := v.Heap().NewFile(path, handle)
	return vm.ObjValue(&f.Obj), nil
}

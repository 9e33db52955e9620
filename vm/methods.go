package vm

import (
	"fmt"
	"io"
	"strings"
)

// registerCoreMethods installs the native method tables for the built-in
// receiver kinds. Every table registers "subscript": the compiler lowers
// a[i] to invoking it with one argument and a[i] = v to invoking it with
// two, so user types can hook the same syntax by defining a subscript
// method.
func registerCoreMethods(v *VM) {
	registerStringMethods(v)
	registerListMethods(v)
	registerMapMethods(v)
	registerFileMethods(v)
}

// normalizeIndex converts a possibly negative index to an absolute one,
// rejecting fractional and out-of-range values.
func normalizeIndex(val Value, length int) (int, error) {
	if !val.IsNumber() {
		return 0, fmt.Errorf("index must be a number, not %s", val.TypeName())
	}
	f := val.AsNumber()
	i := int(f)
	if float64(i) != f {
		return 0, fmt.Errorf("index must be a whole number")
	}
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, fmt.Errorf("index %d out of range for length %d", int(f), length)
	}
	return i, nil
}

// ---------------------------------------------------------------------------
// string
// ---------------------------------------------------------------------------

func registerStringMethods(v *VM) {
	reg := func(name string, arity int, fn NativeFn) {
		v.RegisterMethod(KindString, name, arity, fn)
	}

	reg("len", 0, func(v *VM, args []Value) (Value, error) {
		return NumberValue(float64(len(args[0].AsString().Chars))), nil
	})

	reg("subscript", VariadicArity, func(v *VM, args []Value) (Value, error) {
		s := args[0].AsString().Chars
		if len(args) != 2 {
			return Nil, fmt.Errorf("strings are immutable")
		}
		i, err := normalizeIndex(args[1], len(s))
		if err != nil {
			return Nil, err
		}
		return v.StringValue(s[i : i+1]), nil
	})

	reg("upper", 0, func(v *VM, args []Value) (Value, error) {
		return v.StringValue(strings.ToUpper(args[0].AsString().Chars)), nil
	})

	reg("lower", 0, func(v *VM, args []Value) (Value, error) {
		return v.StringValue(strings.ToLower(args[0].AsString().Chars)), nil
	})

	reg("trim", 0, func(v *VM, args []Value) (Value, error) {
		return v.StringValue(strings.TrimSpace(args[0].AsString().Chars)), nil
	})

	reg("contains", 1, func(v *VM, args []Value) (Value, error) {
		if !args[1].IsString() {
			return Nil, fmt.Errorf("contains expects a string argument")
		}
		return BoolValue(strings.Contains(args[0].AsString().Chars, args[1].AsString().Chars)), nil
	})

	reg("split", 1, func(v *VM, args []Value) (Value, error) {
		if !args[1].IsString() {
			return Nil, fmt.Errorf("split expects a string separator")
		}
		parts := strings.Split(args[0].AsString().Chars, args[1].AsString().Chars)
		items := make([]Value, len(parts))
		for i, p := range parts {
			s := v.heap.InternString(p)
			items[i] = ObjValue(&s.Obj)
			v.heap.PushTempRoot(items[i])
		}
		list := v.heap.NewList(items)
		for range parts {
			v.heap.PopTempRoot()
		}
		return ObjValue(&list.Obj), nil
	})
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func registerListMethods(v *VM) {
	reg := func(name string, arity int, fn NativeFn) {
		v.RegisterMethod(KindList, name, arity, fn)
	}

	reg("len", 0, func(v *VM, args []Value) (Value, error) {
		return NumberValue(float64(len(args[0].AsList().Items))), nil
	})

	reg("push", 1, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		l.Items = append(l.Items, args[1])
		return args[0], nil
	})

	reg("pop", 0, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		if len(l.Items) == 0 {
			return Nil, fmt.Errorf("pop from empty list")
		}
		last := l.Items[len(l.Items)-1]
		l.Items = l.Items[:len(l.Items)-1]
		return last, nil
	})

	reg("get", 1, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		i, err := normalizeIndex(args[1], len(l.Items))
		if err != nil {
			return Nil, err
		}
		return l.Items[i], nil
	})

	reg("set", 2, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		i, err := normalizeIndex(args[1], len(l.Items))
		if err != nil {
			return Nil, err
		}
		l.Items[i] = args[2]
		return args[2], nil
	})

	reg("remove", 1, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		i, err := normalizeIndex(args[1], len(l.Items))
		if err != nil {
			return Nil, err
		}
		removed := l.Items[i]
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		return removed, nil
	})

	reg("insert", 2, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		// Inserting at len() appends, so normalize against length+1.
		i, err := normalizeIndex(args[1], len(l.Items)+1)
		if err != nil {
			return Nil, err
		}
		l.Items = append(l.Items, Nil)
		copy(l.Items[i+1:], l.Items[i:])
		l.Items[i] = args[2]
		return args[0], nil
	})

	reg("clear", 0, func(v *VM, args []Value) (Value, error) {
		args[0].AsList().Items = args[0].AsList().Items[:0]
		return args[0], nil
	})

	reg("contains", 1, func(v *VM, args []Value) (Value, error) {
		for _, it := range args[0].AsList().Items {
			if it.Equals(args[1]) {
				return True, nil
			}
		}
		return False, nil
	})

	reg("subscript", VariadicArity, func(v *VM, args []Value) (Value, error) {
		l := args[0].AsList()
		switch len(args) {
		case 2:
			i, err := normalizeIndex(args[1], len(l.Items))
			if err != nil {
				return Nil, err
			}
			return l.Items[i], nil
		case 3:
			i, err := normalizeIndex(args[1], len(l.Items))
			if err != nil {
				return Nil, err
			}
			l.Items[i] = args[2]
			return args[2], nil
		default:
			return Nil, fmt.Errorf("subscript expects 1 or 2 arguments")
		}
	})
}

// ---------------------------------------------------------------------------
// map
// ---------------------------------------------------------------------------

func registerMapMethods(v *VM) {
	reg := func(name string, arity int, fn NativeFn) {
		v.RegisterMethod(KindMap, name, arity, fn)
	}

	reg("len", 0, func(v *VM, args []Value) (Value, error) {
		return NumberValue(float64(args[0].AsMap().Entries.Len())), nil
	})

	reg("get", 1, func(v *VM, args []Value) (Value, error) {
		if err := checkMapKey(args[1]); err != nil {
			return Nil, err
		}
		val, _ := args[0].AsMap().Entries.Get(args[1])
		return val, nil
	})

	reg("set", 2, func(v *VM, args []Value) (Value, error) {
		if err := checkMapKey(args[1]); err != nil {
			return Nil, err
		}
		args[0].AsMap().Entries.Set(args[1], args[2])
		return args[2], nil
	})

	reg("has", 1, func(v *VM, args []Value) (Value, error) {
		if err := checkMapKey(args[1]); err != nil {
			return Nil, err
		}
		_, ok := args[0].AsMap().Entries.Get(args[1])
		return BoolValue(ok), nil
	})

	reg("remove", 1, func(v *VM, args []Value) (Value, error) {
		if err := checkMapKey(args[1]); err != nil {
			return Nil, err
		}
		return BoolValue(args[0].AsMap().Entries.Delete(args[1])), nil
	})

	reg("keys", 0, func(v *VM, args []Value) (Value, error) {
		var items []Value
		args[0].AsMap().Entries.Range(func(key, _ Value) bool {
			items = append(items, key)
			return true
		})
		list := v.heap.NewList(items)
		return ObjValue(&list.Obj), nil
	})

	reg("values", 0, func(v *VM, args []Value) (Value, error) {
		var items []Value
		args[0].AsMap().Entries.Range(func(_, value Value) bool {
			items = append(items, value)
			return true
		})
		list := v.heap.NewList(items)
		return ObjValue(&list.Obj), nil
	})

	reg("subscript", VariadicArity, func(v *VM, args []Value) (Value, error) {
		m := args[0].AsMap()
		if err := checkMapKey(args[1]); err != nil {
			return Nil, err
		}
		switch len(args) {
		case 2:
			val, _ := m.Entries.Get(args[1])
			return val, nil
		case 3:
			m.Entries.Set(args[1], args[2])
			return args[2], nil
		default:
			return Nil, fmt.Errorf("subscript expects 1 or 2 arguments")
		}
	})
}

// ---------------------------------------------------------------------------
// file
// ---------------------------------------------------------------------------

func checkOpen(f *ObjFile) error {
	if f.Closed || f.Handle == nil {
		return fmt.Errorf("file %s is closed", f.Path.Chars)
	}
	return nil
}

func registerFileMethods(v *VM) {
	reg := func(name string, arity int, fn NativeFn) {
		v.RegisterMethod(KindFile, name, arity, fn)
	}

	reg("read", 0, func(v *VM, args []Value) (Value, error) {
		f := args[0].AsFile()
		if err := checkOpen(f); err != nil {
			return Nil, err
		}
		data, err := io.ReadAll(f.Handle)
		if err != nil {
			return Nil, fmt.Errorf("read %s: %w", f.Path.Chars, err)
		}
		return v.StringValue(string(data)), nil
	})

	reg("write", 1, func(v *VM, args []Value) (Value, error) {
		f := args[0].AsFile()
		if err := checkOpen(f); err != nil {
			return Nil, err
		}
		if !args[1].IsString() {
			return Nil, fmt.Errorf("write expects a string")
		}
		n, err := f.Handle.WriteString(args[1].AsString().Chars)
		if err != nil {
			return Nil, fmt.Errorf("write %s: %w", f.Path.Chars, err)
		}
		return NumberValue(float64(n)), nil
	})

	reg("lines", 0, func(v *VM, args []Value) (Value, error) {
		f := args[0].AsFile()
		if err := checkOpen(f); err != nil {
			return Nil, err
		}
		data, err := io.ReadAll(f.Handle)
		if err != nil {
			return Nil, fmt.Errorf("read %s: %w", f.Path.Chars, err)
		}
		text := strings.TrimSuffix(string(data), "\n")
		var parts []string
		if text != "" {
			parts = strings.Split(text, "\n")
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			s := v.heap.InternString(p)
			items[i] = ObjValue(&s.Obj)
			v.heap.PushTempRoot(items[i])
		}
		list := v.heap.NewList(items)
		for range parts {
			v.heap.PopTempRoot()
		}
		return ObjValue(&list.Obj), nil
	})

	reg("close", 0, func(v *VM, args []Value) (Value, error) {
		f := args[0].AsFile()
		if f.Closed {
			return Nil, nil
		}
		f.Closed = true
		if f.Handle != nil {
			if err := f.Handle.Close(); err != nil {
				return Nil, fmt.Errorf("close %s: %w", f.Path.Chars, err)
			}
		}
		return Nil, nil
	})
}

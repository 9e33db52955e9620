package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("mica.vm")

const (
	// FramesMax bounds call depth.
	FramesMax = 64
	// StackMax is the operand stack size: one 256-slot window per frame.
	StackMax = FramesMax * 256
)

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the stack index of slot zero (the callee).
type CallFrame struct {
	closure *ObjClosure
	ip      int
	slots   int
}

// CompileFn turns source text into a top-level function, allocating on the
// given heap. The compiler package provides one; the VM stays importable
// without it.
type CompileFn func(source string, heap *Heap) (*ObjFunction, error)

// VM executes compiled bytecode. All interpreter state lives here; two VMs
// share nothing and may run side by side.
type VM struct {
	heap *Heap

	stack    [StackMax]Value
	stackTop int

	frames     [FramesMax]CallFrame
	frameCount int

	globals      Table
	openUpvalues *ObjUpvalue // sorted by Slot, innermost (highest) first
	initString   *ObjString

	// nativeMethods holds built-in method tables keyed by receiver kind.
	nativeMethods map[ObjKind]*Table

	compile CompileFn

	stdout     io.Writer
	args       []string
	exitStatus int

	// Trace logs every instruction and the stack before it executes.
	Trace bool
}

// New creates a VM with its own heap, no globals, and no compiler wired.
func New() *VM {
	v := &VM{
		heap:   newHeap(),
		stdout: os.Stdout,
		nativeMethods: map[ObjKind]*Table{
			KindString: {},
			KindList:   {},
			KindMap:    {},
			KindFile:   {},
		},
	}
	v.heap.vm = v
	v.initString = v.heap.InternString("init")
	registerCoreMethods(v)
	return v
}

// Heap exposes the VM's heap for the compiler and native registration.
func (v *VM) Heap() *Heap {
	return v.heap
}

// UseCompiler wires the compile function used by Interpret.
func (v *VM) UseCompiler(fn CompileFn) {
	v.compile = fn
}

// SetStdout redirects the print natives, mainly for tests.
func (v *VM) SetStdout(w io.Writer) {
	v.stdout = w
}

// Stdout returns the writer the print natives use.
func (v *VM) Stdout() io.Writer {
	return v.stdout
}

// SetArgs provides the script-visible argument list.
func (v *VM) SetArgs(args []string) {
	v.args = args
}

// Args returns the script-visible argument list.
func (v *VM) Args() []string {
	return v.args
}

// DefineNative registers a host function as a global. Arity is the exact
// argument count, or VariadicArity.
func (v *VM) DefineNative(name string, arity int, fn NativeFn) {
	n := v.heap.NewNative(name, arity, fn)
	v.heap.PushTempRoot(ObjValue(&n.Obj))
	v.globals.Set(ObjValue(&n.Name.Obj), ObjValue(&n.Obj))
	v.heap.PopTempRoot()
}

// RegisterMethod attaches a native method to a built-in receiver kind.
// Arity counts call arguments only; the receiver is passed as args[0].
func (v *VM) RegisterMethod(kind ObjKind, name string, arity int, fn NativeFn) {
	table, ok := v.nativeMethods[kind]
	if !ok {
		panic(fmt.Sprintf("vm: no native method table for kind %v", kind))
	}
	n := v.heap.NewNative(name, arity, fn)
	v.heap.PushTempRoot(ObjValue(&n.Obj))
	table.Set(ObjValue(&n.Name.Obj), ObjValue(&n.Obj))
	v.heap.PopTempRoot()
}

// DefineGlobal public-registers an arbitrary value, for host embedding.
func (v *VM) DefineGlobal(name string, value Value) {
	s := v.heap.InternString(name)
	v.heap.PushTempRoot(ObjValue(&s.Obj))
	v.heap.PushTempRoot(value)
	v.globals.Set(ObjValue(&s.Obj), value)
	v.heap.PopTempRoot()
	v.heap.PopTempRoot()
}

// StringValue interns chars and returns it boxed. The common constructor
// for natives producing strings.
func (v *VM) StringValue(chars string) Value {
	s := v.heap.InternString(chars)
	return ObjValue(&s.Obj)
}

// GetGlobal fetches a global by name, for host embedding and tests.
func (v *VM) GetGlobal(name string) (Value, bool) {
	s := v.heap.InternString(name)
	return v.globals.Get(ObjValue(&s.Obj))
}

// ---------------------------------------------------------------------------
// Interpretation entry points
// ---------------------------------------------------------------------------

// Interpret compiles and runs source. The returned error is non-nil
// exactly for the compile-error and runtime-error results; exit results
// carry their status in ExitStatus.
func (v *VM) Interpret(source string) (InterpretResult, error) {
	if v.compile == nil {
		return ResultCompileError, fmt.Errorf("vm: no compiler wired")
	}
	fn, err := v.compile(source, v.heap)
	if err != nil {
		return ResultCompileError, err
	}
	return v.RunFunction(fn)
}

// RunFunction executes an already-compiled top-level function.
func (v *VM) RunFunction(fn *ObjFunction) (InterpretResult, error) {
	v.push(ObjValue(&fn.Obj))
	closure := v.heap.NewClosure(fn)
	v.pop()
	v.push(ObjValue(&closure.Obj))
	if err := v.call(closure, 0); err != nil {
		return ResultRuntimeError, v.finishError(err)
	}
	return v.run()
}

// ExitStatus returns the status code of the last exit result.
func (v *VM) ExitStatus() int {
	return v.exitStatus
}

// ---------------------------------------------------------------------------
// Stack primitives
// ---------------------------------------------------------------------------

func (v *VM) push(val Value) {
	v.stack[v.stackTop] = val
	v.stackTop++
}

func (v *VM) pop() Value {
	v.stackTop--
	return v.stack[v.stackTop]
}

func (v *VM) peek(distance int) Value {
	return v.stack[v.stackTop-1-distance]
}

func (v *VM) resetStack() {
	v.stackTop = 0
	v.frameCount = 0
	v.openUpvalues = nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// runtimeError builds a RuntimeError with a traceback over the live
// frames, innermost first.
func (v *VM) runtimeError(format string, args ...any) error {
	e := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := v.frameCount - 1; i >= 0; i-- {
		frame := &v.frames[i]
		fn := frame.closure.Function
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		// ip points past the executing instruction.
		e.Traceback = append(e.Traceback, TracebackFrame{
			Function: name,
			Line:     fn.Chunk.GetLine(frame.ip - 1),
		})
	}
	return e
}

// finishError resets interpreter state after a runtime error so the VM can
// be reused (the REPL relies on this).
func (v *VM) finishError(err error) error {
	v.resetStack()
	return err
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (v *VM) call(closure *ObjClosure, argc int) error {
	fn := closure.Function
	if argc != fn.Arity {
		return v.runtimeError("expected %d arguments but got %d", fn.Arity, argc)
	}
	if v.frameCount == FramesMax {
		return v.runtimeError("stack overflow")
	}
	frame := &v.frames[v.frameCount]
	v.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slots = v.stackTop - argc - 1
	return nil
}

func (v *VM) callNative(native *ObjNative, argc int, withReceiver bool) error {
	want := native.Arity
	nargs := argc
	base := v.stackTop - argc
	if withReceiver {
		// Receiver sits in the callee slot, directly below the arguments.
		nargs++
		base--
	}
	if want != VariadicArity && argc != want {
		return v.runtimeError("%s: expected %d arguments but got %d", native.Name.Chars, want, argc)
	}
	args := v.stack[base : base+nargs]
	result, err := native.Fn(v, args)
	if err != nil {
		return v.runtimeError("%s", err.Error())
	}
	v.stackTop = v.stackTop - argc - 1
	v.push(result)
	return nil
}

func (v *VM) callValue(callee Value, argc int) error {
	if callee.IsObj() {
		switch o := callee.AsObj(); o.Kind {
		case KindClosure:
			return v.call(o.AsClosure(), argc)
		case KindNative:
			return v.callNative(o.AsNative(), argc, false)
		case KindBoundNative:
			b := o.AsBoundNative()
			v.stack[v.stackTop-argc-1] = b.Receiver
			return v.callNative(b.Native, argc, true)
		case KindBoundMethod:
			b := o.AsBoundMethod()
			v.stack[v.stackTop-argc-1] = b.Receiver
			return v.call(b.Method, argc)
		case KindType:
			t := o.AsType()
			inst := v.heap.NewInstance(t)
			v.stack[v.stackTop-argc-1] = ObjValue(&inst.Obj)
			if init, ok := t.Methods.Get(ObjValue(&v.initString.Obj)); ok {
				return v.call(init.AsClosure(), argc)
			}
			if argc != 0 {
				return v.runtimeError("expected 0 arguments but got %d", argc)
			}
			return nil
		}
	}
	return v.runtimeError("can only call functions and types, not %s", callee.TypeName())
}

// invoke handles the fused property-access-and-call instruction.
func (v *VM) invoke(name *ObjString, argc int) error {
	receiver := v.peek(argc)
	nameVal := ObjValue(&name.Obj)

	if receiver.IsInstance() {
		inst := receiver.AsInstance()
		// A field holding a callable shadows any method of the same name.
		if field, ok := inst.Fields.Get(nameVal); ok {
			v.stack[v.stackTop-argc-1] = field
			return v.callValue(field, argc)
		}
		return v.invokeFromType(inst.Type, name, argc)
	}

	if receiver.IsObj() {
		if table, ok := v.nativeMethods[receiver.AsObj().Kind]; ok {
			if m, ok := table.Get(nameVal); ok {
				return v.callNative(m.AsObj().AsNative(), argc, true)
			}
		}
	}
	return v.runtimeError("%s has no method '%s'", receiver.TypeName(), name.Chars)
}

func (v *VM) invokeFromType(t *ObjType, name *ObjString, argc int) error {
	method, ok := t.Methods.Get(ObjValue(&name.Obj))
	if !ok {
		return v.runtimeError("undefined property '%s'", name.Chars)
	}
	return v.call(method.AsClosure(), argc)
}

// bindMethod replaces the receiver on top of the stack with a bound method
// from t's table. Used by property reads that find no field.
func (v *VM) bindMethod(t *ObjType, name *ObjString) error {
	method, ok := t.Methods.Get(ObjValue(&name.Obj))
	if !ok {
		return v.runtimeError("undefined property '%s'", name.Chars)
	}
	bound := v.heap.NewBoundMethod(v.peek(0), method.AsClosure())
	v.pop()
	v.push(ObjValue(&bound.Obj))
	return nil
}

// bindNativeMethod does the same for built-in receiver kinds.
func (v *VM) bindNativeMethod(receiver Value, name *ObjString) (bool, error) {
	table, ok := v.nativeMethods[receiver.AsObj().Kind]
	if !ok {
		return false, nil
	}
	m, ok := table.Get(ObjValue(&name.Obj))
	if !ok {
		return false, nil
	}
	bound := v.heap.NewBoundNative(receiver, m.AsObj().AsNative())
	v.pop()
	v.push(ObjValue(&bound.Obj))
	return true, nil
}

// ---------------------------------------------------------------------------
// Upvalues
// ---------------------------------------------------------------------------

// captureUpvalue finds or creates the open upvalue for a stack slot. The
// open list is kept sorted by slot, innermost first, and never holds two
// entries for one slot.
func (v *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	u := v.openUpvalues
	for u != nil && u.Slot > slot {
		prev = u
		u = u.NextOpen
	}
	if u != nil && u.Slot == slot {
		return u
	}
	created := v.heap.NewUpvalue(&v.stack[slot], slot)
	created.NextOpen = u
	if prev == nil {
		v.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given slot.
func (v *VM) closeUpvalues(fromSlot int) {
	for v.openUpvalues != nil && v.openUpvalues.Slot >= fromSlot {
		u := v.openUpvalues
		u.Close()
		v.openUpvalues = u.NextOpen
		u.NextOpen = nil
	}
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

func (v *VM) run() (InterpretResult, error) {
	frame := &v.frames[v.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int16 {
		hi := readByte()
		lo := readByte()
		return int16(uint16(hi)<<8 | uint16(lo))
	}
	readConstant := func() Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *ObjString {
		return readConstant().AsString()
	}

	for {
		// No single instruction pushes more than two values, so this one
		// check bounds every push below.
		if v.stackTop+2 > StackMax {
			return v.abort("stack overflow")
		}
		if v.Trace {
			v.traceInstruction(frame)
		}
		op := Opcode(readByte())
		switch op {
		case OpNop:

		case OpPop:
			v.pop()

		case OpPopN:
			v.stackTop -= int(readByte())

		case OpDup:
			v.push(v.peek(0))

		case OpDup2:
			second, top := v.peek(1), v.peek(0)
			v.push(second)
			v.push(top)

		case OpConstant:
			v.push(readConstant())

		case OpNil:
			v.push(Nil)

		case OpTrue:
			v.push(True)

		case OpFalse:
			v.push(False)

		case OpGetLocal:
			v.push(v.stack[frame.slots+int(readByte())])

		case OpSetLocal:
			v.stack[frame.slots+int(readByte())] = v.peek(0)

		case OpGetGlobal:
			name := readString()
			val, ok := v.globals.Get(ObjValue(&name.Obj))
			if !ok {
				return v.abort("undefined variable '%s'", name.Chars)
			}
			v.push(val)

		case OpDefineGlobal:
			name := readString()
			v.globals.Set(ObjValue(&name.Obj), v.peek(0))
			v.pop()

		case OpSetGlobal:
			name := readString()
			if v.globals.Set(ObjValue(&name.Obj), v.peek(0)) {
				v.globals.Delete(ObjValue(&name.Obj))
				return v.abort("undefined variable '%s'", name.Chars)
			}

		case OpGetUpvalue:
			v.push(*frame.closure.Upvalues[readByte()].Location)

		case OpSetUpvalue:
			*frame.closure.Upvalues[readByte()].Location = v.peek(0)

		case OpGetProperty:
			name := readString()
			receiver := v.peek(0)
			if receiver.IsInstance() {
				inst := receiver.AsInstance()
				if val, ok := inst.Fields.Get(ObjValue(&name.Obj)); ok {
					v.pop()
					v.push(val)
					break
				}
				if err := v.bindMethod(inst.Type, name); err != nil {
					return v.abortErr(err)
				}
				break
			}
			if receiver.IsObj() {
				bound, err := v.bindNativeMethod(receiver, name)
				if err != nil {
					return v.abortErr(err)
				}
				if bound {
					break
				}
			}
			return v.abort("%s has no property '%s'", receiver.TypeName(), name.Chars)

		case OpSetProperty:
			name := readString()
			receiver := v.peek(1)
			if !receiver.IsInstance() {
				return v.abort("only instances have fields, not %s", receiver.TypeName())
			}
			inst := receiver.AsInstance()
			inst.Fields.Set(ObjValue(&name.Obj), v.peek(0))
			val := v.pop()
			v.pop()
			v.push(val)

		case OpGetSuper:
			name := readString()
			super := v.pop().AsType()
			if err := v.bindMethod(super, name); err != nil {
				return v.abortErr(err)
			}

		case OpAdd:
			b, a := v.peek(0), v.peek(1)
			switch {
			case a.IsNumber() && b.IsNumber():
				v.pop()
				v.pop()
				v.push(NumberValue(a.AsNumber() + b.AsNumber()))
			case a.IsString() && b.IsString():
				s := v.heap.InternString(a.AsString().Chars + b.AsString().Chars)
				v.pop()
				v.pop()
				v.push(ObjValue(&s.Obj))
			default:
				return v.abort("operands must be two numbers or two strings")
			}

		case OpSubtract, OpMultiply, OpDivide, OpModulo:
			if err := v.binaryNumeric(op); err != nil {
				return v.abortErr(err)
			}

		case OpNegate:
			if !v.peek(0).IsNumber() {
				return v.abort("operand must be a number")
			}
			v.push(NumberValue(-v.pop().AsNumber()))

		case OpBitAnd, OpBitOr, OpBitXor, OpShiftLeft, OpShiftRight:
			if err := v.binaryBitwise(op); err != nil {
				return v.abortErr(err)
			}

		case OpBitNot:
			if !v.peek(0).IsNumber() {
				return v.abort("operand must be a number")
			}
			v.push(NumberValue(float64(^int64(v.pop().AsNumber()))))

		case OpEqual:
			b, a := v.pop(), v.pop()
			v.push(BoolValue(a.Equals(b)))

		case OpNotEqual:
			b, a := v.pop(), v.pop()
			v.push(BoolValue(!a.Equals(b)))

		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			if err := v.binaryCompare(op); err != nil {
				return v.abortErr(err)
			}

		case OpNot:
			v.push(BoolValue(v.pop().IsFalsy()))

		case OpJump, OpLoop:
			frame.ip += int(readShort())

		case OpJumpIfFalse:
			offset := int(readShort())
			if v.peek(0).IsFalsy() {
				frame.ip += offset
			}

		case OpJumpIfTrue:
			offset := int(readShort())
			if v.peek(0).IsTruthy() {
				frame.ip += offset
			}

		case OpCall:
			argc := int(readByte())
			if err := v.callValue(v.peek(argc), argc); err != nil {
				return v.abortErr(err)
			}
			frame = &v.frames[v.frameCount-1]

		case OpInvoke:
			name := readString()
			argc := int(readByte())
			if err := v.invoke(name, argc); err != nil {
				return v.abortErr(err)
			}
			frame = &v.frames[v.frameCount-1]

		case OpSuperInvoke:
			name := readString()
			argc := int(readByte())
			super := v.pop().AsType()
			if err := v.invokeFromType(super, name, argc); err != nil {
				return v.abortErr(err)
			}
			frame = &v.frames[v.frameCount-1]

		case OpClosure:
			fn := readConstant().AsFunction()
			closure := v.heap.NewClosure(fn)
			v.push(ObjValue(&closure.Obj))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = v.captureUpvalue(frame.slots + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			v.closeUpvalues(v.stackTop - 1)
			v.pop()

		case OpReturn:
			result := v.pop()
			v.closeUpvalues(frame.slots)
			v.frameCount--
			if v.frameCount == 0 {
				v.pop()
				return ResultOK, nil
			}
			v.stackTop = frame.slots
			v.push(result)
			frame = &v.frames[v.frameCount-1]

		case OpExit:
			status := v.pop()
			if !status.IsNumber() {
				return v.abort("exit status must be a number, not %s", status.TypeName())
			}
			v.exitStatus = int(status.AsNumber())
			v.resetStack()
			if v.exitStatus == 0 {
				return ResultExitOK, nil
			}
			return ResultExitError, nil

		case OpType:
			name := readString()
			t := v.heap.NewType(name)
			v.push(ObjValue(&t.Obj))

		case OpInherit:
			superVal := v.peek(1)
			if !superVal.IsType() {
				return v.abort("supertype must be a type, not %s", superVal.TypeName())
			}
			super := superVal.AsType()
			sub := v.peek(0).AsType()
			sub.Methods.AddAll(&super.Methods)
			sub.FieldDefaults.AddAll(&super.FieldDefaults)
			sub.Super = super
			sub.MRO = append([]*ObjType{sub}, super.MRO...)
			v.pop()

		case OpMethod:
			name := readString()
			method := v.peek(0)
			t := v.peek(1).AsType()
			t.Methods.Set(ObjValue(&name.Obj), method)
			v.pop()

		case OpField:
			name := readString()
			value := v.peek(0)
			t := v.peek(1).AsType()
			t.FieldDefaults.Set(ObjValue(&name.Obj), value)
			v.pop()

		case OpBuildList:
			n := int(readByte())
			items := make([]Value, n)
			copy(items, v.stack[v.stackTop-n:v.stackTop])
			list := v.heap.NewList(items)
			v.stackTop -= n
			v.push(ObjValue(&list.Obj))

		case OpBuildMap:
			n := int(readByte())
			m := v.heap.NewMap()
			base := v.stackTop - 2*n
			for i := 0; i < n; i++ {
				key := v.stack[base+2*i]
				if err := checkMapKey(key); err != nil {
					return v.abortErr(v.runtimeError("%s", err.Error()))
				}
				m.Entries.Set(key, v.stack[base+2*i+1])
			}
			v.stackTop = base
			v.push(ObjValue(&m.Obj))

		default:
			return v.abort("unknown opcode 0x%02X", byte(op))
		}
	}
}

// abort raises a runtime error and resets the stack.
func (v *VM) abort(format string, args ...any) (InterpretResult, error) {
	return v.abortErr(v.runtimeError(format, args...))
}

func (v *VM) abortErr(err error) (InterpretResult, error) {
	return ResultRuntimeError, v.finishError(err)
}

// ---------------------------------------------------------------------------
// Numeric helpers
// ---------------------------------------------------------------------------

func (v *VM) binaryNumeric(op Opcode) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return v.runtimeError("operands must be numbers")
	}
	b := v.pop().AsNumber()
	a := v.pop().AsNumber()
	var r float64
	switch op {
	case OpSubtract:
		r = a - b
	case OpMultiply:
		r = a * b
	case OpDivide:
		if b == 0 {
			return v.runtimeError("division by zero")
		}
		r = a / b
	case OpModulo:
		if b == 0 {
			return v.runtimeError("division by zero")
		}
		r = math.Mod(a, b)
	}
	v.push(NumberValue(r))
	return nil
}

// binaryBitwise truncates both operands to 64-bit integers, applies the
// operation, and converts back to a double.
func (v *VM) binaryBitwise(op Opcode) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return v.runtimeError("operands must be numbers")
	}
	b := int64(v.pop().AsNumber())
	a := int64(v.pop().AsNumber())
	var r int64
	switch op {
	case OpBitAnd:
		r = a & b
	case OpBitOr:
		r = a | b
	case OpBitXor:
		r = a ^ b
	case OpShiftLeft:
		if b < 0 || b > 63 {
			return v.runtimeError("shift count out of range")
		}
		r = a << uint(b)
	case OpShiftRight:
		if b < 0 || b > 63 {
			return v.runtimeError("shift count out of range")
		}
		r = a >> uint(b)
	}
	v.push(NumberValue(float64(r)))
	return nil
}

func (v *VM) binaryCompare(op Opcode) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return v.runtimeError("operands must be numbers")
	}
	b := v.pop().AsNumber()
	a := v.pop().AsNumber()
	var r bool
	switch op {
	case OpLess:
		r = a < b
	case OpLessEqual:
		r = a <= b
	case OpGreater:
		r = a > b
	case OpGreaterEqual:
		r = a >= b
	}
	v.push(BoolValue(r))
	return nil
}

// checkMapKey restricts map keys to values whose equality is well defined
// under table probing.
func checkMapKey(key Value) error {
	if key.IsNumber() || key.IsBool() || key.IsNil() || key.IsString() {
		return nil
	}
	return fmt.Errorf("map keys must be strings, numbers, bools or nil, not %s", key.TypeName())
}

// traceInstruction logs the stack and the next instruction.
func (v *VM) traceInstruction(frame *CallFrame) {
	var stack string
	for i := 0; i < v.stackTop; i++ {
		stack += fmt.Sprintf("[ %s ]", v.stack[i].String())
	}
	listing, _ := DisassembleInstruction(&frame.closure.Function.Chunk, frame.ip)
	vmLog.Debugf("%-40s %s", listing, stack)
}

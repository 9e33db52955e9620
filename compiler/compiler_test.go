package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/mica/vm"
)

func compile(t *testing.T, source string) *vm.ObjFunction {
	t.Helper()
	fn, err := Compile(source, vm.New().Heap())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return fn
}

func compileErrors(t *testing.T, source string) ErrorList {
	t.Helper()
	fn, err := Compile(source, vm.New().Heap())
	if err == nil {
		t.Fatalf("Compile succeeded (%v), want errors", fn)
	}
	list, ok := err.(ErrorList)
	if !ok {
		t.Fatalf("error is %T, want ErrorList", err)
	}
	return list
}

func TestCompileEmptyScript(t *testing.T) {
	fn := compile(t, "")
	if fn.Name != nil {
		t.Errorf("script function has name %v", fn.Name)
	}
	if fn.Arity != 0 {
		t.Errorf("script arity = %d", fn.Arity)
	}
	code := fn.Chunk.Code
	if len(code) < 2 || vm.Opcode(code[len(code)-2]) != vm.OpNil ||
		vm.Opcode(code[len(code)-1]) != vm.OpReturn {
		t.Errorf("script does not end with NIL/RETURN: %v", code)
	}
}

func TestCompileExpressionStatement(t *testing.T) {
	fn := compile(t, "1 + 2;")
	want := []vm.Opcode{
		vm.OpConstant, 0,
		vm.OpConstant, 1,
		vm.OpAdd,
		vm.OpPop,
		vm.OpNil,
		vm.OpReturn,
	}
	got := fn.Chunk.Code
	if len(got) != len(want) {
		t.Fatalf("code = %v, want %v", got, want)
	}
	for i, w := range want {
		if vm.Opcode(got[i]) != w {
			t.Errorf("code[%d] = 0x%02x, want %v", i, got[i], w)
		}
	}
}

func TestCompileConstantDedup(t *testing.T) {
	fn := compile(t, "1 + 1 + 1;")
	if n := len(fn.Chunk.Constants); n != 1 {
		t.Errorf("constant pool has %d entries, want 1", n)
	}
}

func TestCompileGlobalUsesNameConstant(t *testing.T) {
	fn := compile(t, "let greeting = \"hi\";")
	code := fn.Chunk.Code
	if vm.Opcode(code[len(code)-4]) != vm.OpDefineGlobal {
		t.Fatalf("code = %v", code)
	}
	nameIdx := code[len(code)-3]
	name := fn.Chunk.Constants[nameIdx]
	if !name.IsString() || name.AsString().Chars != "greeting" {
		t.Errorf("name constant = %v", name)
	}
}

func TestCompileLocalsUseSlots(t *testing.T) {
	fn := compile(t, `{ let a = 1; let b = 2; a; b; }`)
	var ops []vm.Opcode
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := vm.Opcode(code[i])
		ops = append(ops, op)
		i += 1 + vm.GetOpcodeInfo(op).OperandLen
	}
	var getLocals int
	for _, op := range ops {
		switch op {
		case vm.OpGetLocal:
			getLocals++
		case vm.OpGetGlobal, vm.OpDefineGlobal:
			t.Errorf("block locals compiled to global ops: %v", ops)
		}
	}
	if getLocals != 2 {
		t.Errorf("got %d GET_LOCAL, want 2", getLocals)
	}
}

func TestCompileFunctionLiteral(t *testing.T) {
	fn := compile(t, "fn add(a, b) { return a + b; }")
	var inner *vm.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() && c.AsObj().Kind == vm.KindFunction {
			inner = c.AsFunction()
		}
	}
	if inner == nil {
		t.Fatal("no function constant emitted")
	}
	if inner.Name == nil || inner.Name.Chars != "add" {
		t.Errorf("function name = %v", inner.Name)
	}
	if inner.Arity != 2 {
		t.Errorf("arity = %d, want 2", inner.Arity)
	}
}

func TestCompileUpvalueCounts(t *testing.T) {
	fn := compile(t, `
		fn outer() {
			let a = 1;
			fn inner() { return a; }
			return inner;
		}
	`)
	var outer *vm.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() && c.AsObj().Kind == vm.KindFunction {
			outer = c.AsFunction()
		}
	}
	if outer == nil {
		t.Fatal("no outer function constant")
	}
	var inner *vm.ObjFunction
	for _, c := range outer.Chunk.Constants {
		if c.IsObj() && c.AsObj().Kind == vm.KindFunction {
			inner = c.AsFunction()
		}
	}
	if inner == nil {
		t.Fatal("no inner function constant")
	}
	if inner.UpvalueCount != 1 {
		t.Errorf("inner UpvalueCount = %d, want 1", inner.UpvalueCount)
	}
	if outer.UpvalueCount != 0 {
		t.Errorf("outer UpvalueCount = %d, want 0", outer.UpvalueCount)
	}
}

func TestCompileErrorFormatting(t *testing.T) {
	errs := compileErrors(t, "let 1 = 2;")
	if len(errs) == 0 {
		t.Fatal("no errors")
	}
	msg := errs[0].Error()
	if !strings.HasPrefix(msg, "[line 1] error: at '1':") {
		t.Errorf("message = %q", msg)
	}
}

func TestCompileErrorCases(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"invalid_target", "1 = 2;", "invalid assignment target"},
		{"compound_invalid_target", "1 += 2;", "invalid assignment target"},
		{"break_outside_loop", "break;", "cannot use 'break' outside of a loop"},
		{"continue_outside_loop", "continue;", "cannot use 'continue' outside of a loop"},
		{"top_level_return", "return 1;", "cannot return from top-level code"},
		{"self_outside_type", "self;", "cannot use 'self' outside of a type"},
		{"super_outside_type", "super.m();", "cannot use 'super' outside of a type"},
		{
			"super_without_supertype",
			"type T { fn m() { return super.m(); } }",
			"cannot use 'super' in a type with no supertype",
		},
		{
			"init_returns_value",
			"type T { fn init() { return 1; } }",
			"cannot return a value from an initializer",
		},
		{
			"duplicate_local",
			"{ let a = 1; let a = 2; }",
			"a variable named 'a' already exists in this scope",
		},
		{
			"self_reference",
			"{ let a = a; }",
			"cannot read local variable 'a' in its own initializer",
		},
		{
			"self_inheritance",
			"type T : T {}",
			"a type cannot inherit from itself",
		},
		{
			"case_after_default",
			"switch (1) { default: 1; case 2: 2; }",
			"'case' cannot follow 'default'",
		},
		{
			"double_default",
			"switch (1) { case 1: 1; default: 2; default: 3; }",
			"multiple 'default' arms in switch",
		},
		{"missing_expression", "let x = ;", "expected an expression"},
		{"bad_number", "0xZZ;", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := compileErrors(t, tc.src)
			if tc.want == "" {
				return
			}
			for _, e := range errs {
				if strings.Contains(e.Message, tc.want) {
					return
				}
			}
			t.Errorf("errors %v do not mention %q", errs, tc.want)
		})
	}
}

func TestCompileCollectsMultipleErrors(t *testing.T) {
	errs := compileErrors(t, `
		let = 1;
		let x = 2;
		break;
		let y = ;
	`)
	if len(errs) < 2 {
		t.Errorf("got %d errors, want at least 2: %v", len(errs), errs)
	}
}

func TestCompileInitializerReturnsSelf(t *testing.T) {
	fn := compile(t, "type T { fn init() {} }")
	var init *vm.ObjFunction
	var find func(f *vm.ObjFunction)
	find = func(f *vm.ObjFunction) {
		for _, c := range f.Chunk.Constants {
			if c.IsObj() && c.AsObj().Kind == vm.KindFunction {
				inner := c.AsFunction()
				if inner.Name != nil && inner.Name.Chars == "init" {
					init = inner
				}
				find(inner)
			}
		}
	}
	find(fn)
	if init == nil {
		t.Fatal("no init method compiled")
	}
	code := init.Chunk.Code
	// Initializers implicitly return self (local slot 0), not nil.
	if len(code) < 3 ||
		vm.Opcode(code[len(code)-3]) != vm.OpGetLocal ||
		code[len(code)-2] != 0 ||
		vm.Opcode(code[len(code)-1]) != vm.OpReturn {
		t.Errorf("init tail = %v", code)
	}
}

func TestCompileLineInfo(t *testing.T) {
	fn := compile(t, "1;\n2;\n3;")
	chunk := fn.Chunk
	if got := chunk.GetLine(0); got != 1 {
		t.Errorf("GetLine(0) = %d", got)
	}
	last := len(chunk.Code) - 1
	if got := chunk.GetLine(last); got != 3 {
		t.Errorf("GetLine(%d) = %d", last, got)
	}
}

func TestCompileRecoversAfterError(t *testing.T) {
	// Synchronization should let compilation continue far enough to see
	// the second, unrelated error.
	errs := compileErrors(t, "let = 1;\nbreak;")
	var sawBreak bool
	for _, e := range errs {
		if strings.Contains(e.Message, "break") {
			sawBreak = true
		}
	}
	if !sawBreak {
		t.Errorf("errors after recovery = %v", errs)
	}
}

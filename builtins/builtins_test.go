package builtins_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/mica/builtins"
	"github.com/chazu/mica/compiler"
	"github.com/chazu/mica/vm"
)

func newVM(out *strings.Builder) *vm.VM {
	v := vm.New()
	v.UseCompiler(compiler.Compile)
	builtins.Register(v)
	v.SetStdout(out)
	return v
}

func run(t *testing.T, source string) string {
	t.Helper()
	var out strings.Builder
	v := newVM(&out)
	result, err := v.Interpret(source)
	if result != vm.ResultOK {
		t.Fatalf("Interpret = %v, err: %v", result, err)
	}
	return out.String()
}

func runError(t *testing.T, source string) string {
	t.Helper()
	var out strings.Builder
	v := newVM(&out)
	result, err := v.Interpret(source)
	if result != vm.ResultRuntimeError {
		t.Fatalf("Interpret = %v (err %v), want runtime error", result, err)
	}
	return err.Error()
}

func TestPrintAndPrintln(t *testing.T) {
	got := run(t, `
		print("a", 1, true);
		print("b");
		println();
		println("x", nil, 2.5);
	`)
	if got != "a 1 trueb\nx nil 2.5\n" {
		t.Errorf("output = %q", got)
	}
}

func TestStr(t *testing.T) {
	got := run(t, `println(str(42), str(2.5), str(true), str(nil), str("s"));`)
	if got != "42 2.5 true nil s\n" {
		t.Errorf("output = %q", got)
	}
}

func TestNumber(t *testing.T) {
	got := run(t, `
		println(number(42), number(true), number(false));
		println(number("3.5"), number(" 10 "), number("1e3"));
		println(number("0x10"), number("0b101"), number("0o17"));
		println(number("not a number"), number(""), number(nil));
	`)
	want := "42 1 0\n3.5 10 1000\n16 5 15\nnil nil nil\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestBool(t *testing.T) {
	got := run(t, `
		println(bool(nil), bool(false), bool(true));
		println(bool(0), bool(1), bool(""), bool("x"), bool([]));
	`)
	// Only nil and false are falsey.
	if got != "false false true\ntrue true true true true\n" {
		t.Errorf("output = %q", got)
	}
}

func TestListConversion(t *testing.T) {
	got := run(t, `
		let copy = list([1, 2]);
		copy.push(3);
		println(copy);
		println(list("abc"));
		println(list({"k": 1}));
	`)
	want := "[1, 2, 3]\n[\"a\", \"b\", \"c\"]\n[\"k\"]\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestListConversionDoesNotAliasSource(t *testing.T) {
	got := run(t, `
		let orig = [1];
		let copy = list(orig);
		copy.push(2);
		println(orig.len(), copy.len());
	`)
	if got != "1 2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestListConversionError(t *testing.T) {
	msg := runError(t, "list(42);")
	if !strings.Contains(msg, "cannot convert number to list") {
		t.Errorf("error = %q", msg)
	}
}

func TestMapBuiltin(t *testing.T) {
	got := run(t, `
		let m = map();
		m["k"] = 1;
		println(m.len(), m["k"]);
	`)
	if got != "1 1\n" {
		t.Errorf("output = %q", got)
	}
}

func TestIs(t *testing.T) {
	got := run(t, `
		type A {}
		type B : A {}
		println(is(B(), A), is(A(), B));
		println(is(1, "number"), is("x", "string"), is(true, "bool"));
		println(is(nil, "nil"), is([], "list"), is({}, "map"));
		println(is(A(), "A"), is(A(), "B"));
	`)
	want := "true false\ntrue true true\ntrue true true\ntrue false\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFieldNatives(t *testing.T) {
	got := run(t, `
		type T { let x = 1; }
		let t = T();
		println(has_field(t, "x"), has_field(t, "y"));
		println(get_field(t, "x"));
		set_field(t, "y", 9);
		println(t.y, has_field(t, "y"));
	`)
	if got != "true false\n1\n9 true\n" {
		t.Errorf("output = %q", got)
	}
}

func TestGetFieldUndefined(t *testing.T) {
	msg := runError(t, `type T {} get_field(T(), "nope");`)
	if !strings.Contains(msg, "undefined field 'nope'") {
		t.Errorf("error = %q", msg)
	}
}

func TestFieldNativesRejectNonInstances(t *testing.T) {
	msg := runError(t, `has_field(1, "x");`)
	if !strings.Contains(msg, "must be an instance") {
		t.Errorf("error = %q", msg)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("MICA_TEST_VAR", "hello")
	got := run(t, `println(env("MICA_TEST_VAR"), env("MICA_TEST_UNSET_VAR"));`)
	if got != "hello nil\n" {
		t.Errorf("output = %q", got)
	}
}

func TestArgs(t *testing.T) {
	var out strings.Builder
	v := newVM(&out)
	v.SetArgs([]string{"one", "two"})
	result, err := v.Interpret(`
		let a = args();
		println(a.len(), a[0], a[1]);
	`)
	if result != vm.ResultOK {
		t.Fatalf("Interpret = %v, err: %v", result, err)
	}
	if out.String() != "2 one two\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestClock(t *testing.T) {
	got := run(t, `
		let before = clock();
		let after = clock();
		println(is(before, "number"), after >= before);
	`)
	if got != "true true\n" {
		t.Errorf("output = %q", got)
	}
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	src := `
		let f = open(path, "w");
		println(f.write("line one` + "\\n" + `line two` + "\\n" + `"));
		f.close();

		let r = open(path);
		println(r.read());
		r.close();

		let l = open(path, "r");
		println(l.lines());
		l.close();
	`
	var out strings.Builder
	v := newVM(&out)
	v.DefineGlobal("path", v.StringValue(path))
	result, err := v.Interpret(src)
	if result != vm.ResultOK {
		t.Fatalf("Interpret = %v, err: %v", result, err)
	}
	want := "18\nline one\nline two\n\n[\"line one\", \"line two\"]\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestOpenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	var out strings.Builder
	v := newVM(&out)
	v.DefineGlobal("path", v.StringValue(path))
	result, err := v.Interpret(`
		let f = open(path, "w");
		f.write("first");
		f.close();
		let a = open(path, "a");
		a.write(" second");
		a.close();
		let r = open(path);
		println(r.read());
		r.close();
	`)
	if result != vm.ResultOK {
		t.Fatalf("Interpret = %v, err: %v", result, err)
	}
	if out.String() != "first second\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestOpenErrors(t *testing.T) {
	msg := runError(t, `open("/nonexistent/dir/file.txt", "z");`)
	if !strings.Contains(msg, "invalid mode") {
		t.Errorf("error = %q", msg)
	}
	msg = runError(t, `open("/nonexistent-mica-test-dir/file.txt");`)
	if !strings.Contains(msg, "open") {
		t.Errorf("error = %q", msg)
	}
}

func TestClosedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.txt")
	var out strings.Builder
	v := newVM(&out)
	v.DefineGlobal("path", v.StringValue(path))
	result, err := v.Interpret(`
		let f = open(path, "w");
		f.close();
		f.write("too late");
	`)
	if result != vm.ResultRuntimeError {
		t.Fatalf("Interpret = %v", result)
	}
	if !strings.Contains(err.Error(), "is closed") {
		t.Errorf("error = %q", err)
	}
}

package vm

import (
	"math"
	"testing"
)

func TestNumberRoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 0.5, 1e300, -1e-300, 42, math.Pi, math.MaxFloat64}
	for _, f := range cases {
		v := NumberValue(f)
		if !v.IsNumber() {
			t.Errorf("NumberValue(%v) not recognized as number", f)
		}
		if got := v.AsNumber(); got != f {
			t.Errorf("round trip %v = %v", f, got)
		}
	}

	nan := NumberValue(math.NaN())
	if !nan.IsNumber() {
		t.Error("NaN must still be a number")
	}
	if !math.IsNaN(nan.AsNumber()) {
		t.Error("NaN round trip lost NaN-ness")
	}
}

func TestNaNBitPatternsAreNumbers(t *testing.T) {
	// Arithmetic NaNs share the quiet-NaN prefix with boxed values but
	// carry no tag bits (or a sign bit the boxing never sets). None of
	// them may be mistaken for an object or a special.
	cases := []struct {
		name string
		bits uint64
	}{
		{"canonical quiet NaN", 0x7FF8000000000000},
		{"negative quiet NaN", 0xFFF8000000000000},
		{"quiet NaN with payload", 0x7FF8000000000001},
		{"signaling NaN", 0x7FF4000000000000},
		{"negative tagged pattern", 0xFFF9000000000000},
	}
	for _, tc := range cases {
		v := Value(tc.bits)
		if !v.IsNumber() {
			t.Errorf("%s: IsNumber = false", tc.name)
		}
		if v.IsObj() {
			t.Errorf("%s: IsObj = true", tc.name)
		}
		if !math.IsNaN(v.AsNumber()) {
			t.Errorf("%s: AsNumber = %v, want NaN", tc.name, v.AsNumber())
		}
		if got := v.String(); got != "NaN" {
			t.Errorf("%s: String = %q", tc.name, got)
		}
		if v.Equals(v) {
			t.Errorf("%s: NaN compares equal to itself", tc.name)
		}
	}

	inf := NumberValue(math.Inf(1))
	if got := NumberValue(math.Inf(1) - math.Inf(1)); !got.IsNumber() {
		t.Errorf("Inf - Inf = %#x, not a number", uint64(got))
	}
	if !inf.IsNumber() || inf.AsNumber() != math.Inf(1) {
		t.Error("infinity mangled by boxing")
	}
}

func TestNumberValueCanonicalizesNaN(t *testing.T) {
	// A NaN whose payload happens to collide with the object tag must not
	// box to something AsObj would accept.
	weird := math.Float64frombits(0x7FF9000000000042)
	v := NumberValue(weird)
	if uint64(v) != 0x7FF8000000000000 {
		t.Errorf("NumberValue(NaN) = %#x, want canonical quiet NaN", uint64(v))
	}
	if v.IsObj() {
		t.Error("canonicalized NaN classified as object")
	}
}

func TestSpecialsDistinct(t *testing.T) {
	specials := []Value{Nil, True, False, Empty}
	for i, a := range specials {
		if a.IsNumber() {
			t.Errorf("special %d classified as number", i)
		}
		if a.IsObj() {
			t.Errorf("special %d classified as object", i)
		}
		for j, b := range specials {
			if i != j && a == b {
				t.Errorf("specials %d and %d share a representation", i, j)
			}
		}
	}

	if !True.IsBool() || !False.IsBool() {
		t.Error("True/False must report IsBool")
	}
	if Nil.IsBool() || Empty.IsBool() {
		t.Error("Nil/Empty must not report IsBool")
	}
	if !Nil.IsNil() {
		t.Error("Nil must report IsNil")
	}
}

func TestTruthiness(t *testing.T) {
	truthy := []Value{True, NumberValue(0), NumberValue(1), NumberValue(-1)}
	for _, v := range truthy {
		if !v.IsTruthy() {
			t.Errorf("%s should be truthy", v.String())
		}
	}
	if False.IsTruthy() || Nil.IsTruthy() {
		t.Error("false and nil must be falsy")
	}

	h := newHeap()
	s := h.InternString("")
	if !ObjValue(&s.Obj).IsTruthy() {
		t.Error("empty string should be truthy")
	}
}

func TestEquals(t *testing.T) {
	if !NumberValue(2).Equals(NumberValue(2)) {
		t.Error("2 == 2")
	}
	if NumberValue(2).Equals(NumberValue(3)) {
		t.Error("2 != 3")
	}
	if NumberValue(math.NaN()).Equals(NumberValue(math.NaN())) {
		t.Error("NaN must not equal NaN")
	}
	if !NumberValue(0).Equals(NumberValue(math.Copysign(0, -1))) {
		t.Error("0 must equal -0")
	}
	if NumberValue(0).Equals(False) {
		t.Error("0 must not equal false")
	}
	if !Nil.Equals(Nil) {
		t.Error("nil == nil")
	}

	h := newHeap()
	a := h.InternString("aha")
	b := h.InternString("a" + "ha")
	if !ObjValue(&a.Obj).Equals(ObjValue(&b.Obj)) {
		t.Error("interned equal strings must compare equal")
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "true"},
		{False, "false"},
		{NumberValue(3), "3"},
		{NumberValue(-7), "-7"},
		{NumberValue(2.5), "2.5"},
		{NumberValue(1e21), "1e+21"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String(%v) = %q, want %q", uint64(c.v), got, c.want)
		}
	}
}

func TestObjectBoxing(t *testing.T) {
	h := newHeap()
	s := h.InternString("boxed")
	v := ObjValue(&s.Obj)
	if !v.IsObj() || !v.IsString() {
		t.Fatal("interned string must box as a string object")
	}
	if v.AsObj() != &s.Obj {
		t.Error("unboxed pointer differs from the original")
	}
	if v.AsString().Chars != "boxed" {
		t.Errorf("AsString().Chars = %q", v.AsString().Chars)
	}
	if v.TypeName() != "string" {
		t.Errorf("TypeName = %q, want string", v.TypeName())
	}
}

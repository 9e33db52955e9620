package vm

import (
	"math"
	"strconv"
	"unsafe"
)

// Value represents a Mica value using NaN-boxing.
//
// All values are represented as 64-bit IEEE 754 doubles. Non-number values
// are encoded in the NaN (Not-a-Number) space using the quiet NaN prefix
// and tag bits to distinguish types.
//
// Encoding scheme:
//   - Number: Native IEEE 754 double (if not a tagged NaN, it's a number)
//   - Object: Quiet NaN + tagObject + 48-bit pointer
//   - Special: Quiet NaN + tagSpecial + special value ID (nil/true/false/empty)
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	// 0x0007_0000_0000_0000
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for pointer/id
	// 0x0000_FFFF_FFFF_FFFF
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagObject  uint64 = 0x0001000000000000 // Heap object pointer
	tagSpecial uint64 = 0x0002000000000000 // nil, true, false, empty
)

// Special value payloads
const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
	specialEmpty uint64 = 3
)

// Pre-defined special values. Empty never escapes the hash table: it marks
// never-used slots and, as a key, tombstones.
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
	Empty Value = Value(nanBits | tagSpecial | specialEmpty)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsNumber returns true if v represents a float64 value.
// Every bit pattern that is not one of our tagged quiet NaNs is a number,
// including infinities and "real" NaN results of arithmetic: a quiet NaN
// with no tag bits set, or with the sign bit set, came from the FPU, not
// from boxing.
func (v Value) IsNumber() bool {
	if uint64(v)&nanBits != nanBits {
		return true
	}
	return uint64(v)&tagMask == 0 || uint64(v)>>63 != 0
}

// IsObj returns true if v represents a heap object pointer. The sign bit
// participates in the comparison: boxing never sets it, so a negative NaN
// is never an object.
func (v Value) IsObj() bool {
	return (uint64(v) & (1<<63 | nanBits | tagMask)) == (nanBits | tagObject)
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// IsEmpty returns true if v is the table-internal empty sentinel.
func (v Value) IsEmpty() bool {
	return v == Empty
}

// ---------------------------------------------------------------------------
// Number operations
// ---------------------------------------------------------------------------

// AsNumber returns v as a float64.
// Panics if v is not a number.
func (v Value) AsNumber() float64 {
	if !v.IsNumber() {
		panic("Value.AsNumber: not a number")
	}
	return math.Float64frombits(uint64(v))
}

// NumberValue creates a Value from a float64. NaN inputs are canonicalized
// to the untagged quiet NaN so no arithmetic result can alias a boxed value.
func NumberValue(f float64) Value {
	if f != f {
		return Value(nanBits)
	}
	return Value(math.Float64bits(f))
}

// ---------------------------------------------------------------------------
// Object pointer operations
// ---------------------------------------------------------------------------

// AsObj returns the object header pointer boxed in v.
// Panics if v is not an object. The pointed-to object is kept alive by the
// heap's all-objects list, so the raw 48-bit round trip is safe.
func (v Value) AsObj() *Obj {
	if !v.IsObj() {
		panic("Value.AsObj: not an object")
	}
	ptr := uintptr(uint64(v) & payloadMask)
	return (*Obj)(unsafe.Pointer(ptr))
}

// ObjValue creates a Value from an object header pointer.
// The pointer must fit in 48 bits (true for all current architectures).
func ObjValue(o *Obj) Value {
	return Value(nanBits | tagObject | uint64(uintptr(unsafe.Pointer(o))))
}

// ---------------------------------------------------------------------------
// Boolean operations
// ---------------------------------------------------------------------------

// AsBool returns v as a bool.
// Panics if v is not true or false.
func (v Value) AsBool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic("Value.AsBool: not a boolean")
	}
}

// BoolValue creates a Value from a bool.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Truthiness and equality
// ---------------------------------------------------------------------------

// IsTruthy returns true if v is considered "truthy" in conditionals.
// Only false and nil are falsy; everything else is truthy.
func (v Value) IsTruthy() bool {
	return v != False && v != Nil
}

// IsFalsy returns true if v is considered "falsy" in conditionals.
func (v Value) IsFalsy() bool {
	return v == False || v == Nil
}

// Equals reports value equality. Numbers compare numerically (so 0.0 and
// -0.0 are equal and NaN is unequal to itself); everything else compares by
// bit pattern, which for objects is reference identity. String interning
// makes reference identity coincide with content equality for strings.
func (v Value) Equals(w Value) bool {
	if v.IsNumber() && w.IsNumber() {
		return v.AsNumber() == w.AsNumber()
	}
	return v == w
}

// String renders v for diagnostics and the print natives.
func (v Value) String() string {
	switch {
	case v == Nil:
		return "nil"
	case v == True:
		return "true"
	case v == False:
		return "false"
	case v == Empty:
		return "<empty>"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	default:
		return v.AsObj().String()
	}
}

// formatNumber renders whole doubles without an exponent or trailing zeros
// so that integral results read like integers.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

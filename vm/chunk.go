package vm

import "sort"

// LineStart records that the instruction at Offset begins a run of bytes
// compiled from Line. Consecutive instructions on the same line share one
// entry, so the table stays small for straight-line code.
type LineStart struct {
	Offset int
	Line   int
}

// Chunk represents compiled bytecode for one function body: the code
// bytes, the constant pool they index, and the run-length-encoded line
// table used for error reporting.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []LineStart
}

// MaxConstants is the number of constants a single chunk can hold; pool
// indices are one byte.
const MaxConstants = 256

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// AddConstant adds a value to the pool and returns its index, reusing the
// existing slot when an equal constant is already pooled. Returns -1 when
// the pool is full; the compiler turns that into a compile error.
func (c *Chunk) AddConstant(value Value) int {
	for i, v := range c.Constants {
		if v.Equals(value) {
			return i
		}
	}
	if len(c.Constants) >= MaxConstants {
		return -1
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// Emit appends a single-byte opcode, recording the source line it was
// compiled from. Returns the instruction's offset.
func (c *Chunk) Emit(op Opcode, line int) int {
	offset := len(c.Code)
	c.writeLine(offset, line)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode followed by operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, line int, operands ...byte) int {
	offset := c.Emit(op, line)
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder bytes for later patching.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	offset := c.Emit(op, line)
	c.Code = append(c.Code, 0xFF, 0xFF)
	return offset + 1
}

// PatchJump patches a jump placeholder to target the current position.
// The delta is relative to the byte after the two-byte operand. Returns
// false if the distance overflows a signed 16-bit offset.
func (c *Chunk) PatchJump(placeholderOffset int) bool {
	jumpFrom := placeholderOffset + 2
	delta := len(c.Code) - jumpFrom
	if delta > 32767 || delta < -32768 {
		return false
	}
	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return true
}

// EmitLoop emits an unconditional backward jump to loopStart. Returns
// false if the distance overflows a signed 16-bit offset.
func (c *Chunk) EmitLoop(loopStart int, line int) bool {
	jumpFrom := len(c.Code) + 3
	delta := loopStart - jumpFrom
	if delta > 32767 || delta < -32768 {
		return false
	}
	c.EmitWithOperand(OpLoop, line, byte(delta>>8), byte(delta))
	return true
}

// CurrentOffset returns the offset the next emitted byte will occupy.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

func (c *Chunk) writeLine(offset, line int) {
	if n := len(c.lines); n > 0 && c.lines[n-1].Line == line {
		return
	}
	c.lines = append(c.lines, LineStart{Offset: offset, Line: line})
}

// GetLine returns the source line for the instruction at offset, found by
// binary search over the run starts. Returns 0 for an empty chunk.
func (c *Chunk) GetLine(offset int) int {
	if len(c.lines) == 0 {
		return 0
	}
	// First run starting past offset; the answer is the run before it.
	i := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].Offset > offset
	})
	return c.lines[i-1].Line
}

// LineRunCount returns the number of line runs recorded. Exposed for the
// encoding's compactness tests.
func (c *Chunk) LineRunCount() int {
	return len(c.lines)
}

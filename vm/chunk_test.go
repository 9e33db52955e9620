package vm

import "testing"

func TestChunkEmitAndLines(t *testing.T) {
	var c Chunk
	c.Emit(OpNil, 1)
	c.Emit(OpNil, 1)
	c.EmitWithOperand(OpConstant, 2, 0)
	c.Emit(OpReturn, 4)

	if len(c.Code) != 5 {
		t.Fatalf("code length = %d, want 5", len(c.Code))
	}
	cases := []struct{ offset, line int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 4},
	}
	for _, tc := range cases {
		if got := c.GetLine(tc.offset); got != tc.line {
			t.Errorf("GetLine(%d) = %d, want %d", tc.offset, got, tc.line)
		}
	}
	// Runs of one line compress to one entry each.
	if runs := c.LineRunCount(); runs != 3 {
		t.Errorf("LineRunCount = %d, want 3", runs)
	}
}

func TestAddConstantDedupe(t *testing.T) {
	var c Chunk
	i := c.AddConstant(NumberValue(7))
	j := c.AddConstant(NumberValue(7))
	if i != j {
		t.Errorf("equal constants got separate slots %d and %d", i, j)
	}
	k := c.AddConstant(NumberValue(8))
	if k == i {
		t.Error("distinct constants share a slot")
	}
}

func TestAddConstantOverflow(t *testing.T) {
	var c Chunk
	for i := 0; i < MaxConstants; i++ {
		if idx := c.AddConstant(NumberValue(float64(i))); idx < 0 {
			t.Fatalf("constant %d rejected before the pool filled", i)
		}
	}
	if idx := c.AddConstant(NumberValue(99999)); idx != -1 {
		t.Errorf("overflow AddConstant = %d, want -1", idx)
	}
	// An existing constant still resolves after the pool is full.
	if idx := c.AddConstant(NumberValue(5)); idx != 5 {
		t.Errorf("dedupe after fill = %d, want 5", idx)
	}
}

func TestJumpPatching(t *testing.T) {
	var c Chunk
	placeholder := c.EmitJump(OpJumpIfFalse, 1)
	c.Emit(OpPop, 1)
	c.Emit(OpPop, 1)
	if !c.PatchJump(placeholder) {
		t.Fatal("PatchJump failed")
	}

	// Offset is relative to the byte after the two-byte operand.
	hi, lo := c.Code[placeholder], c.Code[placeholder+1]
	delta := int16(uint16(hi)<<8 | uint16(lo))
	if delta != 2 {
		t.Errorf("patched delta = %d, want 2", delta)
	}
}

func TestJumpTooFar(t *testing.T) {
	var c Chunk
	placeholder := c.EmitJump(OpJump, 1)
	for i := 0; i < 40000; i++ {
		c.Emit(OpNop, 1)
	}
	if c.PatchJump(placeholder) {
		t.Error("PatchJump should refuse a jump beyond int16 range")
	}
}

func TestEmitLoop(t *testing.T) {
	var c Chunk
	loopStart := c.CurrentOffset()
	c.Emit(OpNop, 1)
	c.Emit(OpNop, 1)
	if !c.EmitLoop(loopStart, 1) {
		t.Fatal("EmitLoop failed")
	}

	// The loop instruction is a backward jump with a negative delta landing
	// on loopStart.
	opOffset := len(c.Code) - 3
	if Opcode(c.Code[opOffset]) != OpLoop {
		t.Fatalf("EmitLoop emitted %s", Opcode(c.Code[opOffset]))
	}
	delta := int16(uint16(c.Code[opOffset+1])<<8 | uint16(c.Code[opOffset+2]))
	if target := len(c.Code) + int(delta); target != loopStart {
		t.Errorf("loop lands on %d, want %d", target, loopStart)
	}
}

func TestOpcodeMetadataComplete(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
	}
	if got := GetOpcodeInfo(Opcode(0xFF)).Name; got != "UNKNOWN(0xFF)" {
		t.Errorf("unknown opcode name = %q", got)
	}
	if !OpJump.IsJump() || !OpJumpIfTrue.IsJump() || !OpLoop.IsJump() || OpCall.IsJump() {
		t.Error("IsJump misclassifies")
	}
	if OpClosure.OperandLen() != -1 {
		t.Error("CLOSURE must report variable operand length")
	}
	if OpcodeCount() != len(AllOpcodes()) {
		t.Error("OpcodeCount disagrees with AllOpcodes")
	}
}

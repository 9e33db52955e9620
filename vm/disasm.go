package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === %s ===\n", name))

	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			display := v.String()
			if v.IsString() {
				display = fmt.Sprintf("%q", v.AsString().Chars)
			}
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
	}

	sb.WriteString("; Code:\n")
	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		listing, instrLen := DisassembleInstruction(c, offset)
		line := c.GetLine(offset)
		if line == lastLine {
			sb.WriteString(fmt.Sprintf("%04X     |  %s\n", offset, listing))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %4d  %s\n", offset, line, listing))
			lastLine = line
		}
		offset += instrLen
	}
	return sb.String()
}

// DisassembleInstruction renders the instruction at offset and returns its
// total length in bytes.
func DisassembleInstruction(c *Chunk, offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)

	constantName := func(idx byte) string {
		if int(idx) >= len(c.Constants) {
			return "<bad constant>"
		}
		v := c.Constants[idx]
		if v.IsString() {
			return fmt.Sprintf("%q", v.AsString().Chars)
		}
		return v.String()
	}

	switch op {
	case OpConstant:
		idx := c.Code[offset+1]
		return fmt.Sprintf("CONSTANT %d ; %s", idx, constantName(idx)), 2

	case OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetProperty, OpSetProperty, OpGetSuper,
		OpMethod, OpField, OpType:
		idx := c.Code[offset+1]
		return fmt.Sprintf("%s %d ; %s", info.Name, idx, constantName(idx)), 2

	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpLoop:
		delta := readInt16(c.Code, offset+1)
		target := offset + 3 + int(delta)
		return fmt.Sprintf("%s %+d (-> %04X)", info.Name, delta, target), 3

	case OpInvoke, OpSuperInvoke:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		return fmt.Sprintf("%s %d (%s) argc=%d", info.Name, idx, constantName(idx), argc), 3

	case OpClosure:
		idx := c.Code[offset+1]
		length := 2
		var sb strings.Builder
		fmt.Fprintf(&sb, "CLOSURE %d ; %s", idx, constantName(idx))
		if int(idx) < len(c.Constants) && c.Constants[idx].IsFunction() {
			fn := c.Constants[idx].AsFunction()
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := c.Code[offset+length]
				index := c.Code[offset+length+1]
				length += 2
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				fmt.Fprintf(&sb, " [%s %d]", kind, index)
			}
		}
		return sb.String(), length

	default:
		instrLen := 1 + info.OperandLen
		if info.OperandLen <= 0 {
			return info.Name, 1
		}
		operands := make([]string, 0, info.OperandLen)
		for i := 0; i < info.OperandLen; i++ {
			operands = append(operands, fmt.Sprintf("%d", c.Code[offset+1+i]))
		}
		return fmt.Sprintf("%s %s", info.Name, strings.Join(operands, " ")), instrLen
	}
}

// DisassembleFunction lists a function and, recursively, every function in
// its constant pool.
func DisassembleFunction(fn *ObjFunction) string {
	name := "script"
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	var sb strings.Builder
	sb.WriteString(fn.Chunk.Disassemble(name))
	for _, v := range fn.Chunk.Constants {
		if v.IsFunction() {
			sb.WriteByte('\n')
			sb.WriteString(DisassembleFunction(v.AsFunction()))
		}
	}
	return sb.String()
}

// readInt16 reads a big-endian int16 from code at the given offset.
func readInt16(code []byte, offset int) int16 {
	if offset+1 >= len(code) {
		return 0
	}
	return int16(binary.BigEndian.Uint16(code[offset:]))
}

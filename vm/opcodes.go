package vm

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
//
// Operand conventions: constant-pool indices, slot numbers, name indices
// and argument counts are one unsigned byte; jump offsets are signed 16-bit
// big-endian deltas relative to the byte after the operand. CLOSURE is the
// one variable-length instruction: its constant operand is followed by one
// (isLocal, index) byte pair per upvalue of the enclosed function.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpPop  Opcode = 0x01 // Pop top of stack
	OpPopN Opcode = 0x02 // Pop N values: OpPopN <count:u8>
	OpDup  Opcode = 0x03 // Duplicate top of stack
	OpDup2 Opcode = 0x04 // Duplicate top two values, preserving order

	// ========================================================================
	// Constants and literals (0x10-0x1F)
	// ========================================================================

	OpConstant Opcode = 0x10 // Push constant from pool: OpConstant <index:u8>
	OpNil      Opcode = 0x11 // Push nil
	OpTrue     Opcode = 0x12 // Push true
	OpFalse    Opcode = 0x13 // Push false

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpGetLocal     Opcode = 0x20 // Push frame slot: OpGetLocal <slot:u8>
	OpSetLocal     Opcode = 0x21 // Store TOS to frame slot (peek): OpSetLocal <slot:u8>
	OpGetGlobal    Opcode = 0x22 // Push global: OpGetGlobal <name:u8>
	OpDefineGlobal Opcode = 0x23 // Pop into new global: OpDefineGlobal <name:u8>
	OpSetGlobal    Opcode = 0x24 // Store TOS to existing global (peek): OpSetGlobal <name:u8>
	OpGetUpvalue   Opcode = 0x25 // Push upvalue: OpGetUpvalue <index:u8>
	OpSetUpvalue   Opcode = 0x26 // Store TOS to upvalue (peek): OpSetUpvalue <index:u8>

	// ========================================================================
	// Properties (0x30-0x3F)
	// ========================================================================

	OpGetProperty Opcode = 0x30 // Pop receiver, push field/bound method: OpGetProperty <name:u8>
	OpSetProperty Opcode = 0x31 // Set field, leave value: OpSetProperty <name:u8>
	OpGetSuper    Opcode = 0x32 // Bind supertype method: OpGetSuper <name:u8>

	// ========================================================================
	// Arithmetic (0x40-0x4F)
	// ========================================================================

	OpAdd      Opcode = 0x40 // Pop two, push sum (numbers) or concatenation (strings)
	OpSubtract Opcode = 0x41 // Pop two, push difference
	OpMultiply Opcode = 0x42 // Pop two, push product
	OpDivide   Opcode = 0x43 // Pop two, push quotient
	OpModulo   Opcode = 0x44 // Pop two, push remainder
	OpNegate   Opcode = 0x45 // Arithmetic negate top of stack

	// ========================================================================
	// Bitwise (0x50-0x5F) - operate on 64-bit truncations of doubles
	// ========================================================================

	OpBitAnd     Opcode = 0x50
	OpBitOr      Opcode = 0x51
	OpBitXor     Opcode = 0x52
	OpShiftLeft  Opcode = 0x53
	OpShiftRight Opcode = 0x54
	OpBitNot     Opcode = 0x55

	// ========================================================================
	// Comparison and logic (0x60-0x6F)
	// ========================================================================

	OpEqual        Opcode = 0x60
	OpNotEqual     Opcode = 0x61
	OpLess         Opcode = 0x62
	OpLessEqual    Opcode = 0x63
	OpGreater      Opcode = 0x64
	OpGreaterEqual Opcode = 0x65
	OpNot          Opcode = 0x66 // Logical NOT of truthiness

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpJump        Opcode = 0x80 // Unconditional: OpJump <offset:i16>
	OpJumpIfFalse Opcode = 0x81 // Jump if TOS falsy (peek): OpJumpIfFalse <offset:i16>
	OpJumpIfTrue  Opcode = 0x82 // Jump if TOS truthy (peek): OpJumpIfTrue <offset:i16>
	OpLoop        Opcode = 0x83 // Backward jump to a loop head: OpLoop <offset:i16>

	// ========================================================================
	// Calls and closures (0x90-0x9F)
	// ========================================================================

	OpCall         Opcode = 0x90 // Call value below args: OpCall <argc:u8>
	OpInvoke       Opcode = 0x91 // Fused property+call: OpInvoke <name:u8> <argc:u8>
	OpSuperInvoke  Opcode = 0x92 // Fused super lookup+call: OpSuperInvoke <name:u8> <argc:u8>
	OpClosure      Opcode = 0x93 // Wrap function constant: OpClosure <fn:u8> (<isLocal:u8> <index:u8>)*
	OpCloseUpvalue Opcode = 0x94 // Close upvalues at TOS slot, then pop
	OpReturn       Opcode = 0x95 // Return TOS from current frame
	OpExit         Opcode = 0x96 // Terminate interpretation with TOS as status code

	// ========================================================================
	// Type declarations (0xA0-0xAF)
	// ========================================================================

	OpType    Opcode = 0xA0 // Push new type object: OpType <name:u8>
	OpInherit Opcode = 0xA1 // Copy supertype tables into subtype, compute MRO
	OpMethod  Opcode = 0xA2 // Pop closure into type's method table: OpMethod <name:u8>
	OpField   Opcode = 0xA3 // Pop default value into type's field table: OpField <name:u8>

	// ========================================================================
	// Aggregate literals (0xB0-0xBF)
	// ========================================================================

	OpBuildList Opcode = 0xB0 // Pop N elements into a new list: OpBuildList <count:u8>
	OpBuildMap  Opcode = 0xB1 // Pop N key/value pairs into a new map: OpBuildMap <pairs:u8>
)

// OpcodeInfo provides metadata about each opcode for disassembly and
// validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode (-1 = variable)
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop:  {"NOP", 0, 0, 0},
	OpPop:  {"POP", 1, 0, 0},
	OpPopN: {"POPN", -1, 0, 1},
	OpDup:  {"DUP", 1, 2, 0},
	OpDup2: {"DUP2", 2, 4, 0},

	// Constants and literals
	OpConstant: {"CONSTANT", 0, 1, 1},
	OpNil:      {"NIL", 0, 1, 0},
	OpTrue:     {"TRUE", 0, 1, 0},
	OpFalse:    {"FALSE", 0, 1, 0},

	// Variables
	OpGetLocal:     {"GET_LOCAL", 0, 1, 1},
	OpSetLocal:     {"SET_LOCAL", 0, 0, 1},
	OpGetGlobal:    {"GET_GLOBAL", 0, 1, 1},
	OpDefineGlobal: {"DEFINE_GLOBAL", 1, 0, 1},
	OpSetGlobal:    {"SET_GLOBAL", 0, 0, 1},
	OpGetUpvalue:   {"GET_UPVALUE", 0, 1, 1},
	OpSetUpvalue:   {"SET_UPVALUE", 0, 0, 1},

	// Properties
	OpGetProperty: {"GET_PROPERTY", 1, 1, 1},
	OpSetProperty: {"SET_PROPERTY", 2, 1, 1},
	OpGetSuper:    {"GET_SUPER", 2, 1, 1},

	// Arithmetic
	OpAdd:      {"ADD", 2, 1, 0},
	OpSubtract: {"SUBTRACT", 2, 1, 0},
	OpMultiply: {"MULTIPLY", 2, 1, 0},
	OpDivide:   {"DIVIDE", 2, 1, 0},
	OpModulo:   {"MODULO", 2, 1, 0},
	OpNegate:   {"NEGATE", 1, 1, 0},

	// Bitwise
	OpBitAnd:     {"BIT_AND", 2, 1, 0},
	OpBitOr:      {"BIT_OR", 2, 1, 0},
	OpBitXor:     {"BIT_XOR", 2, 1, 0},
	OpShiftLeft:  {"SHIFT_LEFT", 2, 1, 0},
	OpShiftRight: {"SHIFT_RIGHT", 2, 1, 0},
	OpBitNot:     {"BIT_NOT", 1, 1, 0},

	// Comparison and logic
	OpEqual:        {"EQUAL", 2, 1, 0},
	OpNotEqual:     {"NOT_EQUAL", 2, 1, 0},
	OpLess:         {"LESS", 2, 1, 0},
	OpLessEqual:    {"LESS_EQUAL", 2, 1, 0},
	OpGreater:      {"GREATER", 2, 1, 0},
	OpGreaterEqual: {"GREATER_EQUAL", 2, 1, 0},
	OpNot:          {"NOT", 1, 1, 0},

	// Control flow
	OpJump:        {"JUMP", 0, 0, 2},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 0, 0, 2},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 0, 0, 2},
	OpLoop:        {"LOOP", 0, 0, 2},

	// Calls and closures
	OpCall:         {"CALL", -1, 1, 1},
	OpInvoke:       {"INVOKE", -1, 1, 2},
	OpSuperInvoke:  {"SUPER_INVOKE", -1, 1, 2},
	OpClosure:      {"CLOSURE", 0, 1, -1},
	OpCloseUpvalue: {"CLOSE_UPVALUE", 1, 0, 0},
	OpReturn:       {"RETURN", 1, 0, 0},
	OpExit:         {"EXIT", 1, 0, 0},

	// Type declarations
	OpType:    {"TYPE", 0, 1, 1},
	OpInherit: {"INHERIT", 1, 0, 0},
	OpMethod:  {"METHOD", 1, 0, 1},
	OpField:   {"FIELD", 1, 0, 1},

	// Aggregate literals
	OpBuildList: {"BUILD_LIST", -1, 1, 1},
	OpBuildMap:  {"BUILD_MAP", -1, 1, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of fixed operand bytes for this opcode.
// CLOSURE reports -1; its length depends on the enclosed function.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpLoop
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

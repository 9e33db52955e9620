package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/mica/vm"
)

// ---------------------------------------------------------------------------
// Single-pass compiler: Pratt expressions, recursive descent statements
// ---------------------------------------------------------------------------

// CompileError is one diagnostic with its source line.
type CompileError struct {
	Line    int
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("[line %d] error: %s", e.Line, e.Message)
}

// ErrorList collects every diagnostic of a failed compile.
type ErrorList []CompileError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Compile turns source into a top-level function allocated on heap. On
// failure it returns an ErrorList covering every error found; panic-mode
// recovery resynchronizes at statement boundaries so one mistake does not
// drown the rest of the file in follow-on diagnostics.
//
// The signature matches vm.CompileFn, so wiring is just
// vmInst.UseCompiler(compiler.Compile).
func Compile(source string, heap *vm.Heap) (*vm.ObjFunction, error) {
	p := &parser{
		lexer: NewLexer(source),
		heap:  heap,
	}
	p.initCompiler(&fnCompiler{}, kindScript, "")
	p.advance()

	for !p.match(TokenEOF) {
		p.declaration()
	}

	fn := p.endCompiler()
	if p.hadError {
		return nil, p.errors
	}
	return fn, nil
}

// ---------------------------------------------------------------------------
// Compiler state
// ---------------------------------------------------------------------------

type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
	kindMethod
	kindInitializer
)

// maxLocals bounds both local slots and upvalues per function; operand
// indices are one byte.
const maxLocals = 256

type local struct {
	name       Token
	depth      int // -1 while declared but not yet initialized
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// fnCompiler is the per-function compilation context. Nested function
// declarations chain through enclosing, which is what upvalue resolution
// walks.
type fnCompiler struct {
	enclosing *fnCompiler
	function  *vm.ObjFunction
	kind      funcKind

	locals     [maxLocals]local
	localCount int
	upvalues   [maxLocals]upvalueRef
	scopeDepth int
}

// typeContext tracks the innermost enclosing type declaration, for
// validating self and super.
type typeContext struct {
	enclosing *typeContext
	hasSuper  bool
}

// loopContext carries the jump targets break and continue need, plus the
// scope depth at loop entry so both can discard block locals first.
type loopContext struct {
	enclosing      *loopContext
	start          int // backward-jump target (condition or increment)
	scopeDepth     int
	breakJumps     []int
	continueTarget int
}

// parser is the whole compiler state: no globals, so compiles can run
// concurrently on separate heaps.
type parser struct {
	lexer    *Lexer
	current  Token
	previous Token

	hadError  bool
	panicMode bool
	errors    ErrorList

	compiler *fnCompiler
	typeCtx  *typeContext
	loop     *loopContext

	heap *vm.Heap
}

func (p *parser) initCompiler(c *fnCompiler, kind funcKind, name string) {
	c.enclosing = p.compiler
	c.kind = kind
	c.function = p.heap.NewFunction()
	// Root the function for the duration of its compilation; it is not
	// reachable from anywhere else until it lands in a constant pool.
	p.heap.PushTempRoot(vm.ObjValue(&c.function.Obj))
	if kind != kindScript {
		c.function.Name = p.heap.InternString(name)
	}
	p.compiler = c

	// Slot zero holds the callee: the receiver in methods, inaccessible
	// otherwise.
	slotZero := &c.locals[c.localCount]
	c.localCount++
	slotZero.depth = 0
	if kind == kindMethod || kind == kindInitializer {
		slotZero.name = Token{Type: TokenSelf, Literal: "self"}
	}
}

func (p *parser) endCompiler() *vm.ObjFunction {
	p.emitReturn()
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	p.heap.PopTempRoot()
	return fn
}

func (p *parser) currentChunk() *vm.Chunk {
	return &p.compiler.function.Chunk
}

// ---------------------------------------------------------------------------
// Token plumbing and errors
// ---------------------------------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lexer.NextToken()
		if p.current.Type != TokenError {
			return
		}
		p.errorAtCurrent(p.current.Literal)
	}
}

func (p *parser) consume(t TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *parser) check(t TokenType) bool {
	return p.current.Type == t
}

func (p *parser) match(t TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) errorAt(tok Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	where := message
	switch tok.Type {
	case TokenEOF:
		where = "at end: " + message
	case TokenError:
		// The message is the lexer's own.
	default:
		where = fmt.Sprintf("at '%s': %s", tok.Literal, message)
	}
	p.errors = append(p.errors, CompileError{Line: tok.Line, Message: where})
}

func (p *parser) error(message string) {
	p.errorAt(p.previous, message)
}

func (p *parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

// synchronize skips tokens until a likely statement boundary, ending
// panic mode so subsequent errors surface again.
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != TokenEOF {
		if p.previous.Type == TokenSemicolon {
			return
		}
		switch p.current.Type {
		case TokenFn, TokenLet, TokenType_, TokenIf, TokenWhile, TokenFor,
			TokenSwitch, TokenReturn, TokenBreak, TokenContinue, TokenExit:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Emit helpers
// ---------------------------------------------------------------------------

func (p *parser) emit(op vm.Opcode) {
	p.currentChunk().Emit(op, p.previous.Line)
}

func (p *parser) emitWithOperand(op vm.Opcode, operands ...byte) {
	p.currentChunk().EmitWithOperand(op, p.previous.Line, operands...)
}

func (p *parser) emitJump(op vm.Opcode) int {
	return p.currentChunk().EmitJump(op, p.previous.Line)
}

func (p *parser) patchJump(placeholder int) {
	if !p.currentChunk().PatchJump(placeholder) {
		p.error("too much code to jump over")
	}
}

func (p *parser) emitLoop(loopStart int) {
	if !p.currentChunk().EmitLoop(loopStart, p.previous.Line) {
		p.error("loop body too large")
	}
}

func (p *parser) emitReturn() {
	if p.compiler.kind == kindInitializer {
		p.emitWithOperand(vm.OpGetLocal, 0)
	} else {
		p.emit(vm.OpNil)
	}
	p.emit(vm.OpReturn)
}

func (p *parser) makeConstant(value vm.Value) byte {
	idx := p.currentChunk().AddConstant(value)
	if idx < 0 {
		p.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (p *parser) emitConstant(value vm.Value) {
	p.emitWithOperand(vm.OpConstant, p.makeConstant(value))
}

func (p *parser) identifierConstant(name Token) byte {
	s := p.heap.InternString(name.Literal)
	return p.makeConstant(vm.ObjValue(&s.Obj))
}

// ---------------------------------------------------------------------------
// Scopes and variables
// ---------------------------------------------------------------------------

func (p *parser) beginScope() {
	p.compiler.scopeDepth++
}

// endScope discards the scope's locals: runs of plain locals become a
// single POPN, broken wherever a captured local forces a CLOSE_UPVALUE.
func (p *parser) endScope() {
	c := p.compiler
	c.scopeDepth--

	pending := 0
	flush := func() {
		switch {
		case pending == 1:
			p.emit(vm.OpPop)
		case pending > 1:
			p.emitWithOperand(vm.OpPopN, byte(pending))
		}
		pending = 0
	}
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		if c.locals[c.localCount-1].isCaptured {
			flush()
			p.emit(vm.OpCloseUpvalue)
		} else {
			pending++
		}
		c.localCount--
	}
	flush()
}

func identifiersEqual(a, b Token) bool {
	return a.Literal == b.Literal
}

func (p *parser) addLocal(name Token) {
	c := p.compiler
	if c.localCount == maxLocals {
		p.error("too many local variables in function")
		return
	}
	c.locals[c.localCount] = local{name: name, depth: -1}
	c.localCount++
}

// declareVariable registers a local in the current scope. Globals are
// late-bound and need no declaration.
func (p *parser) declareVariable() {
	c := p.compiler
	if c.scopeDepth == 0 {
		return
	}
	name := p.previous
	for i := c.localCount - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			p.error(fmt.Sprintf("a variable named '%s' already exists in this scope", name.Literal))
		}
	}
	p.addLocal(name)
}

func (p *parser) parseVariable(message string) byte {
	p.consume(TokenIdentifier, message)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *parser) markInitialized() {
	c := p.compiler
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].depth = c.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitWithOperand(vm.OpDefineGlobal, global)
}

func (p *parser) resolveLocal(c *fnCompiler, name Token) int {
	for i := c.localCount - 1; i >= 0; i-- {
		l := &c.locals[i]
		if identifiersEqual(name, l.name) {
			if l.depth == -1 {
				p.error(fmt.Sprintf("cannot read local variable '%s' in its own initializer", name.Literal))
			}
			return i
		}
	}
	return -1
}

func (p *parser) addUpvalue(c *fnCompiler, index byte, isLocal bool) int {
	count := c.function.UpvalueCount
	for i := 0; i < count; i++ {
		u := &c.upvalues[i]
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if count == maxLocals {
		p.error("too many captured variables in function")
		return 0
	}
	c.upvalues[count] = upvalueRef{index: index, isLocal: isLocal}
	c.function.UpvalueCount++
	return count
}

// resolveUpvalue walks outward through enclosing functions. A hit in the
// immediately enclosing scope captures that local directly; anything
// further out builds the chain of upvalues the closure instructions flatten
// at runtime.
func (p *parser) resolveUpvalue(c *fnCompiler, name Token) int {
	if c.enclosing == nil {
		return -1
	}
	if localIdx := p.resolveLocal(c.enclosing, name); localIdx != -1 {
		c.enclosing.locals[localIdx].isCaptured = true
		return p.addUpvalue(c, byte(localIdx), true)
	}
	if upIdx := p.resolveUpvalue(c.enclosing, name); upIdx != -1 {
		return p.addUpvalue(c, byte(upIdx), false)
	}
	return -1
}

// namedVariable compiles a read of name, or when canAssign permits, an
// assignment or compound assignment to it.
func (p *parser) namedVariable(name Token, canAssign bool) {
	var getOp, setOp vm.Opcode
	var arg byte
	if idx := p.resolveLocal(p.compiler, name); idx != -1 {
		getOp, setOp, arg = vm.OpGetLocal, vm.OpSetLocal, byte(idx)
	} else if idx := p.resolveUpvalue(p.compiler, name); idx != -1 {
		getOp, setOp, arg = vm.OpGetUpvalue, vm.OpSetUpvalue, byte(idx)
	} else {
		getOp, setOp, arg = vm.OpGetGlobal, vm.OpSetGlobal, p.identifierConstant(name)
	}

	switch {
	case canAssign && p.match(TokenEqual):
		p.expression()
		p.emitWithOperand(setOp, arg)
	case canAssign && p.matchCompound():
		op := p.previous.Type
		p.emitWithOperand(getOp, arg)
		p.expression()
		p.emitBinaryOp(op)
		p.emitWithOperand(setOp, arg)
	default:
		p.emitWithOperand(getOp, arg)
	}
}

// matchCompound consumes a compound-assignment token if present.
func (p *parser) matchCompound() bool {
	switch p.current.Type {
	case TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual, TokenPercentEqual:
		p.advance()
		return true
	}
	return false
}

// emitBinaryOp emits the arithmetic instruction underlying a compound
// assignment token.
func (p *parser) emitBinaryOp(t TokenType) {
	base, _ := t.CompoundOp()
	switch base {
	case TokenPlus:
		p.emit(vm.OpAdd)
	case TokenMinus:
		p.emit(vm.OpSubtract)
	case TokenStar:
		p.emit(vm.OpMultiply)
	case TokenSlash:
		p.emit(vm.OpDivide)
	case TokenPercent:
		p.emit(vm.OpModulo)
	}
}

// ---------------------------------------------------------------------------
// Pratt expression parsing
// ---------------------------------------------------------------------------

type precedence int

const (
	precNone       precedence = iota
	precAssignment            // = += -= *= /= %=
	precOr                    // or
	precAnd                   // and
	precBitOr                 // |
	precBitXor                // ^
	precBitAnd                // &
	precEquality              // == !=
	precComparison            // < > <= >=
	precShift                 // << >>
	precTerm                  // + -
	precFactor                // * / %
	precUnary                 // ! - ~
	precCall                  // . () []
	precPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

// rules is the fixed Pratt table. Populated in init to avoid an
// initialization cycle through the handler functions.
var rules map[TokenType]parseRule

func init() {
	rules = map[TokenType]parseRule{
		TokenLParen:       {(*parser).grouping, (*parser).call, precCall},
		TokenLBracket:     {(*parser).listLiteral, (*parser).subscript, precCall},
		TokenLBrace:       {(*parser).mapLiteral, nil, precNone},
		TokenDot:          {nil, (*parser).dot, precCall},
		TokenMinus:        {(*parser).unary, (*parser).binary, precTerm},
		TokenPlus:         {nil, (*parser).binary, precTerm},
		TokenStar:         {nil, (*parser).binary, precFactor},
		TokenSlash:        {nil, (*parser).binary, precFactor},
		TokenPercent:      {nil, (*parser).binary, precFactor},
		TokenAmp:          {nil, (*parser).binary, precBitAnd},
		TokenPipe:         {nil, (*parser).binary, precBitOr},
		TokenCaret:        {nil, (*parser).binary, precBitXor},
		TokenShiftLeft:    {nil, (*parser).binary, precShift},
		TokenShiftRight:   {nil, (*parser).binary, precShift},
		TokenTilde:        {(*parser).unary, nil, precNone},
		TokenBang:         {(*parser).unary, nil, precNone},
		TokenBangEqual:    {nil, (*parser).binary, precEquality},
		TokenEqualEqual:   {nil, (*parser).binary, precEquality},
		TokenLess:         {nil, (*parser).binary, precComparison},
		TokenLessEqual:    {nil, (*parser).binary, precComparison},
		TokenGreater:      {nil, (*parser).binary, precComparison},
		TokenGreaterEqual: {nil, (*parser).binary, precComparison},
		TokenAnd:          {nil, (*parser).and, precAnd},
		TokenOr:           {nil, (*parser).or, precOr},
		TokenNumber:       {(*parser).number, nil, precNone},
		TokenString:       {(*parser).stringLiteral, nil, precNone},
		TokenIdentifier:   {(*parser).variable, nil, precNone},
		TokenNil:          {(*parser).literal, nil, precNone},
		TokenTrue:         {(*parser).literal, nil, precNone},
		TokenFalse:        {(*parser).literal, nil, precNone},
		TokenSelf:         {(*parser).self, nil, precNone},
		TokenSuper:        {(*parser).super, nil, precNone},
	}
}

func getRule(t TokenType) parseRule {
	return rules[t]
}

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := getRule(p.previous.Type)
	if rule.prefix == nil {
		p.error("expected an expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= getRule(p.current.Type).prec {
		p.advance()
		getRule(p.previous.Type).infix(p, canAssign)
	}

	if canAssign && (p.check(TokenEqual) || isCompound(p.current.Type)) {
		p.errorAtCurrent("invalid assignment target")
	}
}

func isCompound(t TokenType) bool {
	_, ok := t.CompoundOp()
	return ok
}

func (p *parser) expression() {
	p.parsePrecedence(precAssignment)
}

func (p *parser) grouping(canAssign bool) {
	p.expression()
	p.consume(TokenRParen, "expected ')' after expression")
}

// number parses a literal whose separators the lexer already dropped.
func (p *parser) number(canAssign bool) {
	lit := p.previous.Literal
	var f float64
	if len(lit) > 2 && lit[0] == '0' {
		base := 0
		switch lit[1] {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}
		if base != 0 {
			n, err := strconv.ParseUint(lit[2:], base, 64)
			if err != nil {
				p.error(fmt.Sprintf("invalid number literal '%s'", lit))
				return
			}
			p.emitConstant(vm.NumberValue(float64(n)))
			return
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.error(fmt.Sprintf("invalid number literal '%s'", lit))
		return
	}
	p.emitConstant(vm.NumberValue(f))
}

func (p *parser) stringLiteral(canAssign bool) {
	s := p.heap.InternString(p.previous.Literal)
	p.emitConstant(vm.ObjValue(&s.Obj))
}

func (p *parser) literal(canAssign bool) {
	switch p.previous.Type {
	case TokenNil:
		p.emit(vm.OpNil)
	case TokenTrue:
		p.emit(vm.OpTrue)
	case TokenFalse:
		p.emit(vm.OpFalse)
	}
}

func (p *parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *parser) unary(canAssign bool) {
	op := p.previous.Type
	p.parsePrecedence(precUnary)
	switch op {
	case TokenMinus:
		p.emit(vm.OpNegate)
	case TokenBang:
		p.emit(vm.OpNot)
	case TokenTilde:
		p.emit(vm.OpBitNot)
	}
}

func (p *parser) binary(canAssign bool) {
	op := p.previous.Type
	rule := getRule(op)
	p.parsePrecedence(rule.prec + 1)

	switch op {
	case TokenPlus:
		p.emit(vm.OpAdd)
	case TokenMinus:
		p.emit(vm.OpSubtract)
	case TokenStar:
		p.emit(vm.OpMultiply)
	case TokenSlash:
		p.emit(vm.OpDivide)
	case TokenPercent:
		p.emit(vm.OpModulo)
	case TokenAmp:
		p.emit(vm.OpBitAnd)
	case TokenPipe:
		p.emit(vm.OpBitOr)
	case TokenCaret:
		p.emit(vm.OpBitXor)
	case TokenShiftLeft:
		p.emit(vm.OpShiftLeft)
	case TokenShiftRight:
		p.emit(vm.OpShiftRight)
	case TokenEqualEqual:
		p.emit(vm.OpEqual)
	case TokenBangEqual:
		p.emit(vm.OpNotEqual)
	case TokenLess:
		p.emit(vm.OpLess)
	case TokenLessEqual:
		p.emit(vm.OpLessEqual)
	case TokenGreater:
		p.emit(vm.OpGreater)
	case TokenGreaterEqual:
		p.emit(vm.OpGreaterEqual)
	}
}

// and short-circuits: with the left value on the stack, skip the right
// operand when it is falsy.
func (p *parser) and(canAssign bool) {
	endJump := p.emitJump(vm.OpJumpIfFalse)
	p.emit(vm.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *parser) or(canAssign bool) {
	endJump := p.emitJump(vm.OpJumpIfTrue)
	p.emit(vm.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) argumentList() byte {
	var argc int
	if !p.check(TokenRParen) {
		for {
			p.expression()
			argc++
			if argc > 255 {
				p.error("too many arguments")
			}
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.consume(TokenRParen, "expected ')' after arguments")
	return byte(argc)
}

func (p *parser) call(canAssign bool) {
	argc := p.argumentList()
	p.emitWithOperand(vm.OpCall, argc)
}

// dot compiles property access, property assignment, and the fused
// method-invocation form.
func (p *parser) dot(canAssign bool) {
	p.consume(TokenIdentifier, "expected property name after '.'")
	name := p.identifierConstant(p.previous)

	switch {
	case canAssign && p.match(TokenEqual):
		p.expression()
		p.emitWithOperand(vm.OpSetProperty, name)
	case canAssign && p.matchCompound():
		op := p.previous.Type
		p.emit(vm.OpDup)
		p.emitWithOperand(vm.OpGetProperty, name)
		p.expression()
		p.emitBinaryOp(op)
		p.emitWithOperand(vm.OpSetProperty, name)
	case p.match(TokenLParen):
		argc := p.argumentList()
		p.emitWithOperand(vm.OpInvoke, name, argc)
	default:
		p.emitWithOperand(vm.OpGetProperty, name)
	}
}

// subscript lowers a[i] and a[i] = v onto the reserved "subscript"
// method, so built-in containers and user types share the syntax.
func (p *parser) subscript(canAssign bool) {
	name := p.subscriptConstant()
	p.expression()
	p.consume(TokenRBracket, "expected ']' after index")

	switch {
	case canAssign && p.match(TokenEqual):
		p.expression()
		p.emitWithOperand(vm.OpInvoke, name, 2)
	case canAssign && p.matchCompound():
		op := p.previous.Type
		p.emit(vm.OpDup2)
		p.emitWithOperand(vm.OpInvoke, name, 1)
		p.expression()
		p.emitBinaryOp(op)
		p.emitWithOperand(vm.OpInvoke, name, 2)
	default:
		p.emitWithOperand(vm.OpInvoke, name, 1)
	}
}

func (p *parser) subscriptConstant() byte {
	s := p.heap.InternString("subscript")
	return p.makeConstant(vm.ObjValue(&s.Obj))
}

func (p *parser) listLiteral(canAssign bool) {
	var count int
	if !p.check(TokenRBracket) {
		for {
			p.expression()
			count++
			if count > 255 {
				p.error("too many elements in list literal")
			}
			if !p.match(TokenComma) {
				break
			}
			// Allow a trailing comma.
			if p.check(TokenRBracket) {
				break
			}
		}
	}
	p.consume(TokenRBracket, "expected ']' after list elements")
	p.emitWithOperand(vm.OpBuildList, byte(count))
}

func (p *parser) mapLiteral(canAssign bool) {
	var count int
	if !p.check(TokenRBrace) {
		for {
			p.expression()
			p.consume(TokenColon, "expected ':' after map key")
			p.expression()
			count++
			if count > 255 {
				p.error("too many entries in map literal")
			}
			if !p.match(TokenComma) {
				break
			}
			if p.check(TokenRBrace) {
				break
			}
		}
	}
	p.consume(TokenRBrace, "expected '}' after map entries")
	p.emitWithOperand(vm.OpBuildMap, byte(count))
}

func (p *parser) self(canAssign bool) {
	if p.typeCtx == nil {
		p.error("cannot use 'self' outside of a type")
		return
	}
	p.variable(false)
}

func (p *parser) super(canAssign bool) {
	if p.typeCtx == nil {
		p.error("cannot use 'super' outside of a type")
	} else if !p.typeCtx.hasSuper {
		p.error("cannot use 'super' in a type with no supertype")
	}

	p.consume(TokenDot, "expected '.' after 'super'")
	p.consume(TokenIdentifier, "expected supertype method name")
	name := p.identifierConstant(p.previous)

	p.namedVariable(Token{Type: TokenSelf, Literal: "self"}, false)
	if p.match(TokenLParen) {
		argc := p.argumentList()
		p.namedVariable(Token{Type: TokenSuper, Literal: "super"}, false)
		p.emitWithOperand(vm.OpSuperInvoke, name, argc)
	} else {
		p.namedVariable(Token{Type: TokenSuper, Literal: "super"}, false)
		p.emitWithOperand(vm.OpGetSuper, name)
	}
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

func (p *parser) declaration() {
	switch {
	case p.match(TokenLet):
		p.letDeclaration()
	case p.match(TokenFn):
		p.fnDeclaration()
	case p.match(TokenType_):
		p.typeDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) letDeclaration() {
	global := p.parseVariable("expected variable name")
	if p.match(TokenEqual) {
		p.expression()
	} else {
		p.emit(vm.OpNil)
	}
	p.consume(TokenSemicolon, "expected ';' after variable declaration")
	p.defineVariable(global)
}

func (p *parser) fnDeclaration() {
	global := p.parseVariable("expected function name")
	// A function may refer to itself: mark initialized before the body.
	p.markInitialized()
	p.function(kindFunction, p.previous.Literal)
	p.defineVariable(global)
}

// function compiles a parameter list and body into a new function object,
// then emits the CLOSURE instruction with its capture descriptors.
func (p *parser) function(kind funcKind, name string) {
	var c fnCompiler
	p.initCompiler(&c, kind, name)
	p.beginScope()

	p.consume(TokenLParen, "expected '(' after function name")
	if !p.check(TokenRParen) {
		for {
			p.compiler.function.Arity++
			if p.compiler.function.Arity > 255 {
				p.errorAtCurrent("too many parameters")
			}
			param := p.parseVariable("expected parameter name")
			p.defineVariable(param)
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.consume(TokenRParen, "expected ')' after parameters")
	p.consume(TokenLBrace, "expected '{' before function body")
	p.block()

	// No endScope: returning discards the whole frame.
	fn := p.endCompiler()
	operands := make([]byte, 0, 1+2*fn.UpvalueCount)
	operands = append(operands, p.makeConstant(vm.ObjValue(&fn.Obj)))
	for i := 0; i < fn.UpvalueCount; i++ {
		u := c.upvalues[i]
		isLocal := byte(0)
		if u.isLocal {
			isLocal = 1
		}
		operands = append(operands, isLocal, u.index)
	}
	p.emitWithOperand(vm.OpClosure, operands...)
}

func (p *parser) typeDeclaration() {
	p.consume(TokenIdentifier, "expected type name")
	nameToken := p.previous
	nameConstant := p.identifierConstant(nameToken)
	p.declareVariable()

	p.emitWithOperand(vm.OpType, nameConstant)
	p.defineVariable(nameConstant)

	ctx := &typeContext{enclosing: p.typeCtx}
	p.typeCtx = ctx

	if p.match(TokenColon) {
		p.consume(TokenIdentifier, "expected supertype name")
		p.variable(false)
		if identifiersEqual(nameToken, p.previous) {
			p.error("a type cannot inherit from itself")
		}
		p.beginScope()
		p.addLocal(Token{Type: TokenSuper, Literal: "super"})
		p.defineVariable(0)

		p.namedVariable(nameToken, false)
		p.emit(vm.OpInherit)
		ctx.hasSuper = true
	}

	p.namedVariable(nameToken, false)
	p.consume(TokenLBrace, "expected '{' before type body")
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		switch {
		case p.match(TokenFn):
			p.method()
		case p.match(TokenLet):
			p.fieldDeclaration()
		default:
			p.errorAtCurrent("expected a method or field declaration")
			p.advance()
		}
	}
	p.consume(TokenRBrace, "expected '}' after type body")
	p.emit(vm.OpPop)

	if ctx.hasSuper {
		p.endScope()
	}
	p.typeCtx = ctx.enclosing
}

func (p *parser) method() {
	p.consume(TokenIdentifier, "expected method name")
	name := p.identifierConstant(p.previous)
	kind := kindMethod
	if p.previous.Literal == "init" {
		kind = kindInitializer
	}
	p.function(kind, p.previous.Literal)
	p.emitWithOperand(vm.OpMethod, name)
}

// fieldDeclaration compiles a default-value field. The initializer runs
// once, at type-declaration time, with the type object on the stack.
func (p *parser) fieldDeclaration() {
	p.consume(TokenIdentifier, "expected field name")
	name := p.identifierConstant(p.previous)
	if p.match(TokenEqual) {
		p.expression()
	} else {
		p.emit(vm.OpNil)
	}
	p.consume(TokenSemicolon, "expected ';' after field declaration")
	p.emitWithOperand(vm.OpField, name)
}

func (p *parser) statement() {
	switch {
	case p.match(TokenIf):
		p.ifStatement()
	case p.match(TokenWhile):
		p.whileStatement()
	case p.match(TokenFor):
		p.forStatement()
	case p.match(TokenSwitch):
		p.switchStatement()
	case p.match(TokenBreak):
		p.breakStatement()
	case p.match(TokenContinue):
		p.continueStatement()
	case p.match(TokenReturn):
		p.returnStatement()
	case p.match(TokenExit):
		p.exitStatement()
	case p.match(TokenLBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		p.declaration()
	}
	p.consume(TokenRBrace, "expected '}' after block")
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(TokenSemicolon, "expected ';' after expression")
	p.emit(vm.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(TokenLParen, "expected '(' after 'if'")
	p.expression()
	p.consume(TokenRParen, "expected ')' after condition")

	thenJump := p.emitJump(vm.OpJumpIfFalse)
	p.emit(vm.OpPop)
	p.statement()
	elseJump := p.emitJump(vm.OpJump)
	p.patchJump(thenJump)
	p.emit(vm.OpPop)
	if p.match(TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := p.currentChunk().CurrentOffset()
	loop := &loopContext{
		enclosing:      p.loop,
		start:          loopStart,
		continueTarget: loopStart,
		scopeDepth:     p.compiler.scopeDepth,
	}
	p.loop = loop

	p.consume(TokenLParen, "expected '(' after 'while'")
	p.expression()
	p.consume(TokenRParen, "expected ')' after condition")

	exitJump := p.emitJump(vm.OpJumpIfFalse)
	p.emit(vm.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(vm.OpPop)
	p.finishLoop(loop)
}

// forStatement compiles for (init; cond; incr) body. The increment runs
// after the body, so its code is emitted first and reached by a forward
// jump from the condition, then loops back.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(TokenLParen, "expected '(' after 'for'")

	switch {
	case p.match(TokenSemicolon):
		// No initializer.
	case p.match(TokenLet):
		p.letDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().CurrentOffset()
	exitJump := -1
	if !p.match(TokenSemicolon) {
		p.expression()
		p.consume(TokenSemicolon, "expected ';' after loop condition")
		exitJump = p.emitJump(vm.OpJumpIfFalse)
		p.emit(vm.OpPop)
	}

	continueTarget := loopStart
	if !p.check(TokenRParen) {
		bodyJump := p.emitJump(vm.OpJump)
		incrementStart := p.currentChunk().CurrentOffset()
		p.expression()
		p.emit(vm.OpPop)
		p.emitLoop(loopStart)
		continueTarget = incrementStart
		p.patchJump(bodyJump)
	}
	p.consume(TokenRParen, "expected ')' after for clauses")

	loop := &loopContext{
		enclosing:      p.loop,
		start:          loopStart,
		continueTarget: continueTarget,
		scopeDepth:     p.compiler.scopeDepth,
	}
	p.loop = loop

	p.statement()
	p.emitLoop(continueTarget)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emit(vm.OpPop)
	}
	p.finishLoop(loop)
	p.endScope()
}

// finishLoop patches the break jumps and pops the loop context.
func (p *parser) finishLoop(loop *loopContext) {
	for _, j := range loop.breakJumps {
		p.patchJump(j)
	}
	p.loop = loop.enclosing
}

// discardLoopLocals pops locals declared inside the loop body without
// removing them from the compiler, since the statement continues past the
// jump for other paths. Captured locals get a CLOSE_UPVALUE like at normal
// scope exit.
func (p *parser) discardLoopLocals(loop *loopContext) {
	c := p.compiler
	pending := 0
	flush := func() {
		switch {
		case pending == 1:
			p.emit(vm.OpPop)
		case pending > 1:
			p.emitWithOperand(vm.OpPopN, byte(pending))
		}
		pending = 0
	}
	for i := c.localCount - 1; i >= 0 && c.locals[i].depth > loop.scopeDepth; i-- {
		if c.locals[i].isCaptured {
			flush()
			p.emit(vm.OpCloseUpvalue)
		} else {
			pending++
		}
	}
	flush()
}

func (p *parser) breakStatement() {
	if p.loop == nil {
		p.error("cannot use 'break' outside of a loop")
		p.consume(TokenSemicolon, "expected ';' after 'break'")
		return
	}
	p.consume(TokenSemicolon, "expected ';' after 'break'")
	p.discardLoopLocals(p.loop)
	p.loop.breakJumps = append(p.loop.breakJumps, p.emitJump(vm.OpJump))
}

func (p *parser) continueStatement() {
	if p.loop == nil {
		p.error("cannot use 'continue' outside of a loop")
		p.consume(TokenSemicolon, "expected ';' after 'continue'")
		return
	}
	p.consume(TokenSemicolon, "expected ';' after 'continue'")
	p.discardLoopLocals(p.loop)
	p.emitLoop(p.loop.continueTarget)
}

func (p *parser) returnStatement() {
	if p.compiler.kind == kindScript {
		p.error("cannot return from top-level code")
	}
	if p.match(TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.compiler.kind == kindInitializer {
		p.error("cannot return a value from an initializer")
	}
	p.expression()
	p.consume(TokenSemicolon, "expected ';' after return value")
	p.emit(vm.OpReturn)
}

func (p *parser) exitStatement() {
	p.consume(TokenLParen, "expected '(' after 'exit'")
	p.expression()
	p.consume(TokenRParen, "expected ')' after exit status")
	p.consume(TokenSemicolon, "expected ';' after 'exit'")
	p.emit(vm.OpExit)
}

// switchStatement lowers switch to a chain of duplicate-compare-jump
// tests. Exactly one arm runs: there is no fallthrough, and default, when
// present, must be last.
func (p *parser) switchStatement() {
	p.consume(TokenLParen, "expected '(' after 'switch'")
	p.expression()
	p.consume(TokenRParen, "expected ')' after switch value")
	p.consume(TokenLBrace, "expected '{' before switch body")

	var endJumps []int
	sawDefault := false

	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		switch {
		case p.match(TokenCase):
			if sawDefault {
				p.error("'case' cannot follow 'default'")
			}
			p.emit(vm.OpDup)
			p.expression()
			p.consume(TokenColon, "expected ':' after case value")
			p.emit(vm.OpEqual)
			nextJump := p.emitJump(vm.OpJumpIfFalse)
			p.emit(vm.OpPop) // comparison result
			p.emit(vm.OpPop) // switch value
			p.caseBody()
			endJumps = append(endJumps, p.emitJump(vm.OpJump))
			p.patchJump(nextJump)
			p.emit(vm.OpPop) // comparison result on the false path

		case p.match(TokenDefault):
			if sawDefault {
				p.error("multiple 'default' arms in switch")
			}
			sawDefault = true
			p.consume(TokenColon, "expected ':' after 'default'")
			p.emit(vm.OpPop) // switch value
			p.caseBody()
			endJumps = append(endJumps, p.emitJump(vm.OpJump))

		default:
			p.errorAtCurrent("expected 'case' or 'default'")
			p.advance()
		}
	}
	p.consume(TokenRBrace, "expected '}' after switch body")

	if !sawDefault {
		// No arm matched: the switch value is still on the stack.
		p.emit(vm.OpPop)
	}
	for _, j := range endJumps {
		p.patchJump(j)
	}
}

// caseBody compiles statements up to the next case, default, or the end
// of the switch.
func (p *parser) caseBody() {
	for !p.check(TokenCase) && !p.check(TokenDefault) &&
		!p.check(TokenRBrace) && !p.check(TokenEOF) {
		p.declaration()
	}
}

package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for Mica syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Mica source code, producing one token per NextToken
// call. It never fails: malformed input becomes an Error token and
// scanning continues at the next character.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size
		if r == '\n' {
			l.line++
		}
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) makeToken(t TokenType, literal string, line int) Token {
	return Token{Type: t, Literal: literal, Line: line}
}

func (l *Lexer) errorToken(line int, format string, args ...any) Token {
	return Token{Type: TokenError, Literal: fmt.Sprintf(format, args...), Line: line}
}

// single consumes the current character and returns a one-character token.
func (l *Lexer) single(t TokenType, line int) Token {
	lit := string(l.ch)
	l.readChar()
	return l.makeToken(t, lit, line)
}

// pair consumes one or two characters: if the next character is follow,
// the two-character token two is produced, otherwise one.
func (l *Lexer) pair(follow rune, two, one TokenType, line int) Token {
	first := l.ch
	l.readChar()
	if l.ch == follow {
		lit := string(first) + string(l.ch)
		l.readChar()
		return l.makeToken(two, lit, line)
	}
	return l.makeToken(one, string(first), line)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line := l.line

	switch {
	case l.ch == 0:
		return l.makeToken(TokenEOF, "", line)

	case l.ch == '(':
		return l.single(TokenLParen, line)
	case l.ch == ')':
		return l.single(TokenRParen, line)
	case l.ch == '{':
		return l.single(TokenLBrace, line)
	case l.ch == '}':
		return l.single(TokenRBrace, line)
	case l.ch == '[':
		return l.single(TokenLBracket, line)
	case l.ch == ']':
		return l.single(TokenRBracket, line)
	case l.ch == ',':
		return l.single(TokenComma, line)
	case l.ch == '.':
		return l.single(TokenDot, line)
	case l.ch == ';':
		return l.single(TokenSemicolon, line)
	case l.ch == ':':
		return l.single(TokenColon, line)
	case l.ch == '~':
		return l.single(TokenTilde, line)

	case l.ch == '+':
		return l.pair('=', TokenPlusEqual, TokenPlus, line)
	case l.ch == '-':
		return l.pair('=', TokenMinusEqual, TokenMinus, line)
	case l.ch == '*':
		return l.pair('=', TokenStarEqual, TokenStar, line)
	case l.ch == '/':
		return l.pair('=', TokenSlashEqual, TokenSlash, line)
	case l.ch == '%':
		return l.pair('=', TokenPercentEqual, TokenPercent, line)
	case l.ch == '!':
		return l.pair('=', TokenBangEqual, TokenBang, line)
	case l.ch == '=':
		return l.pair('=', TokenEqualEqual, TokenEqual, line)
	case l.ch == '&':
		return l.single(TokenAmp, line)
	case l.ch == '|':
		return l.single(TokenPipe, line)
	case l.ch == '^':
		return l.single(TokenCaret, line)

	case l.ch == '<':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return l.makeToken(TokenLessEqual, "<=", line)
		case '<':
			l.readChar()
			return l.makeToken(TokenShiftLeft, "<<", line)
		}
		return l.makeToken(TokenLess, "<", line)

	case l.ch == '>':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return l.makeToken(TokenGreaterEqual, ">=", line)
		case '>':
			l.readChar()
			return l.makeToken(TokenShiftRight, ">>", line)
		}
		return l.makeToken(TokenGreater, ">", line)

	case l.ch == '"':
		return l.readString(line)

	case isDigit(l.ch):
		return l.readNumber(line)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(line)

	default:
		ch := l.ch
		l.readChar()
		return l.errorToken(line, "unexpected character %q", ch)
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // /
			l.readChar() // *
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar() // *
				l.readChar() // /
			}
			continue
		}

		return
	}
}

// readString reads a double-quoted string literal, processing the usual
// backslash escapes.
func (l *Lexer) readString(line int) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 {
			return l.errorToken(line, "unterminated string")
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '0':
				sb.WriteByte(0)
			default:
				return l.errorToken(line, "invalid escape sequence \\%c", l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "

	return l.makeToken(TokenString, sb.String(), line)
}

// readNumber reads a numeric literal: decimal with optional fraction and
// exponent, or 0x/0b/0o prefixed integers. Underscores and single spaces
// may separate digit groups; a separator must sit between two digits of
// the same literal, so "f(1, 2)" still lexes as two numbers.
func (l *Lexer) readNumber(line int) Token {
	var sb strings.Builder

	// Prefixed literals: 0x, 0b, 0o.
	if l.ch == '0' {
		switch l.peekChar() {
		case 'x', 'X':
			return l.readPrefixed(line, 16, isHexDigit)
		case 'b', 'B':
			return l.readPrefixed(line, 2, isBinaryDigit)
		case 'o', 'O':
			return l.readPrefixed(line, 8, isOctalDigit)
		}
	}

	l.readDigits(&sb, isDigit)

	if l.ch == '.' && isDigit(l.peekChar()) {
		sb.WriteByte('.')
		l.readChar()
		l.readDigits(&sb, isDigit)
	}

	if l.ch == 'e' || l.ch == 'E' {
		sb.WriteRune(l.ch)
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			sb.WriteRune(l.ch)
			l.readChar()
		}
		if !isDigit(l.ch) {
			return l.errorToken(line, "malformed exponent in number literal")
		}
		l.readDigits(&sb, isDigit)
	}

	return l.makeToken(TokenNumber, sb.String(), line)
}

// readPrefixed consumes a radix-prefixed literal like 0xFF_FF. The
// returned literal keeps the prefix; separators are dropped.
func (l *Lexer) readPrefixed(line int, base int, valid func(rune) bool) Token {
	var sb strings.Builder
	sb.WriteRune(l.ch) // 0
	l.readChar()
	sb.WriteRune(l.ch) // x/b/o
	l.readChar()
	if !valid(l.ch) {
		return l.errorToken(line, "missing digits after base-%d prefix", base)
	}
	l.readDigits(&sb, valid)
	return l.makeToken(TokenNumber, sb.String(), line)
}

// readDigits appends a run of digits to sb, allowing '_' or a single
// space between digits.
func (l *Lexer) readDigits(sb *strings.Builder, valid func(rune) bool) {
	for {
		if valid(l.ch) {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		if (l.ch == '_' || l.ch == ' ') && valid(l.peekChar()) {
			l.readChar() // drop the separator
			continue
		}
		return
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(line int) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	return l.makeToken(identifierType(literal), literal, line)
}

// identifierType resolves keywords by switching on the first (and where
// needed second) character before confirming the remainder, so most
// identifiers are rejected after one comparison.
func identifierType(s string) TokenType {
	switch s[0] {
	case 'a':
		return checkKeyword(s, "and", TokenAnd)
	case 'b':
		return checkKeyword(s, "break", TokenBreak)
	case 'c':
		if len(s) > 1 {
			switch s[1] {
			case 'a':
				return checkKeyword(s, "case", TokenCase)
			case 'o':
				return checkKeyword(s, "continue", TokenContinue)
			}
		}
	case 'd':
		return checkKeyword(s, "default", TokenDefault)
	case 'e':
		if len(s) > 1 {
			switch s[1] {
			case 'l':
				return checkKeyword(s, "else", TokenElse)
			case 'x':
				return checkKeyword(s, "exit", TokenExit)
			}
		}
	case 'f':
		if len(s) > 1 {
			switch s[1] {
			case 'a':
				return checkKeyword(s, "false", TokenFalse)
			case 'n':
				return checkKeyword(s, "fn", TokenFn)
			case 'o':
				return checkKeyword(s, "for", TokenFor)
			}
		}
	case 'i':
		return checkKeyword(s, "if", TokenIf)
	case 'l':
		return checkKeyword(s, "let", TokenLet)
	case 'n':
		return checkKeyword(s, "nil", TokenNil)
	case 'o':
		return checkKeyword(s, "or", TokenOr)
	case 'r':
		return checkKeyword(s, "return", TokenReturn)
	case 's':
		if len(s) > 1 {
			switch s[1] {
			case 'e':
				return checkKeyword(s, "self", TokenSelf)
			case 'u':
				return checkKeyword(s, "super", TokenSuper)
			case 'w':
				return checkKeyword(s, "switch", TokenSwitch)
			}
		}
	case 't':
		if len(s) > 1 {
			switch s[1] {
			case 'r':
				return checkKeyword(s, "true", TokenTrue)
			case 'y':
				return checkKeyword(s, "type", TokenType_)
			}
		}
	case 'w':
		return checkKeyword(s, "while", TokenWhile)
	}
	return TokenIdentifier
}

func checkKeyword(s, keyword string, t TokenType) TokenType {
	if s == keyword {
		return t
	}
	return TokenIdentifier
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isBinaryDigit(r rune) bool {
	return r == '0' || r == '1'
}

func isOctalDigit(r rune) bool {
	return r >= '0' && r <= '7'
}

// Tokenize returns all tokens from the input, ending with EOF. Error
// tokens are included in place; scanning continues past them.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

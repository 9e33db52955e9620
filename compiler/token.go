package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Mica lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14, 0xFF, 0b1010, 0o755, 1_000_000
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Single-character delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenDot       // .
	TokenSemicolon // ;
	TokenColon     // :

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenBang         // !
	TokenBangEqual    // !=
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenAmp          // &
	TokenPipe         // |
	TokenCaret        // ^
	TokenTilde        // ~
	TokenShiftLeft    // <<
	TokenShiftRight   // >>
	TokenPlusEqual    // +=
	TokenMinusEqual   // -=
	TokenStarEqual    // *=
	TokenSlashEqual   // /=
	TokenPercentEqual // %=

	// Keywords
	TokenAnd
	TokenBreak
	TokenCase
	TokenContinue
	TokenDefault
	TokenElse
	TokenExit
	TokenFalse
	TokenFn
	TokenFor
	TokenIf
	TokenLet
	TokenNil
	TokenOr
	TokenReturn
	TokenSelf
	TokenSuper
	TokenSwitch
	TokenTrue
	TokenType_
	TokenWhile
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenIdentifier:   "IDENTIFIER",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenLBracket:     "[",
	TokenRBracket:     "]",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenSemicolon:    ";",
	TokenColon:        ":",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenAmp:          "&",
	TokenPipe:         "|",
	TokenCaret:        "^",
	TokenTilde:        "~",
	TokenShiftLeft:    "<<",
	TokenShiftRight:   ">>",
	TokenPlusEqual:    "+=",
	TokenMinusEqual:   "-=",
	TokenStarEqual:    "*=",
	TokenSlashEqual:   "/=",
	TokenPercentEqual: "%=",
	TokenAnd:          "and",
	TokenBreak:        "break",
	TokenCase:         "case",
	TokenContinue:     "continue",
	TokenDefault:      "default",
	TokenElse:         "else",
	TokenExit:         "exit",
	TokenFalse:        "false",
	TokenFn:           "fn",
	TokenFor:          "for",
	TokenIf:           "if",
	TokenLet:          "let",
	TokenNil:          "nil",
	TokenOr:           "or",
	TokenReturn:       "return",
	TokenSelf:         "self",
	TokenSuper:        "super",
	TokenSwitch:       "switch",
	TokenTrue:         "true",
	TokenType_:        "type",
	TokenWhile:        "while",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. Error tokens carry their message in
// Literal.
type Token struct {
	Type    TokenType
	Literal string // the raw text
	Line    int    // 1-based source line
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// CompoundOp returns the underlying binary operator token for a compound
// assignment token, and whether t is one.
func (t TokenType) CompoundOp() (TokenType, bool) {
	switch t {
	case TokenPlusEqual:
		return TokenPlus, true
	case TokenMinusEqual:
		return TokenMinus, true
	case TokenStarEqual:
		return TokenStar, true
	case TokenSlashEqual:
		return TokenSlash, true
	case TokenPercentEqual:
		return TokenPercent, true
	}
	return t, false
}

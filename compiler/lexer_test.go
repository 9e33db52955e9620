package compiler

import (
	"strings"
	"testing"
)

func lexAll(t *testing.T, source string) []Token {
	t.Helper()
	l := NewLexer(source)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func TestLexerBasicTokens(t *testing.T) {
	tokens := lexAll(t, `let x = 1 + 2;`)
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenLet, "let"},
		{TokenIdentifier, "x"},
		{TokenEqual, "="},
		{TokenNumber, "1"},
		{TokenPlus, "+"},
		{TokenNumber, "2"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w.typ || tokens[i].Literal != w.lit {
			t.Errorf("token %d = %v %q, want %v %q",
				i, tokens[i].Type, tokens[i].Literal, w.typ, w.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	src := `+ - * / % ! != = == < <= > >= & | ^ ~ << >> += -= *= /= %=`
	want := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenBang, TokenBangEqual, TokenEqual, TokenEqualEqual,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenAmp, TokenPipe, TokenCaret, TokenTilde,
		TokenShiftLeft, TokenShiftRight,
		TokenPlusEqual, TokenMinusEqual, TokenStarEqual,
		TokenSlashEqual, TokenPercentEqual,
		TokenEOF,
	}
	tokens := lexAll(t, src)
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, tokens[i].Type, w)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	src := "and break case continue default else exit false fn for if let " +
		"nil or return self super switch true type while"
	want := []TokenType{
		TokenAnd, TokenBreak, TokenCase, TokenContinue, TokenDefault,
		TokenElse, TokenExit, TokenFalse, TokenFn, TokenFor, TokenIf,
		TokenLet, TokenNil, TokenOr, TokenReturn, TokenSelf, TokenSuper,
		TokenSwitch, TokenTrue, TokenType_, TokenWhile, TokenEOF,
	}
	tokens := lexAll(t, src)
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d (%q) = %v, want %v",
				i, tokens[i].Literal, tokens[i].Type, w)
		}
	}
}

func TestLexerKeywordPrefixesAreIdentifiers(t *testing.T) {
	for _, src := range []string{"format", "iffy", "letter", "selfish", "types", "nile"} {
		tokens := lexAll(t, src)
		if tokens[0].Type != TokenIdentifier {
			t.Errorf("%q lexed as %v, want identifier", src, tokens[0].Type)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	cases := []struct {
		src string
		lit string
	}{
		{"42", "42"},
		{"3.14", "3.14"},
		{"2.5e2", "2.5e2"},
		{"1e-3", "1e-3"},
		{"1E+6", "1E+6"},
		{"1_000_000", "1000000"},
		{"1 000 000", "1000000"},
		{"1_000.25", "1000.25"},
		{"0xFF", "0xFF"},
		{"0xDE_AD", "0xDEAD"},
		{"0b1010_0001", "0b10100001"},
		{"0o755", "0o755"},
	}
	for _, tc := range cases {
		tokens := lexAll(t, tc.src)
		if tokens[0].Type != TokenNumber || tokens[0].Literal != tc.lit {
			t.Errorf("%q -> %v %q, want NUMBER %q",
				tc.src, tokens[0].Type, tokens[0].Literal, tc.lit)
		}
		if len(tokens) != 2 {
			t.Errorf("%q produced %d tokens, want number + EOF", tc.src, len(tokens))
		}
	}
}

func TestLexerSeparatorNeedsDigitsOnBothSides(t *testing.T) {
	// A trailing space is not a separator, so "f(1, 2)" must not glue the
	// arguments together.
	tokens := lexAll(t, "f(1, 2)")
	want := []TokenType{
		TokenIdentifier, TokenLParen, TokenNumber, TokenComma,
		TokenNumber, TokenRParen, TokenEOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens: %v", len(tokens), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, tokens[i].Type, w)
		}
	}
	if tokens[2].Literal != "1" || tokens[4].Literal != "2" {
		t.Errorf("numbers = %q, %q", tokens[2].Literal, tokens[4].Literal)
	}
}

func TestLexerMissingPrefixDigits(t *testing.T) {
	for _, src := range []string{"0x", "0b", "0o"} {
		tokens := lexAll(t, src)
		if tokens[0].Type != TokenError {
			t.Errorf("%q -> %v, want error token", src, tokens[0].Type)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	cases := []struct {
		src string
		lit string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote \" inside"`, `quote " inside`},
		{`"back\\slash"`, `back\slash`},
		{`"cr\r"`, "cr\r"},
	}
	for _, tc := range cases {
		tokens := lexAll(t, tc.src)
		if tokens[0].Type != TokenString || tokens[0].Literal != tc.lit {
			t.Errorf("%s -> %v %q, want STRING %q",
				tc.src, tokens[0].Type, tokens[0].Literal, tc.lit)
		}
	}
}

func TestLexerStringErrors(t *testing.T) {
	tokens := lexAll(t, `"unterminated`)
	if tokens[0].Type != TokenError || !strings.Contains(tokens[0].Literal, "unterminated") {
		t.Errorf("got %v %q", tokens[0].Type, tokens[0].Literal)
	}

	tokens = lexAll(t, `"bad \q escape"`)
	if tokens[0].Type != TokenError || !strings.Contains(tokens[0].Literal, "escape") {
		t.Errorf("got %v %q", tokens[0].Type, tokens[0].Literal)
	}
}

func TestLexerComments(t *testing.T) {
	tokens := lexAll(t, `
		// line comment
		let /* block
		comment */ x; // trailing
	`)
	want := []TokenType{TokenLet, TokenIdentifier, TokenSemicolon, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens: %v", len(tokens), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, tokens[i].Type, w)
		}
	}
}

func TestLexerLineNumbers(t *testing.T) {
	tokens := lexAll(t, "let a;\nlet b;\n\nlet c;")
	lines := map[string]int{}
	for _, tok := range tokens {
		if tok.Type == TokenIdentifier {
			lines[tok.Literal] = tok.Line
		}
	}
	if lines["a"] != 1 || lines["b"] != 2 || lines["c"] != 4 {
		t.Errorf("lines = %v", lines)
	}
}

func TestLexerBlockCommentTracksLines(t *testing.T) {
	tokens := lexAll(t, "/* one\ntwo\nthree */ x")
	if tokens[0].Type != TokenIdentifier || tokens[0].Line != 3 {
		t.Errorf("got %v on line %d, want identifier on line 3",
			tokens[0].Type, tokens[0].Line)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	tokens := lexAll(t, "let @ x;")
	if tokens[1].Type != TokenError {
		t.Errorf("token 1 = %v, want error", tokens[1].Type)
	}
}

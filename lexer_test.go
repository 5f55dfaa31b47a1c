package cnms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	bag := &diagBag{}
	lex := newLexer([]byte(src), bag)
	var toks []Token
	for {
		tok := lex.Next()
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return toks
}

func TestLexerKeywordsAndPunctuation(t *testing.T) {
	toks := lexAll(t, "fn main(x: i32) -> bool { return x == 1; }")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TokenKind{
		TokFn, TokIdent, TokLParen, TokIdent, TokColon, TokI32, TokRParen,
		TokArrow, TokBool, TokLBrace, TokReturn, TokIdent, TokEq, TokInt,
		TokSemicolon, TokRBrace, TokEOF,
	}, kinds)
}

func TestLexerNumberDoesNotSwallowHexLettersWithoutPrefix(t *testing.T) {
	toks := lexAll(t, "10abc")
	require.Len(t, toks, 3)
	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, "10", toks[0].Text.String())
	assert.Equal(t, TokIdent, toks[1].Kind)
	assert.Equal(t, "abc", toks[1].Text.String())
	assert.Equal(t, TokEOF, toks[2].Kind)
}

func TestLexerHexLiteral(t *testing.T) {
	toks := lexAll(t, "0xFF")
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, "0xFF", toks[0].Text.String())
}

func TestLexerFloatAndExponent(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
		want string
	}{
		{"plain float", "3.14", "3.14"},
		{"exponent", "1e10", "1e10"},
		{"exponent with sign", "1e-5", "1e-5"},
		{"integer then dot-call not a float", "1.foo", "1"},
		{"f32 suffix", "1.5f", "1.5f"},
	} {
		t.Run(test.name, func(t *testing.T) {
			toks := lexAll(t, test.src)
			assert.Equal(t, test.want, toks[0].Text.String())
		})
	}
}

func TestLexerTwoCharOperators(t *testing.T) {
	toks := lexAll(t, "== != <= >= << >> && || ->")
	var kinds []TokenKind
	for _, tok := range toks {
		if tok.Kind != TokEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, []TokenKind{
		TokEq, TokNeq, TokLeq, TokGeq, TokShl, TokShr, TokAndAnd, TokOrOr, TokArrow,
	}, kinds)
}

func TestLexerUnterminatedStringReportsDiagnostic(t *testing.T) {
	bag := &diagBag{}
	lex := newLexer([]byte(`"abc`), bag)
	tok := lex.Next()
	assert.Equal(t, TokEOF, tok.Kind)
	assert.Equal(t, 1, bag.errors)
}

func TestLexerLineComment(t *testing.T) {
	toks := lexAll(t, "1 // trailing comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, "1", toks[0].Text.String())
	assert.Equal(t, "2", toks[1].Text.String())
}

func TestLexerCharLiteralForms(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
	}{
		{"plain ascii", "'a'"},
		{"simple escape", "'\\n'"},
		{"hex escape", "'\\x41'"},
		{"unicode escape", "'\\u00E9'"},
		{"multi-byte utf8", "'é'"},
	} {
		t.Run(test.name, func(t *testing.T) {
			bag := &diagBag{}
			lex := newLexer([]byte(test.src), bag)
			tok := lex.Next()
			assert.Equal(t, TokChar, tok.Kind)
			assert.Equal(t, test.src, tok.Text.String())
			assert.Equal(t, 0, bag.errors)
		})
	}
}

func TestLexerRejectsBadEscapes(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
	}{
		{"unknown escape in string", `"a\q"`},
		{"truncated hex escape", `"\x4"`},
		{"truncated unicode escape", `"\u12"`},
	} {
		t.Run(test.name, func(t *testing.T) {
			bag := &diagBag{}
			lex := newLexer([]byte(test.src), bag)
			tok := lex.Next()
			assert.Equal(t, TokString, tok.Kind)
			assert.Equal(t, 1, bag.errors)
		})
	}
}

func TestLexerUnterminatedCharReportsDiagnostic(t *testing.T) {
	bag := &diagBag{}
	lex := newLexer([]byte("'a\nlet"), bag)
	tok := lex.Next()
	assert.Equal(t, TokEOF, tok.Kind)
	assert.Equal(t, 1, bag.errors)
}

func TestLexerSlashStarIsDivisionThenDeref(t *testing.T) {
	toks := lexAll(t, "a/*p")
	var kinds []TokenKind
	for _, tok := range toks {
		if tok.Kind != TokEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, []TokenKind{TokIdent, TokSlash, TokStar, TokIdent}, kinds)
}

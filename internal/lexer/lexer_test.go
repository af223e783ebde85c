package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugscan/internal/lexer"
)

func cConfig() lexer.Config {
	return lexer.Config{
		LineComment:  "//",
		BlockComment: [2]string{"/*", "*/"},
		Quotes:       []byte{'"', '\''},
		Preprocessor: true,
		Keywords:     map[string]bool{"int": true, "char": true, "return": true},
	}
}

func pyConfig() lexer.Config {
	return lexer.Config{
		LineComment:  "#",
		Quotes:       []byte{'"', '\''},
		TripleQuotes: true,
		Keywords:     map[string]bool{"def": true, "with": true, "as": true},
	}
}

func values(tokens []lexer.Token) []string {
	var out []string
	for _, tok := range tokens {
		if tok.Type == lexer.TokenEOF {
			continue
		}
		out = append(out, tok.Value)
	}
	return out
}

func TestTokenizeSkipsComments(t *testing.T) {
	src := "// malloc(10)\n/* free(p) */\nint x = 1;"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	assert.Equal(t, []string{"int", "x", "=", "1", ";"}, values(tokens))
	assert.Equal(t, lexer.TokenKeyword, tokens[0].Type)
	assert.Equal(t, 3, tokens[0].Line)
}

func TestTokenizeStringHidesCallNames(t *testing.T) {
	src := `log("malloc(8)");`
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	var strs, idents []string
	for _, tok := range tokens {
		switch tok.Type {
		case lexer.TokenString:
			strs = append(strs, tok.Value)
		case lexer.TokenIdent:
			idents = append(idents, tok.Value)
		}
	}
	assert.Equal(t, []string{`"malloc(8)"`, "log"}, append(strs, idents...))
}

func TestTokenizeEscapedQuote(t *testing.T) {
	src := `s = "say \"hi\"";`
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)
	assert.Contains(t, values(tokens), `"say \"hi\""`)
}

func TestTokenizeUnterminatedBlockComment(t *testing.T) {
	src := "int a = 1;\n/* never closed"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()

	require.Error(t, err)
	assert.ErrorIs(t, err, lexer.ErrMalformedInput)
	// Tokens before the malformed region survive.
	assert.Equal(t, []string{"int", "a", "=", "1", ";"}, values(tokens))
}

func TestTokenizeUnterminatedStringAtEOF(t *testing.T) {
	src := `name = "oops`
	_, err := lexer.New([]byte(src), cConfig()).Tokenize()
	assert.ErrorIs(t, err, lexer.ErrMalformedInput)
}

func TestTokenizeStringRecoversAtNewline(t *testing.T) {
	src := "s = \"broken\nnext = 1;"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	// The line after the broken literal still tokenizes.
	assert.Contains(t, values(tokens), "next")
	assert.Contains(t, values(tokens), "1")
}

func TestTokenizeTripleQuotedString(t *testing.T) {
	src := "\"\"\"docstring with open() inside\"\"\"\nfh = open(path)"
	tokens, err := lexer.New([]byte(src), pyConfig()).Tokenize()
	require.NoError(t, err)

	assert.Equal(t, lexer.TokenString, tokens[0].Type)
	var opens int
	for _, tok := range tokens {
		if tok.Type == lexer.TokenIdent && tok.Value == "open" {
			opens++
			assert.Equal(t, 2, tok.Line)
		}
	}
	assert.Equal(t, 1, opens)
}

func TestTokenizeUnterminatedTripleQuote(t *testing.T) {
	src := "\"\"\"never closed\nx = 1"
	_, err := lexer.New([]byte(src), pyConfig()).Tokenize()
	assert.ErrorIs(t, err, lexer.ErrMalformedInput)
}

func TestTokenizePreprocessorWithContinuation(t *testing.T) {
	src := "#define ALLOC(n) \\\n    malloc(n)\nint y;"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	assert.NotContains(t, values(tokens), "malloc")
	assert.Contains(t, values(tokens), "y")
}

func TestTokenizeQualifiedAndArrowOperators(t *testing.T) {
	src := "std::thread t; p->close();"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	vals := values(tokens)
	assert.Contains(t, vals, "::")
	assert.Contains(t, vals, "->")
}

func TestTokenizeTwoCharOperators(t *testing.T) {
	src := "if (a == b && c != d) a += 1;"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)

	vals := values(tokens)
	assert.Contains(t, vals, "==")
	assert.Contains(t, vals, "&&")
	assert.Contains(t, vals, "!=")
	assert.Contains(t, vals, "+=")
	assert.NotContains(t, vals, "=")
}

func TestTokenizeHexNumber(t *testing.T) {
	tokens, err := lexer.New([]byte("mask = 0xFF;"), cConfig()).Tokenize()
	require.NoError(t, err)

	var num *lexer.Token
	for i := range tokens {
		if tokens[i].Type == lexer.TokenNumber {
			num = &tokens[i]
		}
	}
	require.NotNil(t, num)
	assert.Equal(t, "0xFF", num.Value)
}

func TestTokenizePositions(t *testing.T) {
	src := "a\n  b"
	tokens, err := lexer.New([]byte(src), cConfig()).Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3) // a, b, EOF

	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
}

func TestTokenizeEmptyInput(t *testing.T) {
	tokens, err := lexer.New(nil, cConfig()).Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, lexer.TokenEOF, tokens[0].Type)
}

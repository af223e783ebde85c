package lexer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMalformedInput is reported when the input ends inside a string or block
// comment. Tokenization continues best-effort and the partial token stream is
// still returned alongside the error.
var ErrMalformedInput = errors.New("malformed input")

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenKeyword
	TokenOperator
	TokenPunctuation
)

type Token struct {
	Type   TokenType
	Value  string
	Offset int
	Line   int
	Column int
}

// Config describes the lexical surface of one language. All fields are data;
// adding a language never adds a code path here.
type Config struct {
	LineComment  string
	BlockComment [2]string
	Quotes       []byte
	TripleQuotes bool // Python-style """ and ''' literals
	Preprocessor bool // skip # directive lines (C/C++)
	Keywords     map[string]bool
}

// Lexer tokenizes source text according to a Config.
type Lexer struct {
	input  string
	cfg    Config
	pos    int
	line   int
	column int
	tokens []Token
	err    error
}

func New(input []byte, cfg Config) *Lexer {
	return &Lexer{
		input:  string(input),
		cfg:    cfg,
		line:   1,
		column: 1,
	}
}

// Tokenize processes the entire input and returns all tokens. A non-nil error
// wraps ErrMalformedInput; the returned tokens are still valid up to the
// malformed region and past it where recovery was possible.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.input[l.pos]

		if ch == ':' && l.peek() == ':' {
			l.addToken(TokenOperator, "::")
			l.advance()
			l.advance()
			continue
		}

		switch {
		case l.isQuote(ch):
			l.readString(ch)
		case ch == '#' && l.cfg.Preprocessor:
			l.skipPreprocessor()
		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.readIdentifier()
		case unicode.IsDigit(rune(ch)):
			l.readNumber()
		case isOperatorByte(ch):
			l.readOperator()
		case isPunctuationByte(ch):
			l.addToken(TokenPunctuation, string(ch))
			l.advance()
		default:
			l.advance()
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Offset: l.pos, Line: l.line, Column: l.column})
	return l.tokens, l.err
}

func (l *Lexer) isQuote(ch byte) bool {
	for _, q := range l.cfg.Quotes {
		if ch == q {
			return true
		}
	}
	return false
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) peek() byte {
	if l.pos+1 < len(l.input) {
		return l.input[l.pos+1]
	}
	return 0
}

func (l *Lexer) skipWhitespaceAndComments() {
	lc := l.cfg.LineComment
	bcStart, bcEnd := l.cfg.BlockComment[0], l.cfg.BlockComment[1]

	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case lc != "" && strings.HasPrefix(l.input[l.pos:], lc):
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		case bcStart != "" && strings.HasPrefix(l.input[l.pos:], bcStart):
			openLine := l.line
			for range bcStart {
				l.advance()
			}
			closed := false
			for l.pos < len(l.input) {
				if strings.HasPrefix(l.input[l.pos:], bcEnd) {
					for range bcEnd {
						l.advance()
					}
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				l.setMalformed("unterminated block comment opened at line %d", openLine)
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipPreprocessor() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		// Handle line continuation
		if l.input[l.pos] == '\\' && l.peek() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		l.advance()
	}
}

func (l *Lexer) readString(quote byte) {
	startLine := l.line
	startCol := l.column
	startOff := l.pos

	if l.cfg.TripleQuotes && strings.HasPrefix(l.input[l.pos:], strings.Repeat(string(quote), 3)) {
		l.readTripleString(quote, startLine, startCol, startOff)
		return
	}

	var sb strings.Builder
	sb.WriteByte(quote)
	l.advance() // opening quote
	closed := false

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			sb.WriteByte(ch)
			l.advance()
			sb.WriteByte(l.input[l.pos])
			l.advance()
		} else if ch == quote {
			sb.WriteByte(ch)
			l.advance()
			closed = true
			break
		} else if ch == '\n' {
			// Unterminated on this line; recover at the newline so the rest
			// of the file still tokenizes.
			break
		} else {
			sb.WriteByte(ch)
			l.advance()
		}
	}

	if !closed && l.pos >= len(l.input) {
		l.setMalformed("unterminated string literal at line %d", startLine)
	}

	l.tokens = append(l.tokens, Token{
		Type:   TokenString,
		Value:  sb.String(),
		Offset: startOff,
		Line:   startLine,
		Column: startCol,
	})
}

func (l *Lexer) readTripleString(quote byte, startLine, startCol, startOff int) {
	delim := strings.Repeat(string(quote), 3)
	for range delim {
		l.advance()
	}
	closed := false
	for l.pos < len(l.input) {
		if strings.HasPrefix(l.input[l.pos:], delim) {
			for range delim {
				l.advance()
			}
			closed = true
			break
		}
		l.advance()
	}
	if !closed {
		l.setMalformed("unterminated triple-quoted string at line %d", startLine)
	}
	l.tokens = append(l.tokens, Token{
		Type:   TokenString,
		Value:  delim + "..." + delim,
		Offset: startOff,
		Line:   startLine,
		Column: startCol,
	})
}

func (l *Lexer) readIdentifier() {
	startLine := l.line
	startCol := l.column
	start := l.pos

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' {
			l.advance()
		} else {
			break
		}
	}

	value := l.input[start:l.pos]
	tokenType := TokenIdent
	if l.cfg.Keywords[value] {
		tokenType = TokenKeyword
	}

	l.tokens = append(l.tokens, Token{
		Type:   tokenType,
		Value:  value,
		Offset: start,
		Line:   startLine,
		Column: startCol,
	})
}

func (l *Lexer) readNumber() {
	startLine := l.line
	startCol := l.column
	start := l.pos

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsDigit(rune(ch)) || ch == '.' || ch == 'x' || ch == 'X' ||
			(ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			l.advance()
		} else {
			break
		}
	}

	l.tokens = append(l.tokens, Token{
		Type:   TokenNumber,
		Value:  l.input[start:l.pos],
		Offset: start,
		Line:   startLine,
		Column: startCol,
	})
}

func isOperatorByte(ch byte) bool {
	return ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '=' ||
		ch == '<' || ch == '>' || ch == '!' || ch == '&' || ch == '|' ||
		ch == '^' || ch == '%' || ch == '~'
}

func (l *Lexer) readOperator() {
	startLine := l.line
	startCol := l.column
	start := l.pos

	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		switch two {
		case "->", "==", "!=", "<=", ">=", "&&", "||",
			"++", "--", "+=", "-=", "*=", "/=", ":=":
			l.advance()
			l.advance()
			l.tokens = append(l.tokens, Token{
				Type:   TokenOperator,
				Value:  two,
				Offset: start,
				Line:   startLine,
				Column: startCol,
			})
			return
		}
	}

	l.advance()
	l.tokens = append(l.tokens, Token{
		Type:   TokenOperator,
		Value:  l.input[start:l.pos],
		Offset: start,
		Line:   startLine,
		Column: startCol,
	})
}

func isPunctuationByte(ch byte) bool {
	return ch == '{' || ch == '}' || ch == '(' || ch == ')' ||
		ch == '[' || ch == ']' || ch == ';' || ch == ',' ||
		ch == ':' || ch == '.' || ch == '#'
}

func (l *Lexer) addToken(tokenType TokenType, value string) {
	l.tokens = append(l.tokens, Token{
		Type:   tokenType,
		Value:  value,
		Offset: l.pos,
		Line:   l.line,
		Column: l.column,
	})
}

func (l *Lexer) setMalformed(format string, args ...any) {
	if l.err == nil {
		l.err = fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
	}
}

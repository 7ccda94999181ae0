// Package preproc implements the TableGen preprocessor: #define/#undef,
// #ifdef/#ifndef/#else/#endif and textual include inlining.
package preproc

import (
	"strings"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// TokenType represents the type of a directive-line token.
type TokenType int

const (
	PP_EOF TokenType = iota
	PP_IDENTIFIER
	PP_NUMBER
	PP_STRING
	PP_PUNCTUATOR
	PP_HASH // # starting a directive
)

func (t TokenType) String() string {
	switch t {
	case PP_EOF:
		return "EOF"
	case PP_IDENTIFIER:
		return "IDENTIFIER"
	case PP_NUMBER:
		return "NUMBER"
	case PP_STRING:
		return "STRING"
	case PP_PUNCTUATOR:
		return "PUNCTUATOR"
	case PP_HASH:
		return "HASH"
	default:
		return "UNKNOWN"
	}
}

// Token represents a preprocessing token.
type Token struct {
	Type TokenType
	Text string
	Loc  diag.SourceLoc
}

// Lexer tokenizes a single directive line.
type Lexer struct {
	input  string
	pos    int
	column int
	file   string
	line   int
}

// NewLexer creates a lexer over one line of input located at file:line.
func NewLexer(input, file string, line int) *Lexer {
	return &Lexer{input: input, column: 1, file: file, line: line}
}

// NextToken returns the next token on the line; comments and whitespace
// are skipped.
func (l *Lexer) NextToken() Token {
	l.skipBlank()
	if l.pos >= len(l.input) {
		return Token{Type: PP_EOF, Loc: l.loc()}
	}

	c := l.input[l.pos]
	switch {
	case c == '#':
		tok := Token{Type: PP_HASH, Text: "#", Loc: l.loc()}
		l.advance()
		return tok
	case c == '"':
		return l.scanString()
	case isDigit(c):
		return l.scanWhile(PP_NUMBER, isIdentContinue)
	case isIdentStart(c):
		return l.scanWhile(PP_IDENTIFIER, isIdentContinue)
	}
	tok := Token{Type: PP_PUNCTUATOR, Text: string(c), Loc: l.loc()}
	l.advance()
	return tok
}

// AllTokens returns all tokens of the line, ending with PP_EOF.
func (l *Lexer) AllTokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == PP_EOF {
			break
		}
	}
	return tokens
}

func (l *Lexer) loc() diag.SourceLoc {
	return diag.SourceLoc{File: l.file, Line: l.line, Column: l.column}
}

func (l *Lexer) advance() {
	l.pos++
	l.column++
}

func (l *Lexer) skipBlank() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v' {
			l.advance()
			continue
		}
		// A trailing // comment ends the directive.
		if c == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
			l.pos = len(l.input)
			return
		}
		if c == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*' {
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.input)
				return
			}
			n := end + 4
			l.pos += n
			l.column += n
			continue
		}
		return
	}
}

func (l *Lexer) scanWhile(typ TokenType, pred func(byte) bool) Token {
	loc := l.loc()
	start := l.pos
	for l.pos < len(l.input) && pred(l.input[l.pos]) {
		l.advance()
	}
	return Token{Type: typ, Text: l.input[start:l.pos], Loc: loc}
}

func (l *Lexer) scanString() Token {
	loc := l.loc()
	start := l.pos
	l.advance() // consume opening "
	for l.pos < len(l.input) {
		if l.input[l.pos] == '"' {
			l.advance()
			break
		}
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.advance()
		}
		l.advance()
	}
	return Token{Type: PP_STRING, Text: l.input[start:l.pos], Loc: loc}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// IsIdentifier checks if a string is a valid macro name.
func IsIdentifier(s string) bool {
	if len(s) == 0 || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentContinue(s[i]) {
			return false
		}
	}
	return true
}

// lineState tracks multi-line constructs so directives are only recognized
// outside block comments and [{ }] code literals.
type lineState struct {
	commentDepth int
	inCode       bool
}

// scan updates the state with the contents of one source line.
func (s *lineState) scan(line string) {
	inString := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		next := byte(0)
		if i+1 < len(line) {
			next = line[i+1]
		}
		switch {
		case s.commentDepth > 0:
			if c == '/' && next == '*' {
				s.commentDepth++
				i++
			} else if c == '*' && next == '/' {
				s.commentDepth--
				i++
			}
		case s.inCode:
			if c == '}' && next == ']' {
				s.inCode = false
				i++
			}
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		default:
			switch {
			case c == '"':
				inString = true
			case c == '/' && next == '/':
				return
			case c == '/' && next == '*':
				s.commentDepth++
				i++
			case c == '[' && next == '{':
				s.inCode = true
				i++
			}
		}
	}
}

// atTopLevel reports whether the start of the next line is ordinary text.
func (s *lineState) atTopLevel() bool {
	return s.commentDepth == 0 && !s.inCode
}

// Package lexer tokenizes preprocessed TableGen source.
package lexer

import (
	"strings"
)

// Lexer tokenizes TableGen source code
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekCharAt(offset int) byte {
	if l.readPos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.readPos+offset]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	if msg := l.skipWhitespaceAndComments(); msg != "" {
		return Token{Type: TokenIllegal, Literal: msg, Line: l.line, Column: l.column}
	}

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		if l.pos < len(l.input) {
			tok = l.newToken(TokenIllegal, l.ch)
			break
		}
		tok.Type = TokenEOF
		tok.Literal = ""
		return tok
	case '+':
		if isDigit(l.peekChar()) {
			l.readChar()
			tok.Type = TokenInt
			tok.Literal = l.readNumber()
			return tok
		}
		tok = l.newToken(TokenPlus, l.ch)
	case '-':
		if isDigit(l.peekChar()) {
			l.readChar()
			tok.Type = TokenInt
			tok.Literal = "-" + l.readNumber()
			return tok
		}
		tok = l.newToken(TokenMinus, l.ch)
	case '[':
		if l.peekChar() == '{' {
			return l.readCode(tok)
		}
		tok = l.newToken(TokenLBracket, l.ch)
	case ']':
		tok = l.newToken(TokenRBracket, l.ch)
	case '{':
		tok = l.newToken(TokenLBrace, l.ch)
	case '}':
		tok = l.newToken(TokenRBrace, l.ch)
	case '<':
		tok = l.newToken(TokenLt, l.ch)
	case '>':
		tok = l.newToken(TokenGt, l.ch)
	case ':':
		tok = l.newToken(TokenColon, l.ch)
	case ';':
		tok = l.newToken(TokenSemicolon, l.ch)
	case '.':
		if l.peekChar() == '.' && l.peekCharAt(1) == '.' {
			l.readChar()
			l.readChar()
			tok.Type = TokenEllipsis
			tok.Literal = "..."
		} else {
			tok = l.newToken(TokenDot, l.ch)
		}
	case '=':
		tok = l.newToken(TokenAssign, l.ch)
	case '?':
		tok = l.newToken(TokenQuestion, l.ch)
	case '#':
		tok = l.newToken(TokenPaste, l.ch)
	case ',':
		tok = l.newToken(TokenComma, l.ch)
	case '(':
		tok = l.newToken(TokenLParen, l.ch)
	case ')':
		tok = l.newToken(TokenRParen, l.ch)
	case '"':
		return l.readString(tok)
	case '$':
		l.readChar()
		if !isLetter(l.ch) {
			tok.Type = TokenIllegal
			tok.Literal = "invalid variable name after '$'"
			return tok
		}
		tok.Type = TokenVarName
		tok.Literal = l.readIdentifier()
		return tok
	case '!':
		l.readChar()
		if !isLetter(l.ch) {
			tok.Type = TokenIllegal
			tok.Literal = "expected bang operator name after '!'"
			return tok
		}
		tok.Type = TokenBang
		tok.Literal = l.readIdentifier()
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			return l.readNumberOrIdent(tok)
		}
		tok = l.newToken(TokenIllegal, l.ch)
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, ch byte) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

// skipWhitespaceAndComments skips blanks, line comments and nested block
// comments. It returns a non-empty message for an unterminated comment.
func (l *Lexer) skipWhitespaceAndComments() string {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar() // consume /
			l.readChar() // consume *
			depth := 1
			for depth > 0 {
				if l.atEOF() {
					return "unterminated comment"
				}
				if l.ch == '/' && l.peekChar() == '*' {
					l.readChar()
					depth++
				} else if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					depth--
				}
				l.readChar()
			}
		default:
			return ""
		}
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *Lexer) readNumber() string {
	pos := l.pos
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') && isHexDigit(l.peekCharAt(1)) {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return l.input[pos:l.pos]
	}
	if l.ch == '0' && l.peekChar() == 'b' && (l.peekCharAt(1) == '0' || l.peekCharAt(1) == '1') {
		l.readChar()
		l.readChar()
		for l.ch == '0' || l.ch == '1' {
			l.readChar()
		}
		return l.input[pos:l.pos]
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readNumberOrIdent reads an integer, or an identifier that starts with
// digits (e.g. the 8i in foo#8i).
func (l *Lexer) readNumberOrIdent(tok Token) Token {
	start := l.pos
	lit := l.readNumber()
	if isLetter(l.ch) && !strings.HasPrefix(lit, "0x") && !strings.HasPrefix(lit, "0b") {
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		tok.Type = TokenIdent
		tok.Literal = l.input[start:l.pos]
		return tok
	}
	tok.Type = TokenInt
	tok.Literal = lit
	return tok
}

// readString reads a double-quoted string and returns its unescaped value.
func (l *Lexer) readString(tok Token) Token {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == '\n' || l.atEOF() {
			tok.Type = TokenIllegal
			tok.Literal = "unterminated string literal"
			return tok
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteByte(l.ch)
			default:
				tok.Type = TokenIllegal
				tok.Literal = "invalid escape in string literal"
				return tok
			}
			l.readChar()
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	tok.Type = TokenString
	tok.Literal = sb.String()
	return tok
}

// readCode reads a [{ ... }] code literal verbatim.
func (l *Lexer) readCode(tok Token) Token {
	l.readChar() // consume [
	l.readChar() // consume {
	pos := l.pos
	for !(l.ch == '}' && l.peekChar() == ']') {
		if l.atEOF() {
			tok.Type = TokenIllegal
			tok.Literal = "unterminated code block"
			return tok
		}
		l.readChar()
	}
	tok.Type = TokenCode
	tok.Literal = l.input[pos:l.pos]
	l.readChar() // consume }
	l.readChar() // consume ]
	return tok
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

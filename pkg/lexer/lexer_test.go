package lexer

import "testing"

type expectedToken struct {
	expectedType    TokenType
	expectedLiteral string
}

func checkTokens(t *testing.T, input string, tests []expectedToken) {
	t.Helper()
	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextToken(t *testing.T) {
	input := `class Operator<string mnemonic> { string m = mnemonic; }`

	checkTokens(t, input, []expectedToken{
		{TokenClass, "class"},
		{TokenIdent, "Operator"},
		{TokenLt, "<"},
		{TokenStringKw, "string"},
		{TokenIdent, "mnemonic"},
		{TokenGt, ">"},
		{TokenLBrace, "{"},
		{TokenStringKw, "string"},
		{TokenIdent, "m"},
		{TokenAssign, "="},
		{TokenIdent, "mnemonic"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	})
}

func TestPunctuation(t *testing.T) {
	input := `- + [ ] { } < > : ; . ... = ? # , ( )`

	checkTokens(t, input, []expectedToken{
		{TokenMinus, "-"},
		{TokenPlus, "+"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLt, "<"},
		{TokenGt, ">"},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenDot, "."},
		{TokenEllipsis, "..."},
		{TokenAssign, "="},
		{TokenQuestion, "?"},
		{TokenPaste, "#"},
		{TokenComma, ","},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenEOF, ""},
	})
}

func TestNumbers(t *testing.T) {
	input := `42 -7 +3 0x1F 0b101 0-3 8i`

	checkTokens(t, input, []expectedToken{
		{TokenInt, "42"},
		{TokenInt, "-7"},
		{TokenInt, "3"},
		{TokenInt, "0x1F"},
		{TokenInt, "0b101"},
		{TokenInt, "0"},
		{TokenInt, "-3"},
		{TokenIdent, "8i"},
		{TokenEOF, ""},
	})
}

func TestStringsAndCode(t *testing.T) {
	input := `"a\"b\n" [{ x = [y]; }] $dst`

	checkTokens(t, input, []expectedToken{
		{TokenString, "a\"b\n"},
		{TokenCode, " x = [y]; "},
		{TokenVarName, "dst"},
		{TokenEOF, ""},
	})
}

func TestBangOperators(t *testing.T) {
	input := `!add(1, 2) !getdagarg<int>`

	checkTokens(t, input, []expectedToken{
		{TokenBang, "add"},
		{TokenLParen, "("},
		{TokenInt, "1"},
		{TokenComma, ","},
		{TokenInt, "2"},
		{TokenRParen, ")"},
		{TokenBang, "getdagarg"},
		{TokenLt, "<"},
		{TokenIntKw, "int"},
		{TokenGt, ">"},
		{TokenEOF, ""},
	})
}

func TestKeywords(t *testing.T) {
	input := `def defm defvar defset deftype multiclass foreach in let if then else assert dump field bit bits int string code list dag true false include`

	checkTokens(t, input, []expectedToken{
		{TokenDef, "def"},
		{TokenDefm, "defm"},
		{TokenDefvar, "defvar"},
		{TokenDefset, "defset"},
		{TokenDeftype, "deftype"},
		{TokenMulticlass, "multiclass"},
		{TokenForeach, "foreach"},
		{TokenIn, "in"},
		{TokenLet, "let"},
		{TokenIf, "if"},
		{TokenThen, "then"},
		{TokenElse, "else"},
		{TokenAssert, "assert"},
		{TokenDump, "dump"},
		{TokenField, "field"},
		{TokenBit, "bit"},
		{TokenBits, "bits"},
		{TokenIntKw, "int"},
		{TokenStringKw, "string"},
		{TokenCodeKw, "code"},
		{TokenList, "list"},
		{TokenDag, "dag"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenInclude, "include"},
		{TokenEOF, ""},
	})
}

func TestComments(t *testing.T) {
	input := `def // comment
A /* block /* nested */
comment */ ;`

	checkTokens(t, input, []expectedToken{
		{TokenDef, "def"},
		{TokenIdent, "A"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	})
}

func TestLineNumbers(t *testing.T) {
	l := New("def\n\n  A;")
	tok := l.NextToken()
	if tok.Line != 1 || tok.Column != 1 {
		t.Errorf("def at %d:%d", tok.Line, tok.Column)
	}
	tok = l.NextToken()
	if tok.Line != 3 || tok.Column != 3 {
		t.Errorf("A at %d:%d", tok.Line, tok.Column)
	}
}

func TestIllegalTokens(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"abc`, "unterminated string literal"},
		{`[{ abc`, "unterminated code block"},
		{`/* abc`, "unterminated comment"},
		{`"\q"`, "invalid escape in string literal"},
		{`! x`, "expected bang operator name after '!'"},
	}

	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != TokenIllegal {
			t.Errorf("%q: expected ILLEGAL, got %s", tt.input, tok.Type)
			continue
		}
		if tok.Literal != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.want, tok.Literal)
		}
	}
}

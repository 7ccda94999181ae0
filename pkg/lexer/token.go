package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent   // Foo, x, 3dnow
	TokenInt     // 42, -7, 0x1F, 0b101
	TokenString  // "hello"
	TokenCode    // [{ ... }]
	TokenVarName // $src
	TokenBang    // !add, !foreach (Literal holds the name without '!')

	// Keywords
	TokenAssert     // assert
	TokenBit        // bit
	TokenBits       // bits
	TokenClass      // class
	TokenCodeKw     // code
	TokenDag        // dag
	TokenDef        // def
	TokenDefm       // defm
	TokenDefset     // defset
	TokenDeftype    // deftype
	TokenDefvar     // defvar
	TokenDump       // dump
	TokenElse       // else
	TokenFalse      // false
	TokenField      // field
	TokenForeach    // foreach
	TokenIf         // if
	TokenIn         // in
	TokenInclude    // include
	TokenIntKw      // int
	TokenLet        // let
	TokenList       // list
	TokenMulticlass // multiclass
	TokenStringKw   // string
	TokenThen       // then
	TokenTrue       // true

	// Punctuation
	TokenMinus     // -
	TokenPlus      // +
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLt        // <
	TokenGt        // >
	TokenColon     // :
	TokenSemicolon // ;
	TokenDot       // .
	TokenEllipsis  // ...
	TokenAssign    // =
	TokenQuestion  // ?
	TokenPaste     // #
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenIllegal:    "ILLEGAL",
	TokenIdent:      "IDENT",
	TokenInt:        "INT",
	TokenString:     "STRING",
	TokenCode:       "CODE",
	TokenVarName:    "VARNAME",
	TokenBang:       "BANG",
	TokenAssert:     "assert",
	TokenBit:        "bit",
	TokenBits:       "bits",
	TokenClass:      "class",
	TokenCodeKw:     "code",
	TokenDag:        "dag",
	TokenDef:        "def",
	TokenDefm:       "defm",
	TokenDefset:     "defset",
	TokenDeftype:    "deftype",
	TokenDefvar:     "defvar",
	TokenDump:       "dump",
	TokenElse:       "else",
	TokenFalse:      "false",
	TokenField:      "field",
	TokenForeach:    "foreach",
	TokenIf:         "if",
	TokenIn:         "in",
	TokenInclude:    "include",
	TokenIntKw:      "int",
	TokenLet:        "let",
	TokenList:       "list",
	TokenMulticlass: "multiclass",
	TokenStringKw:   "string",
	TokenThen:       "then",
	TokenTrue:       "true",
	TokenMinus:      "-",
	TokenPlus:       "+",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenLt:         "<",
	TokenGt:         ">",
	TokenColon:      ":",
	TokenSemicolon:  ";",
	TokenDot:        ".",
	TokenEllipsis:   "...",
	TokenAssign:     "=",
	TokenQuestion:   "?",
	TokenPaste:      "#",
	TokenComma:      ",",
	TokenLParen:     "(",
	TokenRParen:     ")",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// keywords maps keyword strings to token types
var keywords = map[string]TokenType{
	"assert":     TokenAssert,
	"bit":        TokenBit,
	"bits":       TokenBits,
	"class":      TokenClass,
	"code":       TokenCodeKw,
	"dag":        TokenDag,
	"def":        TokenDef,
	"defm":       TokenDefm,
	"defset":     TokenDefset,
	"deftype":    TokenDeftype,
	"defvar":     TokenDefvar,
	"dump":       TokenDump,
	"else":       TokenElse,
	"false":      TokenFalse,
	"field":      TokenField,
	"foreach":    TokenForeach,
	"if":         TokenIf,
	"in":         TokenIn,
	"include":    TokenInclude,
	"int":        TokenIntKw,
	"let":        TokenLet,
	"list":       TokenList,
	"multiclass": TokenMulticlass,
	"string":     TokenStringKw,
	"then":       TokenThen,
	"true":       TokenTrue,
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// Package parser implements a recursive descent parser for TableGen
package parser

import (
	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/lexer"
)

// Locator maps a line/column of the lexer input to its original source.
type Locator func(line, column int) diag.SourceLoc

// Parser parses TableGen source into an AST. Parsing stops at the first
// syntax error.
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	locate    Locator
	err       *diag.Error
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l: l,
		locate: func(line, column int) diag.SourceLoc {
			return diag.SourceLoc{Line: line, Column: column}
		},
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// SetLocator installs the mapping used to locate nodes and errors.
func (p *Parser) SetLocator(loc Locator) {
	p.locate = loc
}

// ParseString lexes and parses src, locating everything with loc (which
// may be nil).
func ParseString(src string, loc Locator) (*ast.File, error) {
	p := New(lexer.New(src))
	if loc != nil {
		p.SetLocator(loc)
	}
	return p.ParseFile()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	if p.curToken.Type == lexer.TokenIllegal {
		if len(p.curToken.Literal) > 1 {
			p.fail("%s", p.curToken.Literal)
		} else {
			p.fail("unexpected character %q", p.curToken.Literal)
		}
	}
}

// Err returns the first syntax error, if any.
func (p *Parser) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

func (p *Parser) pos() diag.SourceLoc {
	return p.locate(p.curToken.Line, p.curToken.Column)
}

func (p *Parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = diag.ErrorAt(p.pos(), diag.KindSyntax, format, args...)
	}
}

func (p *Parser) ok() bool {
	return p.err == nil
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail("expected '%s', got %s", t, describe(p.curToken))
	return false
}

func (p *Parser) expectIdent(what string) (string, bool) {
	if !p.curTokenIs(lexer.TokenIdent) {
		p.fail("expected %s, got %s", what, describe(p.curToken))
		return "", false
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, true
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of file"
	case lexer.TokenIdent, lexer.TokenInt:
		return "'" + tok.Literal + "'"
	case lexer.TokenString:
		return "string literal"
	case lexer.TokenCode:
		return "code literal"
	case lexer.TokenVarName:
		return "'$" + tok.Literal + "'"
	case lexer.TokenBang:
		return "'!" + tok.Literal + "'"
	}
	return "'" + tok.Type.String() + "'"
}

// ParseFile parses a whole compilation unit
func (p *Parser) ParseFile() (*ast.File, error) {
	file := &ast.File{}
	for !p.curTokenIs(lexer.TokenEOF) && p.ok() {
		stmt := p.parseStatement()
		if stmt != nil {
			file.Stmts = append(file.Stmts, stmt)
		}
	}
	if !p.ok() {
		return nil, p.err
	}
	return file, nil
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenClass:
		return p.parseClass()
	case lexer.TokenDef:
		return p.parseDef()
	case lexer.TokenDefm:
		return p.parseDefm()
	case lexer.TokenDefvar:
		if s := p.parseDefvar(); s != nil {
			return s
		}
		return nil
	case lexer.TokenDefset:
		return p.parseDefset()
	case lexer.TokenDeftype:
		return p.parseDeftype()
	case lexer.TokenMulticlass:
		return p.parseMulticlass()
	case lexer.TokenForeach:
		return p.parseForeach()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenLet:
		return p.parseLet()
	case lexer.TokenAssert:
		if s := p.parseAssert(); s != nil {
			return s
		}
		return nil
	case lexer.TokenDump:
		if s := p.parseDump(); s != nil {
			return s
		}
		return nil
	case lexer.TokenInclude:
		p.fail("include directive was not expanded by the preprocessor")
	default:
		p.fail("expected a class, def, defm, defset, deftype, defvar, multiclass, foreach, if, let, assert or dump, got %s", describe(p.curToken))
	}
	return nil
}

// parseClass: class Name [<params>] [: parents] body
func (p *Parser) parseClass() ast.Stmt {
	stmt := &ast.ClassStmt{Loc: p.pos()}
	p.nextToken() // consume 'class'

	name, ok := p.expectIdent("class name")
	if !ok {
		return nil
	}
	stmt.Name = name
	if p.curTokenIs(lexer.TokenLt) {
		stmt.Params = p.parseTemplateParams()
	}
	stmt.Parents = p.parseParents()
	stmt.Body = p.parseBody()
	if !p.ok() {
		return nil
	}
	return stmt
}

// parseDef: def [name] [: parents] body
func (p *Parser) parseDef() ast.Stmt {
	stmt := &ast.DefStmt{Loc: p.pos()}
	p.nextToken() // consume 'def'

	stmt.Name = p.parseObjectName()
	stmt.Parents = p.parseParents()
	stmt.Body = p.parseBody()
	if !p.ok() {
		return nil
	}
	return stmt
}

// parseDefm: defm [name] : parents ;
func (p *Parser) parseDefm() ast.Stmt {
	stmt := &ast.DefmStmt{Loc: p.pos()}
	p.nextToken() // consume 'defm'

	stmt.Name = p.parseObjectName()
	if !p.curTokenIs(lexer.TokenColon) {
		p.fail("expected ':' after defm name, got %s", describe(p.curToken))
		return nil
	}
	stmt.Parents = p.parseParents()
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseObjectName parses an optional def/defm name in name mode.
func (p *Parser) parseObjectName() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenColon, lexer.TokenSemicolon, lexer.TokenLBrace:
		return nil
	}
	return p.parseValue(true)
}

func (p *Parser) parseDefvar() *ast.DefvarStmt {
	stmt := &ast.DefvarStmt{Loc: p.pos()}
	p.nextToken() // consume 'defvar'

	name, ok := p.expectIdent("variable name")
	if !ok || !p.expect(lexer.TokenAssign) {
		return nil
	}
	stmt.Name = name
	stmt.Value = p.parseValue(false)
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseDefset: defset type name = { stmts }
func (p *Parser) parseDefset() ast.Stmt {
	stmt := &ast.DefsetStmt{Loc: p.pos()}
	p.nextToken() // consume 'defset'

	stmt.Type = p.parseType()
	if stmt.Type == nil {
		return nil
	}
	name, ok := p.expectIdent("defset name")
	if !ok || !p.expect(lexer.TokenAssign) {
		return nil
	}
	stmt.Name = name
	if !p.curTokenIs(lexer.TokenLBrace) {
		p.fail("expected '{' to start defset body, got %s", describe(p.curToken))
		return nil
	}
	stmt.Stmts = p.parseStmtBlock()
	if !p.ok() {
		return nil
	}
	return stmt
}

func (p *Parser) parseDeftype() ast.Stmt {
	stmt := &ast.DeftypeStmt{Loc: p.pos()}
	p.nextToken() // consume 'deftype'

	name, ok := p.expectIdent("type name")
	if !ok || !p.expect(lexer.TokenAssign) {
		return nil
	}
	stmt.Name = name
	stmt.Type = p.parseType()
	if stmt.Type == nil || !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseMulticlass: multiclass Name [<params>] [: parents] { stmts }
func (p *Parser) parseMulticlass() ast.Stmt {
	stmt := &ast.MulticlassStmt{Loc: p.pos()}
	p.nextToken() // consume 'multiclass'

	name, ok := p.expectIdent("multiclass name")
	if !ok {
		return nil
	}
	stmt.Name = name
	if p.curTokenIs(lexer.TokenLt) {
		stmt.Params = p.parseTemplateParams()
	}
	stmt.Parents = p.parseParents()
	if p.curTokenIs(lexer.TokenSemicolon) && len(stmt.Parents) > 0 {
		p.nextToken()
		return stmt
	}
	if !p.curTokenIs(lexer.TokenLBrace) {
		p.fail("expected '{' in multiclass definition, got %s", describe(p.curToken))
		return nil
	}
	stmt.Stmts = p.parseStmtBlock()
	if !p.ok() {
		return nil
	}
	for _, s := range stmt.Stmts {
		switch s.(type) {
		case *ast.ClassStmt, *ast.MulticlassStmt, *ast.DeftypeStmt, *ast.DefsetStmt:
			p.err = diag.ErrorAt(s.Pos(), diag.KindSyntax, "this statement is not allowed inside a multiclass")
			return nil
		}
	}
	return stmt
}

// parseForeach: foreach var = iter in stmt-or-block
func (p *Parser) parseForeach() ast.Stmt {
	stmt := &ast.ForeachStmt{Loc: p.pos()}
	p.nextToken() // consume 'foreach'

	name, ok := p.expectIdent("foreach iterator name")
	if !ok || !p.expect(lexer.TokenAssign) {
		return nil
	}
	stmt.Var = name
	stmt.Iter = p.parseForeachIter()
	if !p.ok() || !p.expect(lexer.TokenIn) {
		return nil
	}
	stmt.Stmts = p.parseStmtOrBlock()
	if !p.ok() {
		return nil
	}
	return stmt
}

func (p *Parser) parseForeachIter() ast.Expr {
	loc := p.pos()
	if p.curTokenIs(lexer.TokenLBrace) {
		p.nextToken()
		items := p.parseRanges(lexer.TokenRBrace)
		if !p.expect(lexer.TokenRBrace) {
			return nil
		}
		return &ast.RangeList{Items: items, Loc: loc}
	}
	v := p.parseValue(false)
	if _, isInt := v.(*ast.IntLit); isInt && p.atRangeTail() {
		item := p.finishRange(v)
		return &ast.RangeList{Items: []ast.RangeItem{item}, Loc: loc}
	}
	return v
}

// parseIf: if cond then stmt-or-block [else stmt-or-block]
func (p *Parser) parseIf() ast.Stmt {
	stmt := &ast.IfStmt{Loc: p.pos()}
	p.nextToken() // consume 'if'

	stmt.Cond = p.parseValue(false)
	if !p.ok() || !p.expect(lexer.TokenThen) {
		return nil
	}
	stmt.Then = p.parseStmtOrBlock()
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		stmt.Else = p.parseStmtOrBlock()
		if stmt.Else == nil {
			stmt.Else = []ast.Stmt{}
		}
	}
	if !p.ok() {
		return nil
	}
	return stmt
}

// parseLet: let item, item in stmt-or-block
func (p *Parser) parseLet() ast.Stmt {
	stmt := &ast.LetStmt{Loc: p.pos()}
	p.nextToken() // consume 'let'

	for p.ok() {
		item := p.parseLetItem()
		if item == nil {
			return nil
		}
		stmt.Items = append(stmt.Items, *item)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenIn) {
		return nil
	}
	stmt.Stmts = p.parseStmtOrBlock()
	if !p.ok() {
		return nil
	}
	return stmt
}

func (p *Parser) parseLetItem() *ast.LetItem {
	item := &ast.LetItem{Loc: p.pos()}
	name, ok := p.expectIdent("field name")
	if !ok {
		return nil
	}
	item.Name = name
	if p.curTokenIs(lexer.TokenLBrace) {
		p.nextToken()
		item.Bits = p.parseRanges(lexer.TokenRBrace)
		if !p.expect(lexer.TokenRBrace) {
			return nil
		}
	}
	if !p.expect(lexer.TokenAssign) {
		return nil
	}
	item.Value = p.parseValue(false)
	if !p.ok() {
		return nil
	}
	return item
}

func (p *Parser) parseAssert() *ast.AssertStmt {
	stmt := &ast.AssertStmt{Loc: p.pos()}
	p.nextToken() // consume 'assert'

	stmt.Cond = p.parseValue(false)
	if !p.expect(lexer.TokenComma) {
		return nil
	}
	stmt.Msg = p.parseValue(false)
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return stmt
}

func (p *Parser) parseDump() *ast.DumpStmt {
	stmt := &ast.DumpStmt{Loc: p.pos()}
	p.nextToken() // consume 'dump'

	stmt.Msg = p.parseValue(false)
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseStmtBlock parses { stmts } with curToken on '{'.
func (p *Parser) parseStmtBlock() []ast.Stmt {
	stmts := []ast.Stmt{}
	p.nextToken() // consume '{'
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && p.ok() {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	if !p.expect(lexer.TokenRBrace) {
		return nil
	}
	return stmts
}

func (p *Parser) parseStmtOrBlock() []ast.Stmt {
	if p.curTokenIs(lexer.TokenLBrace) {
		return p.parseStmtBlock()
	}
	s := p.parseStatement()
	if s == nil {
		return nil
	}
	return []ast.Stmt{s}
}

// parseTemplateParams: < type name [= default], ... >
func (p *Parser) parseTemplateParams() []ast.TemplateParam {
	var params []ast.TemplateParam
	p.nextToken() // consume '<'
	for p.ok() {
		tp := ast.TemplateParam{Loc: p.pos()}
		tp.Type = p.parseType()
		if tp.Type == nil {
			return nil
		}
		name, ok := p.expectIdent("template parameter name")
		if !ok {
			return nil
		}
		tp.Name = name
		if p.curTokenIs(lexer.TokenAssign) {
			p.nextToken()
			tp.Default = p.parseValue(false)
		}
		params = append(params, tp)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenGt) {
		return nil
	}
	return params
}

// parseParents: [: Name[<args>], ...]
func (p *Parser) parseParents() []ast.ParentRef {
	if !p.curTokenIs(lexer.TokenColon) {
		return nil
	}
	p.nextToken() // consume ':'
	var parents []ast.ParentRef
	for p.ok() {
		ref := ast.ParentRef{Loc: p.pos()}
		name, ok := p.expectIdent("class or multiclass name")
		if !ok {
			return nil
		}
		ref.Name = name
		if p.curTokenIs(lexer.TokenLt) {
			ref.Args = p.parseArgs()
		}
		parents = append(parents, ref)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	return parents
}

// parseArgs: < value | name = value, ... >
func (p *Parser) parseArgs() []ast.Arg {
	args := []ast.Arg{}
	p.nextToken() // consume '<'
	if p.curTokenIs(lexer.TokenGt) {
		p.nextToken()
		return args
	}
	named := false
	for p.ok() {
		var arg ast.Arg
		if p.curTokenIs(lexer.TokenIdent) && p.peekTokenIs(lexer.TokenAssign) {
			arg.Name = p.curToken.Literal
			p.nextToken()
			p.nextToken()
			named = true
		} else if named {
			p.fail("positional argument after named argument")
			return nil
		}
		arg.Value = p.parseValue(false)
		args = append(args, arg)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenGt) {
		return nil
	}
	return args
}

// parseBody: ';' | '{' items '}'
func (p *Parser) parseBody() *ast.Body {
	body := &ast.Body{}
	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return body
	}
	if !p.curTokenIs(lexer.TokenLBrace) {
		p.fail("expected ';' or '{' to start body, got %s", describe(p.curToken))
		return nil
	}
	p.nextToken() // consume '{'
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && p.ok() {
		if item := p.parseBodyItem(); item != nil {
			body.Items = append(body.Items, item)
		}
	}
	if !p.expect(lexer.TokenRBrace) {
		return nil
	}
	return body
}

func (p *Parser) parseBodyItem() ast.BodyItem {
	switch p.curToken.Type {
	case lexer.TokenLet:
		p.nextToken()
		item := p.parseLetItem()
		if item == nil || !p.expect(lexer.TokenSemicolon) {
			return nil
		}
		return item
	case lexer.TokenDefvar:
		if s := p.parseDefvar(); s != nil {
			return s
		}
		return nil
	case lexer.TokenAssert:
		if s := p.parseAssert(); s != nil {
			return s
		}
		return nil
	case lexer.TokenDump:
		if s := p.parseDump(); s != nil {
			return s
		}
		return nil
	}

	decl := &ast.FieldDecl{Loc: p.pos()}
	if p.curTokenIs(lexer.TokenField) {
		decl.IsField = true
		p.nextToken()
	}
	decl.Type = p.parseType()
	if decl.Type == nil {
		return nil
	}
	name, ok := p.expectIdent("field name")
	if !ok {
		return nil
	}
	decl.Name = name
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		decl.Value = p.parseValue(false)
	}
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return decl
}

package parser

import (
	"strconv"
	"strings"

	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/lexer"
)

// parseValue parses a simple value followed by any number of suffixes:
// {bits}, [index], .field and # paste. In name mode a '{' ends the value
// (it opens the record body) and identifiers are flagged for local-only
// lookup.
func (p *Parser) parseValue(nameMode bool) ast.Expr {
	v := p.parseSimpleValue(nameMode)
	for v != nil && p.ok() {
		loc := p.pos()
		switch p.curToken.Type {
		case lexer.TokenLBrace:
			if nameMode {
				return v
			}
			p.nextToken()
			ranges := p.parseRanges(lexer.TokenRBrace)
			if !p.expect(lexer.TokenRBrace) {
				return nil
			}
			v = &ast.BitSlice{X: v, Ranges: ranges, Loc: loc}
		case lexer.TokenLBracket:
			p.nextToken()
			ranges := p.parseRanges(lexer.TokenRBracket)
			if !p.expect(lexer.TokenRBracket) {
				return nil
			}
			v = &ast.ListSlice{X: v, Ranges: ranges, Loc: loc}
		case lexer.TokenDot:
			p.nextToken()
			name, ok := p.expectIdent("field name")
			if !ok {
				return nil
			}
			v = &ast.FieldAccess{X: v, Field: name, Loc: loc}
		case lexer.TokenPaste:
			p.nextToken()
			switch p.curToken.Type {
			case lexer.TokenColon, lexer.TokenSemicolon, lexer.TokenLBrace:
				// trailing paste: concatenate with the empty string
				return &ast.Paste{LHS: v, Loc: loc}
			}
			rhs := p.parseValue(true)
			if rhs == nil {
				return nil
			}
			return &ast.Paste{LHS: v, RHS: rhs, Loc: loc}
		default:
			return v
		}
	}
	return v
}

func (p *Parser) parseSimpleValue(nameMode bool) ast.Expr {
	loc := p.pos()
	switch p.curToken.Type {
	case lexer.TokenInt:
		v, err := parseInt(p.curToken.Literal)
		if err != nil {
			p.fail("invalid integer literal '%s'", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return &ast.IntLit{Value: v, Loc: loc}
	case lexer.TokenString:
		var sb strings.Builder
		for p.curTokenIs(lexer.TokenString) {
			sb.WriteString(p.curToken.Literal)
			p.nextToken()
		}
		return &ast.StringLit{Value: sb.String(), Loc: loc}
	case lexer.TokenCode:
		var sb strings.Builder
		for p.curTokenIs(lexer.TokenCode) {
			sb.WriteString(p.curToken.Literal)
			p.nextToken()
		}
		return &ast.StringLit{Value: sb.String(), Code: true, Loc: loc}
	case lexer.TokenQuestion:
		p.nextToken()
		return &ast.Unset{Loc: loc}
	case lexer.TokenTrue, lexer.TokenFalse:
		v := p.curTokenIs(lexer.TokenTrue)
		p.nextToken()
		return &ast.BoolLit{Value: v, Loc: loc}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.TokenLt) {
			return &ast.ClassRef{Name: name, Args: p.parseArgs(), Loc: loc}
		}
		return &ast.Ident{Name: name, NameMode: nameMode, Loc: loc}
	case lexer.TokenLBrace:
		p.nextToken()
		elems := p.parseValueList(lexer.TokenRBrace)
		if !p.expect(lexer.TokenRBrace) {
			return nil
		}
		return &ast.BitsLit{Elems: elems, Loc: loc}
	case lexer.TokenLBracket:
		p.nextToken()
		elems := p.parseValueList(lexer.TokenRBracket)
		if !p.expect(lexer.TokenRBracket) {
			return nil
		}
		lit := &ast.ListLit{Elems: elems, Loc: loc}
		if p.curTokenIs(lexer.TokenLt) {
			p.nextToken()
			lit.ElemType = p.parseType()
			if lit.ElemType == nil || !p.expect(lexer.TokenGt) {
				return nil
			}
		}
		return lit
	case lexer.TokenLParen:
		return p.parseDag()
	case lexer.TokenBang:
		return p.parseBang()
	}
	p.fail("expected a value, got %s", describe(p.curToken))
	return nil
}

func (p *Parser) parseValueList(end lexer.TokenType) []ast.Expr {
	elems := []ast.Expr{}
	if p.curTokenIs(end) {
		return elems
	}
	for p.ok() {
		v := p.parseValue(false)
		if v == nil {
			return nil
		}
		elems = append(elems, v)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
		// trailing comma
		if p.curTokenIs(end) {
			break
		}
	}
	return elems
}

// parseDag: ( op[:$name] [arg[:$name] | $name], ... )
func (p *Parser) parseDag() ast.Expr {
	dag := &ast.DagLit{Loc: p.pos()}
	p.nextToken() // consume '('

	if p.curTokenIs(lexer.TokenRParen) {
		p.fail("expected a DAG operator, got ')'")
		return nil
	}
	dag.Op = p.parseValue(false)
	if dag.Op == nil {
		return nil
	}
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		if !p.curTokenIs(lexer.TokenVarName) {
			p.fail("expected '$name' after ':' in DAG operator, got %s", describe(p.curToken))
			return nil
		}
		dag.OpName = p.curToken.Literal
		p.nextToken()
	}
	for !p.curTokenIs(lexer.TokenRParen) && p.ok() {
		var arg ast.DagArg
		if p.curTokenIs(lexer.TokenVarName) {
			arg.Name = p.curToken.Literal
			p.nextToken()
		} else {
			arg.Value = p.parseValue(false)
			if arg.Value == nil {
				return nil
			}
			if p.curTokenIs(lexer.TokenColon) {
				p.nextToken()
				if !p.curTokenIs(lexer.TokenVarName) {
					p.fail("expected '$name' after ':' in DAG argument, got %s", describe(p.curToken))
					return nil
				}
				arg.Name = p.curToken.Literal
				p.nextToken()
			}
		}
		dag.Args = append(dag.Args, arg)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	return dag
}

// parseBang: !op[<type>](args). !cond arguments are stored as flat
// condition/value pairs.
func (p *Parser) parseBang() ast.Expr {
	op := &ast.BangOp{Op: p.curToken.Literal, Loc: p.pos()}
	p.nextToken() // consume !op

	if p.curTokenIs(lexer.TokenLt) {
		p.nextToken()
		op.TypeArg = p.parseType()
		if op.TypeArg == nil || !p.expect(lexer.TokenGt) {
			return nil
		}
	}
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	op.Args = []ast.Expr{}
	for !p.curTokenIs(lexer.TokenRParen) && p.ok() {
		v := p.parseValue(false)
		if v == nil {
			return nil
		}
		op.Args = append(op.Args, v)
		if op.Op == "cond" {
			if !p.expect(lexer.TokenColon) {
				return nil
			}
			val := p.parseValue(false)
			if val == nil {
				return nil
			}
			op.Args = append(op.Args, val)
		}
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	return op
}

// parseType parses bit, bits<N>, int, string, code, list<T>, dag or a
// class/alias name.
func (p *Parser) parseType() *ast.TypeRef {
	t := &ast.TypeRef{Loc: p.pos()}
	switch p.curToken.Type {
	case lexer.TokenBit:
		t.Kind = ast.TypeBit
	case lexer.TokenIntKw:
		t.Kind = ast.TypeInt
	case lexer.TokenStringKw:
		t.Kind = ast.TypeString
	case lexer.TokenCodeKw:
		t.Kind = ast.TypeCode
	case lexer.TokenDag:
		t.Kind = ast.TypeDag
	case lexer.TokenIdent:
		t.Kind = ast.TypeClass
		t.Name = p.curToken.Literal
	case lexer.TokenBits:
		t.Kind = ast.TypeBits
		p.nextToken()
		if !p.expect(lexer.TokenLt) {
			return nil
		}
		if !p.curTokenIs(lexer.TokenInt) {
			p.fail("expected bit width, got %s", describe(p.curToken))
			return nil
		}
		w, err := parseInt(p.curToken.Literal)
		if err != nil || w < 0 {
			p.fail("invalid bit width '%s'", p.curToken.Literal)
			return nil
		}
		t.Width = int(w)
		p.nextToken()
		if !p.expect(lexer.TokenGt) {
			return nil
		}
		return t
	case lexer.TokenList:
		t.Kind = ast.TypeList
		p.nextToken()
		if !p.expect(lexer.TokenLt) {
			return nil
		}
		t.Elem = p.parseType()
		if t.Elem == nil || !p.expect(lexer.TokenGt) {
			return nil
		}
		return t
	default:
		p.fail("expected a type, got %s", describe(p.curToken))
		return nil
	}
	p.nextToken()
	return t
}

// parseRanges parses a comma separated list of indices and ranges
// (a-b, a...b) up to, but not including, end.
func (p *Parser) parseRanges(end lexer.TokenType) []ast.RangeItem {
	var items []ast.RangeItem
	if p.curTokenIs(end) {
		p.fail("expected an index or range, got %s", describe(p.curToken))
		return nil
	}
	for p.ok() {
		start := p.parseValue(false)
		if start == nil {
			return nil
		}
		items = append(items, p.finishRange(start))
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	return items
}

// atRangeTail reports whether the current token continues a range: '-',
// '...', or a negative integer that the lexer folded from "a-b".
func (p *Parser) atRangeTail() bool {
	switch p.curToken.Type {
	case lexer.TokenMinus, lexer.TokenEllipsis:
		return true
	case lexer.TokenInt:
		return strings.HasPrefix(p.curToken.Literal, "-")
	}
	return false
}

func (p *Parser) finishRange(start ast.Expr) ast.RangeItem {
	item := ast.RangeItem{Start: start}
	if !p.atRangeTail() {
		return item
	}
	if p.curTokenIs(lexer.TokenInt) {
		loc := p.pos()
		v, err := parseInt(strings.TrimPrefix(p.curToken.Literal, "-"))
		if err != nil {
			p.fail("invalid integer literal '%s'", p.curToken.Literal)
			return item
		}
		p.nextToken()
		item.End = &ast.IntLit{Value: v, Loc: loc}
		return item
	}
	p.nextToken() // consume '-' or '...'
	item.End = p.parseValue(false)
	return item
}

// parseInt parses decimal, 0x hex and 0b binary literals, with an optional
// sign. Values wrap to 64 bits the way hex constants do in TableGen.
func parseInt(lit string) (int64, error) {
	neg := false
	if strings.HasPrefix(lit, "-") {
		neg = true
		lit = lit[1:]
	} else if strings.HasPrefix(lit, "+") {
		lit = lit[1:]
	}
	var u uint64
	var err error
	switch {
	case strings.HasPrefix(lit, "0x"), strings.HasPrefix(lit, "0X"):
		u, err = strconv.ParseUint(lit[2:], 16, 64)
	case strings.HasPrefix(lit, "0b"):
		u, err = strconv.ParseUint(lit[2:], 2, 64)
	default:
		u, err = strconv.ParseUint(lit, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	v := int64(u)
	if neg {
		v = -v
	}
	return v, nil
}

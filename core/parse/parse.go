// Package parse implements the compact recursive-descent parser core/eval
// needs to drive the REPL and test suite (spec.md §1: the surface syntax
// parser is an external collaborator; this is a minimal stand-in sufficient
// to exercise the rest of the core, not a claim to the real language's
// grammar). It supports: integer/float literals, backtick symbol literals
// (`` `abc ``), identifiers, parenthesized/bracketed/brace grouping,
// `name(args)` calls, `{[params] body}` lambda literals, infix
// `+ - * % =  < > mod`, `x: expr` assignment (sugar for the `set` special
// form), and keyword special forms
// `let/cond/set/timer/timeit/and/or/parallel/read_csv` called like any other
// function.
package parse

import (
	"fmt"
	"strconv"

	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/ast"
)

type parser struct {
	toks []token
	pos  int
	tab  *symtab.Table
}

// Parse tokenizes and parses src into one AST root. Multiple ';'-separated
// top-level statements are joined under an ast.Do node. tab is used to
// intern symbol literals and identifiers into the SYMBOL ids the evaluator
// and environment key on.
func Parse(src string, tab *symtab.Table) (*ast.Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, tab: tab}

	var stmts []ast.Node
	for p.cur().kind != tokEOF {
		n, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, *n)
		if p.cur().kind == tokSemicolon {
			p.pos++
			continue
		}
		break
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("parse: unexpected token %q at offset %d", p.cur().text, p.cur().pos)
	}
	if len(stmts) == 1 {
		return &stmts[0], nil
	}
	return &ast.Node{Kind: ast.Do, Elems: stmts}, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("parse: expected %s at offset %d, got %q", what, p.cur().pos, p.cur().text)
	}
	return p.advance(), nil
}

// parseStmt handles `ident : expr` assignment sugar (desugars to the `set`
// special form so the evaluator has exactly one binding path) and falls
// through to an ordinary expression otherwise.
func (p *parser) parseStmt() (*ast.Node, error) {
	if p.cur().kind == tokIdent && p.peekIsColon() {
		nameTok := p.advance()
		p.advance() // ':'
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sym := p.tab.Intern(nameTok.text)
		return &ast.Node{
			Kind: ast.SpecialForm,
			Form: "set",
			Pos:  ast.DebugInfo{Offset: nameTok.pos},
			Elems: []ast.Node{
				{Kind: ast.SymbolRef, Sym: sym, Name: nameTok.text},
				*val,
			},
		}, nil
	}
	return p.parseExpr()
}

func (p *parser) peekIsColon() bool {
	return p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokColon
}

func (p *parser) parseExpr() (*ast.Node, error) { return p.parseCmp() }

func (p *parser) parseCmp() (*ast.Node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		var name string
		switch p.cur().kind {
		case tokEq:
			name = "="
		case tokLt:
			name = "<"
		case tokGt:
			name = ">"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = callNode(name, left, right)
	}
}

func (p *parser) parseAdd() (*ast.Node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		var name string
		switch p.cur().kind {
		case tokPlus:
			name = "+"
		case tokMinus:
			name = "-"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = callNode(name, left, right)
	}
}

func (p *parser) parseMul() (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var name string
		switch {
		case p.cur().kind == tokStar:
			name = "*"
		case p.cur().kind == tokPercent:
			name = "%"
		case p.cur().kind == tokIdent && p.cur().text == "mod":
			name = "mod"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = callNode(name, left, right)
	}
}

func (p *parser) parseUnary() (*ast.Node, error) {
	if p.cur().kind == tokMinus {
		pos := p.advance().pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		zero := ast.Node{Kind: ast.Const, ConstVal: value.I64Atom(0), Pos: ast.DebugInfo{Offset: pos}}
		return callNode("-", &zero, operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (*ast.Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokLParen {
		args, err := p.parseArgList(tokLParen, tokRParen)
		if err != nil {
			return nil, err
		}
		n = &ast.Node{Kind: ast.Call, Callee: n, Elems: args, Pos: n.Pos}
	}
	return n, nil
}

func (p *parser) parseArgList(open, close tokenKind) ([]ast.Node, error) {
	if _, err := p.expect(open, "("); err != nil {
		return nil, err
	}
	var args []ast.Node
	if p.cur().kind != close {
		for {
			// parseStmt (not parseExpr) so `name:value` binding sugar is
			// also usable as a `let`/`cond` argument.
			a, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			args = append(args, *a)
			if p.cur().kind == tokComma || p.cur().kind == tokSemicolon {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(close, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (*ast.Node, error) {
	tok := p.cur()
	switch tok.kind {
	case tokNumber:
		p.advance()
		return parseNumber(tok)
	case tokSymbol:
		p.advance()
		id := p.tab.Intern(tok.text)
		return &ast.Node{Kind: ast.Const, ConstVal: value.SymbolAtom(id), Pos: ast.DebugInfo{Offset: tok.pos}}, nil
	case tokIdent:
		if isSpecialForm(tok.text) {
			p.advance()
			args, err := p.parseArgList(tokLParen, tokRParen)
			if err != nil {
				return nil, err
			}
			return &ast.Node{Kind: ast.SpecialForm, Form: tok.text, Elems: args, Pos: ast.DebugInfo{Offset: tok.pos}}, nil
		}
		p.advance()
		id := p.tab.Intern(tok.text)
		return &ast.Node{Kind: ast.SymbolRef, Sym: id, Name: tok.text, Pos: ast.DebugInfo{Offset: tok.pos}}, nil
	case tokLParen:
		p.advance()
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return n, nil
	case tokLBracket:
		return p.parseVectorLit()
	case tokLBrace:
		return p.parseLambdaLit()
	default:
		return nil, fmt.Errorf("parse: unexpected token %q at offset %d", tok.text, tok.pos)
	}
}

func (p *parser) parseVectorLit() (*ast.Node, error) {
	pos := p.advance().pos // '['
	var elems []ast.Node
	for p.cur().kind != tokRBracket {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, *e)
		if p.cur().kind == tokSemicolon || p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRBracket, "]"); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.VectorLit, Elems: elems, Pos: ast.DebugInfo{Offset: pos}}, nil
}

// parseLambdaLit parses `{[a;b] body}` or `{body}` (no declared params).
func (p *parser) parseLambdaLit() (*ast.Node, error) {
	pos := p.advance().pos // '{'
	var params []string
	if p.cur().kind == tokLBracket {
		p.advance()
		for p.cur().kind != tokRBracket {
			nameTok, err := p.expect(tokIdent, "parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, nameTok.text)
			if p.cur().kind == tokSemicolon || p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokSemicolon {
		p.advance()
		if p.cur().kind == tokRBrace {
			break
		}
		next, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = &ast.Node{Kind: ast.Do, Elems: []ast.Node{*body, *next}}
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.LambdaLit, ArgNames: params, Body: body, Pos: ast.DebugInfo{Offset: pos}}, nil
}

func callNode(name string, left, right *ast.Node) *ast.Node {
	return &ast.Node{
		Kind:   ast.Call,
		Callee: &ast.Node{Kind: ast.SymbolRef, Name: name},
		Elems:  []ast.Node{*left, *right},
		Pos:    left.Pos,
	}
}

func parseNumber(tok token) (*ast.Node, error) {
	pos := ast.DebugInfo{Offset: tok.pos, Length: len(tok.text)}
	for i := 0; i < len(tok.text); i++ {
		if tok.text[i] == '.' {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, fmt.Errorf("parse: invalid number %q: %w", tok.text, err)
			}
			return &ast.Node{Kind: ast.Const, ConstVal: value.F64Atom(f), Pos: pos}, nil
		}
	}
	n, err := strconv.ParseInt(tok.text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse: invalid number %q: %w", tok.text, err)
	}
	return &ast.Node{Kind: ast.Const, ConstVal: value.I64Atom(n), Pos: pos}, nil
}

package parser

import (
	"strconv"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/token"
)

var binaryOpToken = map[token.Kind]string{
	token.PLUS: "+", token.MINUS: "-", token.STAR: "*", token.SLASH: "/",
	token.PERCENT: "%", token.CARET: "^",
	token.EQ: "=", token.NEQ: "<>", token.LT: "<", token.GT: ">",
	token.LTE: "<=", token.GTE: ">=",
	token.AND: "AND", token.OR: "OR",
}

var opPrecedence = map[string]int{
	"OR": ast.PrecOr, "AND": ast.PrecAnd,
	"=": ast.PrecComparison, "<>": ast.PrecComparison, "<": ast.PrecComparison,
	">": ast.PrecComparison, "<=": ast.PrecComparison, ">=": ast.PrecComparison,
	"+": ast.PrecAdditive, "-": ast.PrecAdditive,
	"*": ast.PrecMultiplicative, "/": ast.PrecMultiplicative, "%": ast.PrecMultiplicative,
	"^": ast.PrecPower,
}

// parseExpression implements precedence-climbing, the recursive-descent
// form of the Shunting-Yard algorithm (spec.md §4.5, §9): it is driven by
// the same low-to-high precedence table the two-stack algorithm would
// fold its output stack with.
func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parsePrefix()
	if p.failed() {
		return left
	}
	left = p.parseTrailingLookups(left)

	for !p.failed() {
		if p.at(token.IS) {
			left = p.parseIsNull(left)
			continue
		}
		op, ok := binaryOpToken[p.curTok().Kind]
		if !ok {
			break
		}
		prec := opPrecedence[op]
		if prec < minPrec {
			break
		}
		opTok := p.advance()
		nextMinPrec := prec + 1
		if op == "^" { // right-associative
			nextMinPrec = prec
		}
		right := p.parseExpression(nextMinPrec)
		left = &ast.BinaryExpr{Tok: opTok, Operator: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseIsNull(left ast.Expression) ast.Expression {
	tok := p.advance() // IS
	negate := false
	if p.at(token.NOT) {
		p.advance()
		negate = true
	}
	p.expect(token.NULLKW)
	return &ast.IsNullExpr{Tok: tok, Operand: left, Negate: negate}
}

func (p *Parser) parsePrefix() ast.Expression {
	if p.failed() {
		return &ast.NullLiteral{}
	}
	tok := p.curTok()
	switch tok.Kind {
	case token.NUMBER:
		p.advance()
		return parseNumberLiteral(tok)
	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Tok: tok, Value: tok.Literal}
	case token.NULLKW:
		p.advance()
		return &ast.NullLiteral{Tok: tok}
	case token.MINUS:
		p.advance()
		operand := p.parseExpression(ast.PrecUnary)
		return &ast.UnaryExpr{Tok: tok, Operator: "-", Operand: operand}
	case token.NOT:
		p.advance()
		operand := p.parseExpression(ast.PrecUnary)
		return &ast.UnaryExpr{Tok: tok, Operator: "NOT", Operand: operand}
	case token.IDENTIFIER:
		return p.parseIdentifierOrCall()
	case token.LPAREN:
		p.advance()
		e := p.parseExpression(0)
		p.expect(token.RPAREN)
		return e
	case token.LBRACE:
		return p.parseMapLiteral()
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.FSTRING_SEGMENT:
		return p.parseFString()
	case token.CASE:
		return p.parseCaseExpr()
	default:
		p.fail(ferrors.UnexpectedToken, "unexpected token %q in expression", tok.Literal)
		return &ast.NullLiteral{Tok: tok}
	}
}

func parseNumberLiteral(tok token.Token) *ast.NumberLiteral {
	f, _ := strconv.ParseFloat(tok.Literal, 64)
	isInt := !strings.ContainsAny(tok.Literal, ".eE")
	return &ast.NumberLiteral{Tok: tok, Value: f, IsInt: isInt}
}

func (p *Parser) parseIdentifierOrCall() ast.Expression {
	tok := p.advance()
	if p.at(token.LPAREN) {
		return p.parseFunctionCall(tok)
	}
	return &ast.Reference{Tok: tok, Name: tok.Literal}
}

func (p *Parser) parseTrailingLookups(left ast.Expression) ast.Expression {
	for !p.failed() {
		switch {
		case p.at(token.DOT):
			tok := p.advance()
			nameTok := p.expect(token.IDENTIFIER)
			left = &ast.Lookup{Tok: tok, Root: left, Index: &ast.StringLiteral{Tok: nameTok, Value: nameTok.Literal}}
		case p.at(token.LBRACKET):
			tok := p.advance()
			left = p.parseLookupOrRange(tok, left)
		default:
			return left
		}
	}
	return left
}

func (p *Parser) parseLookupOrRange(tok token.Token, root ast.Expression) ast.Expression {
	if p.at(token.COLON) {
		p.advance()
		var end ast.Expression
		if !p.at(token.RBRACKET) {
			end = p.parseExpression(0)
		}
		p.expect(token.RBRACKET)
		return &ast.RangeLookup{Tok: tok, Root: root, Start: nil, End: end}
	}

	first := p.parseExpression(0)
	if p.at(token.COLON) {
		p.advance()
		var end ast.Expression
		if !p.at(token.RBRACKET) {
			end = p.parseExpression(0)
		}
		p.expect(token.RBRACKET)
		return &ast.RangeLookup{Tok: tok, Root: root, Start: first, End: end}
	}
	p.expect(token.RBRACKET)
	return &ast.Lookup{Tok: tok, Root: root, Index: first}
}

func (p *Parser) parseMapLiteral() *ast.MapLiteral {
	tok := p.advance() // {
	m := &ast.MapLiteral{Tok: tok}
	for !p.at(token.RBRACE) && !p.failed() {
		keyTok := p.curTok()
		var key string
		switch keyTok.Kind {
		case token.IDENTIFIER:
			key = keyTok.Literal
			p.advance()
		case token.STRING:
			key = keyTok.Literal
			p.advance()
		default:
			p.fail(ferrors.UnexpectedToken, "expected map key, found %q", keyTok.Literal)
			return m
		}
		p.expect(token.COLON)
		val := p.parseExpression(0)
		m.Entries = append(m.Entries, ast.MapEntry{Key: key, Value: val})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RBRACE)
	return m
}

func (p *Parser) parseArrayLiteral() *ast.ArrayLiteral {
	tok := p.advance() // [
	a := &ast.ArrayLiteral{Tok: tok}
	for !p.at(token.RBRACKET) && !p.failed() {
		a.Elements = append(a.Elements, p.parseExpression(0))
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RBRACKET)
	return a
}

func (p *Parser) parseFString() *ast.FString {
	tok := p.curTok()
	f := &ast.FString{Tok: tok}
	segTok := p.expect(token.FSTRING_SEGMENT)
	f.Segments = append(f.Segments, segTok.Literal)
	for p.at(token.LBRACE) && !p.failed() {
		p.advance() // {
		f.Exprs = append(f.Exprs, p.parseExpression(0))
		p.expect(token.RBRACE)
		segTok = p.expect(token.FSTRING_SEGMENT)
		f.Segments = append(f.Segments, segTok.Literal)
	}
	return f
}

func (p *Parser) parseCaseExpr() *ast.CaseExpr {
	tok := p.advance() // CASE
	c := &ast.CaseExpr{Tok: tok}
	for p.at(token.WHEN) {
		p.advance()
		cond := p.parseExpression(0)
		p.expect(token.THEN)
		then := p.parseExpression(0)
		c.Whens = append(c.Whens, ast.WhenClause{Cond: cond, Then: then})
	}
	if len(c.Whens) == 0 {
		p.fail(ferrors.UnexpectedToken, "CASE requires at least one WHEN clause")
	}
	p.expect(token.ELSE)
	c.Else = p.parseExpression(0)
	p.expect(token.END)
	return c
}

func (p *Parser) parseExpressionList(end token.Kind) []ast.Expression {
	var list []ast.Expression
	for !p.at(end) && !p.failed() {
		list = append(list, p.parseExpression(0))
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return list
}

// parseFunctionCall parses Name(args...) or Name(DISTINCT args...) or the
// predicate-comprehension form Name(var IN coll | proj [WHERE cond])
// (spec.md §4.5, §4.6). nameTok has already been consumed; the current
// token is LPAREN.
func (p *Parser) parseFunctionCall(nameTok token.Token) ast.Expression {
	lparen := p.advance() // (
	meta, known := p.reg.Metadata(nameTok.Literal)
	if !known {
		p.fail(ferrors.UnknownFunction, "unknown function %q", nameTok.Literal)
	}

	isAggregate := known && meta.Category == registry.CategoryAggregate
	if isAggregate {
		if p.aggregateDepth > 0 {
			p.failAt(ferrors.NestedAggregate, nameTok.Pos, "aggregate function %q cannot be nested inside another aggregate", nameTok.Literal)
		}
		p.aggregateDepth++
	}

	call := &ast.FunctionCall{Tok: nameTok, Name: nameTok.Literal, IsAggregate: isAggregate}

	if p.at(token.DISTINCT) {
		p.advance()
		call.Distinct = true
	}

	if !p.at(token.RPAREN) {
		if isAggregate && p.looksLikePredicateForm() {
			call.Predicate = p.parsePredicateExpr()
		} else {
			call.Args = p.parseExpressionList(token.RPAREN)
		}
	}
	p.expect(token.RPAREN)

	if isAggregate {
		p.aggregateDepth--
	}

	if known && meta.Arity >= 0 && call.Predicate == nil {
		if len(call.Args) != meta.Arity {
			p.failAt(ferrors.ArityMismatch, lparen.Pos, "function %q expects %d argument(s), got %d", nameTok.Literal, meta.Arity, len(call.Args))
		}
	}

	return call
}

// looksLikePredicateForm reports whether the call argument list opens with
// `identifier IN`, the head of a predicate-comprehension (spec.md §4.5).
func (p *Parser) looksLikePredicateForm() bool {
	return p.at(token.IDENTIFIER) && p.peekAt(1).Kind == token.IN
}

func (p *Parser) parsePredicateExpr() *ast.PredicateExpr {
	varTok := p.expect(token.IDENTIFIER)
	p.expect(token.IN)
	source := p.parseExpression(0)
	p.expect(token.PIPE)
	projection := p.parseExpression(0)
	pred := &ast.PredicateExpr{Tok: varTok, VarName: varTok.Literal, Source: source, Projection: projection}
	if p.at(token.WHERE) {
		p.advance()
		pred.Filter = p.parseExpression(0)
	}
	return pred
}

// parseExpressionWrapper parses one WITH projection item: an expression
// with an `AS alias` required whenever the root is not a bare Reference
// (spec.md §4.7: "AS alias required when the expression root is not a bare
// reference").
func (p *Parser) parseExpressionWrapper() *ast.ExpressionWrapper {
	tok := p.curTok()
	root := p.parseExpression(0)
	w := p.finishWrapper(tok, root)
	if w.Alias == "" && !p.failed() {
		p.failAt(ferrors.MissingAlias, tok.Pos, "expression requires an explicit AS alias")
	}
	return w
}

// parseReturnItem parses one RETURN projection item: alias is optional — a
// bare reference takes its identifier as alias, any other anonymous
// expression gets an auto-generated "expr<i>" alias (spec.md §4.7).
func (p *Parser) parseReturnItem() *ast.ExpressionWrapper {
	tok := p.curTok()
	root := p.parseExpression(0)
	w := p.finishWrapper(tok, root)
	if w.Alias == "" {
		w.Alias = p.nextAutoAlias()
	}
	return w
}

func (p *Parser) finishWrapper(tok token.Token, root ast.Expression) *ast.ExpressionWrapper {
	w := &ast.ExpressionWrapper{Tok: tok, Root: root}
	if p.at(token.AS) {
		p.advance()
		aliasTok := p.expect(token.IDENTIFIER)
		w.Alias = aliasTok.Literal
		w.HasExplicitAlias = true
		return w
	}
	if ref, ok := root.(*ast.Reference); ok {
		w.Alias = ref.Name
	}
	return w
}

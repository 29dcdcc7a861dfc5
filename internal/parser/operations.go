package parser

import (
	"strconv"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/token"
)

// parseProgram consumes the whole operation chain: one operation per
// iteration, each optionally followed by WHERE/LIMIT, then either EOF or
// another operation preceded by mandatory whitespace (spec.md §4.7).
func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	var tail ast.Operation

	for !p.failed() {
		op := p.parseOperation()
		if p.failed() || op == nil {
			return prog
		}
		p.parseWhereLimitSuffix(op)
		if p.failed() {
			return prog
		}

		if prog.First == nil {
			prog.First = op
		} else {
			tail.SetNext(op)
		}
		tail = op
		prog.Terminal = op

		if _, isReturn := op.(*ast.ReturnOp); isReturn {
			if p.at(token.RETURN) {
				p.failAt(ferrors.DuplicateReturn, p.curTok().Pos, "a program may have only one RETURN")
			} else if !p.at(token.EOF) {
				p.fail(ferrors.InvalidTerminalOperation, "RETURN must be the final operation")
			}
			return prog
		}

		if call, ok := op.(*ast.CallOp); ok && len(call.Yields) == 0 {
			if !p.at(token.EOF) {
				p.failAt(ferrors.CallRequiresYield, call.Tok.Pos, "CALL without YIELD must be the final operation")
			}
			return prog
		}

		if p.at(token.EOF) {
			p.failAt(ferrors.InvalidTerminalOperation, op.Pos(), "program must end with RETURN or a YIELD-less terminal CALL")
			return prog
		}

		p.expectWhitespaceAndComments()
	}
	return prog
}

func (p *Parser) parseOperation() ast.Operation {
	switch p.curTok().Kind {
	case token.WITH:
		return p.parseWith()
	case token.UNWIND:
		return p.parseUnwind()
	case token.LOAD:
		return p.parseLoad()
	case token.CALL:
		return p.parseCall()
	case token.RETURN:
		return p.parseReturn()
	default:
		p.fail(ferrors.UnexpectedToken, "expected WITH, UNWIND, LOAD, CALL, or RETURN, found %q", p.curTok().Literal)
		return nil
	}
}

// parseWhereLimitSuffix attaches a trailing WHERE and/or LIMIT clause to op
// (spec.md §4.7: "WHERE: attached to the preceding operation ... LIMIT:
// attaches to the preceding operation").
func (p *Parser) parseWhereLimitSuffix(op ast.Operation) {
	for !p.failed() {
		switch {
		case p.at(token.WHERE):
			whereTok := p.advance()
			expr := p.parseExpression(0)
			if !p.failed() && !looksBooleanProducing(expr) {
				p.failAt(ferrors.WhereNotBoolean, whereTok.Pos, "WHERE expression must be boolean-producing")
			}
			op.SetWhere(&ast.ExpressionWrapper{Tok: whereTok, Root: expr})
		case p.at(token.LIMIT):
			p.advance()
			numTok := p.expect(token.NUMBER)
			n, _ := strconv.ParseFloat(numTok.Literal, 64)
			op.SetLimit(int64(n))
		default:
			return
		}
	}
}

func (p *Parser) parseWith() *ast.WithOp {
	tok := p.advance() // WITH
	op := &ast.WithOp{OpCommon: ast.OpCommon{Tok: tok}}
	for {
		op.Items = append(op.Items, p.parseExpressionWrapper())
		if p.failed() || !p.at(token.COMMA) {
			break
		}
		p.advance()
	}
	return op
}

func (p *Parser) parseUnwind() *ast.UnwindOp {
	tok := p.advance() // UNWIND
	op := &ast.UnwindOp{OpCommon: ast.OpCommon{Tok: tok}}
	op.Source = p.parseExpression(0)
	if !p.failed() && !looksSequenceProducing(op.Source) {
		p.failAt(ferrors.UnwindNotSequence, tok.Pos, "UNWIND source must be sequence-producing")
	}
	p.expect(token.AS)
	aliasTok := p.expect(token.IDENTIFIER)
	op.Alias = aliasTok.Literal
	return op
}

func (p *Parser) parseLoad() *ast.LoadOp {
	tok := p.advance() // LOAD
	op := &ast.LoadOp{OpCommon: ast.OpCommon{Tok: tok}, Format: "JSON"}

	switch p.curTok().Kind {
	case token.JSON:
		op.Format = "JSON"
		p.advance()
	case token.CSV:
		op.Format = "CSV"
		p.advance()
	case token.TEXT:
		op.Format = "TEXT"
		p.advance()
	}

	p.expect(token.FROM)
	op.Source = p.parseExpression(0)

options:
	for !p.failed() {
		switch {
		case p.at(token.HEADERS):
			p.advance()
			op.Options = append(op.Options, ast.LoadOption{Key: "HEADERS", Value: p.parseExpression(0)})
		case p.at(token.POST):
			p.advance()
			op.Options = append(op.Options, ast.LoadOption{Key: "POST", Value: p.parseExpression(0)})
		default:
			break options
		}
	}

	p.expect(token.AS)
	aliasTok := p.expect(token.IDENTIFIER)
	op.Alias = aliasTok.Literal
	return op
}

func (p *Parser) parseCall() *ast.CallOp {
	tok := p.advance() // CALL
	op := &ast.CallOp{OpCommon: ast.OpCommon{Tok: tok}}

	nameTok := p.expect(token.IDENTIFIER)
	op.Name = nameTok.Literal
	if meta, ok := p.reg.Metadata(op.Name); !ok || meta.Category != registry.CategoryAsync {
		p.failAt(ferrors.UnknownFunction, nameTok.Pos, "unknown async provider %q", op.Name)
	}

	p.expect(token.LPAREN)
	op.Args = p.parseExpressionList(token.RPAREN)
	p.expect(token.RPAREN)

	if p.at(token.YIELD) {
		p.advance()
		for {
			idTok := p.expect(token.IDENTIFIER)
			op.Yields = append(op.Yields, idTok.Literal)
			if p.failed() || !p.at(token.COMMA) {
				break
			}
			p.advance()
		}
	}
	return op
}

func (p *Parser) parseReturn() *ast.ReturnOp {
	tok := p.advance() // RETURN
	op := &ast.ReturnOp{OpCommon: ast.OpCommon{Tok: tok}}

	if p.at(token.DISTINCT) {
		p.advance()
		op.Distinct = true
	}

	for {
		op.Items = append(op.Items, p.parseReturnItem())
		if p.failed() || !p.at(token.COMMA) {
			break
		}
		p.advance()
	}
	return op
}

// looksSequenceProducing is a conservative, purely syntactic check backing
// the parse-time UnwindNotSequence error (spec.md §7): it rejects only
// expression shapes that can never produce a sequence. References, lookups,
// and function calls are accepted since their runtime type is not known
// until execution.
func looksSequenceProducing(e ast.Expression) bool {
	switch e.(type) {
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.NullLiteral,
		*ast.MapLiteral, *ast.BinaryExpr, *ast.UnaryExpr, *ast.IsNullExpr,
		*ast.FString:
		return false
	default:
		return true
	}
}

// looksBooleanProducing is the analogous conservative check backing
// WhereNotBoolean: only the shapes that can never be boolean (array/mapping
// literals, per spec.md §4.7) are rejected.
func looksBooleanProducing(e ast.Expression) bool {
	switch e.(type) {
	case *ast.ArrayLiteral, *ast.MapLiteral:
		return false
	default:
		return true
	}
}

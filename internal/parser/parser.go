// Package parser turns a FlowQuery token stream into an *ast.Program: a
// Shunting-Yard-equivalent expression parser (as precedence-climbing
// recursive descent, the isomorphic strategy spec.md §9 allows) plus an
// operation-chain parser for WITH/UNWIND/LOAD/CALL/WHERE/LIMIT/RETURN
// (spec.md §4.5, §4.7).
//
// Grounded on the teacher's internal/parser: a token-cursor Parser struct,
// one parseExpression(precedence) entry point with prefix/infix dispatch
// tables, and first-error-and-stop error handling
// (internal/parser/expressions.go, internal/parser/error.go).
package parser

import (
	"fmt"
	"strconv"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/ferrors"
	"github.com/flowquery-lang/flowquery/internal/lexer"
	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/token"
)

// Parser consumes a pre-scanned significant-token stream and builds an
// *ast.Program. It stops and reports the first error encountered (spec.md
// §4.7, §7: "Parser must report the first error and stop").
type Parser struct {
	toks   []lexer.SignificantToken
	pos    int
	source string
	file   string
	reg    *registry.Registry

	err error

	aggregateDepth int
	exprCounter    int
}

// Parse scans and parses source against reg, returning the parsed Program
// or the first error encountered (a *ferrors.CompilerError).
func Parse(source string, reg *registry.Registry) (*ast.Program, error) {
	return ParseFile(source, "", reg)
}

// ParseFile is Parse with an explicit file name for error messages.
func ParseFile(source, file string, reg *registry.Registry) (*ast.Program, error) {
	lx := lexer.New(source)
	toks, lexErrs := lx.Tokens()
	if len(lexErrs) > 0 {
		e := lexErrs[0]
		return nil, ferrors.NewCompilerError(ferrors.UnexpectedToken, e.Pos, e.Message, source, file)
	}

	p := &Parser{toks: toks, source: source, file: file, reg: reg}
	prog := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

func (p *Parser) cur() lexer.SignificantToken { return p.toks[p.pos] }

func (p *Parser) curTok() token.Token { return p.cur().Token }

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1].Token // EOF
	}
	return p.toks[idx].Token
}

func (p *Parser) advance() token.Token {
	tok := p.curTok()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(k token.Kind) bool { return p.curTok().Kind == k }

func (p *Parser) failAt(kind ferrors.Kind, pos token.Position, format string, args ...interface{}) {
	if p.err != nil {
		return // keep the first error only
	}
	p.err = ferrors.NewCompilerError(kind, pos, fmt.Sprintf(format, args...), p.source, p.file)
}

func (p *Parser) fail(kind ferrors.Kind, format string, args ...interface{}) {
	p.failAt(kind, p.curTok().Pos, format, args...)
}

// failed reports whether an error has already been recorded.
func (p *Parser) failed() bool { return p.err != nil }

// expect consumes the current token if it has kind k, else records an
// UnexpectedToken error and returns the zero Token.
func (p *Parser) expect(k token.Kind) token.Token {
	if p.failed() {
		return token.Token{}
	}
	if !p.at(k) {
		p.fail(ferrors.UnexpectedToken, "expected %s, found %s %q", k, p.curTok().Kind, p.curTok().Literal)
		return token.Token{}
	}
	return p.advance()
}

// expectWhitespaceAndComments enforces that at least one whitespace or
// comment token separated the previous significant token from the current
// one — the rule that makes "return 1where" illegal while "return 1 where"
// is legal (spec.md §4.7).
func (p *Parser) expectWhitespaceAndComments() {
	if p.failed() {
		return
	}
	if !p.cur().PrecededBySpace {
		p.fail(ferrors.ExpectedWhitespace, "expected whitespace before %q", p.curTok().Literal)
	}
}

// nextAutoAlias returns the next "expr<i>" auto-generated alias name for an
// anonymous projection (spec.md §4.7 "anonymous expressions get expr<i>").
func (p *Parser) nextAutoAlias() string {
	p.exprCounter++
	return "expr" + strconv.Itoa(p.exprCounter)
}

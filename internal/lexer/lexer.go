// Package lexer tokenizes FlowQuery source code into a stream of
// internal/token.Token values, following the scan structure of the teacher
// DWScript lexer: a single left-to-right rune scan, a small dispatch table
// for multi-character operators, and explicit save/restore state that the
// number scanner uses to back out of a non-exponent 'e'.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/flowquery-lang/flowquery/internal/token"
)

// Error represents a single lexical error: an illegal character or an
// unterminated string/f-string.
type Error struct {
	Message string
	Pos     token.Position
}

func (e *Error) Error() string { return e.Message }

// Lexer scans one FlowQuery source string into tokens on demand.
type Lexer struct {
	input        string
	errors       []Error
	tokenBuffer  []token.Token
	position     int
	readPosition int
	line         int
	column       int
	ch           rune
}

// New creates a Lexer over input.
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Errors returns every lexical error accumulated so far.
func (l *Lexer) Errors() []Error { return l.errors }

func (l *Lexer) addError(msg string, pos token.Position) {
	l.errors = append(l.errors, Error{Message: msg, Pos: pos})
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.column++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
	l.column++
	if r == utf8.RuneError && size == 1 {
		l.addError("invalid UTF-8 encoding", l.currentPos())
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.column, Offset: l.position}
}

// LexerState captures enough of the scan position to backtrack to it; the
// number scanner uses it to undo a speculative exponent read. The parser
// works on the slice returned by Tokens and does not use it.
type LexerState struct {
	tokenBuffer  []token.Token
	position     int
	readPosition int
	line         int
	column       int
	ch           rune
}

// SaveState captures the current position.
func (l *Lexer) SaveState() LexerState {
	buf := make([]token.Token, len(l.tokenBuffer))
	copy(buf, l.tokenBuffer)
	return LexerState{
		tokenBuffer: buf, position: l.position, readPosition: l.readPosition,
		line: l.line, column: l.column, ch: l.ch,
	}
}

// RestoreState rewinds the Lexer to a previously saved position.
func (l *Lexer) RestoreState(s LexerState) {
	l.tokenBuffer = s.tokenBuffer
	l.position = s.position
	l.readPosition = s.readPosition
	l.line = s.line
	l.column = s.column
	l.ch = s.ch
}

// Peek returns the token n positions ahead without consuming it, buffering
// tokens lazily as needed (mirrors the teacher's Peek(n) API).
func (l *Lexer) Peek(n int) token.Token {
	for len(l.tokenBuffer) <= n {
		l.tokenBuffer = append(l.tokenBuffer, l.scanToken())
	}
	return l.tokenBuffer[n]
}

// NextToken returns the next token, draining the lookahead buffer first.
func (l *Lexer) NextToken() token.Token {
	if len(l.tokenBuffer) > 0 {
		tok := l.tokenBuffer[0]
		l.tokenBuffer = l.tokenBuffer[1:]
		return tok
	}
	return l.scanToken()
}

func (l *Lexer) skipWhitespace() bool {
	start := l.position
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		l.readChar()
	}
	return l.position > start
}

// scanToken produces exactly one token, including WHITESPACE and COMMENT —
// both are kept in the logical stream (spec.md §4.3) even though NextToken's
// typical caller (the parser) filters them via Tokens below; keeping them
// here is what lets expectWhitespaceAndComments (internal/parser) observe
// adjacency.
func (l *Lexer) scanToken() token.Token {
	pos := l.currentPos()

	if l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		start := l.position
		l.skipWhitespace()
		return token.New(token.WHITESPACE, l.input[start:l.position], pos)
	}

	if l.ch == '/' && l.peekChar() == '/' {
		start := l.position
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		return token.New(token.COMMENT, l.input[start:l.position], pos)
	}
	if l.ch == '/' && l.peekChar() == '*' {
		start := l.position
		l.readChar()
		l.readChar()
		terminated := false
		for l.ch != 0 {
			if l.ch == '*' && l.peekChar() == '/' {
				l.readChar()
				l.readChar()
				terminated = true
				break
			}
			if l.ch == '\n' {
				l.line++
				l.column = 0
			}
			l.readChar()
		}
		if !terminated {
			l.addError("unterminated block comment", pos)
		}
		return token.New(token.COMMENT, l.input[start:l.position], pos)
	}

	if l.ch == 0 {
		return token.New(token.EOF, "", pos)
	}

	if (l.ch == 'f' || l.ch == 'F') && (l.peekChar() == '"' || l.peekChar() == '\'') {
		return l.scanFString(pos)
	}

	if l.ch == '"' || l.ch == '\'' || l.ch == '`' {
		return l.scanString(pos)
	}

	if isDigit(l.ch) {
		return l.scanNumber(pos)
	}

	if token.IsIdentifierStart(l.ch) {
		lit := l.readIdentifier()
		return token.New(token.LookupIdent(lit), lit, pos)
	}

	return l.scanOperatorOrPunctuation(pos)
}

// Tokens drains the lexer into a slice, dropping WHITESPACE/COMMENT tokens
// but recording, for every remaining token, whether at least one
// whitespace-or-comment token preceded it — the parser's
// expectWhitespaceAndComments check (spec.md §4.7) consults this instead of
// re-scanning raw text.
type SignificantToken struct {
	Token          token.Token
	PrecededBySpace bool
}

// Tokens scans the whole input once and returns the significant-token
// stream the parser consumes.
func (l *Lexer) Tokens() ([]SignificantToken, []Error) {
	var out []SignificantToken
	sawSpace := false
	for {
		tok := l.NextToken()
		if tok.Kind == token.WHITESPACE || tok.Kind == token.COMMENT {
			sawSpace = true
			continue
		}
		out = append(out, SignificantToken{Token: tok, PrecededBySpace: sawSpace})
		sawSpace = false
		if tok.Kind == token.EOF {
			break
		}
	}
	return out, l.errors
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for token.IsIdentifierPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// scanNumber reads digits, an optional '.' + digits, and an optional
// exponent (spec.md §6 "Number literal"). The leading '-' is handled by the
// expression parser, not here, since it is only a number sign in operand
// position (spec.md §6).
func (l *Lexer) scanNumber(pos token.Position) token.Token {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := l.SaveState()
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			l.RestoreState(save)
		}
	}
	return token.New(token.NUMBER, l.input[start:l.position], pos)
}

// scanString reads a single-quoted, double-quoted, or back-tick quoted
// string literal, with \<delim> escaping the delimiter (spec.md §6).
func (l *Lexer) scanString(pos token.Position) token.Token {
	quote := l.ch
	// Back-tick also quotes identifiers that would otherwise collide with a
	// keyword (spec.md §6); everything else about the scan is identical, so
	// only the emitted Kind differs.
	kind := token.STRING
	if quote == '`' {
		kind = token.IDENTIFIER
	}
	l.readChar() // opening quote
	var b strings.Builder
	for l.ch != 0 && l.ch != quote {
		if l.ch == '\\' && l.peekChar() == quote {
			b.WriteRune(quote)
			l.readChar()
			l.readChar()
			continue
		}
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		b.WriteRune(l.ch)
		l.readChar()
	}
	if l.ch != quote {
		l.addError("unterminated string literal", pos)
		return token.New(kind, b.String(), pos)
	}
	l.readChar() // closing quote
	return token.New(kind, b.String(), pos)
}

// scanFString tokenizes f"…{expr}…" into a sequence: FSTRING_SEGMENT,
// LBRACE, <ordinary tokens of expr>, RBRACE, FSTRING_SEGMENT, ... ending on
// a trailing FSTRING_SEGMENT with no following LBRACE. The parser
// recognises the start of an f-string by seeing FSTRING_SEGMENT as the
// current token, and the end by the absence of a following LBRACE.
func (l *Lexer) scanFString(pos token.Position) token.Token {
	l.readChar() // skip 'f'/'F'
	quote := l.ch
	l.readChar() // skip opening quote

	segStart := l.position
	var b strings.Builder
	flushSegment := func() string {
		b.WriteString(l.input[segStart:l.position])
		s := b.String()
		b.Reset()
		return s
	}

	for l.ch != 0 && l.ch != quote {
		switch {
		case l.ch == '{' && l.peekChar() == '{':
			b.WriteString(l.input[segStart:l.position])
			b.WriteByte('{')
			l.readChar()
			l.readChar()
			segStart = l.position
		case l.ch == '}' && l.peekChar() == '}':
			b.WriteString(l.input[segStart:l.position])
			b.WriteByte('}')
			l.readChar()
			l.readChar()
			segStart = l.position
		case l.ch == '{':
			seg := flushSegment()
			l.tokenBuffer = append(l.tokenBuffer, token.New(token.FSTRING_SEGMENT, seg, pos))
			l.tokenBuffer = append(l.tokenBuffer, token.New(token.LBRACE, "{", l.currentPos()))
			l.readChar()
			l.scanBraceExpr()
			segStart = l.position
		default:
			if l.ch == '\n' {
				l.line++
				l.column = 0
			}
			l.readChar()
		}
	}

	if l.ch != quote {
		l.addError("unterminated f-string literal", pos)
	} else {
		seg := flushSegment()
		l.tokenBuffer = append(l.tokenBuffer, token.New(token.FSTRING_SEGMENT, seg, pos))
		l.readChar() // closing quote
	}

	// The first buffered token (if any) is the real first segment; pop it
	// off and return it directly so the caller always gets one token back.
	if len(l.tokenBuffer) == 0 {
		return token.New(token.FSTRING_SEGMENT, "", pos)
	}
	first := l.tokenBuffer[0]
	l.tokenBuffer = l.tokenBuffer[1:]
	return first
}

// scanBraceExpr scans ordinary tokens until the matching '}' (tracking
// nested braces from map literals inside the hole) and appends them,
// followed by the closing RBRACE, to tokenBuffer.
func (l *Lexer) scanBraceExpr() {
	depth := 1
	for depth > 0 && l.ch != 0 {
		tok := l.scanToken()
		if tok.Kind == token.WHITESPACE || tok.Kind == token.COMMENT {
			continue
		}
		if tok.Kind == token.LBRACE {
			depth++
		}
		if tok.Kind == token.RBRACE {
			depth--
			if depth == 0 {
				l.tokenBuffer = append(l.tokenBuffer, tok)
				return
			}
		}
		if tok.Kind == token.EOF {
			l.addError("unterminated f-string expression hole", tok.Pos)
			l.tokenBuffer = append(l.tokenBuffer, tok)
			return
		}
		l.tokenBuffer = append(l.tokenBuffer, tok)
	}
}

var singleRune = map[rune]token.Kind{
	'(': token.LPAREN, ')': token.RPAREN,
	'[': token.LBRACKET, ']': token.RBRACKET,
	'{': token.LBRACE, '}': token.RBRACE,
	',': token.COMMA, '.': token.DOT, '|': token.PIPE,
	'+': token.PLUS, '-': token.MINUS, '*': token.STAR,
	'/': token.SLASH, '%': token.PERCENT, '^': token.CARET,
}

func (l *Lexer) scanOperatorOrPunctuation(pos token.Position) token.Token {
	runes := []rune(l.input[l.position:])
	if kind, consumed, ok := token.Operators.Lookup(runes, 0); ok {
		lit := string(runes[:consumed])
		for i := 0; i < consumed; i++ {
			l.readChar()
		}
		return token.New(kind, lit, pos)
	}

	switch l.ch {
	case ':':
		l.readChar()
		return token.New(token.COLON, ":", pos)
	case '=':
		l.readChar()
		return token.New(token.EQ, "=", pos)
	case '<':
		l.readChar()
		return token.New(token.LT, "<", pos)
	case '>':
		l.readChar()
		return token.New(token.GT, ">", pos)
	}

	if kind, ok := singleRune[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return token.New(kind, lit, pos)
	}

	lit := string(l.ch)
	l.addError("illegal character: "+lit, pos)
	l.readChar()
	return token.New(token.ILLEGAL, lit, pos)
}

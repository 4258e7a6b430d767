package parser

import (
	"strconv"
	"strings"

	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

const (
	defaultMaxDepth     = 100
	defaultMaxLength    = 100 * 1024 // 100KB
	defaultMaxErrors    = 20
	errorNodeLocation   = -1
	tooManyErrorsNotice = "too many errors, giving up"
)

// reservedWords cannot be used as identifiers.
var reservedWords = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"let": true, "loop": true, "package": true, "namespace": true,
	"return": true, "var": true, "void": true, "while": true,
}

// Parser turns expression source into an AST.
// A Parser holds configuration only and is safe for concurrent use.
type Parser struct {
	maxDepth  int // Maximum nesting depth of sub-expressions
	maxLength int // Maximum source length in bytes
	maxErrors int // Parsing stops after this many errors
}

// NewParser creates a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxDepth:  defaultMaxDepth,
		maxLength: defaultMaxLength,
		maxErrors: defaultMaxErrors,
	}
}

// WithMaxDepth sets the maximum nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// WithMaxLength sets the maximum accepted source length in bytes.
func (p *Parser) WithMaxLength(n int) *Parser {
	p.maxLength = n
	return p
}

// WithMaxErrors sets how many errors are collected before parsing stops.
func (p *Parser) WithMaxErrors(n int) *Parser {
	p.maxErrors = n
	return p
}

// Parse parses src into an AST whose node IDs start at 1. On failure the
// returned error is a *errors.ParseErrors holding every problem found.
func Parse(src string) (*ast.Expr, error) {
	return NewParser().Parse(src)
}

// Parse parses src into an AST. See the package-level Parse.
func (p *Parser) Parse(src string) (*ast.Expr, error) {
	errs := celerrors.NewParseErrors(src)
	if p.maxLength > 0 && len(src) > p.maxLength {
		errs.Add(celerrors.Location{Offset: 0, Line: 1, Column: 1},
			"expression length %d exceeds maximum %d bytes", len(src), p.maxLength)
		return nil, errs
	}

	st := &state{
		src:       src,
		errs:      errs,
		maxDepth:  p.maxDepth,
		maxErrors: p.maxErrors,
	}
	lex := newLexer(src, st.errorf)
	for {
		tok := lex.next()
		st.tokens = append(st.tokens, tok)
		if tok.kind == tokEOF {
			break
		}
	}

	root := st.parseExpr()
	if st.cur().kind != tokEOF {
		st.unexpected("end of input")
	}
	if errs.HasErrors() {
		return nil, errs
	}
	return root, nil
}

// state is the per-call parsing state.
type state struct {
	src     string
	tokens  []token
	pos     int
	lastID  int64
	depth   int
	aborted bool

	maxDepth  int
	maxErrors int
	errs      *celerrors.ParseErrors
}

func (s *state) cur() token {
	if s.aborted {
		return s.tokens[len(s.tokens)-1]
	}
	return s.tokens[s.pos]
}

func (s *state) advance() token {
	tok := s.cur()
	if tok.kind != tokEOF {
		s.pos++
	}
	return tok
}

func (s *state) accept(kind tokenKind) bool {
	if s.cur().kind == kind {
		s.advance()
		return true
	}
	return false
}

func (s *state) expect(kind tokenKind) bool {
	if s.accept(kind) {
		return true
	}
	s.unexpected(kind.String())
	return false
}

// abort makes the rest of the input look empty so every pending production
// unwinds. The token stream always ends with tokEOF.
func (s *state) abort() {
	s.aborted = true
}

func (s *state) errorf(offset int, format string, args ...any) {
	if s.maxErrors > 0 && s.errs.Count() >= s.maxErrors {
		return
	}
	line, col := location(s.src, offset)
	s.errs.Add(celerrors.Location{Offset: offset, Line: line, Column: col}, format, args...)
	if s.maxErrors > 0 && s.errs.Count() >= s.maxErrors {
		s.errs.Add(celerrors.Location{}, tooManyErrorsNotice)
		s.abort()
	}
}

func (s *state) unexpected(want string) {
	tok := s.cur()
	found := tok.kind.String()
	if tok.kind == tokIdent {
		found = "'" + tok.text + "'"
	}
	s.errorf(tok.offset, "syntax error: unexpected %s, expecting %s", found, want)
}

func (s *state) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *state) newExpr(t ast.ExprType, offset int) *ast.Expr {
	return &ast.Expr{ID: s.nextID(), Type: t, Location: offset}
}

// errorExpr stands in for a production that failed; the tree is discarded
// once errors are reported.
func (s *state) errorExpr() *ast.Expr {
	return &ast.Expr{Type: ast.ExprLiteral, Value: value.NullValue, Location: errorNodeLocation}
}

func (s *state) enter() bool {
	s.depth++
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		s.errorf(s.cur().offset, "expression nesting exceeds maximum depth %d", s.maxDepth)
		s.abort()
		return false
	}
	return true
}

func (s *state) leave() {
	s.depth--
}

// expr = or ['?' or ':' expr]
func (s *state) parseExpr() *ast.Expr {
	if !s.enter() {
		s.leave()
		return s.errorExpr()
	}
	defer s.leave()

	cond := s.parseOr()
	if s.cur().kind != tokQuestion {
		return cond
	}
	op := s.advance()
	then := s.parseOr()
	if !s.expect(tokColon) {
		return s.errorExpr()
	}
	otherwise := s.parseExpr()
	return s.call(op.offset, nil, ast.OpConditional, cond, then, otherwise)
}

func (s *state) parseOr() *ast.Expr {
	left := s.parseAnd()
	for s.cur().kind == tokOr {
		op := s.advance()
		right := s.parseAnd()
		left = s.call(op.offset, nil, ast.OpLogicalOr, left, right)
	}
	return left
}

func (s *state) parseAnd() *ast.Expr {
	left := s.parseRelation()
	for s.cur().kind == tokAnd {
		op := s.advance()
		right := s.parseRelation()
		left = s.call(op.offset, nil, ast.OpLogicalAnd, left, right)
	}
	return left
}

var relationOps = map[tokenKind]string{
	tokEq: ast.OpEquals,
	tokNe: ast.OpNotEquals,
	tokLt: ast.OpLess,
	tokLe: ast.OpLessEquals,
	tokGt: ast.OpGreater,
	tokGe: ast.OpGreaterEquals,
}

func (s *state) parseRelation() *ast.Expr {
	left := s.parseAddition()
	for {
		tok := s.cur()
		fn, ok := relationOps[tok.kind]
		if !ok && tok.kind == tokIdent && tok.text == "in" {
			fn, ok = ast.OpIn, true
		}
		if !ok {
			return left
		}
		s.advance()
		right := s.parseAddition()
		left = s.call(tok.offset, nil, fn, left, right)
	}
}

func (s *state) parseAddition() *ast.Expr {
	left := s.parseMultiplication()
	for {
		tok := s.cur()
		var fn string
		switch tok.kind {
		case tokPlus:
			fn = ast.OpAdd
		case tokMinus:
			fn = ast.OpSubtract
		default:
			return left
		}
		s.advance()
		right := s.parseMultiplication()
		left = s.call(tok.offset, nil, fn, left, right)
	}
}

func (s *state) parseMultiplication() *ast.Expr {
	left := s.parseUnary()
	for {
		tok := s.cur()
		var fn string
		switch tok.kind {
		case tokStar:
			fn = ast.OpMultiply
		case tokSlash:
			fn = ast.OpDivide
		case tokPercent:
			fn = ast.OpModulo
		default:
			return left
		}
		s.advance()
		right := s.parseUnary()
		left = s.call(tok.offset, nil, fn, left, right)
	}
}

// unary = member | '!'+ member | '-'+ member
func (s *state) parseUnary() *ast.Expr {
	var ops []token
	for s.cur().kind == tokBang || s.cur().kind == tokMinus {
		if len(ops) > 0 && ops[0].kind != s.cur().kind {
			break
		}
		ops = append(ops, s.advance())
	}

	// A minus directly before a numeric literal is part of the literal, so
	// the most negative int64 can be written.
	var operand *ast.Expr
	switch n := len(ops); {
	case n > 0 && ops[n-1].kind == tokMinus && isNumberToken(s.cur().kind):
		operand = s.parseMember(s.parseNumber(true))
		ops = ops[:n-1]
	case n > 0 && (s.cur().kind == tokBang || s.cur().kind == tokMinus):
		if !s.enter() {
			s.leave()
			return s.errorExpr()
		}
		operand = s.parseUnary()
		s.leave()
	default:
		operand = s.parseMember(s.parsePrimary())
	}

	for i := len(ops) - 1; i >= 0; i-- {
		fn := ast.OpLogicalNot
		if ops[i].kind == tokMinus {
			fn = ast.OpNegate
		}
		operand = s.call(ops[i].offset, nil, fn, operand)
	}
	return operand
}

func isNumberToken(k tokenKind) bool {
	return k == tokInt || k == tokUInt || k == tokFloat
}

// member = primary { '.' IDENT ['(' args ')'] | '[' expr ']' | '{' fields '}' }
func (s *state) parseMember(operand *ast.Expr) *ast.Expr {
	for {
		tok := s.cur()
		switch tok.kind {
		case tokDot:
			s.advance()
			name := s.cur()
			if name.kind != tokIdent {
				s.unexpected("field name")
				return s.errorExpr()
			}
			s.advance()
			if s.cur().kind == tokLParen {
				s.advance()
				args := s.parseExprList(tokRParen)
				operand = s.callOrMacro(name.offset, operand, name.text, args)
				continue
			}
			sel := s.newExpr(ast.ExprSelect, name.offset)
			sel.Operand = operand
			sel.Field = name.text
			operand = sel

		case tokLBracket:
			s.advance()
			index := s.parseExpr()
			if !s.expect(tokRBracket) {
				return s.errorExpr()
			}
			operand = s.call(tok.offset, nil, ast.OpIndex, operand, index)

		case tokLBrace:
			typeName, ok := qualifiedName(operand)
			if !ok {
				return operand
			}
			s.advance()
			operand = s.parseStruct(tok.offset, typeName)

		default:
			return operand
		}
	}
}

// qualifiedName returns the dotted name spelled by an identifier or a chain
// of selects rooted at one.
func qualifiedName(e *ast.Expr) (string, bool) {
	switch e.Type {
	case ast.ExprIdent:
		return e.Name, true
	case ast.ExprSelect:
		if e.Test {
			return "", false
		}
		prefix, ok := qualifiedName(e.Operand)
		if !ok {
			return "", false
		}
		return prefix + "." + e.Field, true
	}
	return "", false
}

func (s *state) parsePrimary() *ast.Expr {
	tok := s.cur()
	switch tok.kind {
	case tokInt, tokUInt, tokFloat:
		return s.parseNumber(false)

	case tokString:
		s.advance()
		lit := s.newExpr(ast.ExprLiteral, tok.offset)
		lit.Value = value.String(tok.text)
		return lit

	case tokBytes:
		s.advance()
		lit := s.newExpr(ast.ExprLiteral, tok.offset)
		lit.Value = value.BytesFromString(tok.text)
		return lit

	case tokDot:
		// Leading dot addresses the root scope: .a.b
		s.advance()
		if s.cur().kind != tokIdent {
			s.unexpected("identifier")
			return s.errorExpr()
		}
		return s.parseIdentOrCall()

	case tokIdent:
		return s.parseIdentOrCall()

	case tokLParen:
		s.advance()
		inner := s.parseExpr()
		if !s.expect(tokRParen) {
			return s.errorExpr()
		}
		return inner

	case tokLBracket:
		s.advance()
		list := s.newExpr(ast.ExprList, tok.offset)
		list.Elements = s.parseExprList(tokRBracket)
		return list

	case tokLBrace:
		s.advance()
		return s.parseMap(tok.offset)
	}

	s.unexpected("expression")
	s.advance()
	return s.errorExpr()
}

func (s *state) parseIdentOrCall() *ast.Expr {
	tok := s.advance()
	switch tok.text {
	case "true", "false":
		lit := s.newExpr(ast.ExprLiteral, tok.offset)
		lit.Value = value.Bool(tok.text == "true")
		return lit
	case "null":
		lit := s.newExpr(ast.ExprLiteral, tok.offset)
		lit.Value = value.NullValue
		return lit
	}
	if reservedWords[tok.text] {
		s.errorf(tok.offset, "reserved identifier '%s'", tok.text)
		return s.errorExpr()
	}

	if s.cur().kind == tokLParen {
		s.advance()
		args := s.parseExprList(tokRParen)
		return s.callOrMacro(tok.offset, nil, tok.text, args)
	}
	ident := s.newExpr(ast.ExprIdent, tok.offset)
	ident.Name = tok.text
	return ident
}

func (s *state) parseNumber(negative bool) *ast.Expr {
	tok := s.advance()
	lit := s.newExpr(ast.ExprLiteral, tok.offset)
	text := tok.text
	sign := ""
	if negative {
		sign = "-"
	}

	switch tok.kind {
	case tokInt:
		base := 10
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			base, text = 16, text[2:]
		}
		n, err := strconv.ParseInt(sign+text, base, 64)
		if err != nil {
			s.errorf(tok.offset, "invalid int literal '%s%s'", sign, tok.text)
			return s.errorExpr()
		}
		lit.Value = value.Int(n)

	case tokUInt:
		if negative {
			s.errorf(tok.offset, "invalid uint literal '-%su'", tok.text)
			return s.errorExpr()
		}
		base := 10
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			base, text = 16, text[2:]
		}
		n, err := strconv.ParseUint(text, base, 64)
		if err != nil {
			s.errorf(tok.offset, "invalid uint literal '%su'", tok.text)
			return s.errorExpr()
		}
		lit.Value = value.UInt(n)

	case tokFloat:
		f, err := strconv.ParseFloat(sign+text, 64)
		if err != nil {
			s.errorf(tok.offset, "invalid double literal '%s%s'", sign, tok.text)
			return s.errorExpr()
		}
		lit.Value = value.Float(f)
	}
	return lit
}

// parseExprList parses comma separated expressions up to and including the
// closing token. A trailing comma is allowed.
func (s *state) parseExprList(closing tokenKind) []*ast.Expr {
	var out []*ast.Expr
	for s.cur().kind != closing && s.cur().kind != tokEOF {
		out = append(out, s.parseExpr())
		if !s.accept(tokComma) {
			break
		}
	}
	s.expect(closing)
	return out
}

func (s *state) parseMap(offset int) *ast.Expr {
	m := s.newExpr(ast.ExprMap, offset)
	for s.cur().kind != tokRBrace && s.cur().kind != tokEOF {
		entry := &ast.Entry{ID: s.nextID()}
		entry.Key = s.parseExpr()
		if !s.expect(tokColon) {
			return s.errorExpr()
		}
		entry.Value = s.parseExpr()
		m.Entries = append(m.Entries, entry)
		if !s.accept(tokComma) {
			break
		}
	}
	if !s.expect(tokRBrace) {
		return s.errorExpr()
	}
	return m
}

func (s *state) parseStruct(offset int, typeName string) *ast.Expr {
	st := s.newExpr(ast.ExprStruct, offset)
	st.TypeName = typeName
	seen := make(map[string]bool)
	for s.cur().kind != tokRBrace && s.cur().kind != tokEOF {
		name := s.cur()
		if name.kind != tokIdent {
			s.unexpected("field name")
			return s.errorExpr()
		}
		s.advance()
		if seen[name.text] {
			s.errorf(name.offset, "duplicate field '%s' in %s", name.text, typeName)
		}
		seen[name.text] = true
		entry := &ast.Entry{ID: s.nextID(), Field: name.text}
		if !s.expect(tokColon) {
			return s.errorExpr()
		}
		entry.Value = s.parseExpr()
		st.Entries = append(st.Entries, entry)
		if !s.accept(tokComma) {
			break
		}
	}
	if !s.expect(tokRBrace) {
		return s.errorExpr()
	}
	return st
}

func (s *state) call(offset int, target *ast.Expr, fn string, args ...*ast.Expr) *ast.Expr {
	c := s.newExpr(ast.ExprCall, offset)
	c.Target = target
	c.Function = fn
	c.Args = args
	return c
}

func (s *state) callOrMacro(offset int, target *ast.Expr, fn string, args []*ast.Expr) *ast.Expr {
	if m, ok := s.expandMacro(offset, target, fn, args); ok {
		return m
	}
	return s.call(offset, target, fn, args...)
}

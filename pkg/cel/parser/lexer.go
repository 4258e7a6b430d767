package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenKind represents the type of a lexical token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIllegal
	tokIdent
	tokInt
	tokUInt
	tokFloat
	tokString
	tokBytes

	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
	tokDot
	tokComma
	tokColon
	tokQuestion

	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokBang
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokAnd
	tokOr
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of input",
	tokIllegal:  "illegal token",
	tokIdent:    "identifier",
	tokInt:      "int literal",
	tokUInt:     "uint literal",
	tokFloat:    "double literal",
	tokString:   "string literal",
	tokBytes:    "bytes literal",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokDot:      "'.'",
	tokComma:    "','",
	tokColon:    "':'",
	tokQuestion: "'?'",
	tokPlus:     "'+'",
	tokMinus:    "'-'",
	tokStar:     "'*'",
	tokSlash:    "'/'",
	tokPercent:  "'%'",
	tokBang:     "'!'",
	tokEq:       "'=='",
	tokNe:       "'!='",
	tokLt:       "'<'",
	tokLe:       "'<='",
	tokGt:       "'>'",
	tokGe:       "'>='",
	tokAnd:      "'&&'",
	tokOr:       "'||'",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// token is a lexical token. text holds the decoded value for string and bytes
// literals and the raw spelling otherwise.
type token struct {
	kind   tokenKind
	text   string
	offset int
}

// lexer splits expression source into tokens. Errors are reported through
// the errorf callback and lexing continues with the next character.
type lexer struct {
	src    string
	pos    int
	errorf func(offset int, format string, args ...any)
}

func newLexer(src string, errorf func(int, string, ...any)) *lexer {
	return &lexer{src: src, errorf: errorf}
}

func (l *lexer) peekByte(ahead int) byte {
	if l.pos+ahead < len(l.src) {
		return l.src[l.pos+ahead]
	}
	return 0
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.pos++
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token.
func (l *lexer) next() token {
	l.skipSpaceAndComments()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, offset: start}
	}

	c := l.src[l.pos]

	// String and bytes literals, with optional r/b prefixes.
	if prefixLen, raw, isBytes, ok := l.literalPrefix(); ok {
		l.pos += prefixLen
		text := l.scanQuoted(raw, isBytes)
		kind := tokString
		if isBytes {
			kind = tokBytes
		}
		return token{kind: kind, text: text, offset: start}
	}

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], offset: start}
	case isDigit(c):
		return l.scanNumber()
	}

	l.pos++
	two := func(second byte, yes, no tokenKind) token {
		if l.peekByte(0) == second {
			l.pos++
			return token{kind: yes, text: l.src[start:l.pos], offset: start}
		}
		return token{kind: no, text: l.src[start:l.pos], offset: start}
	}

	switch c {
	case '(':
		return token{kind: tokLParen, text: "(", offset: start}
	case ')':
		return token{kind: tokRParen, text: ")", offset: start}
	case '[':
		return token{kind: tokLBracket, text: "[", offset: start}
	case ']':
		return token{kind: tokRBracket, text: "]", offset: start}
	case '{':
		return token{kind: tokLBrace, text: "{", offset: start}
	case '}':
		return token{kind: tokRBrace, text: "}", offset: start}
	case '.':
		return token{kind: tokDot, text: ".", offset: start}
	case ',':
		return token{kind: tokComma, text: ",", offset: start}
	case ':':
		return token{kind: tokColon, text: ":", offset: start}
	case '?':
		return token{kind: tokQuestion, text: "?", offset: start}
	case '+':
		return token{kind: tokPlus, text: "+", offset: start}
	case '-':
		return token{kind: tokMinus, text: "-", offset: start}
	case '*':
		return token{kind: tokStar, text: "*", offset: start}
	case '/':
		return token{kind: tokSlash, text: "/", offset: start}
	case '%':
		return token{kind: tokPercent, text: "%", offset: start}
	case '!':
		return two('=', tokNe, tokBang)
	case '<':
		return two('=', tokLe, tokLt)
	case '>':
		return two('=', tokGe, tokGt)
	case '=':
		if l.peekByte(0) == '=' {
			l.pos++
			return token{kind: tokEq, text: "==", offset: start}
		}
		l.errorf(start, "unexpected '=', did you mean '=='?")
		return token{kind: tokIllegal, text: "=", offset: start}
	case '&':
		if l.peekByte(0) == '&' {
			l.pos++
			return token{kind: tokAnd, text: "&&", offset: start}
		}
		l.errorf(start, "unexpected '&', did you mean '&&'?")
		return token{kind: tokIllegal, text: "&", offset: start}
	case '|':
		if l.peekByte(0) == '|' {
			l.pos++
			return token{kind: tokOr, text: "||", offset: start}
		}
		l.errorf(start, "unexpected '|', did you mean '||'?")
		return token{kind: tokIllegal, text: "|", offset: start}
	}

	r, size := utf8.DecodeRuneInString(l.src[start:])
	l.pos = start + size
	l.errorf(start, "unexpected character %q", r)
	return token{kind: tokIllegal, text: string(r), offset: start}
}

// literalPrefix detects the start of a quoted literal and its r/b prefixes.
func (l *lexer) literalPrefix() (n int, raw, isBytes, ok bool) {
	for i := 0; i < 3 && l.pos+i < len(l.src); i++ {
		c := l.src[l.pos+i]
		switch {
		case c == '"' || c == '\'':
			return i, raw, isBytes, true
		case (c == 'r' || c == 'R') && !raw:
			raw = true
		case (c == 'b' || c == 'B') && !isBytes:
			isBytes = true
		default:
			return 0, false, false, false
		}
	}
	return 0, false, false, false
}

func (l *lexer) scanQuoted(raw, isBytes bool) string {
	start := l.pos
	quote := l.src[l.pos]
	delim := string(quote)
	if strings.HasPrefix(l.src[l.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	l.pos += len(delim)

	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			l.errorf(start, "unterminated string literal")
			return sb.String()
		}
		if strings.HasPrefix(l.src[l.pos:], delim) {
			l.pos += len(delim)
			return sb.String()
		}
		c := l.src[l.pos]
		if c == '\n' && len(delim) == 1 {
			l.errorf(start, "unterminated string literal")
			return sb.String()
		}
		if c == '\\' && !raw {
			l.scanEscape(&sb, isBytes)
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

func (l *lexer) scanEscape(sb *strings.Builder, isBytes bool) {
	start := l.pos
	l.pos++ // backslash
	if l.pos >= len(l.src) {
		l.errorf(start, "incomplete escape sequence")
		return
	}
	c := l.src[l.pos]
	l.pos++
	switch c {
	case '\\', '\'', '"', '`', '?':
		sb.WriteByte(c)
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'v':
		sb.WriteByte('\v')
	case 'x', 'X':
		l.scanCodeEscape(sb, start, 2, isBytes)
	case 'u':
		l.scanCodeEscape(sb, start, 4, false)
	case 'U':
		l.scanCodeEscape(sb, start, 8, false)
	case '0', '1', '2', '3':
		if l.pos+2 > len(l.src) {
			l.errorf(start, "invalid octal escape")
			return
		}
		n, err := strconv.ParseUint(l.src[l.pos-1:l.pos+2], 8, 8)
		if err != nil {
			l.errorf(start, "invalid octal escape")
			return
		}
		l.pos += 2
		writeCode(sb, rune(n), isBytes)
	default:
		l.errorf(start, "invalid escape sequence '\\%c'", c)
	}
}

func (l *lexer) scanCodeEscape(sb *strings.Builder, start, digits int, isBytes bool) {
	if l.pos+digits > len(l.src) {
		l.errorf(start, "incomplete escape sequence")
		l.pos = len(l.src)
		return
	}
	n, err := strconv.ParseUint(l.src[l.pos:l.pos+digits], 16, 32)
	l.pos += digits
	if err != nil || (digits > 2 && !utf8.ValidRune(rune(n))) {
		l.errorf(start, "invalid escape sequence")
		return
	}
	writeCode(sb, rune(n), isBytes)
}

// writeCode writes a code point; byte literals take \x and octal escapes as raw bytes.
func writeCode(sb *strings.Builder, r rune, isBytes bool) {
	if isBytes && r < 256 {
		sb.WriteByte(byte(r))
		return
	}
	sb.WriteRune(r)
}

func (l *lexer) scanNumber() token {
	start := l.pos
	if l.src[l.pos] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return l.finishInt(start)
	}

	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	isFloat := false
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		save := l.pos
		l.pos++
		if c := l.peekByte(0); c == '+' || c == '-' {
			l.pos++
		}
		if isDigit(l.peekByte(0)) {
			isFloat = true
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	if isFloat {
		return token{kind: tokFloat, text: l.src[start:l.pos], offset: start}
	}
	return l.finishInt(start)
}

func (l *lexer) finishInt(start int) token {
	if c := l.peekByte(0); c == 'u' || c == 'U' {
		text := l.src[start:l.pos]
		l.pos++
		return token{kind: tokUInt, text: text, offset: start}
	}
	return token{kind: tokInt, text: l.src[start:l.pos], offset: start}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// location converts a byte offset into a 1-based line and rune column.
func location(src string, offset int) (line, column int) {
	line, column = 1, 1
	for i, r := range src {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			column = 1
			continue
		}
		if unicode.IsPrint(r) || r == '\t' {
			column++
		}
	}
	return line, column
}

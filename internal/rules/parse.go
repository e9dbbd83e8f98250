// Package rules compiles and evaluates the record validity rules used by the
// cleaner.
//
// Grammar:
//
//	expr       = and { "OR" and }
//	and        = unary { "AND" unary }
//	unary      = "NOT" unary | "(" expr ")" | predicate
//	predicate  = field "IS" [ "NOT" ] "NULL"
//	           | operand op operand
//	op         = "==" | "!=" | ">" | ">=" | "<" | "<=" | "matches"
//	operand    = field | number | string | true | false
//
// Any comparison that touches a null value is false. Use IS NULL and
// IS NOT NULL to test for nulls.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type kind int

const (
	kWord kind = iota
	kOp
	kString
	kNumber
	kLParen
	kRParen
	kEOF
)

type token struct {
	kind kind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) all() ([]token, error) {
	var out []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if t.kind == kEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kEOF, "", start}, nil
	}
	ch := l.src[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kLParen, "(", start}, nil
	case ch == ')':
		l.pos++
		return token{kRParen, ")", start}, nil
	case strings.ContainsRune("=!<>", rune(ch)):
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
		}
		op := l.src[start:l.pos]
		if op == "=" || op == "!" {
			return token{}, fmt.Errorf("unknown operator %q at position %d", op, start)
		}
		return token{kOp, op, start}, nil
	case ch == '"' || ch == '\'':
		return l.quoted(ch)
	case unicode.IsDigit(rune(ch)) || ch == '-' || ch == '.':
		l.pos++
		for l.pos < len(l.src) && (unicode.IsDigit(rune(l.src[l.pos])) || strings.ContainsRune(".eE+-", rune(l.src[l.pos]))) {
			l.pos++
		}
		return token{kNumber, l.src[start:l.pos], start}, nil
	case unicode.IsLetter(rune(ch)) || ch == '_':
		for l.pos < len(l.src) && (unicode.IsLetter(rune(l.src[l.pos])) || unicode.IsDigit(rune(l.src[l.pos])) || l.src[l.pos] == '_') {
			l.pos++
		}
		return token{kWord, l.src[start:l.pos], start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", ch, start)
}

func (l *lexer) quoted(q byte) (token, error) {
	start := l.pos
	var sb strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.src):
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case c == q:
			l.pos++
			return token{kString, sb.String(), start}, nil
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string starting at position %d", start)
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) take() token {
	t := p.toks[p.i]
	if t.kind != kEOF {
		p.i++
	}
	return t
}

// keyword reports whether the next token is the given case-insensitive word,
// consuming it if so.
func (p *parser) keyword(w string) bool {
	t := p.peek()
	if t.kind == kWord && strings.EqualFold(t.text, w) {
		p.i++
		return true
	}
	return false
}

// Parse turns src into an expression tree.
func Parse(src string) (Node, error) {
	toks, err := (&lexer{src: src}).all()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != kEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &logical{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &logical{left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (Node, error) {
	if p.keyword("NOT") {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &not{inner: inner}, nil
	}
	if p.peek().kind == kLParen {
		p.take()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if t := p.take(); t.kind != kRParen {
			return nil, fmt.Errorf("expected ) at position %d, got %q", t.pos, t.text)
		}
		return inner, nil
	}
	return p.predicate()
}

func (p *parser) predicate() (Node, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}

	if p.keyword("IS") {
		f, ok := left.(field)
		if !ok {
			return nil, fmt.Errorf("IS NULL needs a field on the left")
		}
		negate := p.keyword("NOT")
		if !p.keyword("NULL") {
			t := p.peek()
			return nil, fmt.Errorf("expected NULL at position %d, got %q", t.pos, t.text)
		}
		return &isNull{field: f, negate: negate}, nil
	}

	t := p.take()
	var op string
	switch {
	case t.kind == kOp:
		op = t.text
	case t.kind == kWord && strings.EqualFold(t.text, "matches"):
		op = "matches"
	default:
		return nil, fmt.Errorf("expected comparison operator at position %d, got %q", t.pos, t.text)
	}
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	c := &comparison{op: op, left: left, right: right}
	if op == "matches" {
		lit, ok := right.(literal)
		s, isStr := lit.v.(string)
		if !ok || !isStr {
			return nil, fmt.Errorf("matches needs a string pattern")
		}
		if c.re, err = regexp.Compile(s); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
		}
	}
	return c, nil
}

func (p *parser) operand() (operand, error) {
	t := p.take()
	switch t.kind {
	case kString:
		return literal{v: t.text}, nil
	case kNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return literal{v: f}, nil
	case kWord:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{v: true}, nil
		case "false":
			return literal{v: false}, nil
		case "null", "and", "or", "not", "is":
			return nil, fmt.Errorf("unexpected keyword %q at position %d", t.text, t.pos)
		}
		return field(t.text), nil
	}
	return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.text)
}

package rules

import (
	"fmt"
	"regexp"
)

// Resolver looks up a field value for evaluation. A nil value with ok=true
// is a null; ok=false means the field does not exist.
type Resolver interface {
	Field(name string) (interface{}, bool)
}

// Node is a compiled expression.
type Node interface {
	Eval(r Resolver) (bool, error)
	fields(acc map[string]struct{})
}

type operand interface {
	value(r Resolver) (interface{}, error)
}

type literal struct{ v interface{} }

func (l literal) value(Resolver) (interface{}, error) { return l.v, nil }

type field string

func (f field) value(r Resolver) (interface{}, error) {
	v, ok := r.Field(string(f))
	if !ok {
		return nil, fmt.Errorf("unknown field %q", string(f))
	}
	return v, nil
}

type logical struct {
	or          bool
	left, right Node
}

func (n *logical) Eval(r Resolver) (bool, error) {
	l, err := n.left.Eval(r)
	if err != nil {
		return false, err
	}
	if l == n.or {
		return l, nil
	}
	return n.right.Eval(r)
}

func (n *logical) fields(acc map[string]struct{}) {
	n.left.fields(acc)
	n.right.fields(acc)
}

type not struct{ inner Node }

func (n *not) Eval(r Resolver) (bool, error) {
	v, err := n.inner.Eval(r)
	return !v, err
}

func (n *not) fields(acc map[string]struct{}) { n.inner.fields(acc) }

type isNull struct {
	field  field
	negate bool
}

func (n *isNull) Eval(r Resolver) (bool, error) {
	v, err := n.field.value(r)
	if err != nil {
		return false, err
	}
	return (v == nil) != n.negate, nil
}

func (n *isNull) fields(acc map[string]struct{}) { acc[string(n.field)] = struct{}{} }

type comparison struct {
	op          string
	left, right operand
	re          *regexp.Regexp
}

func (n *comparison) fields(acc map[string]struct{}) {
	for _, o := range []operand{n.left, n.right} {
		if f, ok := o.(field); ok {
			acc[string(f)] = struct{}{}
		}
	}
}

func (n *comparison) Eval(r Resolver) (bool, error) {
	l, err := n.left.value(r)
	if err != nil {
		return false, err
	}
	rv, err := n.right.value(r)
	if err != nil {
		return false, err
	}
	if l == nil || rv == nil {
		return false, nil
	}

	switch n.op {
	case "matches":
		s, ok := l.(string)
		if !ok {
			return false, fmt.Errorf("matches: left operand must be a string, got %T", l)
		}
		return n.re.MatchString(s), nil
	case "==", "!=":
		eq, err := equal(l, rv)
		if err != nil {
			return false, err
		}
		return eq == (n.op == "=="), nil
	}

	lf, lok := l.(float64)
	rf, rok := rv.(float64)
	if lok && rok {
		switch n.op {
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := rv.(string)
	if lok && rok {
		switch n.op {
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		}
	}
	return false, fmt.Errorf("operator %s cannot compare %T and %T", n.op, l, rv)
}

func equal(l, r interface{}) (bool, error) {
	switch lv := l.(type) {
	case float64:
		if rv, ok := r.(float64); ok {
			return lv == rv, nil
		}
	case string:
		if rv, ok := r.(string); ok {
			return lv == rv, nil
		}
	case bool:
		if rv, ok := r.(bool); ok {
			return lv == rv, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T with %T", l, r)
}

package rules

import (
	"fmt"
	"sort"
)

// Rule is a named, compiled validity predicate.
type Rule struct {
	ID         string
	Expression string
	root       Node
}

// Compile parses expr into a Rule.
func Compile(id, expr string) (*Rule, error) {
	root, err := Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", id, err)
	}
	return &Rule{ID: id, Expression: expr, root: root}, nil
}

// Eval reports whether r satisfies the rule.
func (rl *Rule) Eval(r Resolver) (bool, error) {
	ok, err := rl.root.Eval(r)
	if err != nil {
		return false, fmt.Errorf("rule %s: %w", rl.ID, err)
	}
	return ok, nil
}

// Fields returns the sorted field names the rule reads.
func (rl *Rule) Fields() []string {
	acc := make(map[string]struct{})
	rl.root.fields(acc)
	out := make([]string, 0, len(acc))
	for f := range acc {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Set is an ordered list of rules that must all hold.
type Set []*Rule

// Check evaluates every rule against r and returns the ids of those that
// failed, in rule order. An empty result means r is valid.
func (s Set) Check(r Resolver) ([]string, error) {
	var failed []string
	for _, rl := range s {
		ok, err := rl.Eval(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = append(failed, rl.ID)
		}
	}
	return failed, nil
}

// Def is the uncompiled form of a rule, as it appears in configuration.
type Def struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
}

// Defaults are the validity rules applied when none are configured: a
// record needs a loan id, a customer id and a strictly positive principal.
var Defaults = []Def{
	{ID: "loan_id_present", Expression: "loan_id IS NOT NULL"},
	{ID: "customer_id_present", Expression: "customer_id IS NOT NULL"},
	{ID: "principal_positive", Expression: "principal_amount > 0"},
}

// CompileAll compiles defs in order.
func CompileAll(defs []Def) (Set, error) {
	set := make(Set, 0, len(defs))
	for _, d := range defs {
		rl, err := Compile(d.ID, d.Expression)
		if err != nil {
			return nil, err
		}
		set = append(set, rl)
	}
	return set, nil
}

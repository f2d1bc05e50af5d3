/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"fmt"
	"strings"
)

// RelationalOperator compares two operands.
type RelationalOperator string

// Relational operators, spelled as in the query language.
const (
	OpEqual          RelationalOperator = "=="
	OpNotEqual       RelationalOperator = "!="
	OpLess           RelationalOperator = "<"
	OpLessOrEqual    RelationalOperator = "<="
	OpGreater        RelationalOperator = ">"
	OpGreaterOrEqual RelationalOperator = ">="
	OpFoldEqual      RelationalOperator = "~=="
	OpFoldNotEqual   RelationalOperator = "~!="
)

// BooleanOperator combines boolean children.
type BooleanOperator string

// Boolean operators.
const (
	OpAnd BooleanOperator = "and"
	OpOr  BooleanOperator = "or"
)

// VariableKind tells where a variable is resolved.
type VariableKind string

// Variable kinds.
const (
	DataVariable  VariableKind = "dvar"
	LocalVariable VariableKind = "lvar"
)

// Expr is a node of a predicate expression tree.
type Expr interface {
	eval(s *Scope) (Val, error)
	encode(b *strings.Builder)
}

// StringLiteral evaluates to its value.
type StringLiteral struct{ Value string }

// NumberLiteral evaluates to its integer value.
type NumberLiteral struct{ Value int64 }

// FloatLiteral evaluates to its floating point value.
type FloatLiteral struct{ Value float64 }

// BooleanLiteral evaluates to its value.
type BooleanLiteral struct{ Value bool }

// Variable resolves Name in the data map or in the local table.
type Variable struct {
	Kind VariableKind
	Name string
}

// Relational compares Left and Right.
type Relational struct {
	Op          RelationalOperator
	Left, Right Expr
}

// Boolean combines Children with short-circuit evaluation from left to right.
type Boolean struct {
	Op       BooleanOperator
	Children []Expr
}

// Not negates a boolean child.
type Not struct{ Child Expr }

// GetAge computes the age in whole years between Date (parsed with Format) and the current date.
type GetAge struct {
	Date, Format Expr
}

// Scope is the evaluation environment.
type Scope struct {
	Data   VariableMap
	Locals VariableMap
	// Today is needed by get_age only.
	Today *LocalDate
	// Trace, if set, observes every successfully evaluated node.
	Trace func(e Expr, v Val)
}

// Evaluate evaluates a predicate against a variable map.
func Evaluate(expr Expr, vars VariableMap) (bool, error) {
	v, err := EvaluateValue(expr, &Scope{Data: vars})
	if err != nil {
		return false, err
	}

	if v.Kind != KindBool {
		return false, fmt.Errorf("%w: predicate evaluated to %s", ErrUnexpectedValue, v.Kind)
	}

	return v.Bool, nil
}

// EvaluateValue evaluates any expression within a scope.
func EvaluateValue(expr Expr, s *Scope) (Val, error) {
	if expr == nil {
		return Val{}, fmt.Errorf("%w: nil expression", ErrUnexpectedValue)
	}

	v, err := expr.eval(s)
	if err != nil {
		return Val{}, err
	}

	if s.Trace != nil {
		s.Trace(expr, v)
	}

	return v, nil
}

func (e *StringLiteral) eval(*Scope) (Val, error)  { return String(e.Value), nil }
func (e *NumberLiteral) eval(*Scope) (Val, error)  { return Int(e.Value), nil }
func (e *FloatLiteral) eval(*Scope) (Val, error)   { return Float(e.Value), nil }
func (e *BooleanLiteral) eval(*Scope) (Val, error) { return Bool(e.Value), nil }

func (e *Variable) eval(s *Scope) (Val, error) {
	table := s.Data
	if e.Kind == LocalVariable {
		table = s.Locals
	}

	v, ok := table.Lookup(e.Name)
	if !ok {
		return Val{}, fmt.Errorf("%w: %s %q is not defined", ErrVariableResolution, e.Kind, e.Name)
	}

	return v, nil
}

func (e *Relational) eval(s *Scope) (Val, error) {
	l, err := EvaluateValue(e.Left, s)
	if err != nil {
		return Val{}, err
	}

	r, err := EvaluateValue(e.Right, s)
	if err != nil {
		return Val{}, err
	}

	b, err := Compare(e.Op, l, r)
	if err != nil {
		return Val{}, err
	}

	return Bool(b), nil
}

// Compare applies a relational operator. Ints compare exactly with ints; any other numeric
// pair compares as float64.
func Compare(op RelationalOperator, l, r Val) (bool, error) {
	switch {
	case l.Kind == KindString && r.Kind == KindString:
		switch op {
		case OpEqual:
			return l.Str == r.Str, nil
		case OpNotEqual:
			return l.Str != r.Str, nil
		case OpFoldEqual:
			return FoldCase(l.Str) == FoldCase(r.Str), nil
		case OpFoldNotEqual:
			return FoldCase(l.Str) != FoldCase(r.Str), nil
		}
	case l.Kind == KindInt && r.Kind == KindInt:
		if res, ok := order(op, cmpInt(l.Int, r.Int)); ok {
			return res, nil
		}
	case l.IsNumeric() && r.IsNumeric():
		if res, ok := order(op, cmpFloat(l.AsFloat(), r.AsFloat())); ok {
			return res, nil
		}
	case l.Kind == KindBool && r.Kind == KindBool:
		switch op {
		case OpEqual:
			return l.Bool == r.Bool, nil
		case OpNotEqual:
			return l.Bool != r.Bool, nil
		}
	default:
		return false, fmt.Errorf("%w: cannot compare %s with %s", ErrUnexpectedValue, l.Kind, r.Kind)
	}

	return false, fmt.Errorf("%w: %s is not defined for %s operands", ErrUnexpectedOperator, op, l.Kind)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func order(op RelationalOperator, c int) (bool, bool) {
	switch op {
	case OpEqual:
		return c == 0, true
	case OpNotEqual:
		return c != 0, true
	case OpLess:
		return c < 0, true
	case OpLessOrEqual:
		return c <= 0, true
	case OpGreater:
		return c > 0, true
	case OpGreaterOrEqual:
		return c >= 0, true
	default:
		return false, false
	}
}

func (e *Boolean) eval(s *Scope) (Val, error) {
	// and stops at the first false child, or at the first true one
	stopAt := e.Op == OpOr

	if e.Op != OpAnd && e.Op != OpOr {
		return Val{}, fmt.Errorf("%w: boolean operator %q", ErrUnexpectedOperator, e.Op)
	}

	for _, child := range e.Children {
		v, err := EvaluateValue(child, s)
		if err != nil {
			return Val{}, err
		}

		if v.Kind != KindBool {
			return Val{}, fmt.Errorf("%w: %s expects boolean operands, got %s", ErrUnexpectedValue, e.Op, v.Kind)
		}

		if v.Bool == stopAt {
			return Bool(stopAt), nil
		}
	}

	return Bool(!stopAt), nil
}

func (e *Not) eval(s *Scope) (Val, error) {
	v, err := EvaluateValue(e.Child, s)
	if err != nil {
		return Val{}, err
	}

	if v.Kind != KindBool {
		return Val{}, fmt.Errorf("%w: not expects a boolean operand, got %s", ErrUnexpectedValue, v.Kind)
	}

	return Bool(!v.Bool), nil
}

func (e *GetAge) eval(s *Scope) (Val, error) {
	date, err := EvaluateValue(e.Date, s)
	if err != nil {
		return Val{}, err
	}

	format, err := EvaluateValue(e.Format, s)
	if err != nil {
		return Val{}, err
	}

	if date.Kind != KindString || format.Kind != KindString {
		return Val{}, fmt.Errorf("%w: get_age expects string operands", ErrUnexpectedValue)
	}

	d, ok := ParseDate(date.Str, format.Str)
	if !ok {
		return Val{}, fmt.Errorf("%w: %q is not a %s date", ErrUnexpectedValue, date.Str, format.Str)
	}

	if s.Today == nil {
		return Val{}, fmt.Errorf("%w: get_age needs the current date", ErrVariableResolution)
	}

	return Int(AgeBetween(d, *s.Today)), nil
}

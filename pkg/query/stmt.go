/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"fmt"
	"strings"
)

// TodaysDateVar is the reserved local holding the packed current date.
const TodaysDateVar = "_todays_date"

// Stmt is a statement of a query program.
type Stmt interface {
	exec(x *executor) error
	encode(b *strings.Builder)
}

// Assign stores the value of Expr in the local variable Var.
type Assign struct {
	Var  string
	Expr Expr
}

// Output writes the value of Expr to the journal field Field.
type Output struct {
	Field string
	Expr  Expr
}

// If runs Then when Cond is true and Else otherwise.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// ProofMethodInput is everything the proving guest receives.
type ProofMethodInput struct {
	Map         VariableMap
	Stmts       []Stmt
	CurrentDate uint32
}

type executor struct {
	scope  Scope
	output VariableMap
}

// Execute runs the program and returns the journal: a flat JSON object of the output fields
// in the order they were first written.
func Execute(input *ProofMethodInput) (string, error) {
	return ExecuteTraced(input, nil)
}

// ExecuteTraced is Execute with an observer of every evaluated expression node.
func ExecuteTraced(input *ProofMethodInput, trace func(Expr, Val)) (string, error) {
	today := UnpackDate(input.CurrentDate)

	x := &executor{
		scope: Scope{
			Data:   input.Map,
			Locals: VariableMap{{Key: TodaysDateVar, Val: Int(int64(input.CurrentDate))}},
			Today:  &today,
			Trace:  trace,
		},
	}

	if err := x.run(input.Stmts); err != nil {
		return "", err
	}

	return EncodeJournal(x.output), nil
}

func (x *executor) run(stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := stmt.exec(x); err != nil {
			return err
		}
	}

	return nil
}

func (s *Assign) exec(x *executor) error {
	v, err := EvaluateValue(s.Expr, &x.scope)
	if err != nil {
		return err
	}

	x.scope.Locals.Set(s.Var, v)

	return nil
}

func (s *Output) exec(x *executor) error {
	v, err := EvaluateValue(s.Expr, &x.scope)
	if err != nil {
		return err
	}

	x.output.Set(s.Field, v)

	return nil
}

func (s *If) exec(x *executor) error {
	v, err := EvaluateValue(s.Cond, &x.scope)
	if err != nil {
		return err
	}

	if v.Kind != KindBool {
		return fmt.Errorf("%w: if expects a boolean condition, got %s", ErrUnexpectedValue, v.Kind)
	}

	if v.Bool {
		return x.run(s.Then)
	}

	return x.run(s.Else)
}

// EncodeJournal serializes output entries as a JSON object keeping their order.
func EncodeJournal(entries VariableMap) string {
	b := strings.Builder{}
	b.WriteByte('{')

	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(quote(e.Key))
		b.WriteByte(':')
		b.WriteString(e.Val.JSON())
	}

	b.WriteByte('}')

	return b.String()
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

const accessibilitySuffix = "_zkpass_public_"

type parser struct {
	data    interface{}
	resolve bool
	vars    VariableMap
	paths   map[string]gval.Evaluable
}

// Parse parses the DVR query against the user data and returns the proving input.
// Every data variable referenced by the query is resolved into the variable map.
func Parse(userData, query []byte, today LocalDate) (*ProofMethodInput, error) {
	data, err := decodeJSON(userData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserDataParsing, err)
	}

	p := &parser{data: data, resolve: true, paths: map[string]gval.Evaluable{}}

	stmts, err := p.parseQuery(query)
	if err != nil {
		return nil, err
	}

	return &ProofMethodInput{Map: p.vars, Stmts: stmts, CurrentDate: today.Pack()}, nil
}

// ParseStatements parses a query without user data. Data variables stay unresolved
// and the disclosure guard is not applied.
func ParseStatements(query []byte) ([]Stmt, error) {
	p := &parser{}

	return p.parseQuery(query)
}

// ParseExpr parses a single expression without user data.
func ParseExpr(expr []byte) (Expr, error) {
	node, err := decodeJSON(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryParsing, err)
	}

	p := &parser{}

	return p.parseExpr(node)
}

func decodeJSON(raw []byte) (interface{}, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var v interface{}
	if err := d.Decode(&v); err != nil {
		return nil, err
	}

	return v, nil
}

func (p *parser) parseQuery(query []byte) ([]Stmt, error) {
	node, err := decodeJSON(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryParsing, err)
	}

	if _, ok := node.([]interface{}); !ok {
		return nil, parseErr("QueryParsingError", "query must be an array of statements")
	}

	return p.parseStmts(node)
}

func (p *parser) parseStmts(node interface{}) ([]Stmt, error) {
	arr, ok := node.([]interface{})
	if !ok {
		return nil, parseErr("UnexpectedStmtError", "statement block must be an array")
	}

	stmts := make([]Stmt, 0, len(arr))

	for _, v := range arr {
		key, value, ok := singleKey(v)
		if !ok {
			return nil, parseErr("UnexpectedStmtError", "statement must be an object with one keyword")
		}

		var (
			stmt Stmt
			err  error
		)

		switch key {
		case "assign":
			stmt, err = p.parseAssign(value)
		case "output":
			stmt, err = p.parseOutput(value)
		case "if":
			stmt, err = p.parseIf(value)
		default:
			return nil, parseErr("UnknownStmtKeywordParsingError", fmt.Sprintf("unknown statement %q", key))
		}

		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func singleKey(node interface{}) (string, interface{}, bool) {
	m, ok := node.(map[string]interface{})
	if !ok || len(m) != 1 {
		return "", nil, false
	}

	for k, v := range m {
		return k, v, true
	}

	return "", nil, false
}

func (p *parser) parseAssign(node interface{}) (Stmt, error) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, parseErr("AssignmentStatementExpectingOperandInObjectParsingError",
			"assign expects an object operand")
	}

	if len(m) != 1 {
		return nil, parseErr("AssignmentStatementExpectingOneOperandParsingError",
			"assign expects exactly one variable")
	}

	name, value, _ := singleKey(m)

	expr, err := p.parseDisclosed(value)
	if err != nil {
		return nil, err
	}

	return &Assign{Var: name, Expr: expr}, nil
}

func (p *parser) parseOutput(node interface{}) (Stmt, error) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, parseErr("OutputStatementExpectingOperandInObjectParsingError",
			"output expects an object operand")
	}

	if len(m) != 1 {
		return nil, parseErr("OutputStatementExpectingOneOperandParsingError",
			"output expects exactly one field")
	}

	field, value, _ := singleKey(m)

	expr, err := p.parseDisclosed(value)
	if err != nil {
		return nil, err
	}

	return &Output{Field: field, Expr: expr}, nil
}

// parseDisclosed parses an assign/output operand. A data variable used directly there would
// copy raw user data, so its owner must have flagged it as public.
func (p *parser) parseDisclosed(node interface{}) (Expr, error) {
	expr, err := p.parseExpr(node)
	if err != nil {
		return nil, err
	}

	if v, ok := expr.(*Variable); ok && v.Kind == DataVariable && p.resolve {
		if err := p.checkAccessible(v.Name); err != nil {
			return nil, err
		}
	}

	return expr, nil
}

func (p *parser) checkAccessible(name string) error {
	key := "_" + name + accessibilitySuffix
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		key = name[:i] + "._" + name[i+1:] + accessibilitySuffix
	}

	v, err := p.lookupPath(key)
	if err != nil {
		return fmt.Errorf("%w: %q is not marked as public", ErrProofGeneration, name)
	}

	if b, ok := v.(bool); !ok || !b {
		return fmt.Errorf("%w: %q is not marked as public", ErrProofGeneration, name)
	}

	return nil
}

func (p *parser) parseIf(node interface{}) (Stmt, error) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, parseErr("IfStatementExpectingOperandInObjectParsingError", "if expects an object operand")
	}

	if len(m) > 3 {
		return nil, parseErr("IfStatementExpectingThreeOperandOrLessParsingError",
			"if accepts condition, then and else only")
	}

	for key := range m {
		if key != "condition" && key != "then" && key != "else" {
			return nil, parseErr("IfStatementUnknownKeywordParsingError", fmt.Sprintf("unknown if keyword %q", key))
		}
	}

	cond, ok := m["condition"]
	if !ok {
		return nil, parseErr("IfStatementMissingConditionParsingError", "if is missing its condition")
	}

	then, ok := m["then"]
	if !ok {
		return nil, parseErr("IfStatementMissingThenBlockParsingError", "if is missing its then block")
	}

	var (
		stmt = &If{}
		err  error
	)

	if stmt.Cond, err = p.parseExpr(cond); err != nil {
		return nil, err
	}

	if stmt.Then, err = p.parseStmts(then); err != nil {
		return nil, err
	}

	if elseBlock, ok := m["else"]; ok {
		if stmt.Else, err = p.parseStmts(elseBlock); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

func (p *parser) parseExpr(node interface{}) (Expr, error) {
	switch n := node.(type) {
	case string:
		return &StringLiteral{Value: n}, nil
	case bool:
		return &BooleanLiteral{Value: n}, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &NumberLiteral{Value: i}, nil
		}

		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %s", ErrUnexpectedValue, n)
		}

		return &FloatLiteral{Value: f}, nil
	case map[string]interface{}:
		return p.parseOperator(n)
	default:
		return nil, fmt.Errorf("%w: unsupported expression node %T", ErrUnexpectedValue, node)
	}
}

func (p *parser) parseOperator(m map[string]interface{}) (Expr, error) {
	op, value, ok := singleKey(m)
	if !ok {
		return nil, parseErr("UnexpectedOperatorParsingError", "expression must be an object with one operator")
	}

	switch op {
	case "lvar":
		name, ok := value.(string)
		if !ok {
			return nil, parseErr("LocalVarParsingError", "lvar expects a name")
		}

		return &Variable{Kind: LocalVariable, Name: name}, nil
	case "dvar":
		return p.parseDataVar(value)
	case "and", "or":
		children, err := p.parseChildren(value)
		if err != nil {
			return nil, err
		}

		return &Boolean{Op: BooleanOperator(op), Children: children}, nil
	case "not":
		child, err := p.parseExpr(value)
		if err != nil {
			return nil, err
		}

		return &Not{Child: child}, nil
	case "get_age":
		date, format, err := p.parseOperands(value)
		if err != nil {
			return nil, err
		}

		return &GetAge{Date: date, Format: format}, nil
	}

	switch rop := RelationalOperator(op); rop {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpFoldEqual, OpFoldNotEqual:
		left, right, err := p.parseOperands(value)
		if err != nil {
			return nil, err
		}

		return &Relational{Op: rop, Left: left, Right: right}, nil
	default:
		return nil, parseErr("UnexpectedOperatorParsingError", fmt.Sprintf("unknown operator %q", op))
	}
}

func (p *parser) parseDataVar(value interface{}) (Expr, error) {
	name, ok := value.(string)
	if !ok {
		return nil, parseErr("DataVarParsingError", "dvar expects a name")
	}

	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(r) {
		return nil, parseErr("DataVarNameNotStartingWithAlphabetError",
			fmt.Sprintf("dvar %q must start with a letter", name))
	}

	if p.resolve {
		if err := p.resolveDataVar(name); err != nil {
			return nil, err
		}
	}

	return &Variable{Kind: DataVariable, Name: name}, nil
}

func (p *parser) parseChildren(value interface{}) ([]Expr, error) {
	arr, ok := value.([]interface{})
	if !ok {
		return nil, parseErr("ExpectingOperandsInArrayParsingError", "operands must be an array")
	}

	children := make([]Expr, 0, len(arr))

	for _, v := range arr {
		child, err := p.parseExpr(v)
		if err != nil {
			return nil, err
		}

		children = append(children, child)
	}

	return children, nil
}

func (p *parser) parseOperands(value interface{}) (Expr, Expr, error) {
	arr, ok := value.([]interface{})
	if !ok {
		return nil, nil, parseErr("ExpectingOperandsInArrayParsingError", "operands must be an array")
	}

	if len(arr) < 1 {
		return nil, nil, parseErr("ExpectingFirstOperandParsingError", "missing first operand")
	}

	if len(arr) < 2 {
		return nil, nil, parseErr("ExpectingSecondOperandParsingError", "missing second operand")
	}

	left, err := p.parseExpr(arr[0])
	if err != nil {
		return nil, nil, err
	}

	right, err := p.parseExpr(arr[1])
	if err != nil {
		return nil, nil, err
	}

	return left, right, nil
}

func (p *parser) resolveDataVar(name string) error {
	if _, ok := p.vars.Lookup(name); ok {
		return nil
	}

	raw, err := p.lookupPath(name)
	if err != nil {
		return fmt.Errorf("%w: dvar %q: %v", ErrVariableResolution, name, err)
	}

	var val Val

	switch v := raw.(type) {
	case bool:
		val = Bool(v)
	case string:
		val = String(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			val = Int(i)
		} else if f, err := v.Float64(); err == nil {
			val = Float(f)
		} else {
			return fmt.Errorf("%w: dvar %q holds an invalid number", ErrVariableResolution, name)
		}
	default:
		return fmt.Errorf("%w: dvar %q resolves to unsupported %T", ErrVariableResolution, name, raw)
	}

	p.vars = append(p.vars, Entry{Key: name, Val: val})

	return nil
}

func (p *parser) lookupPath(name string) (interface{}, error) {
	eval, ok := p.paths[name]
	if !ok {
		var err error

		eval, err = jsonpath.Language().NewEvaluable("$." + name)
		if err != nil {
			return nil, err
		}

		p.paths[name] = eval
	}

	return eval(context.Background(), p.data)
}

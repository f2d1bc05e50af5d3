/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package circuit compiles query programs into gnark circuits.
//
// The circuit re-derives every output field of a program from private data slots and exposes, as
// public inputs, the program digest, the current date and the journal: one presence bit, kind tag
// and value per output field. A proof therefore attests that the journal is the result of running
// the program on some data. It does not commit to which data; that binding is the signed user data
// token checked by the prover before proving.
//
// Values are encoded as field elements (see Encode). Kinds are static: a local variable written
// with different kinds under different conditions cannot be compiled and fails with
// query.ErrNotImplemented, as do comparisons between a get_age result and a non literal float.
package circuit

import (
	"fmt"
	"math"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// Circuit is the gnark circuit of a Program.
type Circuit struct {
	Digest     frontend.Variable   `gnark:",public"`
	TodayYear  frontend.Variable   `gnark:",public"`
	TodayMonth frontend.Variable   `gnark:",public"`
	TodayDay   frontend.Variable   `gnark:",public"`
	Present    []frontend.Variable `gnark:",public"`
	Kinds      []frontend.Variable `gnark:",public"`
	Outputs    []frontend.Variable `gnark:",public"`

	// Slots hold two values per data variable.
	Slots []frontend.Variable
	// Dates hold year, month and day of the date parsed by each get_age node.
	Dates []frontend.Variable

	Program *Program `gnark:"-"`
}

// New returns an unassigned circuit sized for p, ready to be compiled.
func New(p *Program) *Circuit {
	n := len(p.Fields)

	return &Circuit{
		Present: make([]frontend.Variable, n),
		Kinds:   make([]frontend.Variable, n),
		Outputs: make([]frontend.Variable, n),
		Slots:   make([]frontend.Variable, 2*len(p.Inputs)),
		Dates:   make([]frontend.Variable, 3*len(p.Ages)),
		Program: p,
	}
}

// Define declares the constraints of the program.
func (c *Circuit) Define(api frontend.API) error {
	if c.Program == nil {
		return fmt.Errorf("%w: circuit has no program", query.ErrProofGeneration)
	}

	api.AssertIsEqual(c.Digest, DigestElement(c.Program.Digest))

	cc := &compiler{
		api:     api,
		c:       c,
		locals:  map[string]*local{},
		outputs: make([]output, len(c.Program.Fields)),
	}

	for i := range cc.outputs {
		cc.outputs[i] = output{present: 0, kind: 0, value: 0}
	}

	cc.todayMD = api.Add(api.Mul(c.TodayMonth, 32), c.TodayDay)
	cc.today = api.Add(api.Mul(c.TodayYear, 512), cc.todayMD)
	cc.locals[query.TodaysDateVar] = &local{
		v:       cval{kind: query.KindInt, valid: true, p: api.Add(cc.today, intOffset)},
		present: 1,
	}

	for i, in := range c.Program.Inputs {
		if in.Kind == query.KindBool {
			api.AssertIsBoolean(c.Slots[2*i])
			api.AssertIsEqual(c.Slots[2*i], c.Slots[2*i+1])
		}
	}

	if err := cc.block(c.Program.Stmts, 1, true); err != nil {
		return err
	}

	for i, o := range cc.outputs {
		api.AssertIsEqual(c.Present[i], o.present)
		api.AssertIsEqual(c.Kinds[i], o.kind)
		api.AssertIsEqual(c.Outputs[i], o.value)
	}

	return nil
}

// cval is a value under construction. An invalid cval stands for a node that fails natively;
// the compiler has already asserted that it is not reached.
type cval struct {
	kind  query.Kind
	valid bool
	p     frontend.Variable
	// a is nil when the cross-kind form is not available in the circuit.
	a   frontend.Variable
	lit *query.Val
}

type local struct {
	v       cval
	present frontend.Variable
}

type output struct {
	present frontend.Variable
	kind    frontend.Variable
	value   frontend.Variable
}

type compiler struct {
	api     frontend.API
	c       *Circuit
	locals  map[string]*local
	outputs []output
	today   frontend.Variable
	todayMD frontend.Variable
}

// block compiles stmts. reach is 1 exactly when the block runs; top marks unconditional code.
func (cc *compiler) block(stmts []query.Stmt, reach frontend.Variable, top bool) error {
	api := cc.api

	for _, s := range stmts {
		switch st := s.(type) {
		case *query.Assign:
			v, err := cc.expr(st.Expr, reach)
			if err != nil {
				return err
			}

			if v.valid {
				if err := cc.assign(st.Var, v, reach, top); err != nil {
					return err
				}
			}
		case *query.Output:
			v, err := cc.expr(st.Expr, reach)
			if err != nil {
				return err
			}

			if !v.valid {
				continue
			}

			o := &cc.outputs[cc.c.Program.fieldIndex(st.Field)]
			o.present = api.Select(reach, 1, o.present)
			o.kind = api.Select(reach, KindCode(v.kind), o.kind)
			o.value = api.Select(reach, v.p, o.value)
		case *query.If:
			cond, err := cc.expr(st.Cond, reach)
			if err != nil {
				return err
			}

			var taken frontend.Variable = 0

			if cond.valid && cond.kind == query.KindBool {
				taken = cond.p
			} else if cond.valid {
				cc.unreached(reach)
			}

			if err := cc.block(st.Then, api.Mul(reach, taken), false); err != nil {
				return err
			}

			if err := cc.block(st.Else, api.Mul(reach, api.Sub(1, taken)), false); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: statement %T", query.ErrNotImplemented, s)
		}
	}

	return nil
}

func (cc *compiler) assign(name string, v cval, reach frontend.Variable, top bool) error {
	api := cc.api

	old, ok := cc.locals[name]
	if top {
		cc.locals[name] = &local{v: v, present: 1}

		return nil
	}

	v.lit = nil

	if !ok {
		cc.locals[name] = &local{v: v, present: reach}

		return nil
	}

	if old.v.kind != v.kind {
		return fmt.Errorf("%w: local %q holds %s and %s values under different conditions",
			query.ErrNotImplemented, name, old.v.kind, v.kind)
	}

	merged := cval{kind: v.kind, valid: true, p: api.Select(reach, v.p, old.v.p)}
	if v.a != nil && old.v.a != nil {
		merged.a = api.Select(reach, v.a, old.v.a)
	}

	cc.locals[name] = &local{v: merged, present: api.Select(reach, 1, old.present)}

	return nil
}

func (cc *compiler) unreached(reach frontend.Variable) cval {
	cc.api.AssertIsEqual(reach, 0)

	return cval{}
}

func constant(v query.Val) cval {
	enc := Encode(v)

	return cval{kind: v.Kind, valid: true, p: enc.P, a: enc.A, lit: &v}
}

func boolean(b frontend.Variable) cval {
	return cval{kind: query.KindBool, valid: true, p: b, a: b}
}

func (cc *compiler) expr(e query.Expr, reach frontend.Variable) (cval, error) {
	api := cc.api

	switch n := e.(type) {
	case *query.StringLiteral:
		return constant(query.String(n.Value)), nil
	case *query.NumberLiteral:
		return constant(query.Int(n.Value)), nil
	case *query.FloatLiteral:
		return constant(query.Float(n.Value)), nil
	case *query.BooleanLiteral:
		return constant(query.Bool(n.Value)), nil
	case *query.Variable:
		return cc.variable(n, reach), nil
	case *query.Relational:
		l, err := cc.expr(n.Left, reach)
		if err != nil {
			return cval{}, err
		}

		r, err := cc.expr(n.Right, reach)
		if err != nil {
			return cval{}, err
		}

		if !l.valid || !r.valid {
			return cval{}, nil
		}

		return cc.compare(n.Op, l, r, reach)
	case *query.Boolean:
		return cc.boolean(n, reach)
	case *query.Not:
		v, err := cc.expr(n.Child, reach)
		if err != nil || !v.valid {
			return cval{}, err
		}

		if v.kind != query.KindBool {
			return cc.unreached(reach), nil
		}

		return boolean(api.Sub(1, v.p)), nil
	case *query.GetAge:
		return cc.getAge(n, reach)
	default:
		return cval{}, fmt.Errorf("%w: expression %T", query.ErrNotImplemented, e)
	}
}

func (cc *compiler) variable(n *query.Variable, reach frontend.Variable) cval {
	if n.Kind == query.DataVariable {
		i := cc.c.Program.inputIndex(n.Name)
		if i < 0 {
			return cc.unreached(reach)
		}

		return cval{
			kind:  cc.c.Program.Inputs[i].Kind,
			valid: true,
			p:     cc.c.Slots[2*i],
			a:     cc.c.Slots[2*i+1],
		}
	}

	l, ok := cc.locals[n.Name]
	if !ok {
		return cc.unreached(reach)
	}

	cc.api.AssertIsEqual(cc.api.Mul(reach, cc.api.Sub(1, l.present)), 0)

	return l.v
}

func (cc *compiler) boolean(n *query.Boolean, reach frontend.Variable) (cval, error) {
	api := cc.api

	if n.Op != query.OpAnd && n.Op != query.OpOr {
		return cc.unreached(reach), nil
	}

	// acc is the result so far: the conjunction of and children, the disjunction of or children.
	var acc frontend.Variable = 1
	if n.Op == query.OpOr {
		acc = 0
	}

	for _, child := range n.Children {
		childReach := api.Mul(reach, acc)
		if n.Op == query.OpOr {
			childReach = api.Mul(reach, api.Sub(1, acc))
		}

		v, err := cc.expr(child, childReach)
		if err != nil {
			return cval{}, err
		}

		if v.valid && v.kind != query.KindBool {
			cc.unreached(childReach)
		}

		switch {
		case !v.valid || v.kind != query.KindBool:
			// the child is unreachable, so evaluation has already stopped
			acc = 0
			if n.Op == query.OpOr {
				acc = 1
			}
		case n.Op == query.OpAnd:
			acc = api.And(acc, v.p)
		default:
			acc = api.Or(acc, v.p)
		}
	}

	return boolean(acc), nil
}

func (cc *compiler) compare(op query.RelationalOperator, l, r cval, reach frontend.Variable) (cval, error) {
	switch {
	case l.kind == query.KindString && r.kind == query.KindString:
		switch op {
		case query.OpEqual:
			return boolean(cc.eq(l.p, r.p)), nil
		case query.OpNotEqual:
			return boolean(cc.api.Sub(1, cc.eq(l.p, r.p))), nil
		case query.OpFoldEqual:
			return boolean(cc.eq(l.a, r.a)), nil
		case query.OpFoldNotEqual:
			return boolean(cc.api.Sub(1, cc.eq(l.a, r.a))), nil
		}
	case l.kind == query.KindBool && r.kind == query.KindBool:
		switch op {
		case query.OpEqual:
			return boolean(cc.eq(l.p, r.p)), nil
		case query.OpNotEqual:
			return boolean(cc.api.Sub(1, cc.eq(l.p, r.p))), nil
		}
	case l.kind == r.kind && (l.kind == query.KindInt || l.kind == query.KindFloat):
		if b, ok := cc.order(op, l.p, r.p); ok {
			return boolean(b), nil
		}
	case l.kind == query.KindInt && r.kind == query.KindFloat && r.lit != nil:
		if b, ok := cc.intVersusFloat(op, l.p, r.lit.Float); ok {
			return boolean(b), nil
		}
	case l.kind == query.KindFloat && r.kind == query.KindInt && l.lit != nil:
		if b, ok := cc.intVersusFloat(flip(op), r.p, l.lit.Float); ok {
			return boolean(b), nil
		}
	case l.kind == query.KindInt && r.kind == query.KindFloat, l.kind == query.KindFloat && r.kind == query.KindInt:
		if l.a == nil || r.a == nil {
			return cval{}, fmt.Errorf("%w: comparing a derived int with a float", query.ErrNotImplemented)
		}

		if b, ok := cc.order(op, l.a, r.a); ok {
			return boolean(b), nil
		}
	}

	return cc.unreached(reach), nil
}

func (cc *compiler) eq(x, y frontend.Variable) frontend.Variable {
	return cc.api.IsZero(cc.api.Sub(x, y))
}

func (cc *compiler) order(op query.RelationalOperator, x, y frontend.Variable) (frontend.Variable, bool) {
	api := cc.api

	switch op {
	case query.OpEqual:
		return cc.eq(x, y), true
	case query.OpNotEqual:
		return api.Sub(1, cc.eq(x, y)), true
	case query.OpLess, query.OpLessOrEqual, query.OpGreater, query.OpGreaterOrEqual:
	default:
		return nil, false
	}

	cmp := api.Cmp(x, y)
	lt := api.IsZero(api.Add(cmp, 1))
	gt := api.IsZero(api.Sub(cmp, 1))

	switch op {
	case query.OpLess:
		return lt, true
	case query.OpLessOrEqual:
		return api.Sub(1, gt), true
	case query.OpGreater:
		return gt, true
	default:
		return api.Sub(1, lt), true
	}
}

// intVersusFloat compares an encoded int x with the float literal f by rounding f to the integer
// bound that gives the same answer.
func (cc *compiler) intVersusFloat(op query.RelationalOperator, x frontend.Variable, f float64) (frontend.Variable, bool) {
	floor, ceil := clampedInt(math.Floor(f)), clampedInt(math.Ceil(f))

	switch op {
	case query.OpEqual:
		if math.Floor(f) != f {
			return 0, true
		}

		return cc.eq(x, encodeBigInt(floor)), true
	case query.OpNotEqual:
		if math.Floor(f) != f {
			return 1, true
		}

		return cc.api.Sub(1, cc.eq(x, encodeBigInt(floor))), true
	case query.OpLess, query.OpGreaterOrEqual:
		return cc.order(op, x, encodeBigInt(ceil))
	case query.OpLessOrEqual, query.OpGreater:
		return cc.order(op, x, encodeBigInt(floor))
	default:
		return nil, false
	}
}

var (
	minBound = new(big.Int).Sub(big.NewInt(math.MinInt64), big.NewInt(1)) //nolint:gochecknoglobals
	maxBound = new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1)) //nolint:gochecknoglobals
)

func clampedInt(f float64) *big.Int {
	i, _ := new(big.Float).SetFloat64(f).Int(nil)

	switch {
	case i.Cmp(minBound) < 0:
		return new(big.Int).Set(minBound)
	case i.Cmp(maxBound) > 0:
		return new(big.Int).Set(maxBound)
	default:
		return i
	}
}

func flip(op query.RelationalOperator) query.RelationalOperator {
	switch op {
	case query.OpLess:
		return query.OpGreater
	case query.OpLessOrEqual:
		return query.OpGreaterOrEqual
	case query.OpGreater:
		return query.OpLess
	case query.OpGreaterOrEqual:
		return query.OpLessOrEqual
	default:
		return op
	}
}

func (cc *compiler) getAge(n *query.GetAge, reach frontend.Variable) (cval, error) {
	api := cc.api
	c := cc.c

	date, err := cc.expr(n.Date, reach)
	if err != nil {
		return cval{}, err
	}

	format, err := cc.expr(n.Format, reach)
	if err != nil {
		return cval{}, err
	}

	if !date.valid || !format.valid {
		return cval{}, nil
	}

	i := c.Program.ageIndex(n)
	if date.kind != query.KindString || format.kind != query.KindString || i < 0 {
		return cc.unreached(reach), nil
	}

	y, m, d := c.Dates[3*i], c.Dates[3*i+1], c.Dates[3*i+2]
	md := api.Add(api.Mul(m, 32), d)
	born := api.Add(api.Mul(y, 512), md)

	swap := api.IsZero(api.Sub(api.Cmp(born, cc.today), 1))
	earlyYear := api.Select(swap, c.TodayYear, y)
	lateYear := api.Select(swap, y, c.TodayYear)
	earlyMD := api.Select(swap, cc.todayMD, md)
	lateMD := api.Select(swap, md, cc.todayMD)
	borrow := api.IsZero(api.Add(api.Cmp(lateMD, earlyMD), 1))

	age := api.Sub(api.Sub(lateYear, earlyYear), borrow)

	return cval{kind: query.KindInt, valid: true, p: api.Add(age, intOffset)}, nil
}

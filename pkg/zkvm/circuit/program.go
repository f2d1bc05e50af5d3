/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package circuit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// Input is a data variable bound to two private witness slots.
type Input struct {
	Name string     `json:"name"`
	Kind query.Kind `json:"kind"`
}

// Program is the circuit layout of a statement program.
type Program struct {
	Stmts  []query.Stmt
	Digest string
	// Fields are the output fields in order of first appearance in the program text.
	Fields []string
	// Inputs mirror the data variable map, in map order.
	Inputs []Input
	// Ages lists the get_age nodes, each backed by three private date slots.
	Ages []*query.GetAge
}

// NewProgram lays out stmts. vars may be nil when only the public shape is needed.
func NewProgram(stmts []query.Stmt, vars query.VariableMap) *Program {
	p := &Program{Stmts: stmts, Digest: query.ProgramDigest(stmts)}

	seen := map[string]bool{}

	var walk func(stmts []query.Stmt)

	walk = func(stmts []query.Stmt) {
		for _, s := range stmts {
			switch st := s.(type) {
			case *query.Assign:
				p.collectAges(st.Expr)
			case *query.Output:
				p.collectAges(st.Expr)

				if !seen[st.Field] {
					seen[st.Field] = true
					p.Fields = append(p.Fields, st.Field)
				}
			case *query.If:
				p.collectAges(st.Cond)
				walk(st.Then)
				walk(st.Else)
			}
		}
	}

	walk(stmts)

	for _, e := range vars {
		p.Inputs = append(p.Inputs, Input{Name: e.Key, Kind: e.Val.Kind})
	}

	return p
}

func (p *Program) collectAges(e query.Expr) {
	switch n := e.(type) {
	case *query.GetAge:
		p.collectAges(n.Date)
		p.collectAges(n.Format)
		p.Ages = append(p.Ages, n)
	case *query.Relational:
		p.collectAges(n.Left)
		p.collectAges(n.Right)
	case *query.Boolean:
		for _, c := range n.Children {
			p.collectAges(c)
		}
	case *query.Not:
		p.collectAges(n.Child)
	}
}

// ShapeKey identifies the compiled constraint system: programs with the same text and the same
// input kinds share keys.
func (p *Program) ShapeKey() string {
	b := strings.Builder{}
	b.WriteString(p.Digest)

	for _, in := range p.Inputs {
		b.WriteByte('|')
		b.WriteString(in.Name)
		b.WriteByte(':')
		b.WriteString(in.Kind.String())
	}

	sum := sha256.Sum256([]byte(b.String()))

	return hex.EncodeToString(sum[:])
}

func (p *Program) fieldIndex(name string) int {
	for i, f := range p.Fields {
		if f == name {
			return i
		}
	}

	return -1
}

func (p *Program) inputIndex(name string) int {
	for i, in := range p.Inputs {
		if in.Name == name {
			return i
		}
	}

	return -1
}

func (p *Program) ageIndex(n *query.GetAge) int {
	for i, a := range p.Ages {
		if a == n {
			return i
		}
	}

	return -1
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// EncodeStatements renders a program in the canonical form of the query language.
// Parsing the result yields an equivalent program that encodes to the same text.
func EncodeStatements(stmts []Stmt) string {
	b := strings.Builder{}
	encodeBlock(&b, stmts)

	return b.String()
}

// EncodeExpr renders one expression in the canonical form of the query language.
func EncodeExpr(e Expr) string {
	b := strings.Builder{}
	e.encode(&b)

	return b.String()
}

// ProgramDigest is the hex sha256 of the canonical program text.
func ProgramDigest(stmts []Stmt) string {
	sum := sha256.Sum256([]byte(EncodeStatements(stmts)))

	return hex.EncodeToString(sum[:])
}

func encodeBlock(b *strings.Builder, stmts []Stmt) {
	b.WriteByte('[')

	for i, s := range stmts {
		if i > 0 {
			b.WriteByte(',')
		}

		s.encode(b)
	}

	b.WriteByte(']')
}

func encodeOp(b *strings.Builder, op string, operands ...Expr) {
	b.WriteString(`{` + quote(op) + `:[`)

	for i, o := range operands {
		if i > 0 {
			b.WriteByte(',')
		}

		o.encode(b)
	}

	b.WriteString(`]}`)
}

func (s *Assign) encode(b *strings.Builder) {
	b.WriteString(`{"assign":{` + quote(s.Var) + `:`)
	s.Expr.encode(b)
	b.WriteString(`}}`)
}

func (s *Output) encode(b *strings.Builder) {
	b.WriteString(`{"output":{` + quote(s.Field) + `:`)
	s.Expr.encode(b)
	b.WriteString(`}}`)
}

func (s *If) encode(b *strings.Builder) {
	b.WriteString(`{"if":{"condition":`)
	s.Cond.encode(b)
	b.WriteString(`,"then":`)
	encodeBlock(b, s.Then)

	if len(s.Else) > 0 {
		b.WriteString(`,"else":`)
		encodeBlock(b, s.Else)
	}

	b.WriteString(`}}`)
}

func (e *StringLiteral) encode(b *strings.Builder) { b.WriteString(quote(e.Value)) }
func (e *NumberLiteral) encode(b *strings.Builder) { b.WriteString(strconv.FormatInt(e.Value, 10)) }
func (e *FloatLiteral) encode(b *strings.Builder)  { b.WriteString(FormatFloat(e.Value)) }
func (e *BooleanLiteral) encode(b *strings.Builder) {
	b.WriteString(strconv.FormatBool(e.Value))
}

func (e *Variable) encode(b *strings.Builder) {
	b.WriteString(`{` + quote(string(e.Kind)) + `:` + quote(e.Name) + `}`)
}

func (e *Relational) encode(b *strings.Builder) { encodeOp(b, string(e.Op), e.Left, e.Right) }
func (e *Boolean) encode(b *strings.Builder)    { encodeOp(b, string(e.Op), e.Children...) }
func (e *GetAge) encode(b *strings.Builder)     { encodeOp(b, "get_age", e.Date, e.Format) }

func (e *Not) encode(b *strings.Builder) {
	b.WriteString(`{"not":`)
	e.Child.encode(b)
	b.WriteString(`}`)
}

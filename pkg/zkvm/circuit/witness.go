/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package circuit

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// ErrJournalMismatch is returned when a journal cannot have been produced by the program.
var ErrJournalMismatch = errors.New("journal does not match the program")

// Trace runs the program natively and records the date parsed by each get_age node of p.
func Trace(p *Program, input *query.ProofMethodInput) (string, []query.LocalDate, error) {
	values := map[query.Expr]query.Val{}
	dates := make([]query.LocalDate, len(p.Ages))

	journal, err := query.ExecuteTraced(input, func(e query.Expr, v query.Val) {
		values[e] = v

		n, ok := e.(*query.GetAge)
		if !ok {
			return
		}

		if i := p.ageIndex(n); i >= 0 {
			dates[i], _ = query.ParseDate(values[n.Date].Str, values[n.Format].Str)
		}
	})
	if err != nil {
		return "", nil, err
	}

	return journal, dates, nil
}

// Public returns the public part of the assignment, derived from the program, the date and the
// journal alone.
func Public(p *Program, today query.LocalDate, journal string) (*Circuit, error) {
	r, err := query.NewOutputReader(journal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJournalMismatch, err)
	}

	c := New(p)
	c.Digest = DigestElement(p.Digest)
	c.TodayYear = today.Year
	c.TodayMonth = today.Month
	c.TodayDay = today.Day

	for i := range c.Slots {
		c.Slots[i] = 0
	}

	for i := range c.Dates {
		c.Dates[i] = 0
	}

	for _, e := range r.Entries() {
		if p.fieldIndex(e.Key) < 0 {
			return nil, fmt.Errorf("%w: field %q is never written", ErrJournalMismatch, e.Key)
		}
	}

	for i, field := range p.Fields {
		v, ok := r.Find(field)
		if !ok {
			c.Present[i], c.Kinds[i], c.Outputs[i] = 0, 0, 0

			continue
		}

		c.Present[i], c.Kinds[i], c.Outputs[i] = 1, KindCode(v.Kind), Encode(v).P
	}

	return c, nil
}

// Assign returns the full assignment of a traced run.
func Assign(p *Program, input *query.ProofMethodInput, journal string, dates []query.LocalDate) (*Circuit, error) {
	c, err := Public(p, query.UnpackDate(input.CurrentDate), journal)
	if err != nil {
		return nil, err
	}

	for i, in := range p.Inputs {
		v, ok := input.Map.Lookup(in.Name)
		if !ok || v.Kind != in.Kind {
			return nil, fmt.Errorf("%w: data variable %q", query.ErrVariableResolution, in.Name)
		}

		enc := Encode(v)
		c.Slots[2*i], c.Slots[2*i+1] = enc.P, enc.A
	}

	if len(dates) != len(p.Ages) {
		return nil, fmt.Errorf("%w: %d dates for %d get_age nodes", query.ErrProofGeneration, len(dates), len(p.Ages))
	}

	for i, d := range dates {
		c.Dates[3*i], c.Dates[3*i+1], c.Dates[3*i+2] = d.Year, d.Month, d.Day
	}

	return c, nil
}

var _ frontend.Circuit = (*Circuit)(nil)

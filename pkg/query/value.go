/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type of a Val.
type Kind int

// Value kinds.
const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Val is a typed value produced by evaluation or bound in a VariableMap.
type Val struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// Bool returns a boolean Val.
func Bool(b bool) Val { return Val{Kind: KindBool, Bool: b} }

// Int returns an integer Val.
func Int(i int64) Val { return Val{Kind: KindInt, Int: i} }

// Float returns a floating point Val.
func Float(f float64) Val { return Val{Kind: KindFloat, Float: f} }

// String returns a string Val.
func String(s string) Val { return Val{Kind: KindString, Str: s} }

// IsNumeric reports whether the value is an int or a float.
func (v Val) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat returns the numeric value as float64.
func (v Val) AsFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}

	return v.Float
}

// Equal compares kind and value.
func (v Val) Equal(o Val) bool {
	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	default:
		return v.Str == o.Str
	}
}

// JSON returns the canonical JSON text of the value. Floats always carry a fraction
// or an exponent so that they decode back as floats.
func (v Val) JSON() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return FormatFloat(v.Float)
	default:
		return quote(v.Str)
	}
}

// quote renders s as a JSON string without escaping HTML characters, so that operators such as
// "<" keep their literal form in canonical text.
func quote(s string) string {
	var b bytes.Buffer

	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(s); err != nil {
		// strings always encode
		return strconv.Quote(s)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (v Val) String() string {
	return fmt.Sprintf("%s(%s)", v.Kind, v.JSON())
}

// FormatFloat renders f so that it is never mistaken for an integer.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}

	return s
}

// FoldCase is the case folding shared by case-insensitive comparisons.
func FoldCase(s string) string {
	return strings.ToLower(strings.ToUpper(s))
}

// Entry binds a key to a value.
type Entry struct {
	Key string `json:"key"`
	Val Val    `json:"val"`
}

// VariableMap holds typed bindings extracted from user data. Keys are unique.
type VariableMap []Entry

// NewVariableMap builds a map from entries, rejecting duplicate keys.
func NewVariableMap(entries ...Entry) (VariableMap, error) {
	m := make(VariableMap, 0, len(entries))

	for _, e := range entries {
		if _, ok := m.Lookup(e.Key); ok {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrUnexpectedValue, e.Key)
		}

		m = append(m, e)
	}

	return m, nil
}

// Lookup finds the value bound to key.
func (m VariableMap) Lookup(key string) (Val, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Val, true
		}
	}

	return Val{}, false
}

// Set binds key, replacing an existing binding in place.
func (m *VariableMap) Set(key string, val Val) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Val = val

			return
		}
	}

	*m = append(*m, Entry{Key: key, Val: val})
}

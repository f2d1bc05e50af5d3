/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ResultField is the journal field conventionally holding the predicate outcome.
const ResultField = "result"

// Output reader errors.
var (
	ErrExpectingObject  = errors.New("journal must be a JSON object")
	ErrUnsupportedValue = errors.New("journal holds an unsupported value type")
)

// OutputReader gives typed, by-name access to a journal.
type OutputReader struct {
	entries VariableMap
}

// NewOutputReader parses a journal produced by Execute, keeping field order.
func NewOutputReader(journal string) (*OutputReader, error) {
	d := json.NewDecoder(bytes.NewReader([]byte(journal)))
	d.UseNumber()

	tok, err := d.Token()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrExpectingObject
	}

	r := &OutputReader{}

	for d.More() {
		keyTok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("read journal key: %w", err)
		}

		key, _ := keyTok.(string)

		valTok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("read journal value: %w", err)
		}

		val, err := tokenValue(valTok)
		if err != nil {
			return nil, err
		}

		r.entries.Set(key, val)
	}

	if _, err := d.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return r, nil
}

func tokenValue(tok json.Token) (Val, error) {
	switch v := tok.(type) {
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}

		f, err := v.Float64()
		if err != nil {
			return Val{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, v)
		}

		return Float(f), nil
	default:
		return Val{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, tok)
	}
}

// Entries returns the fields in journal order.
func (r *OutputReader) Entries() VariableMap {
	return r.entries
}

// Find returns the value of a field.
func (r *OutputReader) Find(key string) (Val, bool) {
	return r.entries.Lookup(key)
}

// FindBool returns a boolean field.
func (r *OutputReader) FindBool(key string) (bool, bool) {
	v, ok := r.entries.Lookup(key)
	if !ok || v.Kind != KindBool {
		return false, false
	}

	return v.Bool, true
}

// FindString returns a string field.
func (r *OutputReader) FindString(key string) (string, bool) {
	v, ok := r.entries.Lookup(key)
	if !ok || v.Kind != KindString {
		return "", false
	}

	return v.Str, true
}

// FindInt returns an integer field.
func (r *OutputReader) FindInt(key string) (int64, bool) {
	v, ok := r.entries.Lookup(key)
	if !ok || v.Kind != KindInt {
		return 0, false
	}

	return v.Int, true
}

// FindFloat returns a float field.
func (r *OutputReader) FindFloat(key string) (float64, bool) {
	v, ok := r.entries.Lookup(key)
	if !ok || v.Kind != KindFloat {
		return 0, false
	}

	return v.Float, true
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var today = LocalDate{Day: 14, Month: 6, Year: 2025}

func run(t *testing.T, userData, query string) (string, error) {
	t.Helper()

	input, err := Parse([]byte(userData), []byte(query), today)
	if err != nil {
		return "", err
	}

	return Execute(input)
}

func TestExecute(t *testing.T) {
	const ageQuery = `[{"output":{"result":{">=":[{"dvar":"age"},18]}}}]`

	t.Run("adult", func(t *testing.T) {
		journal, err := run(t, `{"age":25}`, ageQuery)
		require.NoError(t, err)
		require.Equal(t, `{"result":true}`, journal)
	})

	t.Run("minor", func(t *testing.T) {
		journal, err := run(t, `{"age":16}`, ageQuery)
		require.NoError(t, err)
		require.Equal(t, `{"result":false}`, journal)
	})

	t.Run("deterministic", func(t *testing.T) {
		input, err := Parse([]byte(`{"age":25,"name":"Alice"}`), []byte(ageQuery), today)
		require.NoError(t, err)

		first, err := Execute(input)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			again, err := Execute(input)
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
	})

	t.Run("no output", func(t *testing.T) {
		journal, err := run(t, `{"age":25}`, `[{"assign":{"adult":{">=":[{"dvar":"age"},18]}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{}`, journal)
	})

	t.Run("locals, branches and output order", func(t *testing.T) {
		query := `[
			{"assign":{"adult":{">=":[{"dvar":"age"},18]}}},
			{"output":{"tier":"none"}},
			{"if":{
				"condition":{"lvar":"adult"},
				"then":[{"output":{"tier":"gold"}},{"output":{"score":1.5}}],
				"else":[{"output":{"tier":"minor"}}]
			}},
			{"assign":{"adult":false}},
			{"output":{"result":{"lvar":"adult"}}}
		]`

		journal, err := run(t, `{"age":30}`, query)
		require.NoError(t, err)
		require.Equal(t, `{"tier":"gold","score":1.5,"result":false}`, journal)

		journal, err = run(t, `{"age":10}`, query)
		require.NoError(t, err)
		require.Equal(t, `{"tier":"minor","result":false}`, journal)
	})

	t.Run("nested data and case folding", func(t *testing.T) {
		journal, err := run(t,
			`{"person":{"name":{"first":"Ramana"},"kyc":{"verified":true}}}`,
			`[{"output":{"result":{"and":[
				{"~==":[{"dvar":"person.name.first"},"RAMANA"]},
				{"==":[{"dvar":"person.kyc.verified"},true]}
			]}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{"result":true}`, journal)
	})

	t.Run("get_age", func(t *testing.T) {
		query := `[{"output":{"result":{">=":[{"get_age":[{"dvar":"dob"},"DD/MM/YYYY"]},25]}}}]`

		journal, err := run(t, `{"dob":"14/06/2000"}`, query)
		require.NoError(t, err)
		require.Equal(t, `{"result":true}`, journal)

		journal, err = run(t, `{"dob":"15/06/2000"}`, query)
		require.NoError(t, err)
		require.Equal(t, `{"result":false}`, journal)

		_, err = run(t, `{"dob":"2000-06-15T00:00"}`, query)
		require.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("todays date local", func(t *testing.T) {
		journal, err := run(t, `{}`, `[{"output":{"today":{"lvar":"_todays_date"}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{"today":`+Int(int64(today.Pack())).JSON()+`}`, journal)
	})

	t.Run("undefined local", func(t *testing.T) {
		_, err := run(t, `{}`, `[{"output":{"result":{"lvar":"nope"}}}]`)
		require.ErrorIs(t, err, ErrVariableResolution)
	})

	t.Run("non boolean condition", func(t *testing.T) {
		_, err := run(t, `{"age":1}`, `[{"if":{"condition":{"dvar":"age"},"then":[]}}]`)
		require.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := run(t, `{"age":"25"}`, ageQuery)
		require.ErrorIs(t, err, ErrUnexpectedValue)
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		query string
		code  string
		err   error
	}{
		{name: "bad user data", data: `{`, query: `[]`, code: "UserDataParsingError", err: ErrUserDataParsing},
		{name: "bad query json", data: `{}`, query: `[`, code: "QueryParsingError", err: ErrQueryParsing},
		{name: "query not an array", data: `{}`, query: `{}`, code: "QueryParsingError"},
		{name: "unknown statement", data: `{}`, query: `[{"print":1}]`, code: "UnknownStmtKeywordParsingError"},
		{name: "statement with two keywords", data: `{}`, query: `[{"output":{},"assign":{}}]`, code: "UnexpectedStmtError"},
		{
			name: "assign operand", data: `{}`, query: `[{"assign":1}]`,
			code: "AssignmentStatementExpectingOperandInObjectParsingError",
		},
		{
			name: "assign arity", data: `{}`, query: `[{"assign":{"a":1,"b":2}}]`,
			code: "AssignmentStatementExpectingOneOperandParsingError",
		},
		{
			name: "output operand", data: `{}`, query: `[{"output":[]}]`,
			code: "OutputStatementExpectingOperandInObjectParsingError",
		},
		{
			name: "output arity", data: `{}`, query: `[{"output":{}}]`,
			code: "OutputStatementExpectingOneOperandParsingError",
		},
		{
			name: "if operand", data: `{}`, query: `[{"if":true}]`,
			code: "IfStatementExpectingOperandInObjectParsingError",
		},
		{
			name: "if missing condition", data: `{}`, query: `[{"if":{"then":[]}}]`,
			code: "IfStatementMissingConditionParsingError",
		},
		{
			name: "if missing then", data: `{}`, query: `[{"if":{"condition":true}}]`,
			code: "IfStatementMissingThenBlockParsingError",
		},
		{
			name: "if unknown keyword", data: `{}`, query: `[{"if":{"condition":true,"then":[],"elif":[]}}]`,
			code: "IfStatementUnknownKeywordParsingError",
		},
		{name: "lvar name", data: `{}`, query: `[{"output":{"r":{"lvar":1}}}]`, code: "LocalVarParsingError"},
		{name: "dvar name", data: `{}`, query: `[{"output":{"r":{"dvar":1}}}]`, code: "DataVarParsingError"},
		{
			name: "dvar first letter", data: `{}`, query: `[{"output":{"r":{"==":[{"dvar":"1a"},1]}}}]`,
			code: "DataVarNameNotStartingWithAlphabetError",
		},
		{
			name: "operands not an array", data: `{}`, query: `[{"output":{"r":{"==":1}}}]`,
			code: "ExpectingOperandsInArrayParsingError",
		},
		{
			name: "missing first operand", data: `{}`, query: `[{"output":{"r":{"==":[]}}}]`,
			code: "ExpectingFirstOperandParsingError",
		},
		{
			name: "missing second operand", data: `{}`, query: `[{"output":{"r":{"==":[1]}}}]`,
			code: "ExpectingSecondOperandParsingError",
		},
		{
			name: "unknown operator", data: `{}`, query: `[{"output":{"r":{"=~":[1,1]}}}]`,
			code: "UnexpectedOperatorParsingError",
		},
		{
			name: "unresolvable dvar", data: `{"a":1}`, query: `[{"output":{"r":{"==":[{"dvar":"b"},1]}}}]`,
			code: "VariableResolutionError", err: ErrVariableResolution,
		},
		{
			name: "dvar resolving to an object", data: `{"a":{"b":1}}`, query: `[{"output":{"r":{"==":[{"dvar":"a"},1]}}}]`,
			code: "VariableResolutionError", err: ErrVariableResolution,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), []byte(tc.query), today)
			require.Error(t, err)
			require.Equal(t, tc.code, Code(err))

			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.ErrorIs(t, err, ErrQueryParsing)
			}
		})
	}
}

func TestDisclosure(t *testing.T) {
	t.Run("public top level field", func(t *testing.T) {
		journal, err := run(t, `{"name":"Alice","_name_zkpass_public_":true}`, `[{"output":{"name":{"dvar":"name"}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{"name":"Alice"}`, journal)
	})

	t.Run("public nested field", func(t *testing.T) {
		journal, err := run(t,
			`{"person":{"city":"Jakarta","_city_zkpass_public_":true}}`,
			`[{"assign":{"c":{"dvar":"person.city"}}},{"output":{"city":{"lvar":"c"}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{"city":"Jakarta"}`, journal)
	})

	t.Run("private field", func(t *testing.T) {
		_, err := run(t, `{"name":"Alice"}`, `[{"output":{"name":{"dvar":"name"}}}]`)
		require.ErrorIs(t, err, ErrProofGeneration)
	})

	t.Run("flag set to false", func(t *testing.T) {
		_, err := run(t, `{"name":"Alice","_name_zkpass_public_":false}`, `[{"output":{"name":{"dvar":"name"}}}]`)
		require.ErrorIs(t, err, ErrProofGeneration)
	})

	t.Run("private field inside a predicate", func(t *testing.T) {
		journal, err := run(t, `{"name":"Alice"}`, `[{"output":{"r":{"==":[{"dvar":"name"},"Alice"]}}}]`)
		require.NoError(t, err)
		require.Equal(t, `{"r":true}`, journal)
	})
}

func TestCanonicalEncoding(t *testing.T) {
	query := `[
		{"assign":{"x":{"get_age":[{"dvar":"dob"},"MM/DD/YYYY"]}}},
		{"if":{"then":[{"output":{"r":{"not":{"<":[{"lvar":"x"},2.5]}}}}],"condition":{"or":[true,{"~!=":["a","B"]}]}}},
		{"output":{"s":"q\"uote"}}
	]`

	stmts, err := ParseStatements([]byte(query))
	require.NoError(t, err)

	text := EncodeStatements(stmts)
	require.Equal(t,
		`[{"assign":{"x":{"get_age":[{"dvar":"dob"},"MM/DD/YYYY"]}}},`+
			`{"if":{"condition":{"or":[true,{"~!=":["a","B"]}]},"then":[{"output":{"r":{"not":{"<":[{"lvar":"x"},2.5]}}}}]}},`+
			`{"output":{"s":"q\"uote"}}]`,
		text)

	again, err := ParseStatements([]byte(text))
	require.NoError(t, err)
	require.Equal(t, text, EncodeStatements(again))
	require.Equal(t, ProgramDigest(stmts), ProgramDigest(again))

	other, err := ParseStatements([]byte(`[{"output":{"s":"quote"}}]`))
	require.NoError(t, err)
	require.NotEqual(t, ProgramDigest(stmts), ProgramDigest(other))

	expr, err := ParseExpr([]byte(`{">=":[{"dvar":"age"},18]}`))
	require.NoError(t, err)
	require.Equal(t, `{">=":[{"dvar":"age"},18]}`, EncodeExpr(expr))
}

func TestOutputReader(t *testing.T) {
	r, err := NewOutputReader(`{"result":true,"name":"Alice","age":25,"score":1.0}`)
	require.NoError(t, err)

	b, ok := r.FindBool(ResultField)
	require.True(t, ok)
	require.True(t, b)

	s, ok := r.FindString("name")
	require.True(t, ok)
	require.Equal(t, "Alice", s)

	i, ok := r.FindInt("age")
	require.True(t, ok)
	require.EqualValues(t, 25, i)

	f, ok := r.FindFloat("score")
	require.True(t, ok)
	require.Equal(t, 1.0, f)

	_, ok = r.FindInt("name")
	require.False(t, ok)

	require.Equal(t, `{"result":true,"name":"Alice","age":25,"score":1.0}`, EncodeJournal(r.Entries()))

	_, err = NewOutputReader(`[1]`)
	require.ErrorIs(t, err, ErrExpectingObject)

	_, err = NewOutputReader(`{"a":{"b":1}}`)
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

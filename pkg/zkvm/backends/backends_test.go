/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package backends

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/consensys/gnark/frontend"
	"github.com/stretchr/testify/require"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/circuit"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/gnarkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/groth16"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/plonk"
)

const (
	userData = `{"name":"Ramana","dob":"20/04/1990","score":7.5,"kyc":{"verified":true},` +
		`"city":"Jakarta","_city_zkpass_public_":true}`
	dvrQuery = `[
		{"assign":{"adult":{">=":[{"get_age":[{"dvar":"dob"},"DD/MM/YYYY"]},18]}}},
		{"if":{
			"condition":{"and":[{"lvar":"adult"},{"~==":[{"dvar":"name"},"RAMANA"]}]},
			"then":[{"output":{"city":{"dvar":"city"}}}],
			"else":[{"output":{"city":"unknown"}}]
		}},
		{"output":{"result":{"and":[{"lvar":"adult"},{"==":[{"dvar":"kyc.verified"},true]},{">":[{"dvar":"score"},5]}]}}}
	]`
	expectedJournal = `{"city":"Jakarta","result":true}`
)

var now = time.Date(2025, time.June, 14, 8, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

func TestRegistryNames(t *testing.T) {
	require.Equal(t, []string{"groth16", "plonk", "valida"}, NewRegistry().Names())
}

func TestProofRoundTrip(t *testing.T) {
	r := NewRegistry()

	receipts := map[string]string{}

	for _, name := range []string{"groth16", "plonk"} {
		name := name
		t.Run(name, func(t *testing.T) {
			b, err := r.Create(name)
			require.NoError(t, err)
			require.Len(t, b.MethodVersion(), 64)
			require.Contains(t, b.EngineVersion(), "gnark")

			receipt, err := zkvm.ExecuteQueryAndCreateZkProof(context.Background(), b,
				[]byte(userData), []byte(dvrQuery), now)
			require.NoError(t, err)

			journal, err := b.Verify(receipt)
			require.NoError(t, err)
			require.Equal(t, expectedJournal, journal)

			journal, err = r.VerifyZkProof(name, receipt)
			require.NoError(t, err)
			require.Equal(t, expectedJournal, journal)

			receipts[name] = receipt
		})
	}

	t.Run("backends agree on the journal", func(t *testing.T) {
		require.Len(t, receipts, 2)

		g, err := gnarkvm.DecodeReceipt(receipts["groth16"])
		require.NoError(t, err)

		p, err := gnarkvm.DecodeReceipt(receipts["plonk"])
		require.NoError(t, err)

		require.Equal(t, g.Journal, p.Journal)
		require.Equal(t, g.Program, p.Program)
		require.NotEqual(t, g.MethodVersion, p.MethodVersion)
	})

	t.Run("receipts are bound to their scheme", func(t *testing.T) {
		_, err := r.VerifyZkProof("plonk", receipts["groth16"])
		require.ErrorIs(t, err, query.ErrProofVerification)
	})

	t.Run("tampered journal", func(t *testing.T) {
		rec, err := gnarkvm.DecodeReceipt(receipts["groth16"])
		require.NoError(t, err)

		rec.Journal = `{"city":"Jakarta","result":false}`

		forged, err := rec.Encode()
		require.NoError(t, err)

		_, err = r.VerifyZkProof("groth16", forged)
		require.ErrorIs(t, err, query.ErrProofVerification)
	})

	t.Run("tampered program", func(t *testing.T) {
		rec, err := gnarkvm.DecodeReceipt(receipts["plonk"])
		require.NoError(t, err)

		rec.Program = `[{"output":{"city":"Jakarta"}},{"output":{"result":true}}]`

		forged, err := rec.Encode()
		require.NoError(t, err)

		_, err = r.VerifyZkProof("plonk", forged)
		require.ErrorIs(t, err, query.ErrProofVerification)
	})

	t.Run("tampered date", func(t *testing.T) {
		rec, err := gnarkvm.DecodeReceipt(receipts["groth16"])
		require.NoError(t, err)

		rec.Today = query.LocalDate{Day: 14, Month: 6, Year: 1995}.Pack()

		forged, err := rec.Encode()
		require.NoError(t, err)

		_, err = r.VerifyZkProof("groth16", forged)
		require.ErrorIs(t, err, query.ErrProofVerification)
	})
}

// openCircuit has the public layout of a one-field program and leaves it unconstrained.
type openCircuit struct {
	Digest     frontend.Variable   `gnark:",public"`
	TodayYear  frontend.Variable   `gnark:",public"`
	TodayMonth frontend.Variable   `gnark:",public"`
	TodayDay   frontend.Variable   `gnark:",public"`
	Present    []frontend.Variable `gnark:",public"`
	Kinds      []frontend.Variable `gnark:",public"`
	Outputs    []frontend.Variable `gnark:",public"`
	Free       frontend.Variable
}

func (c *openCircuit) Define(api frontend.API) error {
	api.AssertIsDifferent(c.Free, 0)

	return nil
}

// openProof proves journal for the program of rec with an unconstrained circuit and its own keys.
func openProof(t *testing.T, scheme gnarkvm.Scheme, rec *gnarkvm.Receipt, journal string) ([]byte, []byte) {
	t.Helper()

	stmts, err := query.ParseStatements([]byte(rec.Program))
	require.NoError(t, err)

	p := circuit.NewProgram(stmts, nil)
	p.Inputs = rec.Inputs

	public, err := circuit.Public(p, query.UnpackDate(rec.Today), journal)
	require.NoError(t, err)

	n := len(p.Fields)

	ccs, err := frontend.Compile(gnarkvm.Curve.ScalarField(), scheme.Builder(), &openCircuit{
		Present: make([]frontend.Variable, n),
		Kinds:   make([]frontend.Variable, n),
		Outputs: make([]frontend.Variable, n),
	}, frontend.IgnoreUnconstrainedInputs())
	require.NoError(t, err)

	prover, vk, err := scheme.Setup(ccs)
	require.NoError(t, err)

	assignment := &openCircuit{
		Digest:     public.Digest,
		TodayYear:  public.TodayYear,
		TodayMonth: public.TodayMonth,
		TodayDay:   public.TodayDay,
		Present:    public.Present,
		Kinds:      public.Kinds,
		Outputs:    public.Outputs,
		Free:       1,
	}

	full, err := frontend.NewWitness(assignment, gnarkvm.Curve.ScalarField())
	require.NoError(t, err)

	proof, err := prover.Prove(full)
	require.NoError(t, err)

	pw, err := frontend.NewWitness(assignment, gnarkvm.Curve.ScalarField(), frontend.PublicOnly())
	require.NoError(t, err)
	require.NoError(t, scheme.Verify(proof, vk, pw))

	return proof, vk
}

func TestForgedReceipts(t *testing.T) {
	const adult = `[{"output":{"result":{">=":[{"dvar":"age"},18]}}}]`

	schemes := map[string]gnarkvm.Scheme{
		groth16.Name: &groth16.Scheme{},
		plonk.Name:   &plonk.Scheme{},
	}

	for name, scheme := range schemes {
		name, scheme := name, scheme
		t.Run(name, func(t *testing.T) {
			b, err := NewRegistry().Create(name)
			require.NoError(t, err)

			honest, err := zkvm.ExecuteQueryAndCreateZkProof(context.Background(), b,
				[]byte(`{"age":16}`), []byte(adult), now)
			require.NoError(t, err)

			journal, err := b.Verify(honest)
			require.NoError(t, err)
			require.Equal(t, `{"result":false}`, journal)

			rec, err := gnarkvm.DecodeReceipt(honest)
			require.NoError(t, err)

			proof, vk := openProof(t, scheme, rec, `{"result":true}`)

			rec.Journal = `{"result":true}`
			rec.Proof = proof

			forged, err := rec.Encode()
			require.NoError(t, err)

			_, err = b.Verify(forged)
			require.ErrorIs(t, err, query.ErrProofVerification)

			raw, err := base64.StdEncoding.DecodeString(forged)
			require.NoError(t, err)

			var fields map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &fields))

			fields["verifying_key"] = vk

			raw, err = json.Marshal(fields)
			require.NoError(t, err)

			_, err = b.Verify(base64.StdEncoding.EncodeToString(raw))
			require.ErrorIs(t, err, query.ErrProofVerification)
		})
	}
}

func TestDistributedVerifyingKeys(t *testing.T) {
	dir := t.TempDir()

	service, err := NewRegistry(gnarkvm.WithKeyStore(gnarkvm.NewDirKeyStore(dir))).Create("groth16")
	require.NoError(t, err)

	receipt, err := zkvm.ExecuteQueryAndCreateZkProof(context.Background(), service,
		[]byte(userData), []byte(dvrQuery), now)
	require.NoError(t, err)

	t.Run("verifier given the keys", func(t *testing.T) {
		journal, err := NewRegistry(gnarkvm.WithKeyStore(gnarkvm.NewDirKeyStore(dir))).
			VerifyZkProof("groth16", receipt)
		require.NoError(t, err)
		require.Equal(t, expectedJournal, journal)
	})

	t.Run("verifier without keys", func(t *testing.T) {
		_, err := NewRegistry().VerifyZkProof("groth16", receipt)
		require.ErrorIs(t, err, query.ErrProofVerification)
		require.Contains(t, err.Error(), "no verifying key pinned")
	})

	t.Run("receipt names its input kinds", func(t *testing.T) {
		rec, err := gnarkvm.DecodeReceipt(receipt)
		require.NoError(t, err)
		require.NotEmpty(t, rec.Inputs)

		if rec.Inputs[0].Kind == query.KindString {
			rec.Inputs[0].Kind = query.KindInt
		} else {
			rec.Inputs[0].Kind = query.KindString
		}

		changed, err := rec.Encode()
		require.NoError(t, err)

		_, err = service.Verify(changed)
		require.ErrorIs(t, err, query.ErrProofVerification)
	})
}

func TestGarbageReceipts(t *testing.T) {
	r := NewRegistry()

	junkJSON, err := json.Marshal(map[string]interface{}{"scheme": "groth16", "proof": []byte{1, 2, 3}})
	require.NoError(t, err)

	b, err := r.Create("groth16")
	require.NoError(t, err)

	wrongVersion, err := json.Marshal(gnarkvm.Receipt{Scheme: "groth16", MethodVersion: "0"})
	require.NoError(t, err)

	junkProof, err := json.Marshal(gnarkvm.Receipt{
		Scheme:        "groth16",
		MethodVersion: b.MethodVersion(),
		Program:       `[{"output":{"result":true}}]`,
		Journal:       `{"result":true}`,
		Proof:         []byte("not a proof"),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		receipt string
		err     error
	}{
		{name: "empty", receipt: "", err: query.ErrProofSerialization},
		{name: "not base64", receipt: "%%%", err: query.ErrProofSerialization},
		{name: "not json", receipt: base64.StdEncoding.EncodeToString([]byte("garbage")), err: query.ErrProofSerialization},
		{name: "missing fields", receipt: base64.StdEncoding.EncodeToString(junkJSON), err: query.ErrProofVerification},
		{name: "wrong version", receipt: base64.StdEncoding.EncodeToString(wrongVersion), err: query.ErrProofVerification},
		{name: "junk proof", receipt: base64.StdEncoding.EncodeToString(junkProof), err: query.ErrProofVerification},
	}

	for _, name := range []string{"groth16", "plonk"} {
		for _, tc := range tests {
			tc := tc
			t.Run(name+" "+tc.name, func(t *testing.T) {
				_, err := r.VerifyZkProof(name, tc.receipt)
				require.Error(t, err)

				if name == "groth16" {
					require.ErrorIs(t, err, tc.err)
				}
			})
		}
	}
}

func TestPlaceholderBackend(t *testing.T) {
	r := NewRegistry()

	b, err := r.Create("valida")
	require.NoError(t, err)

	input, err := query.Parse([]byte(`{"age":20}`), []byte(`[{"output":{"result":true}}]`), query.DateOf(now))
	require.NoError(t, err)

	_, err = b.Prove(context.Background(), input)
	require.ErrorIs(t, err, query.ErrNotImplemented)

	_, err = r.VerifyZkProof("valida", "anything")
	require.ErrorIs(t, err, query.ErrNotImplemented)

	env := r.VerifyZkProofEnvelope("valida", "anything")
	require.Equal(t, "NotImplementedError", env.Status)
}

func TestProveFailures(t *testing.T) {
	t.Run("constraint budget", func(t *testing.T) {
		r := NewRegistry(gnarkvm.WithConstraintBudget(10))

		b, err := r.Create("groth16")
		require.NoError(t, err)

		_, err = zkvm.ExecuteQueryAndCreateZkProof(context.Background(), b, []byte(userData), []byte(dvrQuery), now)
		require.ErrorIs(t, err, query.ErrProofGeneration)
		require.Contains(t, err.Error(), "constraint budget exceeded")
	})

	t.Run("cancelled context", func(t *testing.T) {
		b, err := NewRegistry().Create("plonk")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = zkvm.ExecuteQueryAndCreateZkProof(ctx, b, []byte(userData), []byte(dvrQuery), now)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("engine error", func(t *testing.T) {
		b, err := NewRegistry().Create("groth16")
		require.NoError(t, err)

		_, err = zkvm.ExecuteQueryAndCreateZkProof(context.Background(), b,
			[]byte(`{"age":"x"}`), []byte(`[{"output":{"result":{">":[{"dvar":"age"},1]}}}]`), now)
		require.ErrorIs(t, err, query.ErrUnexpectedValue)
	})
}

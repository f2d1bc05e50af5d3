/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package zkvm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	mocks "github.com/gl-zkPass/zkpass-sdk-sub001/internal/gomocks/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) Prove(context.Context, *query.ProofMethodInput) (string, error) {
	panic("prover crashed")
}

func (panicking) Verify(string) (string, error) {
	var m map[string]string
	m["boom"] = "x"

	return "", nil
}

func (panicking) MethodVersion() string { panic("no version") }
func (panicking) EngineVersion() string { return "1" }

func TestIsolate(t *testing.T) {
	v, err := Isolate(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)

	testErr := errors.New("test error")
	_, err = Isolate(func() (int, error) { return 0, testErr })
	require.ErrorIs(t, err, testErr)

	v, err = Isolate(func() (int, error) { panic("boom") })
	require.ErrorIs(t, err, query.ErrUnhandledPanic)
	require.Contains(t, err.Error(), "boom")
	require.Zero(t, v)
	require.Equal(t, "UnhandledPanicError", query.Code(err))
}

func TestGuard(t *testing.T) {
	b := Guard(panicking{})
	require.Same(t, b, Guard(b))

	_, err := b.Prove(context.Background(), &query.ProofMethodInput{})
	require.ErrorIs(t, err, query.ErrUnhandledPanic)

	_, err = b.Verify("receipt")
	require.ErrorIs(t, err, query.ErrUnhandledPanic)

	require.Empty(t, b.MethodVersion())
	require.Equal(t, "1", b.EngineVersion())
	require.Equal(t, "panicking", b.Name())
}

func TestRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().MethodVersion().Return("m1").AnyTimes()
	backend.EXPECT().EngineVersion().Return("e1").AnyTimes()
	backend.EXPECT().Verify("good").Return(`{"result":true}`, nil)
	backend.EXPECT().Verify("bad").Return("", query.ErrProofVerification)

	created := 0

	r := NewRegistry()
	r.Register("mock", func() (Backend, error) {
		created++

		return backend, nil
	})
	r.Register("broken", func() (Backend, error) { return nil, errors.New("no hardware") })
	r.Register("crashing", func() (Backend, error) { panic("init failed") })

	require.Equal(t, []string{"broken", "crashing", "mock"}, r.Names())

	t.Run("instances are shared", func(t *testing.T) {
		b1, err := r.Create("mock")
		require.NoError(t, err)

		b2, err := r.Create("mock")
		require.NoError(t, err)
		require.Same(t, b1, b2)
		require.Equal(t, 1, created)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := r.Create("r0")
		require.ErrorIs(t, err, ErrUnknownBackend)
		require.ErrorIs(t, err, query.ErrNotImplemented)
	})

	t.Run("creator failures", func(t *testing.T) {
		_, err := r.Create("broken")
		require.EqualError(t, err, "create broken backend: no hardware")

		_, err = r.Create("crashing")
		require.ErrorIs(t, err, query.ErrUnhandledPanic)
	})

	t.Run("exports", func(t *testing.T) {
		journal, err := r.VerifyZkProof("mock", "good")
		require.NoError(t, err)
		require.Equal(t, `{"result":true}`, journal)

		v, err := r.QueryMethodVersion("mock")
		require.NoError(t, err)
		require.Equal(t, "m1", v)

		v, err = r.QueryEngineVersion("mock")
		require.NoError(t, err)
		require.Equal(t, "e1", v)
	})

	t.Run("envelopes", func(t *testing.T) {
		env := r.QueryEngineVersionEnvelope("mock")
		require.Equal(t, StatusOK, env.Status)
		require.NotNil(t, env.Data)
		require.Equal(t, "e1", *env.Data)

		env = r.VerifyZkProofEnvelope("mock", "bad")
		require.Equal(t, "ProofVerificationError", env.Status)
		require.Nil(t, env.Data)
		require.NotEmpty(t, env.Error)

		env = r.QueryMethodVersionEnvelope("sp1")
		require.Equal(t, "NotImplementedError", env.Status)
	})
}

func TestExecuteQueryAndCreateZkProof(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, time.June, 14, 10, 0, 0, 0, time.UTC)

	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Name().Return("mock").AnyTimes()
	backend.EXPECT().Prove(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, input *query.ProofMethodInput) (string, error) {
			require.Equal(t, query.DateOf(now).Pack(), input.CurrentDate)

			return query.Execute(input)
		})

	receipt, err := ExecuteQueryAndCreateZkProof(context.Background(), backend,
		[]byte(`{"age":25}`), []byte(`[{"output":{"result":{">=":[{"dvar":"age"},18]}}}]`), now)
	require.NoError(t, err)
	require.Equal(t, `{"result":true}`, receipt)

	_, err = ExecuteQueryAndCreateZkProof(context.Background(), backend, []byte(`{`), []byte(`[]`), now)
	require.ErrorIs(t, err, query.ErrUserDataParsing)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jwt"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
	mocks "github.com/gl-zkPass/zkpass-sdk-sub001/internal/gomocks/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
)

const (
	testBackend = "mock"
	testReceipt = "receipt-1"
	adultQuery  = `[{"output":{"result":{">=":[{"dvar":"age"},18]}}}]`
)

type service struct {
	sigKey *ecdsa.PrivateKey
	encKey *ecdsa.PrivateKey
	server *httptest.Server
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return key
}

func publicKey(t *testing.T, key *ecdsa.PrivateKey) jose.PublicKey {
	t.Helper()

	pub, err := jose.NewPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return pub
}

func newService(t *testing.T) *service {
	t.Helper()

	s := &service{sigKey: newKey(t), encKey: newKey(t)}

	sig, enc := publicKey(t, s.sigKey), publicKey(t, s.encKey)
	keys := []jose.JWK{
		{Kty: "EC", Crv: "P-256", X: sig.X, Y: sig.Y, Kid: ServiceSigningKID},
		{Kty: "EC", Crv: "P-256", X: enc.X, Y: enc.Y, Kid: ServiceEncryptionKID},
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/"+jose.JWKSPath {
			http.NotFound(rw, req)

			return
		}

		json.NewEncoder(rw).Encode(keys) //nolint:errcheck,errchkjson
	}))

	t.Cleanup(s.server.Close)

	return s
}

func mockBackends(t *testing.T, journal string) *zkvm.Registry {
	t.Helper()

	ctrl := gomock.NewController(t)

	b := mocks.NewMockBackend(ctrl)
	b.EXPECT().Name().Return(testBackend).AnyTimes()
	b.EXPECT().MethodVersion().Return("method-1").AnyTimes()
	b.EXPECT().EngineVersion().Return("engine-1").AnyTimes()
	b.EXPECT().Verify(testReceipt).Return(journal, nil).AnyTimes()
	b.EXPECT().Verify(gomock.Not(testReceipt)).Return("", errors.New("receipt rejected")).AnyTimes()

	r := zkvm.NewRegistry()
	r.Register(testBackend, func() (zkvm.Backend, error) { return b, nil })

	return r
}

type fixture struct {
	dvr     *zkpass.DataVerificationRequest
	dvrKey  jose.PublicKey
	userKey jose.PublicKey
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	userKey := publicKey(t, newKey(t))

	return &fixture{
		dvr: &zkpass.DataVerificationRequest{
			DvrTitle:             "Adult check",
			DvrID:                "3f2a8c8e-6c1e-4a44-9a3e-2d8b3f0c9e11",
			QueryEngineVer:       "engine-1",
			QueryMethodVer:       "method-1",
			Query:                adultQuery,
			UserDataVerifyingKey: jose.PublicKeyOption{PublicKey: &userKey},
		},
		dvrKey:  publicKey(t, newKey(t)),
		userKey: userKey,
		now:     time.Now(),
	}
}

func (f *fixture) proof(t *testing.T) *zkpass.Proof {
	t.Helper()

	digest, err := f.dvr.Digest()
	require.NoError(t, err)

	return &zkpass.Proof{
		ZkProof:              testReceipt,
		DvrTitle:             f.dvr.DvrTitle,
		DvrID:                f.dvr.DvrID,
		DvrDigest:            digest,
		UserDataVerifyingKey: f.userKey,
		DvrVerifyingKey:      f.dvrKey,
		TimeStamp:            uint64(f.now.Unix()), //nolint:gosec
	}
}

func (f *fixture) expected() *ExpectedMetadata {
	return &ExpectedMetadata{
		DVR:             f.dvr,
		DvrVerifyingKey: f.dvrKey,
		Now:             func() time.Time { return f.now.Add(time.Minute) },
	}
}

func signProof(t *testing.T, key *ecdsa.PrivateKey, proof *zkpass.Proof) string {
	t.Helper()

	token, err := jwt.Sign(key, proof, &jose.KeysetEndpoint{JKU: "https://zkpass.example/zkpass/jwks",
		KID: ServiceSigningKID})
	require.NoError(t, err)

	return token
}

func TestFetchPublicKey(t *testing.T) {
	s := newService(t)

	t.Run("published key", func(t *testing.T) {
		c := New(s.server.URL + "/")

		key, err := c.FetchPublicKey(context.Background(), ServiceEncryptionKID)
		require.NoError(t, err)
		require.Equal(t, publicKey(t, s.encKey), key)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := New(s.server.URL).FetchPublicKey(context.Background(), "other")
		require.ErrorIs(t, err, ErrMissingPublicKey)
		require.ErrorIs(t, err, jose.ErrKeyResolution)
		require.Equal(t, CodeMissingPublicKey, CodeOf(err))
	})

	t.Run("no service url", func(t *testing.T) {
		_, err := New("").FetchPublicKey(context.Background(), ServiceSigningKID)
		require.Equal(t, CodeMissingKeysetEndpoint, CodeOf(err))
		require.EqualError(t, err, "E1013-EMissingKeysetEndpoint: missing keyset endpoint")
	})
}

func TestNewProofRequest(t *testing.T) {
	s := newService(t)
	c := New(s.server.URL)

	req, err := c.NewProofRequest(context.Background(), "user.data.jws", "dvr.data.jws")
	require.NoError(t, err)

	inner, _, err := jwt.InnerToken(s.encKey, req.UserDataToken)
	require.NoError(t, err)
	require.Equal(t, "user.data.jws", inner)

	inner, _, err = jwt.InnerToken(s.encKey, req.DvrToken)
	require.NoError(t, err)
	require.Equal(t, "dvr.data.jws", inner)
}

func TestVerifyZkPassProof(t *testing.T) {
	s := newService(t)

	newClient := func(journal string) *Client {
		return New(s.server.URL, WithBackends(mockBackends(t, journal)), WithZkVM(testBackend))
	}

	t.Run("valid proof", func(t *testing.T) {
		f := newFixture(t)
		token := signProof(t, s.sigKey, f.proof(t))

		result, proof, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(), token, f.expected())
		require.NoError(t, err)
		require.True(t, result)
		require.Equal(t, f.dvr.DvrID, proof.DvrID)
	})

	t.Run("false result", func(t *testing.T) {
		f := newFixture(t)
		token := signProof(t, s.sigKey, f.proof(t))

		result, _, err := newClient(`{"result":false}`).VerifyZkPassProof(context.Background(), token, f.expected())
		require.NoError(t, err)
		require.False(t, result)
	})

	t.Run("internal returns journal", func(t *testing.T) {
		f := newFixture(t)
		token := signProof(t, s.sigKey, f.proof(t))

		journal, proof, err := newClient(`{"result":true}`).VerifyZkPassProofInternal(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, `{"result":true}`, journal)
		require.Equal(t, testReceipt, proof.ZkProof)
	})

	t.Run("metadata mismatches", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(f *fixture, p *zkpass.Proof, m *ExpectedMetadata)
			code   Code
		}{
			{
				name:   "title",
				mutate: func(_ *fixture, p *zkpass.Proof, _ *ExpectedMetadata) { p.DvrTitle = "other" },
				code:   CodeDvrTitleMismatch,
			},
			{
				name:   "id",
				mutate: func(_ *fixture, p *zkpass.Proof, _ *ExpectedMetadata) { p.DvrID = "other" },
				code:   CodeDvrIDMismatch,
			},
			{
				name:   "digest",
				mutate: func(_ *fixture, p *zkpass.Proof, _ *ExpectedMetadata) { p.DvrDigest = "00" },
				code:   CodeDvrDigestMismatch,
			},
			{
				name: "dvr key",
				mutate: func(f *fixture, _ *zkpass.Proof, m *ExpectedMetadata) {
					m.DvrVerifyingKey = f.userKey
				},
				code: CodeDvrKeyMismatch,
			},
			{
				name: "user key",
				mutate: func(f *fixture, p *zkpass.Proof, _ *ExpectedMetadata) {
					p.UserDataVerifyingKey = f.dvrKey
				},
				code: CodeUserKeyMismatch,
			},
			{
				name: "expired",
				mutate: func(f *fixture, _ *zkpass.Proof, m *ExpectedMetadata) {
					m.Now = func() time.Time { return f.now.Add(DefaultProofTTL + time.Minute) }
				},
				code: CodeProofExpired,
			},
			{
				name: "custom ttl",
				mutate: func(_ *fixture, _ *zkpass.Proof, m *ExpectedMetadata) {
					m.TTL = 30 * time.Second
				},
				code: CodeProofExpired,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				p, m := f.proof(t), f.expected()
				tc.mutate(f, p, m)

				_, _, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(),
					signProof(t, s.sigKey, p), m)
				require.Error(t, err)
				require.Equal(t, tc.code, CodeOf(err))
			})
		}
	})

	t.Run("disabled ttl", func(t *testing.T) {
		f := newFixture(t)
		m := f.expected()
		m.TTL = -1
		m.Now = func() time.Time { return f.now.Add(24 * time.Hour) }

		_, _, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(),
			signProof(t, s.sigKey, f.proof(t)), m)
		require.NoError(t, err)
	})

	t.Run("custom validator", func(t *testing.T) {
		f := newFixture(t)
		rejected := errors.New("verifier policy")

		_, _, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(),
			signProof(t, s.sigKey, f.proof(t)),
			ValidatorFunc(func(context.Context, *zkpass.Proof) error { return rejected }))
		require.ErrorIs(t, err, rejected)
		require.Equal(t, CodeCustom, CodeOf(err))
	})

	t.Run("forged signature", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(),
			signProof(t, newKey(t), f.proof(t)), f.expected())
		require.ErrorIs(t, err, jwt.ErrInvalidSignature)
		require.Equal(t, CodeJose, CodeOf(err))
	})

	t.Run("no data claim", func(t *testing.T) {
		f := newFixture(t)

		token, err := jwt.Sign(s.sigKey, nil, nil)
		require.NoError(t, err)

		_, _, err = newClient(`{"result":true}`).VerifyZkPassProof(context.Background(), token, f.expected())
		require.ErrorIs(t, err, jwt.ErrMissingData)
		require.Equal(t, CodeRootMissing, CodeOf(err))
	})

	t.Run("unknown zkvm", func(t *testing.T) {
		f := newFixture(t)
		c := New(s.server.URL, WithBackends(zkvm.NewRegistry()), WithZkVM("r0"))

		_, _, err := c.VerifyZkPassProof(context.Background(), signProof(t, s.sigKey, f.proof(t)), f.expected())
		require.ErrorIs(t, err, zkvm.ErrUnknownBackend)
		require.Equal(t, CodeNotImplemented, CodeOf(err))
	})

	t.Run("rejected receipt", func(t *testing.T) {
		f := newFixture(t)
		p := f.proof(t)
		p.ZkProof = "tampered"

		_, _, err := newClient(`{"result":true}`).VerifyZkPassProof(context.Background(),
			signProof(t, s.sigKey, p), f.expected())
		require.EqualError(t, err, "E1018-EError: receipt rejected")
	})

	t.Run("journal without result", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := newClient(`{"name":"Ramana"}`).VerifyZkPassProof(context.Background(),
			signProof(t, s.sigKey, f.proof(t)), f.expected())
		require.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("service unreachable", func(t *testing.T) {
		f := newFixture(t)
		c := New("http://127.0.0.1:1", WithBackends(mockBackends(t, `{"result":true}`)), WithZkVM(testBackend))

		_, _, err := c.VerifyZkPassProof(context.Background(), signProof(t, s.sigKey, f.proof(t)), f.expected())
		require.Equal(t, CodeMissingPublicKey, CodeOf(err))
	})
}

func TestQueryEngineVersionInfo(t *testing.T) {
	c := New("https://zkpass.example", WithBackends(mockBackends(t, "")), WithZkVM(testBackend))

	engine, method, err := c.QueryEngineVersionInfo()
	require.NoError(t, err)
	require.Equal(t, "engine-1", engine)
	require.Equal(t, "method-1", method)

	_, _, err = New("https://zkpass.example", WithZkVM("r0")).QueryEngineVersionInfo()
	require.Equal(t, CodeNotImplemented, CodeOf(err))
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return key
}

func TestPublicKey(t *testing.T) {
	key := newKey(t)

	t.Run("halves of the PEM body", func(t *testing.T) {
		pk, err := NewPublicKey(&key.PublicKey)
		require.NoError(t, err)
		require.Len(t, pk.X, 64)
		require.NotEmpty(t, pk.Y)
		require.False(t, pk.IsZero())

		pem := pk.ToPEM()
		require.True(t, strings.HasPrefix(pem, "-----BEGIN PUBLIC KEY-----\n"))
		require.True(t, strings.HasSuffix(pem, "\n-----END PUBLIC KEY-----"))

		decoded, err := pk.ECDSA()
		require.NoError(t, err)
		require.True(t, decoded.Equal(&key.PublicKey))
	})

	t.Run("indented PEM lines", func(t *testing.T) {
		pk, err := NewPublicKey(&key.PublicKey)
		require.NoError(t, err)

		doc := "-----BEGIN PUBLIC KEY-----\n        " + pk.X + "\n        " + pk.Y +
			"\n        -----END PUBLIC KEY-----"

		decoded, err := ParsePublicKeyPEM(doc)
		require.NoError(t, err)
		require.True(t, decoded.Equal(&key.PublicKey))
	})

	t.Run("invalid key material", func(t *testing.T) {
		_, err := PublicKey{X: "x", Y: "y"}.ECDSA()
		require.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePublicKeyPEM("not a pem")
		require.ErrorIs(t, err, ErrInvalidKey)

		other, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)

		pk, err := NewPublicKey(&other.PublicKey)
		require.NoError(t, err)

		_, err = pk.ECDSA()
		require.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("private key PEM round trip", func(t *testing.T) {
		doc, err := PrivateKeyPEM(key)
		require.NoError(t, err)

		decoded, err := ParsePrivateKeyPEM(doc)
		require.NoError(t, err)
		require.True(t, decoded.Equal(key))

		_, err = ParsePrivateKeyPEM((PublicKey{X: "x"}).ToPEM())
		require.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestPublicKeyOption(t *testing.T) {
	t.Run("inline key", func(t *testing.T) {
		opt := PublicKeyOption{PublicKey: &PublicKey{X: "a", Y: "b"}}

		raw, err := json.Marshal(opt)
		require.NoError(t, err)
		require.JSONEq(t, `{"PublicKey":{"x":"a","y":"b"}}`, string(raw))

		var decoded PublicKeyOption
		require.NoError(t, json.Unmarshal(raw, &decoded))
		require.Equal(t, opt, decoded)
	})

	t.Run("keyset endpoint", func(t *testing.T) {
		var decoded PublicKeyOption

		require.NoError(t, json.Unmarshal([]byte(`{"KeysetEndpoint":{"jku":"https://h/jwks","kid":"k1"}}`), &decoded))
		require.Nil(t, decoded.PublicKey)
		require.Equal(t, &KeysetEndpoint{JKU: "https://h/jwks", KID: "k1"}, decoded.KeysetEndpoint)
	})

	t.Run("exactly one variant", func(t *testing.T) {
		var decoded PublicKeyOption

		require.ErrorIs(t, decoded.UnmarshalJSON([]byte(`{}`)), ErrInvalidKey)
		require.ErrorIs(t, decoded.UnmarshalJSON(
			[]byte(`{"PublicKey":{"x":"a","y":"b"},"KeysetEndpoint":{"jku":"j","kid":"k"}}`)), ErrInvalidKey)

		_, err := PublicKeyOption{}.MarshalJSON()
		require.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestHeaders(t *testing.T) {
	h := Headers{HeaderJWKSetURL: "https://h/jwks", HeaderKeyID: "k1", HeaderType: TypeJWT, HeaderAlgorithm: 5}

	ep, ok := h.KeysetEndpoint()
	require.True(t, ok)
	require.Equal(t, KeysetEndpoint{JKU: "https://h/jwks", KID: "k1"}, *ep)

	typ, ok := h.Type()
	require.True(t, ok)
	require.Equal(t, TypeJWT, typ)

	_, ok = h.Algorithm()
	require.False(t, ok)

	_, ok = Headers{HeaderKeyID: "k1"}.KeysetEndpoint()
	require.False(t, ok)
}

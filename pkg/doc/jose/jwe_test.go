/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"testing"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key := newKey(t)

	t.Run("round trip", func(t *testing.T) {
		token, err := Encrypt(&key.PublicKey, map[string]interface{}{"name": "Ramana", "age": 25},
			WithRecipientKeyID("ServiceEncryptionPubK"))
		require.NoError(t, err)

		data, headers, err := Decrypt(key, token)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Ramana","age":25}`, string(data))

		typ, ok := headers.Type()
		require.True(t, ok)
		require.Equal(t, TypeJWT, typ)

		alg, _ := headers.Algorithm()
		require.Equal(t, ECDHESALG, alg)

		enc, _ := headers.Encryption()
		require.Equal(t, A256GCMALG, enc)

		kid, _ := headers.KeyID()
		require.Equal(t, "ServiceEncryptionPubK", kid)
	})

	t.Run("string payload", func(t *testing.T) {
		token, err := Encrypt(&key.PublicKey, "a.b.c")
		require.NoError(t, err)

		data, _, err := Decrypt(key, token)
		require.NoError(t, err)
		require.Equal(t, `"a.b.c"`, string(data))
	})

	t.Run("wrong key", func(t *testing.T) {
		token, err := Encrypt(&key.PublicKey, "secret")
		require.NoError(t, err)

		_, _, err = Decrypt(newKey(t), token)
		require.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := Decrypt(key, "not.a.jwe")
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("missing data claim", func(t *testing.T) {
		encrypter, err := jose.NewEncrypter(jose.A256GCM,
			jose.Recipient{Algorithm: jose.ECDH_ES, Key: &key.PublicKey}, nil)
		require.NoError(t, err)

		obj, err := encrypter.Encrypt([]byte(`{"other":1}`))
		require.NoError(t, err)

		token, err := obj.CompactSerialize()
		require.NoError(t, err)

		_, _, err = Decrypt(key, token)
		require.ErrorIs(t, err, ErrMissingData)
	})

	t.Run("unsupported key agreement", func(t *testing.T) {
		encrypter, err := jose.NewEncrypter(jose.A256GCM,
			jose.Recipient{Algorithm: jose.ECDH_ES_A256KW, Key: &key.PublicKey}, nil)
		require.NoError(t, err)

		obj, err := encrypter.Encrypt([]byte(`{"data":1}`))
		require.NoError(t, err)

		token, err := obj.CompactSerialize()
		require.NoError(t, err)

		_, _, err = Decrypt(key, token)
		require.ErrorIs(t, err, ErrMalformedToken)
	})
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"
)

// EncryptOpt configures Encrypt.
type EncryptOpt func(opts *jose.EncrypterOptions)

// WithRecipientKeyID sets the kid header of the JWE.
func WithRecipientKeyID(kid string) EncryptOpt {
	return func(opts *jose.EncrypterOptions) {
		opts.WithHeader(HeaderKeyID, kid)
	}
}

type dataClaim struct {
	Data json.RawMessage `json:"data"`
}

// MarshalData wraps a payload in the root "data" claim.
func MarshalData(payload interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{ClaimData: payload})
}

// UnmarshalData returns the raw JSON of the root "data" claim.
func UnmarshalData(claims []byte) (json.RawMessage, error) {
	var c dataClaim

	if err := json.Unmarshal(claims, &c); err != nil {
		return nil, fmt.Errorf("%w: claims are not a JSON object: %w", ErrMalformedToken, err)
	}

	if len(c.Data) == 0 || string(c.Data) == "null" {
		return nil, ErrMissingData
	}

	return c.Data, nil
}

// Encrypt produces a compact JWE (ECDH-ES, A256GCM, typ JWT) whose plaintext is {"data": payload}.
func Encrypt(key *ecdsa.PublicKey, payload interface{}, opts ...EncryptOpt) (string, error) {
	plaintext, err := MarshalData(payload)
	if err != nil {
		return "", fmt.Errorf("marshal jwe payload: %w", err)
	}

	encOpts := (&jose.EncrypterOptions{}).WithType(TypeJWT)

	for _, opt := range opts {
		opt(encOpts)
	}

	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.ECDH_ES, Key: key}, encOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	obj, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("jwe encrypt: %w", err)
	}

	return obj.CompactSerialize()
}

// Decrypt decrypts a compact JWE and returns the raw JSON of its "data" claim with the JWE headers.
func Decrypt(key *ecdsa.PrivateKey, token string) (json.RawMessage, Headers, error) {
	obj, err := jose.ParseEncrypted(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if obj.Header.Algorithm != ECDHESALG {
		return nil, nil, fmt.Errorf("%w: unexpected key agreement %q", ErrMalformedToken, obj.Header.Algorithm)
	}

	plaintext, err := obj.Decrypt(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	data, err := UnmarshalData(plaintext)
	if err != nil {
		return nil, nil, err
	}

	headers := HeadersFrom(obj.Header)
	headers[HeaderEncryption] = A256GCMALG

	return data, headers, nil
}

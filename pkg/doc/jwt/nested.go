/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/go-jose/go-jose/v3/json"

	zkjose "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

// SignAndEncrypt signs payload and encrypts the resulting JWS for the holder of encKey.
func SignAndEncrypt(sigKey *ecdsa.PrivateKey, encKey *ecdsa.PublicKey, payload interface{},
	ep *zkjose.KeysetEndpoint, opts ...SignOpt) (string, error) {
	jws, err := Sign(sigKey, payload, ep, opts...)
	if err != nil {
		return "", err
	}

	return zkjose.Encrypt(encKey, jws)
}

// InnerToken decrypts a JWE whose "data" claim is a compact JWS and returns that JWS.
func InnerToken(decKey *ecdsa.PrivateKey, token string) (string, zkjose.Headers, error) {
	data, headers, err := zkjose.Decrypt(decKey, token)
	if err != nil {
		return "", nil, err
	}

	var inner string

	if err := json.Unmarshal(data, &inner); err != nil {
		return "", nil, fmt.Errorf("%w: nested token is not a string: %w", ErrMalformedToken, err)
	}

	return inner, headers, nil
}

// VerifyNested decrypts a JWE(JWS(payload)) token and verifies the inner signature.
func VerifyNested(verKey *ecdsa.PublicKey, decKey *ecdsa.PrivateKey, token string,
	opts ...VerifyOpt) (json.RawMessage, zkjose.Headers, error) {
	inner, _, err := InnerToken(decKey, token)
	if err != nil {
		return nil, nil, err
	}

	return Verify(verKey, inner, opts...)
}

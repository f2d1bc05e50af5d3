/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"errors"

	"github.com/go-jose/go-jose/v3"
)

// IANA registered JOSE headers (https://tools.ietf.org/html/rfc7515#section-4.1)
const (
	// HeaderAlgorithm identifies:
	// For JWS: the cryptographic algorithm used to secure the JWS.
	// For JWE: the cryptographic algorithm used to encrypt or determine the value of the CEK.
	HeaderAlgorithm = "alg" // string

	// HeaderEncryption identifies the JWE content encryption algorithm.
	HeaderEncryption = "enc" // string

	// HeaderJWKSetURL is a URI that refers to a resource for a set of JSON-encoded public keys, one of which:
	// For JWS: corresponds to the key used to digitally sign the JWS.
	// For JWE: corresponds to the public key to which the JWE was encrypted.
	HeaderJWKSetURL = "jku" // string

	// HeaderKeyID is a hint:
	// For JWS: indicating which key was used to secure the JWS.
	// For JWE: which references the public key to which the JWE was encrypted.
	HeaderKeyID = "kid" // string

	// HeaderType is:
	// For JWS: used by JWS applications to declare the media type of this complete JWS.
	// For JWE: used by JWE applications to declare the media type of this complete JWE.
	HeaderType = "typ" // string

	// HeaderContentType is used by JWS applications to declare the media type of:
	// For JWS: the secured content (the payload).
	// For JWE: the secured content (the plaintext).
	HeaderContentType = "cty" // string
)

const (
	// TypeJWT is the "typ" value of every token this module produces.
	TypeJWT = "JWT"

	// ClaimData is the root claim that carries the token payload.
	ClaimData = "data"

	// A256GCMALG is the content encryption algorithm of every JWE.
	A256GCMALG = "A256GCM"

	// ECDHESALG is the key agreement algorithm of every JWE.
	ECDHESALG = "ECDH-ES"

	// ES256ALG is the signature algorithm of every JWS.
	ES256ALG = "ES256"
)

var (
	// ErrMalformedToken is returned when a token cannot be parsed as compact JOSE.
	ErrMalformedToken = errors.New("malformed token")

	// ErrMissingData is returned when a token does not carry the root "data" claim.
	ErrMissingData = errors.New("missing root data element")

	// ErrDecryption is returned when a JWE cannot be decrypted with the given key.
	ErrDecryption = errors.New("jwe decryption failed")

	// ErrInvalidKey is returned for key material that is not a P-256 EC key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyResolution is returned when a key cannot be found behind a keyset endpoint.
	ErrKeyResolution = errors.New("key resolution failed")
)

// Headers represents JOSE headers.
type Headers map[string]interface{}

// KeyID gets Key ID from JOSE headers.
func (h Headers) KeyID() (string, bool) {
	return h.stringValue(HeaderKeyID)
}

// JWKSetURL gets the keyset URL from JOSE headers.
func (h Headers) JWKSetURL() (string, bool) {
	return h.stringValue(HeaderJWKSetURL)
}

// Algorithm gets Algorithm from JOSE headers.
func (h Headers) Algorithm() (string, bool) {
	return h.stringValue(HeaderAlgorithm)
}

// Encryption gets content encryption algorithm from JOSE headers.
func (h Headers) Encryption() (string, bool) {
	return h.stringValue(HeaderEncryption)
}

// Type gets content encryption type from JOSE headers.
func (h Headers) Type() (string, bool) {
	return h.stringValue(HeaderType)
}

// KeysetEndpoint returns the jku/kid pair when both headers are present.
func (h Headers) KeysetEndpoint() (*KeysetEndpoint, bool) {
	jku, ok := h.JWKSetURL()
	if !ok {
		return nil, false
	}

	kid, ok := h.KeyID()
	if !ok {
		return nil, false
	}

	return &KeysetEndpoint{JKU: jku, KID: kid}, true
}

func (h Headers) stringValue(key string) (string, bool) {
	raw, ok := h[key]
	if !ok {
		return "", false
	}

	str, ok := raw.(string)

	return str, ok
}

// HeadersFrom flattens a go-jose header into Headers.
func HeadersFrom(h jose.Header) Headers {
	headers := Headers{}

	if h.Algorithm != "" {
		headers[HeaderAlgorithm] = h.Algorithm
	}

	if h.KeyID != "" {
		headers[HeaderKeyID] = h.KeyID
	}

	for k, v := range h.ExtraHeaders {
		headers[string(k)] = v
	}

	return headers
}

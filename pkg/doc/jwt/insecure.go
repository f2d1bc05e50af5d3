/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"

	zkjose "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

// UnverifiedHeaders returns the protected headers of a compact JWS.
//
// NO SIGNATURE CHECK IS PERFORMED. The result only tells which key to verify with.
func UnverifiedHeaders(token string) (zkjose.Headers, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected one signature, got %d", ErrMalformedToken, len(jws.Signatures))
	}

	return zkjose.HeadersFrom(jws.Signatures[0].Protected), nil
}

// UnverifiedField returns the raw JSON found by walking path from the root "data" claim of a compact JWS.
// The boolean is false when the path does not exist.
//
// NO SIGNATURE CHECK IS PERFORMED. Use it to locate the key a token must be verified with, and verify the
// token with Verify before trusting anything else it carries.
func UnverifiedField(token string, path ...string) (json.RawMessage, bool, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	data, err := zkjose.UnmarshalData(jws.UnsafePayloadWithoutVerification())
	if err != nil {
		return nil, false, err
	}

	for _, p := range path {
		var obj map[string]json.RawMessage

		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, false, nil //nolint:nilerr
		}

		next, ok := obj[p]
		if !ok {
			return nil, false, nil
		}

		data = next
	}

	return data, true, nil
}

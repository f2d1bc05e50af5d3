/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwt signs and verifies the compact ES256 tokens that carry user data, DVRs and proofs.
// Every token holds its payload in the root "data" claim.
package jwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/json"
	"github.com/go-jose/go-jose/v3/jwt"

	zkjose "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

var (
	// ErrInvalidSignature is returned when a signature does not verify with the given key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpiredToken is returned when the exp claim lies in the past.
	ErrExpiredToken = errors.New("token expired")

	// ErrMalformedToken is returned when a token cannot be parsed.
	ErrMalformedToken = zkjose.ErrMalformedToken

	// ErrMissingData is returned when a token has no root "data" claim.
	ErrMissingData = zkjose.ErrMissingData
)

// SignOpt is the signing option.
type SignOpt func(opts *signOpts)

type signOpts struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL adds iat and exp claims so the token expires after ttl.
func WithTTL(ttl time.Duration) SignOpt {
	return func(opts *signOpts) {
		opts.ttl = ttl
	}
}

// WithClock replaces the clock used for iat and exp.
func WithClock(now func() time.Time) SignOpt {
	return func(opts *signOpts) {
		opts.now = now
	}
}

// VerifyOpt is the verification option.
type VerifyOpt func(opts *verifyOpts)

type verifyOpts struct {
	leeway time.Duration
	now    func() time.Time
}

// WithLeeway sets the tolerated clock skew for time claims.
func WithLeeway(leeway time.Duration) VerifyOpt {
	return func(opts *verifyOpts) {
		opts.leeway = leeway
	}
}

// WithVerifyClock replaces the clock used to validate time claims.
func WithVerifyClock(now func() time.Time) VerifyOpt {
	return func(opts *verifyOpts) {
		opts.now = now
	}
}

// Sign produces a compact ES256 JWS with typ JWT whose "data" claim holds payload.
// When ep is set its jku and kid are added to the protected header.
func Sign(key *ecdsa.PrivateKey, payload interface{}, ep *zkjose.KeysetEndpoint, opts ...SignOpt) (string, error) {
	o := &signOpts{now: time.Now}

	for _, opt := range opts {
		opt(o)
	}

	sigOpts := (&jose.SignerOptions{}).WithType(zkjose.TypeJWT)
	if ep != nil {
		sigOpts = sigOpts.WithHeader(zkjose.HeaderJWKSetURL, ep.JKU).WithHeader(zkjose.HeaderKeyID, ep.KID)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: key}, sigOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", zkjose.ErrInvalidKey, err)
	}

	claims := map[string]interface{}{zkjose.ClaimData: payload}

	if o.ttl != 0 {
		now := o.now()
		claims["iat"] = jwt.NewNumericDate(now)
		claims["exp"] = jwt.NewNumericDate(now.Add(o.ttl))
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return token, nil
}

// Verify checks the signature of a compact JWS and returns the raw JSON of its "data" claim with the
// protected headers. No payload is returned unless the signature verified.
func Verify(key *ecdsa.PublicKey, token string, opts ...VerifyOpt) (json.RawMessage, zkjose.Headers, error) {
	o := &verifyOpts{now: time.Now}

	for _, opt := range opts {
		opt(o)
	}

	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if len(jws.Signatures) != 1 {
		return nil, nil, fmt.Errorf("%w: expected one signature, got %d", ErrMalformedToken, len(jws.Signatures))
	}

	header := jws.Signatures[0].Protected
	if header.Algorithm != zkjose.ES256ALG {
		return nil, nil, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidSignature, header.Algorithm)
	}

	claims, err := jws.Verify(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if err := validateTimes(claims, o.leeway, o.now()); err != nil {
		return nil, nil, err
	}

	data, err := zkjose.UnmarshalData(claims)
	if err != nil {
		return nil, nil, err
	}

	return data, zkjose.HeadersFrom(header), nil
}

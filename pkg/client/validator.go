/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
)

// DefaultProofTTL is how old a proof may be when ExpectedMetadata names no TTL.
const DefaultProofTTL = 600 * time.Second

// MetadataValidator checks the metadata of a verified proof against what the verifier expects.
type MetadataValidator interface {
	Validate(ctx context.Context, proof *zkpass.Proof) error
}

// ValidatorFunc adapts a function to MetadataValidator.
type ValidatorFunc func(ctx context.Context, proof *zkpass.Proof) error

// Validate implements MetadataValidator.
func (f ValidatorFunc) Validate(ctx context.Context, proof *zkpass.Proof) error {
	return f(ctx, proof)
}

// ExpectedMetadata validates a proof against the DVR the verifier issued.
type ExpectedMetadata struct {
	DVR             *zkpass.DataVerificationRequest
	DvrVerifyingKey jose.PublicKey
	// UserDataVerifyingKey defaults to the inline key of the DVR.
	UserDataVerifyingKey *jose.PublicKey
	// TTL bounds the proof age. Zero means DefaultProofTTL, a negative TTL disables the check.
	TTL time.Duration
	Now func() time.Time
}

// Validate implements MetadataValidator.
func (m *ExpectedMetadata) Validate(_ context.Context, proof *zkpass.Proof) error {
	if m.DVR == nil {
		return newError(ErrDvrIDMismatch, fmt.Errorf("no dvr expected for %s", proof.DvrID))
	}

	if proof.DvrTitle != m.DVR.DvrTitle {
		return newError(ErrDvrTitleMismatch, nil)
	}

	if proof.DvrID != m.DVR.DvrID {
		return newError(ErrDvrIDMismatch, nil)
	}

	digest, err := m.DVR.Digest()
	if err != nil {
		return newError(nil, err)
	}

	if proof.DvrDigest != digest {
		return newError(ErrDvrDigestMismatch, nil)
	}

	if proof.DvrVerifyingKey != m.DvrVerifyingKey {
		return newError(ErrDvrKeyMismatch, nil)
	}

	if err := m.checkUserDataKey(proof.UserDataVerifyingKey); err != nil {
		return err
	}

	return m.checkAge(proof.TimeStamp)
}

func (m *ExpectedMetadata) checkUserDataKey(got jose.PublicKey) error {
	want := m.UserDataVerifyingKey
	if want == nil {
		want = m.DVR.UserDataVerifyingKey.PublicKey
	}

	if want == nil {
		return newError(ErrMissingPublicKey, fmt.Errorf("dvr %s names its user data key by keyset endpoint",
			m.DVR.DvrID))
	}

	if got != *want {
		return newError(ErrUserKeyMismatch, nil)
	}

	return nil
}

func (m *ExpectedMetadata) checkAge(stamp uint64) error {
	ttl := m.TTL
	if ttl == 0 {
		ttl = DefaultProofTTL
	}

	if ttl < 0 {
		return nil
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	age := now().Sub(time.Unix(int64(stamp), 0)) //nolint:gosec

	if age > ttl {
		return newError(ErrProofExpired, fmt.Errorf("proof is %s old", age.Truncate(time.Second)))
	}

	return nil
}

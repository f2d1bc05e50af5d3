/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package zkpass holds the documents exchanged between data issuers, holders, verifiers and the proof
// service: the Data Verification Request (DVR) and the signed proof record.
package zkpass

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

// DataVerificationRequest describes the predicate a verifier wants proven over a holder's user data.
// Field order is significant: the digest is computed over the JSON encoding.
type DataVerificationRequest struct {
	DvrTitle             string                `json:"dvr_title"`
	DvrID                string                `json:"dvr_id"`
	QueryEngineVer       string                `json:"query_engine_ver"`
	QueryMethodVer       string                `json:"query_method_ver"`
	Query                string                `json:"query"`
	UserDataURL          *string               `json:"user_data_url"`
	UserDataVerifyingKey jose.PublicKeyOption  `json:"user_data_verifying_key"`
	DvrVerifyingKey      *jose.PublicKeyOption `json:"dvr_verifying_key"`
	ZkVM                 string                `json:"zkvm,omitempty"`
}

// Digest returns the hex encoded SHA-256 of the DVR's compact JSON encoding. HTML characters are
// not escaped, so relational operators in the query hash as written.
func (d *DataVerificationRequest) Digest() (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal dvr: %w", err)
	}

	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))

	return hex.EncodeToString(sum[:]), nil
}

// Proof is the record the proof service signs after proving a DVR.
type Proof struct {
	ZkProof              string         `json:"zkproof"`
	DvrTitle             string         `json:"dvr_title"`
	DvrID                string         `json:"dvr_id"`
	DvrDigest            string         `json:"dvr_digest"`
	UserDataVerifyingKey jose.PublicKey `json:"user_data_verifying_key"`
	DvrVerifyingKey      jose.PublicKey `json:"dvr_verifying_key"`
	TimeStamp            uint64         `json:"time_stamp"`
}

// GenerateProofRequest is the payload of a proof generation frame. Both tokens are JWE(JWS(data)).
type GenerateProofRequest struct {
	UserDataToken string `json:"user_data_token"`
	DvrToken      string `json:"dvr_token"`
}

// VerificationPublicKeyOption asks the relay to resolve the keys behind keyset endpoints.
type VerificationPublicKeyOption struct {
	DvrPublicKeyOption      *jose.PublicKeyOption `json:"dvr_public_key_option"`
	UserDataPublicKeyOption *jose.PublicKeyOption `json:"user_data_public_key_option"`
}

// NeedsResolution reports whether any of the options points at a keyset endpoint.
func (o VerificationPublicKeyOption) NeedsResolution() bool {
	return (o.DvrPublicKeyOption != nil && o.DvrPublicKeyOption.KeysetEndpoint != nil) ||
		(o.UserDataPublicKeyOption != nil && o.UserDataPublicKeyOption.KeysetEndpoint != nil)
}

// VerificationPublicKeys is the relay's answer to a VerificationPublicKeyOption.
type VerificationPublicKeys struct {
	DvrKey      jose.PublicKey `json:"dvr_key"`
	UserDataKey jose.PublicKey `json:"user_data_key"`
}

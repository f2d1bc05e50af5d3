/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package zkvm

import (
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// StatusOK is the envelope status of a successful call.
const StatusOK = "ok"

// Envelope is the status-tagged result of an exported call. Status is StatusOK or the error code
// of query.Code.
type Envelope struct {
	Status string  `json:"status"`
	Data   *string `json:"data,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func envelope(data string, err error) Envelope {
	if err != nil {
		return Envelope{Status: query.Code(err), Error: err.Error()}
	}

	return Envelope{Status: StatusOK, Data: &data}
}

// VerifyZkProof verifies receipt with the backend named by prefix and returns the journal.
func (r *Registry) VerifyZkProof(prefix, receipt string) (string, error) {
	b, err := r.Create(prefix)
	if err != nil {
		return "", err
	}

	return b.Verify(receipt)
}

// QueryMethodVersion returns the method version of the backend named by prefix.
func (r *Registry) QueryMethodVersion(prefix string) (string, error) {
	b, err := r.Create(prefix)
	if err != nil {
		return "", err
	}

	return b.MethodVersion(), nil
}

// QueryEngineVersion returns the engine version of the backend named by prefix.
func (r *Registry) QueryEngineVersion(prefix string) (string, error) {
	b, err := r.Create(prefix)
	if err != nil {
		return "", err
	}

	return b.EngineVersion(), nil
}

// VerifyZkProofEnvelope is VerifyZkProof with an envelope result.
func (r *Registry) VerifyZkProofEnvelope(prefix, receipt string) Envelope {
	return envelope(r.VerifyZkProof(prefix, receipt))
}

// QueryMethodVersionEnvelope is QueryMethodVersion with an envelope result.
func (r *Registry) QueryMethodVersionEnvelope(prefix string) Envelope {
	return envelope(r.QueryMethodVersion(prefix))
}

// QueryEngineVersionEnvelope is QueryEngineVersion with an envelope result.
func (r *Registry) QueryEngineVersionEnvelope(prefix string) Envelope {
	return envelope(r.QueryEngineVersion(prefix))
}

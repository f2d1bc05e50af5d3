/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package gnarkvm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/circuit"
)

// Receipt is the serialized result of a proof. It travels as base64 encoded JSON.
type Receipt struct {
	Scheme        string `json:"scheme"`
	MethodVersion string `json:"method_version"`
	// Program is the canonical text of the proven statements.
	Program string `json:"program"`
	// Inputs are the data variable kinds the circuit was compiled for.
	Inputs []circuit.Input `json:"inputs"`
	// Today is the packed date the program ran with.
	Today   uint32 `json:"today"`
	Journal string `json:"journal"`
	Proof   []byte `json:"proof"`
}

// Encode serializes the receipt.
func (r *Receipt) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrProofSerialization, err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeReceipt parses a serialized receipt.
func DecodeReceipt(receipt string) (*Receipt, error) {
	raw, err := base64.StdEncoding.DecodeString(receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt is not base64: %v", query.ErrProofSerialization, err)
	}

	r := &Receipt{}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("%w: receipt: %v", query.ErrProofSerialization, err)
	}

	return r, nil
}

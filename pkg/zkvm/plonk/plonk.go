/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package plonk is the PLONK zkvm backend over sparse constraint systems with KZG on BN254.
//
// The KZG reference string is generated locally for each circuit shape, so like Groth16 keys the
// resulting verifying keys are only trusted once pinned in the verifier's key store.
package plonk

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/gnarkvm"
)

// Name of the backend.
const Name = "plonk"

// New returns the PLONK backend.
func New(opts ...gnarkvm.Option) *gnarkvm.Backend {
	return gnarkvm.New(&Scheme{}, opts...)
}

// Scheme implements gnarkvm.Scheme with PLONK.
type Scheme struct{}

// Name of the scheme.
func (s *Scheme) Name() string {
	return Name
}

// Builder is the sparse R1CS builder.
func (s *Scheme) Builder() frontend.NewBuilder {
	return scs.NewBuilder
}

// Setup generates a KZG reference string sized for ccs and runs the PLONK setup.
func (s *Scheme) Setup(ccs constraint.ConstraintSystem) (gnarkvm.Prover, []byte, error) {
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("kzg srs: %w", err)
	}

	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		return nil, nil, fmt.Errorf("plonk setup: %w", err)
	}

	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("serialize verifying key: %w", err)
	}

	return &prover{ccs: ccs, pk: pk}, buf.Bytes(), nil
}

// Verify checks a serialized proof against a serialized verifying key.
func (s *Scheme) Verify(proofBytes, vkBytes []byte, public witness.Witness) error {
	vk := plonk.NewVerifyingKey(gnarkvm.Curve)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return fmt.Errorf("deserialize verifying key: %w", err)
	}

	proof := plonk.NewProof(gnarkvm.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("deserialize proof: %w", err)
	}

	return plonk.Verify(proof, vk, public)
}

type prover struct {
	ccs constraint.ConstraintSystem
	pk  plonk.ProvingKey
}

func (p *prover) Prove(full witness.Witness) ([]byte, error) {
	proof, err := plonk.Prove(p.ccs, p.pk, full)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	return buf.Bytes(), nil
}

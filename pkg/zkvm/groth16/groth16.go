/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package groth16 is the Groth16 zkvm backend over R1CS on BN254.
package groth16

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/gnarkvm"
)

// Name of the backend.
const Name = "groth16"

// New returns the Groth16 backend.
func New(opts ...gnarkvm.Option) *gnarkvm.Backend {
	return gnarkvm.New(&Scheme{}, opts...)
}

// Scheme implements gnarkvm.Scheme with Groth16.
type Scheme struct{}

// Name of the scheme.
func (s *Scheme) Name() string {
	return Name
}

// Builder is the R1CS builder.
func (s *Scheme) Builder() frontend.NewBuilder {
	return r1cs.NewBuilder
}

// Setup runs the Groth16 setup for ccs.
func (s *Scheme) Setup(ccs constraint.ConstraintSystem) (gnarkvm.Prover, []byte, error) {
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}

	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("serialize verifying key: %w", err)
	}

	return &prover{ccs: ccs, pk: pk}, buf.Bytes(), nil
}

// Verify checks a serialized proof against a serialized verifying key.
func (s *Scheme) Verify(proofBytes, vkBytes []byte, public witness.Witness) error {
	vk := groth16.NewVerifyingKey(gnarkvm.Curve)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return fmt.Errorf("deserialize verifying key: %w", err)
	}

	proof := groth16.NewProof(gnarkvm.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("deserialize proof: %w", err)
	}

	return groth16.Verify(proof, vk, public)
}

type prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

func (p *prover) Prove(full witness.Witness) ([]byte, error) {
	proof, err := groth16.Prove(p.ccs, p.pk, full)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	return buf.Bytes(), nil
}

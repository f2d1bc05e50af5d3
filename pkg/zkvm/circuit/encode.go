/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package circuit

import (
	"crypto/sha256"
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// intOffset shifts int64 values into a non-negative range. The margin below 2^63 leaves room for
// the clamped bounds used when ints meet float literals.
var intOffset = new(big.Int).Lsh(big.NewInt(1), 64) //nolint:gochecknoglobals

// KindCode is the public tag of an output value kind. Zero means the field was not written.
func KindCode(k query.Kind) int64 {
	return int64(k) + 1
}

// Encoding is the field representation of a value.
//
// P orders and identifies the value within its kind. A is the cross-kind form: the ordered float
// bits for numbers, the hash of the folded text for strings.
type Encoding struct {
	P *big.Int
	A *big.Int
}

// Encode returns the field representation of v.
func Encode(v query.Val) Encoding {
	switch v.Kind {
	case query.KindBool:
		b := big.NewInt(0)
		if v.Bool {
			b.SetInt64(1)
		}

		return Encoding{P: b, A: b}
	case query.KindInt:
		return Encoding{P: encodeInt(v.Int), A: new(big.Int).SetUint64(orderedBits(float64(v.Int)))}
	case query.KindFloat:
		f := new(big.Int).SetUint64(orderedBits(v.Float))

		return Encoding{P: f, A: f}
	default:
		return Encoding{P: hashToField([]byte(v.Str)), A: hashToField([]byte(query.FoldCase(v.Str)))}
	}
}

func encodeInt(i int64) *big.Int {
	return new(big.Int).Add(big.NewInt(i), intOffset)
}

func encodeBigInt(i *big.Int) *big.Int {
	return new(big.Int).Add(i, intOffset)
}

// orderedBits maps a float64 to a uint64 with the same ordering. Negative zero folds onto zero.
func orderedBits(f float64) uint64 {
	if f == 0 {
		f = 0
	}

	b := math.Float64bits(f)
	if b&(1<<63) != 0 {
		return ^b
	}

	return b | 1<<63
}

func hashToField(b []byte) *big.Int {
	sum := sha256.Sum256(b)

	var e fr.Element
	e.SetBytes(sum[:])

	return e.BigInt(new(big.Int))
}

// DigestElement reduces a hex program digest into the scalar field.
func DigestElement(digest string) *big.Int {
	return hashToField([]byte(digest))
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3/json"
)

const (
	pemPublicKeyType  = "PUBLIC KEY"
	pemPrivateKeyType = "PRIVATE KEY"
	pemECKeyType      = "EC PRIVATE KEY"

	pemLineLength = 64
)

// PublicKey is a P-256 public key in the form used on the wire: the two base64 lines of its
// PEM body, X holding the first line and Y the rest.
type PublicKey struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// NewPublicKey encodes an EC public key.
func NewPublicKey(pub *ecdsa.PublicKey) (PublicKey, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	body := base64.StdEncoding.EncodeToString(der)
	if len(body) <= pemLineLength {
		return PublicKey{X: body}, nil
	}

	return PublicKey{X: body[:pemLineLength], Y: body[pemLineLength:]}, nil
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return k.X == "" && k.Y == ""
}

// ToPEM renders the key as a PEM document.
func (k PublicKey) ToPEM() string {
	return "-----BEGIN PUBLIC KEY-----\n" + k.X + "\n" + k.Y + "\n-----END PUBLIC KEY-----"
}

// ECDSA decodes the key.
func (k PublicKey) ECDSA() (*ecdsa.PublicKey, error) {
	return ParsePublicKeyPEM(k.ToPEM())
}

// ParsePublicKeyPEM parses a PKIX P-256 public key. Leading whitespace on PEM lines is tolerated.
func ParsePublicKeyPEM(doc string) (*ecdsa.PublicKey, error) {
	block, err := decodePEM(doc)
	if err != nil {
		return nil, err
	}

	if block.Type != pemPublicKeyType {
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok || ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidKey)
	}

	return ecKey, nil
}

// ParsePrivateKeyPEM parses a PKCS#8 or SEC 1 P-256 private key.
func ParsePrivateKeyPEM(doc string) (*ecdsa.PrivateKey, error) {
	block, err := decodePEM(doc)
	if err != nil {
		return nil, err
	}

	var key interface{}

	switch block.Type {
	case pemPrivateKeyType:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case pemECKeyType:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok || ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidKey)
	}

	return ecKey, nil
}

// PrivateKeyPEM renders a private key as a PKCS#8 PEM document.
func PrivateKeyPEM(key *ecdsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: der})), nil
}

func decodePEM(doc string) (*pem.Block, error) {
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	block, _ := pem.Decode([]byte(strings.Join(lines, "\n")))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	return block, nil
}

// KeysetEndpoint points at a key inside a JWKS document.
type KeysetEndpoint struct {
	JKU string `json:"jku"`
	KID string `json:"kid"`
}

// PublicKeyOption holds either an inline key or a keyset endpoint. Its JSON form is
// {"PublicKey":{...}} or {"KeysetEndpoint":{...}}.
type PublicKeyOption struct {
	PublicKey      *PublicKey
	KeysetEndpoint *KeysetEndpoint
}

type publicKeyOptionJSON struct {
	PublicKey      *PublicKey      `json:"PublicKey,omitempty"`
	KeysetEndpoint *KeysetEndpoint `json:"KeysetEndpoint,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (o PublicKeyOption) MarshalJSON() ([]byte, error) {
	if (o.PublicKey == nil) == (o.KeysetEndpoint == nil) {
		return nil, fmt.Errorf("%w: exactly one of public key or keyset endpoint must be set", ErrInvalidKey)
	}

	return json.Marshal(publicKeyOptionJSON(o))
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *PublicKeyOption) UnmarshalJSON(data []byte) error {
	var raw publicKeyOptionJSON

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if (raw.PublicKey == nil) == (raw.KeysetEndpoint == nil) {
		return fmt.Errorf("%w: exactly one of PublicKey or KeysetEndpoint expected", ErrInvalidKey)
	}

	*o = PublicKeyOption(raw)

	return nil
}

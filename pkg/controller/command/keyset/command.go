/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyset publishes the proof service's public keys as keyset documents.
package keyset

import (
	"errors"
	"io"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/command"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

var logger = log.New("zkpass/controller/keyset")

const (
	// KeysNotLoadedErrorCode is returned while the service keys are not available yet.
	KeysNotLoadedErrorCode = command.Code(iota + command.Keyset)

	// InvalidKeyErrorCode is returned when a loaded key cannot be published.
	InvalidKeyErrorCode
)

const (
	// CommandName is the base command name for keyset operations.
	CommandName = "keyset"

	// GetServiceKeysCommandMethod lists the service keys.
	GetServiceKeysCommandMethod = "GetServiceKeys"

	// GetSigningKeysetCommandMethod returns the keyset proofs name in their headers.
	GetSigningKeysetCommandMethod = "GetSigningKeyset"
)

// Key ids of the published service keys.
const (
	ServiceSigningKID    = "ServiceSigningPubK"
	ServiceEncryptionKID = "ServiceEncryptionPubK"
)

const (
	keyType  = "EC"
	keyCurve = "P-256"
)

// ErrKeysNotLoaded is returned while the key source holds no keys.
var ErrKeysNotLoaded = errors.New("service keys not loaded")

// KeySource provides the public keys to publish.
type KeySource interface {
	Loaded() bool
	PublicKeys() (encryption, signing jose.PublicKey)
	SigningKeysetEndpoint() jose.KeysetEndpoint
}

// SigningKeyset is the document served at the signing keyset endpoint.
type SigningKeyset struct {
	Keys []jose.JWK `json:"keys"`
}

// Command publishes keyset documents.
type Command struct {
	source KeySource
}

// New returns a keyset command backed by source.
func New(source KeySource) *Command {
	return &Command{source: source}
}

// GetServiceKeys writes the signing and encryption keys as a bare JWK array.
func (c *Command) GetServiceKeys(rw io.Writer, _ io.Reader) command.Error {
	encryption, signing, cmdErr := c.publicKeys(GetServiceKeysCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	command.WriteJSON(rw, []jose.JWK{
		newJWK(signing, ServiceSigningKID),
		newJWK(encryption, ServiceEncryptionKID),
	}, logger)

	logger.Debugf("command=[%s] action=[%s] msg=[success]", CommandName, GetServiceKeysCommandMethod)

	return nil
}

// GetSigningKeyset writes the signing key under the kid proof tokens carry.
func (c *Command) GetSigningKeyset(rw io.Writer, _ io.Reader) command.Error {
	_, signing, cmdErr := c.publicKeys(GetSigningKeysetCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	kid := c.source.SigningKeysetEndpoint().KID

	command.WriteJSON(rw, SigningKeyset{Keys: []jose.JWK{newJWK(signing, kid)}}, logger)

	logger.Debugf("command=[%s] action=[%s] msg=[success]", CommandName, GetSigningKeysetCommandMethod)

	return nil
}

func (c *Command) publicKeys(method string) (jose.PublicKey, jose.PublicKey, command.Error) {
	if !c.source.Loaded() {
		logger.Warnf("command=[%s] action=[%s] errMsg=[%s]", CommandName, method, ErrKeysNotLoaded)

		return jose.PublicKey{}, jose.PublicKey{}, command.NewUnavailableError(KeysNotLoadedErrorCode, ErrKeysNotLoaded)
	}

	encryption, signing := c.source.PublicKeys()

	for _, k := range []jose.PublicKey{encryption, signing} {
		if _, err := k.ECDSA(); err != nil {
			logger.Errorf("command=[%s] action=[%s] errMsg=[%s]", CommandName, method, err)

			return jose.PublicKey{}, jose.PublicKey{}, command.NewExecuteError(InvalidKeyErrorCode, err)
		}
	}

	return encryption, signing, nil
}

func newJWK(k jose.PublicKey, kid string) jose.JWK {
	return jose.JWK{Kty: keyType, Crv: keyCurve, X: k.X, Y: k.Y, Kid: kid}
}

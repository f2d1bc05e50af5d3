/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"errors"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jwt"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/enclave/channel"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

var (
	// ErrUnsupportedOperation is replied to frames the host does not serve.
	ErrUnsupportedOperation = errors.New("Operation is not supported yet") //nolint:stylecheck

	// ErrInvalidRequest is returned for proof requests that cannot be decoded.
	ErrInvalidRequest = errors.New("invalid proof request")
)

// Codes of error replies that do not come from the query engine.
const (
	CodeUnsupportedOperation = "UnsupportedOperationError"
	CodeInvalidRequest       = "DeserializeError"
	CodeEmptyParameter       = "EmptyParameterError"
	CodeInvalidSignature     = "InvalidSignatureError"
	CodeMalformedToken       = "MalformedTokenError"
	CodeExpiredToken         = "ExpiredTokenError"
	CodeMissingData          = "MissingRootDataElementError"
	CodeDecryption           = "DecryptionError"
	CodeKeyResolution        = "KeyResolutionError"
	CodeInvalidKey           = "InvalidPublicKeyError"
	CodeKeysNotLoaded        = "KeysNotLoadedError"
	CodeKeyDecryption        = "KeyDecryptionError"
	CodeProofAbandoned       = "ProofAbandonedError"
	CodeChannel              = "SocketError"
)

//nolint:gochecknoglobals
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnsupportedOperation, CodeUnsupportedOperation},
	{ErrInvalidRequest, CodeInvalidRequest},
	{ErrEmptyParameter, CodeEmptyParameter},
	{jwt.ErrInvalidSignature, CodeInvalidSignature},
	{jwt.ErrExpiredToken, CodeExpiredToken},
	{jose.ErrMissingData, CodeMissingData},
	{jose.ErrMalformedToken, CodeMalformedToken},
	{jose.ErrDecryption, CodeDecryption},
	{jose.ErrKeyResolution, CodeKeyResolution},
	{jose.ErrInvalidKey, CodeInvalidKey},
	{ErrKeysNotLoaded, CodeKeysNotLoaded},
	{ErrKeyDecryption, CodeKeyDecryption},
	{ErrProofAbandoned, CodeProofAbandoned},
	{channel.ErrRemote, CodeChannel},
	{channel.ErrDisconnected, CodeChannel},
	{channel.ErrReconnectionExhausted, CodeChannel},
	{channel.ErrClosed, CodeChannel},
}

// ErrorCode returns the code an error reply carries for err.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return query.Code(err)
}

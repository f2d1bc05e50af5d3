/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a client failure.
type Code string

// Client error codes.
const (
	CodeUserKeyMismatch       Code = "E1001-EUserKeyMismatch"
	CodeRootMissing           Code = "E1002-ERootMissing"
	CodeNotImplemented        Code = "E1003-ENotImpl"
	CodeJose                  Code = "E1004-EJoseError"
	CodeDvrKeyMismatch        Code = "E1005-EDvrKeyMismatch"
	CodeDvrIDMismatch         Code = "E1006-EDvrIdMismatch"
	CodeDvrTitleMismatch      Code = "E1007-EDvrTitleMismatch"
	CodeDvrDigestMismatch     Code = "E1008-EDvrDigestMismatch"
	CodeProofExpired          Code = "E1009-EProofExpired"
	CodeInvalidPublicKey      Code = "E1010-EInvalidPubKey"
	CodeMissingPublicKey      Code = "E1011-EMissingPublicKey"
	CodeMissingAPIKey         Code = "E1012-EMissingApiKey"
	CodeMissingKeysetEndpoint Code = "E1013-EMissingKeysetEndpoint"
	CodeHTTPRequest           Code = "E1014-HttpRequestError"
	CodeHTTPResponse          Code = "E1015-HttpResponseError"
	CodeInvalidResponse       Code = "E1016-InvalidResponse"
	CodeCustom                Code = "E1017-ECustom"
	CodeError                 Code = "E1018-EError"
)

// Sentinels of the client failures. Every error returned by the client is an *Error wrapping one of them.
var (
	ErrUserKeyMismatch       = errors.New("user data verifying key mismatch")
	ErrRootMissing           = errors.New("root data element missing")
	ErrNotImplemented        = errors.New("not implemented")
	ErrJose                  = errors.New("token error")
	ErrDvrKeyMismatch        = errors.New("dvr verifying key mismatch")
	ErrDvrIDMismatch         = errors.New("dvr id mismatch")
	ErrDvrTitleMismatch      = errors.New("dvr title mismatch")
	ErrDvrDigestMismatch     = errors.New("dvr digest mismatch")
	ErrProofExpired          = errors.New("zkpass proof expired")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrMissingPublicKey      = errors.New("missing public key")
	ErrMissingAPIKey         = errors.New("missing api key")
	ErrMissingKeysetEndpoint = errors.New("missing keyset endpoint")
	ErrHTTPRequest           = errors.New("http request failed")
	ErrHTTPResponse          = errors.New("unexpected http response")
	ErrInvalidResponse       = errors.New("invalid response")
	ErrCustom                = errors.New("custom error")
)

//nolint:gochecknoglobals
var codes = map[error]Code{
	ErrUserKeyMismatch:       CodeUserKeyMismatch,
	ErrRootMissing:           CodeRootMissing,
	ErrNotImplemented:        CodeNotImplemented,
	ErrJose:                  CodeJose,
	ErrDvrKeyMismatch:        CodeDvrKeyMismatch,
	ErrDvrIDMismatch:         CodeDvrIDMismatch,
	ErrDvrTitleMismatch:      CodeDvrTitleMismatch,
	ErrDvrDigestMismatch:     CodeDvrDigestMismatch,
	ErrProofExpired:          CodeProofExpired,
	ErrInvalidPublicKey:      CodeInvalidPublicKey,
	ErrMissingPublicKey:      CodeMissingPublicKey,
	ErrMissingAPIKey:         CodeMissingAPIKey,
	ErrMissingKeysetEndpoint: CodeMissingKeysetEndpoint,
	ErrHTTPRequest:           CodeHTTPRequest,
	ErrHTTPResponse:          CodeHTTPResponse,
	ErrInvalidResponse:       CodeInvalidResponse,
	ErrCustom:                CodeCustom,
}

// Error is a client failure with its code.
type Error struct {
	code Code
	err  error
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// newError wraps cause with kind, one of the sentinels above. A nil kind yields CodeError.
func newError(kind, cause error) *Error {
	code, ok := codes[kind]
	if !ok {
		code = CodeError
	}

	var err error

	switch {
	case kind == nil:
		err = cause
	case cause == nil:
		err = kind
	default:
		err = fmt.Errorf("%w: %w", kind, cause)
	}

	return &Error{code: code, err: err}
}

// CodeOf returns the code of the client error in err's chain, CodeError for other errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}

	return CodeError
}

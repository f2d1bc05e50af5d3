/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"errors"
	"fmt"
)

// engineError is a tagged engine failure. The code is the stable name reported across process boundaries.
type engineError struct {
	code string
	msg  string
}

func (e *engineError) Error() string {
	return e.msg
}

// Engine errors.
var (
	ErrUnhandledPanic     = &engineError{code: "UnhandledPanicError", msg: "unhandled panic"}
	ErrUnexpectedValue    = &engineError{code: "UnexpectedValueError", msg: "unexpected value"}
	ErrUnexpectedOperator = &engineError{code: "UnexpectedOperatorError", msg: "unexpected operator"}
	ErrUserDataParsing    = &engineError{code: "UserDataParsingError", msg: "user data parsing failed"}
	ErrQueryParsing       = &engineError{code: "QueryParsingError", msg: "query parsing failed"}
	ErrVariableResolution = &engineError{code: "VariableResolutionError", msg: "variable resolution failed"}
	ErrProofGeneration    = &engineError{code: "ProofGenerationError", msg: "proof generation failed"}
	ErrProofSerialization = &engineError{code: "ProofSerializationError", msg: "proof serialization failed"}
	ErrNotImplemented     = &engineError{code: "NotImplementedError", msg: "not implemented"}
	ErrProofVerification  = &engineError{code: "ProofVerificationError", msg: "proof verification failed"}
)

// UnknownErrorCode is reported by Code for errors outside the engine taxonomy.
const UnknownErrorCode = "UnknownError"

// ParseError describes why a query could not be parsed. It unwraps to ErrQueryParsing,
// or to ErrVariableResolution / ErrProofGeneration for data variable failures.
type ParseError struct {
	Code   string
	Reason string
	kind   *engineError
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind.msg, e.Reason)
}

// Unwrap returns the engine error class.
func (e *ParseError) Unwrap() error {
	return e.kind
}

func parseErr(code, reason string) error {
	return &ParseError{Code: code, Reason: reason, kind: ErrQueryParsing}
}

// Code returns the stable error name for err, preferring the most specific parse code.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}

	var ee *engineError
	if errors.As(err, &ee) {
		return ee.code
	}

	return UnknownErrorCode
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

// Type classifies a command failure. REST handlers map it to an HTTP status.
type Type int32

// Command error types.
const (
	ValidationError Type = iota
	ExecuteError
	// UnavailableError means the state the command reads is not ready yet.
	UnavailableError
)

// Code identifies a command failure within its Group.
type Code int32

// UnknownStatus is the code of errors that carry none.
const UnknownStatus Code = 0

// Group is the base of a block of codes, one block per command package.
type Group int32

// Keyset is the code block of the keyset command.
const Keyset Group = 2000

// Error is a failed command execution.
type Error interface {
	error
	Code() Code
	Type() Type
}

type commandError struct {
	err     error
	code    Code
	errType Type
}

// NewValidationError reports a request the command could not accept.
func NewValidationError(code Code, err error) Error {
	return &commandError{err: err, code: code, errType: ValidationError}
}

// NewExecuteError reports a command that failed while running.
func NewExecuteError(code Code, err error) Error {
	return &commandError{err: err, code: code, errType: ExecuteError}
}

// NewUnavailableError reports a command that cannot run yet.
func NewUnavailableError(code Code, err error) Error {
	return &commandError{err: err, code: code, errType: UnavailableError}
}

func (c *commandError) Error() string { return c.err.Error() }
func (c *commandError) Code() Code    { return c.code }
func (c *commandError) Type() Type    { return c.errType }
func (c *commandError) Unwrap() error { return c.err }

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"fmt"
	"strings"
)

// Operation names the request carried by a frame.
type Operation string

// Operations understood by the host and the relay.
const (
	OpFetchingKeys        Operation = "request_fetching_keys_by_host"
	OpPrintingLogs        Operation = "request_printing_logs_by_host"
	OpGenerateProof       Operation = "request_generate_proof"
	OpExecuteApp          Operation = "request_execute_app"
	OpPing                Operation = "request_ping_to_host"
	OpFetchingPrivateKeys Operation = "request_fetching_private_keys_by_host"

	// OpError marks a reply that carries an error instead of a result.
	OpError Operation = "error"
)

const (
	// Separator splits the operation from its data.
	Separator = "|"

	// Ping is the heartbeat request body.
	Ping = "PING"

	// Pong is the heartbeat reply.
	Pong = "PONG"
)

// Message is a decoded frame payload.
type Message struct {
	Operation Operation
	Payload   string
}

// ParseMessage splits a frame payload at the first separator. A payload without a separator is all
// operation.
func ParseMessage(raw string) Message {
	op, payload, _ := strings.Cut(raw, Separator)

	return Message{Operation: Operation(op), Payload: payload}
}

// String renders the frame payload.
func (m Message) String() string {
	return string(m.Operation) + Separator + m.Payload
}

// ErrorReply renders an error frame payload.
func ErrorReply(code, msg string) string {
	return fmt.Sprintf("%s%s%s: %s", OpError, Separator, code, msg)
}

// IsErrorReply reports whether a reply is an error frame.
func IsErrorReply(raw string) bool {
	return strings.HasPrefix(raw, string(OpError)+Separator)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import "errors"

var (
	// ErrConnectionFailed is returned when a single dial attempt fails.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrReconnectionExhausted is returned when every allowed connection attempt failed.
	ErrReconnectionExhausted = errors.New("reconnection attempts exhausted")

	// ErrFrameTooLarge is returned for frames above the size limit and for streams that lost sync.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrDisconnected is returned when the peer closed the stream.
	ErrDisconnected = errors.New("disconnected")

	// ErrRemote is returned when the peer answered with an error frame.
	ErrRemote = errors.New("remote error")

	// ErrClosed is returned when using a connection after Close.
	ErrClosed = errors.New("connection closed")

	// ErrTransportUnsupported is returned by transports that the platform cannot provide.
	ErrTransportUnsupported = errors.New("transport not supported on this platform")
)

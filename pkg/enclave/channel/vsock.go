/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"context"
	"fmt"
)

// Virtual socket addressing of the enclave setup.
const (
	// VsockCIDAny binds on every context id.
	VsockCIDAny uint32 = 0xffffffff
	// VsockCIDParent is the context id of the parent instance.
	VsockCIDParent uint32 = 3

	DefaultHostPort uint32 = 5005
	DefaultUtilPort uint32 = 50051
)

// VsockTransport runs over AF_VSOCK. Listen binds CID on Port, Dial connects to CID on Port.
type VsockTransport struct {
	CID  uint32
	Port uint32
}

// Name returns the transport name.
func (t *VsockTransport) Name() string { return VsockName }

// Dial connects to the configured context id and port.
func (t *VsockTransport) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := dialVsock(t.CID, t.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: vsock %d:%d: %w", ErrConnectionFailed, t.CID, t.Port, err)
	}

	return conn, nil
}

// Listen binds the configured context id and port.
func (t *VsockTransport) Listen(ctx context.Context) (Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l, err := listenVsock(t.CID, t.Port)
	if err != nil {
		return nil, fmt.Errorf("bind vsock %d:%d: %w", t.CID, t.Port, err)
	}

	return l, nil
}

//go:build !linux

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

func dialVsock(uint32, uint32) (Conn, error) {
	return nil, ErrTransportUnsupported
}

func listenVsock(uint32, uint32) (Listener, error) {
	return nil, ErrTransportUnsupported
}

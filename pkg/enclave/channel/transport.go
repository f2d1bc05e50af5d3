/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// Conn is a byte stream between the host and the relay.
type Conn interface {
	io.ReadWriteCloser
}

// Listener accepts streams.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() string
}

// Transport connects the host with the relay. The implementation is chosen at startup.
type Transport interface {
	Name() string
	Dial(ctx context.Context) (Conn, error)
	Listen(ctx context.Context) (Listener, error)
}

// Transport names.
const (
	UnixName  = "unix"
	TCPName   = "tcp"
	VsockName = "vsock"
)

// Default socket files of the local setup.
const (
	DefaultSocketFile     = "./socket/zkpass_local_server.sock"
	DefaultUtilSocketFile = "./socket/zkpass_local_server_util.sock"
)

// UnixTransport runs over a unix domain socket file.
type UnixTransport struct {
	Path string
}

// Name returns the transport name.
func (t *UnixTransport) Name() string { return UnixName }

// Dial connects to the socket file.
func (t *UnixTransport) Dial(ctx context.Context) (Conn, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "unix", t.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return conn, nil
}

// Listen binds the socket file. Its folder is created and a stale file is removed first.
func (t *UnixTransport) Listen(ctx context.Context) (Listener, error) {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket folder: %w", err)
	}

	if err := os.Remove(t.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket file: %w", err)
	}

	var lc net.ListenConfig

	l, err := lc.Listen(ctx, "unix", t.Path)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", t.Path, err)
	}

	return &netListener{Listener: l}, nil
}

// TCPTransport runs over TCP. It is meant for loopback development setups.
type TCPTransport struct {
	Address string
}

// Name returns the transport name.
func (t *TCPTransport) Name() string { return TCPName }

// Dial connects to the address.
func (t *TCPTransport) Dial(ctx context.Context) (Conn, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return conn, nil
}

// Listen binds the address.
func (t *TCPTransport) Listen(ctx context.Context) (Listener, error) {
	var lc net.ListenConfig

	l, err := lc.Listen(ctx, "tcp", t.Address)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", t.Address, err)
	}

	return &netListener{Listener: l}, nil
}

type netListener struct {
	net.Listener
}

func (l *netListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}

func (l *netListener) Addr() string {
	return l.Listener.Addr().String()
}

//go:build linux

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

const vsockBacklog = 128

func dialVsock(cid, port uint32) (Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	if err := unix.Connect(fd, &unix.SockaddrVM{CID: cid, Port: port}); err != nil {
		_ = unix.Close(fd) //nolint:errcheck

		return nil, err
	}

	return &vsockConn{fd: fd}, nil
}

func listenVsock(cid, port uint32) (Listener, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	if err := unix.Bind(fd, &unix.SockaddrVM{CID: cid, Port: port}); err != nil {
		_ = unix.Close(fd) //nolint:errcheck

		return nil, err
	}

	if err := unix.Listen(fd, vsockBacklog); err != nil {
		_ = unix.Close(fd) //nolint:errcheck

		return nil, err
	}

	return &vsockListener{vsockConn: vsockConn{fd: fd}, cid: cid, port: port}, nil
}

// vsockConn is a blocking stream over a raw descriptor. Close shuts the socket down first so that
// blocked reads return.
type vsockConn struct {
	fd   int
	once sync.Once
}

func (c *vsockConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)

		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return 0, err
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

func (c *vsockConn) Write(p []byte) (int, error) {
	written := 0

	for written < len(p) {
		n, err := unix.Write(c.fd, p[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return written, err
		}

		written += n
	}

	return written, nil
}

func (c *vsockConn) Close() error {
	var err error

	c.once.Do(func() {
		_ = unix.Shutdown(c.fd, unix.SHUT_RDWR) //nolint:errcheck
		err = unix.Close(c.fd)
	})

	return err
}

type vsockListener struct {
	vsockConn
	cid, port uint32
}

func (l *vsockListener) Accept() (Conn, error) {
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return &vsockConn{fd: nfd}, nil
	}
}

func (l *vsockListener) Addr() string {
	return fmt.Sprintf("vsock://%d:%d", l.cid, l.port)
}

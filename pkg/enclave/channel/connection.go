/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package channel implements the framed socket protocol between the enclave host and the relay.
//
// A frame is SOH, a big-endian uint32 payload length, STX and the payload. Request payloads are an
// operation name and its data joined by "|". Replies are raw payloads, or "error|<code>: <message>".
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
)

// LogModule is the logger module of this package.
const LogModule = "zkpass/channel"

var logger = log.New(LogModule)

// Connection retry limits.
const (
	DefaultMaxConnectionAttempts = 60
	DefaultReconnectionAttempts  = 5
	DefaultRetryInterval         = time.Second
)

// State of a connection.
type State int32

// Connection states. Closed is terminal.
const (
	Disconnected State = iota
	Connecting
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures a Connection.
type Option func(opts *options)

type options struct {
	bufferSize            int
	maxScan               int
	maxFrameSize          int
	maxConnectionAttempts uint64
	reconnectionAttempts  uint64
	retryInterval         time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		bufferSize:            DefaultBufferSize,
		maxScan:               DefaultMaxScan,
		maxFrameSize:          DefaultMaxFrameSize,
		maxConnectionAttempts: DefaultMaxConnectionAttempts,
		reconnectionAttempts:  DefaultReconnectionAttempts,
		retryInterval:         DefaultRetryInterval,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithBufferSize sets the chunk size used for reads and writes.
func WithBufferSize(size int) Option {
	return func(opts *options) {
		opts.bufferSize = size
	}
}

// WithMaxScan sets how many bytes are skipped at most while looking for a frame marker.
func WithMaxScan(n int) Option {
	return func(opts *options) {
		opts.maxScan = n
	}
}

// WithMaxFrameSize sets the largest accepted payload.
func WithMaxFrameSize(size int) Option {
	return func(opts *options) {
		opts.maxFrameSize = size
	}
}

// WithMaxConnectionAttempts sets how many dials the initial connect makes.
func WithMaxConnectionAttempts(n uint64) Option {
	return func(opts *options) {
		opts.maxConnectionAttempts = n
	}
}

// WithReconnectionAttempts sets how many dials a reconnect makes.
func WithReconnectionAttempts(n uint64) Option {
	return func(opts *options) {
		opts.reconnectionAttempts = n
	}
}

// WithRetryInterval sets the pause between dial attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(opts *options) {
		opts.retryInterval = d
	}
}

// Connection is a framed stream registered in a Registry. Connections created by Dial reconnect through
// their transport; accepted connections do not.
type Connection struct {
	transport Transport
	registry  *Registry
	opts      options
	id        ID
	state     atomic.Int32

	mu     sync.Mutex
	conn   Conn
	reader *FrameReader

	writeMu   sync.Mutex
	requestMu sync.Mutex
	closeOnce sync.Once
}

// Dial connects through t, retrying up to the configured number of attempts, and registers the
// connection in registry.
func Dial(ctx context.Context, t Transport, registry *Registry, opts ...Option) (*Connection, error) {
	c := &Connection{transport: t, registry: registry, opts: newOptions(opts)}

	if err := c.connect(ctx, c.opts.maxConnectionAttempts); err != nil {
		return nil, err
	}

	c.id = registry.Register(c)

	return c, nil
}

// NewConnection wraps an accepted stream and registers it in registry.
func NewConnection(conn Conn, registry *Registry, opts ...Option) *Connection {
	c := &Connection{registry: registry, opts: newOptions(opts)}
	c.install(conn)
	c.id = registry.Register(c)

	return c
}

// ID returns the registry id.
func (c *Connection) ID() ID {
	return c.id
}

// State returns the current state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) setState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) == Closed || c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (c *Connection) install(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.reader = NewFrameReader(conn, c.opts.bufferSize, c.opts.maxScan, c.opts.maxFrameSize)
	c.mu.Unlock()

	c.setState(Connected)
}

func (c *Connection) current() (Conn, *FrameReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == Closed {
		return nil, nil, ErrClosed
	}

	if c.conn == nil {
		return nil, nil, ErrDisconnected
	}

	return c.conn, c.reader, nil
}

func (c *Connection) connect(ctx context.Context, attempts uint64) error {
	if attempts == 0 {
		attempts = 1
	}

	c.setState(Connecting)

	var (
		conn  Conn
		tries uint64
	)

	op := func() error {
		if c.State() == Closed {
			return backoff.Permanent(ErrClosed)
		}

		tries++

		var err error

		conn, err = c.transport.Dial(ctx)
		if errors.Is(err, ErrTransportUnsupported) {
			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, next time.Duration) {
		logger.Warnf("connection attempt %d/%d through %s failed, retrying in %s: %v",
			tries, attempts, c.transport.Name(), next, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.retryInterval), attempts-1), ctx)

	err := backoff.RetryNotify(op, b, notify)

	switch {
	case err == nil:
	case errors.Is(err, ErrClosed), errors.Is(err, ErrTransportUnsupported):
		c.setState(Disconnected)

		return err
	case ctx.Err() != nil:
		c.setState(Disconnected)

		return fmt.Errorf("%w after %d attempts: %w", ErrConnectionFailed, tries, ctx.Err())
	default:
		c.setState(Disconnected)

		return fmt.Errorf("%w after %d attempts: %w", ErrReconnectionExhausted, tries, err)
	}

	if c.State() == Closed {
		_ = conn.Close() //nolint:errcheck

		return ErrClosed
	}

	c.install(conn)
	logger.Infof("connected through %s", c.transport.Name())

	return nil
}

// Reconnect drops the current stream and dials again, up to the reconnection attempt limit.
func (c *Connection) Reconnect(ctx context.Context) error {
	if c.transport == nil {
		return fmt.Errorf("%w: accepted connections cannot reconnect", ErrDisconnected)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Debugf("closing broken stream: %v", err)
		}
	}

	c.setState(Disconnected)

	return c.connect(ctx, c.opts.reconnectionAttempts)
}

// Send writes one frame. A write that fails on a broken stream reconnects once and writes the frame again.
func (c *Connection) Send(ctx context.Context, payload string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.write(ctx, payload)
	if err == nil || !isBrokenPipe(err) || c.transport == nil {
		return err
	}

	logger.Warnf("write through %s failed on a broken stream, reconnecting: %v", c.transport.Name(), err)

	if rerr := c.Reconnect(ctx); rerr != nil {
		return rerr
	}

	return c.write(ctx, payload)
}

func (c *Connection) write(ctx context.Context, payload string) error {
	conn, _, err := c.current()
	if err != nil {
		return err
	}

	reset := applyDeadline(ctx, conn, setWriteDeadline)
	defer reset()

	if _, err := WriteFrame(conn, []byte(payload), c.opts.bufferSize); err != nil {
		return c.streamError("write frame", err)
	}

	return nil
}

// Receive reads one frame payload. Blocking reads return when the connection is closed or when the
// context deadline passes, if the stream supports deadlines.
func (c *Connection) Receive(ctx context.Context) (string, error) {
	conn, reader, err := c.current()
	if err != nil {
		return "", err
	}

	reset := applyDeadline(ctx, conn, setReadDeadline)
	defer reset()

	payload, err := reader.ReadFrame()
	if err != nil {
		return "", c.streamError("read frame", err)
	}

	return string(payload), nil
}

// Request sends op with data and waits for the reply. Error frames become ErrRemote.
func (c *Connection) Request(ctx context.Context, op Operation, data string) (string, error) {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	if err := c.Send(ctx, Message{Operation: op, Payload: data}.String()); err != nil {
		return "", err
	}

	reply, err := c.Receive(ctx)
	if err != nil {
		return "", err
	}

	if IsErrorReply(reply) {
		return "", fmt.Errorf("%w: %s", ErrRemote, strings.TrimPrefix(reply, string(OpError)+Separator))
	}

	return reply, nil
}

// Ping sends a heartbeat and waits at most timeout for the reply.
func (c *Connection) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := c.Request(ctx, OpPing, Ping)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}

	if reply != Pong {
		return fmt.Errorf("heartbeat: unexpected reply %q", reply)
	}

	return nil
}

// Close closes the stream and removes the connection from its registry. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		c.registry.Unregister(c.id)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
	})

	return err
}

func (c *Connection) streamError(what string, err error) error {
	if c.State() == Closed {
		return fmt.Errorf("%s: %w", what, ErrClosed)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %w", what, context.DeadlineExceeded, err)
	}

	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		c.setState(Disconnected)

		return fmt.Errorf("%s: %w: %w", what, ErrDisconnected, err)
	}

	if errors.Is(err, ErrDisconnected) {
		c.setState(Disconnected)
	}

	return fmt.Errorf("%s: %w", what, err)
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, ErrDisconnected)
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

func setReadDeadline(d deadliner, t time.Time) error  { return d.SetReadDeadline(t) }
func setWriteDeadline(d deadliner, t time.Time) error { return d.SetWriteDeadline(t) }

func applyDeadline(ctx context.Context, conn Conn, set func(deadliner, time.Time) error) func() {
	d, ok := conn.(deadliner)
	if !ok {
		return func() {}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}

	if err := set(d, deadline); err != nil {
		logger.Debugf("stream does not accept deadlines: %v", err)

		return func() {}
	}

	return func() {
		_ = set(d, time.Time{}) //nolint:errcheck
	}
}

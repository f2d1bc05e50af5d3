/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package host is the proof orchestrator that runs inside the enclave.
//
// The host listens for relay connections on the main channel and serves proof generation frames.
// It opens the util channel towards the relay itself, to fetch its private keys, to resolve keyset
// endpoints and to forward its log lines. Every descriptor it opens is tracked by a channel.Registry
// and force-closed on shutdown.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/enclave/channel"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/backends"
)

const loggerModule = "zkpass/host"

var logger = log.New(loggerModule)

// State of the host.
type State int32

// Host states.
const (
	AwaitingConnection State = iota
	Serving
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingConnection:
		return "awaiting-connection"
	case Serving:
		return "serving"
	case ShuttingDown:
		return "shutting-down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures a Host.
type Option func(h *Host)

// WithUtilTransport sets the transport the util channel is dialed through. Without it the host
// cannot fetch keys and only serves with installed keys and inline verifying keys.
func WithUtilTransport(t channel.Transport) Option {
	return func(h *Host) {
		h.utilTransport = t
	}
}

// WithChannelOptions sets the options of every channel connection.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(h *Host) {
		h.channelOpts = append(h.channelOpts, opts...)
	}
}

// WithBackends sets the zkvm registry proofs are made with.
func WithBackends(r *zkvm.Registry) Option {
	return func(h *Host) {
		h.backends = r
	}
}

// WithDefaultBackend sets the backend used for DVRs that name none.
func WithDefaultBackend(name string) Option {
	return func(h *Host) {
		h.defaultBackend = name
	}
}

// WithKeyStore sets the key store.
func WithKeyStore(ks *KeyStore) Option {
	return func(h *Host) {
		h.keys = ks
	}
}

// WithLocalSecret sets the secret of NATIVE protected keys.
func WithLocalSecret(secret string) Option {
	return func(h *Host) {
		h.localSecret = secret
	}
}

// WithKMSTool sets the path of the enclave KMS helper.
func WithKMSTool(path string) Option {
	return func(h *Host) {
		h.kmsTool = path
	}
}

// WithHeartbeat sets how often the util channel is pinged and how long a reply may take.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(h *Host) {
		h.heartbeatInterval = interval
		h.heartbeatTimeout = timeout
	}
}

// WithWorkers sets the number of proving workers.
func WithWorkers(n int) Option {
	return func(h *Host) {
		h.pool = NewWorkerPool(n)
	}
}

// WithLogRelay forwards log lines over the util channel once it is connected.
func WithLogRelay(l *LogRelay) Option {
	return func(h *Host) {
		h.logRelay = l
	}
}

// WithProofTTL makes proof tokens expire after ttl.
func WithProofTTL(ttl time.Duration) Option {
	return func(h *Host) {
		h.proofTTL = ttl
	}
}

// WithClock replaces the clock used for proof time stamps and token validation.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		h.now = now
	}
}

// Host is the proof orchestrator.
type Host struct {
	transport     channel.Transport
	utilTransport channel.Transport
	channelOpts   []channel.Option
	registry      *channel.Registry

	backends       *zkvm.Registry
	defaultBackend string
	pool           *WorkerPool

	keys        *KeyStore
	keysMu      sync.Mutex
	localSecret string
	kmsTool     string

	relay             *Relay
	logRelay          *LogRelay
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	proofTTL time.Duration
	now      func() time.Time
	state    atomic.Int32
	ready    chan struct{}
	addr     atomic.Value
}

// New creates a host serving relay connections accepted through transport.
func New(transport channel.Transport, opts ...Option) *Host {
	h := &Host{
		transport:         transport,
		registry:          channel.NewRegistry(),
		defaultBackend:    backends.Default,
		pool:              NewWorkerPool(1),
		keys:              NewKeyStore(),
		kmsTool:           DefaultKMSTool,
		heartbeatInterval: DefaultHeartbeatInterval,
		heartbeatTimeout:  DefaultHeartbeatTimeout,
		now:               time.Now,
		ready:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.backends == nil {
		h.backends = backends.NewRegistry()
	}

	return h
}

// State returns the current state.
func (h *Host) State() State {
	return State(h.state.Load())
}

// Keys returns the key store.
func (h *Host) Keys() *KeyStore {
	return h.keys
}

// Registry returns the descriptor registry.
func (h *Host) Registry() *channel.Registry {
	return h.registry
}

// Ready is closed once the host listens for relay connections.
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Addr returns the listening address once Ready is closed.
func (h *Host) Addr() string {
	addr, _ := h.addr.Load().(string) //nolint:errcheck

	return addr
}

// Run connects the util channel, loads the keys and serves relay connections until ctx is done. On
// return every registered descriptor is closed.
func (h *Host) Run(ctx context.Context) error {
	h.state.Store(int32(AwaitingConnection))
	defer h.state.Store(int32(Terminated))

	defer func() {
		if err := h.registry.CloseAll(); err != nil {
			logger.Debugf("closing descriptors: %v", err)
		}
	}()

	if err := h.connectUtil(ctx); err != nil {
		return err
	}

	l, err := h.transport.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen through %s: %w", h.transport.Name(), err)
	}

	h.registry.Register(l)
	h.addr.Store(l.Addr())
	close(h.ready)

	logger.Infof("listening on %s", l.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.pool.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		h.state.Store(int32(ShuttingDown))
		logger.Infof("shutting down, closing %d descriptors", h.registry.Len())

		return h.registry.CloseAll()
	})

	if h.relay != nil {
		g.Go(func() error {
			h.relay.Heartbeat(gctx, h.heartbeatInterval, h.heartbeatTimeout)

			return nil
		})
	}

	if h.logRelay != nil {
		g.Go(func() error {
			h.logRelay.Run(gctx)

			return nil
		})
	}

	g.Go(func() error {
		return h.accept(gctx, g, l)
	})

	err = g.Wait()

	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (h *Host) connectUtil(ctx context.Context) error {
	if h.utilTransport == nil {
		return nil
	}

	conn, err := channel.Dial(ctx, h.utilTransport, h.registry, h.channelOpts...)
	if err != nil {
		return fmt.Errorf("connect util channel: %w", err)
	}

	h.relay = NewRelay(conn)

	if h.logRelay != nil {
		h.logRelay.Attach(h.relay)
	}

	if err := h.ensureKeys(ctx); err != nil {
		logger.Warnf("private keys not loaded at startup, retrying on the first request: %v", err)
	}

	return nil
}

func (h *Host) accept(ctx context.Context, g *errgroup.Group, l channel.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}

		c := channel.NewConnection(conn, h.registry, h.channelOpts...)

		h.state.CompareAndSwap(int32(AwaitingConnection), int32(Serving))
		logger.Infof("accepted relay connection %d", c.ID())

		g.Go(func() error {
			h.serve(ctx, c)

			return nil
		})
	}
}

// serve handles the frames of one connection in arrival order.
func (h *Host) serve(ctx context.Context, c *channel.Connection) {
	defer func() {
		if err := c.Close(); err != nil {
			logger.Debugf("closing connection %d: %v", c.ID(), err)
		}
	}()

	for ctx.Err() == nil {
		raw, err := c.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, channel.ErrDisconnected), errors.Is(err, channel.ErrClosed):
				logger.Infof("relay connection %d ended: %v", c.ID(), err)
			default:
				logger.Errorf("relay connection %d failed: %v", c.ID(), err)
			}

			return
		}

		reply := h.Dispatch(ctx, raw)

		if ctx.Err() != nil {
			logger.Infof("dropping reply on connection %d after shutdown", c.ID())

			return
		}

		if err := c.Send(ctx, reply); err != nil {
			logger.Errorf("reply on connection %d: %v", c.ID(), err)

			return
		}
	}
}

// Dispatch serves one frame payload and returns the reply payload.
func (h *Host) Dispatch(ctx context.Context, raw string) string {
	msg := channel.ParseMessage(raw)
	requestID := uuid.NewString()

	logger.Infof("[%s] operation received: %s", requestID, msg.Operation)

	switch msg.Operation {
	case channel.OpPing:
		return channel.Pong
	case channel.OpGenerateProof:
		start := h.now()

		token, err := h.GenerateProof(ctx, requestID, msg.Payload)
		if err != nil {
			logger.Errorf("[%s] generate proof: %v", requestID, err)

			return channel.ErrorReply(ErrorCode(err), err.Error())
		}

		logger.Infof("[%s] proof sent after %s", requestID, h.now().Sub(start))

		return token
	default:
		return channel.ErrorReply(CodeUnsupportedOperation, ErrUnsupportedOperation.Error())
	}
}

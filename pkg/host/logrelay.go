/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/enclave/channel"
)

// DefaultLogRelayBuffer is the number of lines a LogRelay queues before dropping.
const DefaultLogRelayBuffer = 256

const logTimeFormat = "2006-01-02T15:04:05.000000Z"

// LogRelay is a log.LoggerProvider that forwards every line to the relay over the util channel,
// besides writing it through a local provider. Lines are queued and sent by Run; when the queue is
// full they are dropped. Lines of the channel module stay local so that relay failures cannot feed
// back into the relay.
type LogRelay struct {
	local log.LoggerProvider
	lines chan string
	now   func() time.Time

	mu    sync.RWMutex
	relay *Relay

	dropped atomic.Int64
}

// NewLogRelay creates a relay provider writing locally through local.
func NewLogRelay(local log.LoggerProvider, buffer int) *LogRelay {
	if buffer <= 0 {
		buffer = DefaultLogRelayBuffer
	}

	return &LogRelay{local: local, lines: make(chan string, buffer), now: time.Now}
}

// Attach sets the util channel lines are sent to. Run discards lines while none is attached.
func (l *LogRelay) Attach(r *Relay) {
	l.mu.Lock()
	l.relay = r
	l.mu.Unlock()
}

// Dropped returns the number of lines that did not fit in the queue.
func (l *LogRelay) Dropped() int64 {
	return l.dropped.Load()
}

// GetLogger returns a logger for module.
func (l *LogRelay) GetLogger(module string) log.Logger {
	return &relayLogger{module: module, local: l.local.GetLogger(module), relay: l}
}

// Run sends queued lines until ctx is done.
func (l *LogRelay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-l.lines:
			l.mu.RLock()
			r := l.relay
			l.mu.RUnlock()

			if r == nil {
				continue
			}

			if err := r.PrintLog(ctx, line); err != nil {
				l.local.GetLogger(loggerModule).Debugf("log line not relayed: %v", err)
			}
		}
	}
}

func (l *LogRelay) enqueue(level, module, msg string) {
	if module == channel.LogModule {
		return
	}

	line := fmt.Sprintf("%s %s %s: %s\n", l.now().UTC().Format(logTimeFormat), level, module, msg)

	select {
	case l.lines <- line:
	default:
		l.dropped.Add(1)
	}
}

type relayLogger struct {
	module string
	local  log.Logger
	relay  *LogRelay
}

func (r *relayLogger) Panicf(msg string, args ...interface{}) {
	r.relay.enqueue("PANIC", r.module, fmt.Sprintf(msg, args...))
	r.local.Panicf(msg, args...)
}

func (r *relayLogger) Fatalf(msg string, args ...interface{}) {
	r.relay.enqueue("FATAL", r.module, fmt.Sprintf(msg, args...))
	r.local.Fatalf(msg, args...)
}

func (r *relayLogger) Errorf(msg string, args ...interface{}) {
	r.local.Errorf(msg, args...)
	r.relay.enqueue("ERROR", r.module, fmt.Sprintf(msg, args...))
}

func (r *relayLogger) Warnf(msg string, args ...interface{}) {
	r.local.Warnf(msg, args...)
	r.relay.enqueue("WARN", r.module, fmt.Sprintf(msg, args...))
}

func (r *relayLogger) Infof(msg string, args ...interface{}) {
	r.local.Infof(msg, args...)
	r.relay.enqueue("INFO", r.module, fmt.Sprintf(msg, args...))
}

func (r *relayLogger) Debugf(msg string, args ...interface{}) {
	r.local.Debugf(msg, args...)
	r.relay.enqueue("DEBUG", r.module, fmt.Sprintf(msg, args...))
}

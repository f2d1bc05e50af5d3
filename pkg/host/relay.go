/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/enclave/channel"
)

// ErrEmptyParameter is returned when the relay answers a request with an empty payload.
var ErrEmptyParameter = errors.New("empty parameter")

// Heartbeat defaults of the util channel.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 5 * time.Second
)

// Relay is the host's side of the util channel: the connection the host opens towards the relay
// to fetch keys and forward log lines.
type Relay struct {
	conn *channel.Connection
}

// NewRelay wraps an established util connection.
func NewRelay(conn *channel.Connection) *Relay {
	return &Relay{conn: conn}
}

// FetchPrivateKeys asks the relay for the host's protected key pairs.
func (r *Relay) FetchPrivateKeys(ctx context.Context) (HostKeyPairs, error) {
	logger.Infof("requesting private keys")

	var pairs HostKeyPairs

	if err := r.request(ctx, channel.OpFetchingPrivateKeys, "", &pairs); err != nil {
		return HostKeyPairs{}, fmt.Errorf("fetch private keys: %w", err)
	}

	return pairs, nil
}

// FetchVerificationKeys asks the relay to resolve the keyset endpoints in opt.
func (r *Relay) FetchVerificationKeys(ctx context.Context,
	opt zkpass.VerificationPublicKeyOption) (zkpass.VerificationPublicKeys, error) {
	body, err := json.Marshal(opt)
	if err != nil {
		return zkpass.VerificationPublicKeys{}, fmt.Errorf("marshal key options: %w", err)
	}

	logger.Infof("requesting verification keys")

	var keys zkpass.VerificationPublicKeys

	if err := r.request(ctx, channel.OpFetchingKeys, string(body), &keys); err != nil {
		return zkpass.VerificationPublicKeys{}, fmt.Errorf("fetch verification keys: %w", err)
	}

	return keys, nil
}

func (r *Relay) request(ctx context.Context, op channel.Operation, data string, v interface{}) error {
	reply, err := r.conn.Request(ctx, op, data)
	if err != nil {
		return err
	}

	if reply == "" || reply == `""` {
		return ErrEmptyParameter
	}

	if err := json.Unmarshal([]byte(reply), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}

	return nil
}

// PrintLog forwards one log line. The relay does not answer these frames.
func (r *Relay) PrintLog(ctx context.Context, line string) error {
	return r.conn.Send(ctx, channel.Message{Operation: channel.OpPrintingLogs, Payload: line}.String())
}

// Heartbeat pings the relay every interval. A missing or wrong reply within timeout marks the
// channel dead and reconnects it. It returns when ctx is done.
func (r *Relay) Heartbeat(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := r.conn.Ping(ctx, timeout)
		if err == nil || ctx.Err() != nil {
			continue
		}

		if errors.Is(err, channel.ErrClosed) {
			return
		}

		logger.Warnf("util channel heartbeat failed, reconnecting: %v", err)

		if err := r.conn.Reconnect(ctx); err != nil {
			logger.Errorf("util channel reconnection failed: %v", err)
		}
	}
}

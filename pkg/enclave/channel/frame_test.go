/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type chunkRecorder struct {
	bytes.Buffer
	sizes []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.sizes = append(c.sizes, len(p))

	return c.Buffer.Write(p)
}

func TestFrame(t *testing.T) {
	t.Run("round trip across chunks", func(t *testing.T) {
		payload := strings.Repeat("zkpass", 50)

		var w chunkRecorder

		n, err := WriteFrame(&w, []byte(payload), 16)
		require.NoError(t, err)
		require.Equal(t, headerLength+len(payload), n)

		for _, size := range w.sizes {
			require.LessOrEqual(t, size, 16)
		}

		got, err := NewFrameReader(&w, 16, 0, 0).ReadFrame()
		require.NoError(t, err)
		require.Equal(t, payload, string(got))
	})

	t.Run("header layout", func(t *testing.T) {
		var buf bytes.Buffer

		_, err := WriteFrame(&buf, []byte("PING"), 0)
		require.NoError(t, err)
		require.Equal(t, []byte{0x01, 0, 0, 0, 4, 0x02, 'P', 'I', 'N', 'G'}, buf.Bytes())
	})

	t.Run("empty payload", func(t *testing.T) {
		var buf bytes.Buffer

		_, err := WriteFrame(&buf, nil, 0)
		require.NoError(t, err)

		got, err := NewFrameReader(&buf, 0, 0, 0).ReadFrame()
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("consecutive frames", func(t *testing.T) {
		var buf bytes.Buffer

		for _, p := range []string{"first", "second"} {
			_, err := WriteFrame(&buf, []byte(p), 0)
			require.NoError(t, err)
		}

		r := NewFrameReader(&buf, 0, 0, 0)

		got, err := r.ReadFrame()
		require.NoError(t, err)
		require.Equal(t, "first", string(got))

		got, err = r.ReadFrame()
		require.NoError(t, err)
		require.Equal(t, "second", string(got))

		_, err = r.ReadFrame()
		require.ErrorIs(t, err, ErrDisconnected)
	})

	t.Run("leading noise is skipped", func(t *testing.T) {
		buf := bytes.NewBufferString("noise")

		_, err := WriteFrame(buf, []byte("data"), 0)
		require.NoError(t, err)

		got, err := NewFrameReader(buf, 0, 0, 0).ReadFrame()
		require.NoError(t, err)
		require.Equal(t, "data", string(got))
	})

	t.Run("noise beyond the scan limit", func(t *testing.T) {
		buf := bytes.NewBufferString(strings.Repeat("x", 64))

		_, err := WriteFrame(buf, []byte("data"), 0)
		require.NoError(t, err)

		_, err = NewFrameReader(buf, 0, 32, 0).ReadFrame()
		require.ErrorIs(t, err, ErrFrameTooLarge)
		require.Contains(t, err.Error(), "out of sync")
	})

	t.Run("declared length above the limit", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0x01, 0xff, 0xff, 0xff, 0xff, 0x02})

		_, err := NewFrameReader(buf, 0, 0, 1024).ReadFrame()
		require.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("truncated payload", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0x01, 0, 0, 0, 10, 0x02, 'a', 'b'})

		_, err := NewFrameReader(buf, 0, 0, 0).ReadFrame()
		require.ErrorIs(t, err, ErrDisconnected)
	})
}

func TestMessage(t *testing.T) {
	m := ParseMessage("request_generate_proof|{\"a\":\"b|c\"}")
	require.Equal(t, OpGenerateProof, m.Operation)
	require.Equal(t, `{"a":"b|c"}`, m.Payload)
	require.Equal(t, "request_generate_proof|{\"a\":\"b|c\"}", m.String())

	m = ParseMessage("PONG")
	require.Equal(t, Operation("PONG"), m.Operation)
	require.Empty(t, m.Payload)

	reply := ErrorReply("E2001", "bad request")
	require.Equal(t, "error|E2001: bad request", reply)
	require.True(t, IsErrorReply(reply))
	require.False(t, IsErrorReply(`{"error_count":0}`))
}

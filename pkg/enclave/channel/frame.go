/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: SOH | uint32 big-endian payload length | STX | payload.
const (
	StartHeader byte = 0x01
	EndHeader   byte = 0x02

	headerLength = 6
)

// Frame limits.
const (
	DefaultBufferSize   = 8192
	DefaultMaxScan      = 1024
	DefaultMaxFrameSize = 64 << 20
)

// WriteFrame writes one frame in chunks of at most bufSize bytes and returns how many bytes of the
// frame w accepted.
func WriteFrame(w io.Writer, payload []byte, bufSize int) (int, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	if uint64(len(payload)) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, headerLength+len(payload))
	frame[0] = StartHeader
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	frame[5] = EndHeader
	copy(frame[headerLength:], payload)

	written := 0

	for written < len(frame) {
		end := written + bufSize
		if end > len(frame) {
			end = len(frame)
		}

		n, err := w.Write(frame[written:end])
		written += n

		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// FrameReader reads frames from a byte stream.
type FrameReader struct {
	r            *bufio.Reader
	maxScan      int
	maxFrameSize int
	bufSize      int
}

// NewFrameReader wraps r. Zero limits select the defaults.
func NewFrameReader(r io.Reader, bufSize, maxScan, maxFrameSize int) *FrameReader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	if maxScan <= 0 {
		maxScan = DefaultMaxScan
	}

	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &FrameReader{
		r:            bufio.NewReaderSize(r, bufSize),
		maxScan:      maxScan,
		maxFrameSize: maxFrameSize,
		bufSize:      bufSize,
	}
}

// ReadFrame returns the next payload. Bytes before a start marker are skipped, up to the scan limit.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	if err := f.scan(StartHeader); err != nil {
		return nil, err
	}

	var length [4]byte

	if _, err := io.ReadFull(f.r, length[:]); err != nil {
		return nil, disconnected(err)
	}

	if err := f.scan(EndHeader); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(length[:])
	if uint64(size) > uint64(f.maxFrameSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, size, f.maxFrameSize)
	}

	payload := make([]byte, 0, min(int(size), f.bufSize))

	for remaining := int(size); remaining > 0; {
		chunk := make([]byte, min(remaining, f.bufSize))

		n, err := io.ReadFull(f.r, chunk)
		payload = append(payload, chunk[:n]...)
		remaining -= n

		if err != nil {
			return nil, disconnected(err)
		}
	}

	return payload, nil
}

func (f *FrameReader) scan(marker byte) error {
	for checked := 0; ; checked++ {
		if checked > f.maxScan {
			return fmt.Errorf("%w: stream out of sync, no marker 0x%02x within %d bytes", ErrFrameTooLarge,
				marker, f.maxScan)
		}

		b, err := f.r.ReadByte()
		if err != nil {
			return disconnected(err)
		}

		if b == marker {
			return nil
		}
	}
}

func disconnected(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	return err
}

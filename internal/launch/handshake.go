// Package launch starts the profiled command so that counters can be attached
// to its process id before it runs, and so that the measured interval starts
// when the command is released rather than when the process was created.
//
// The parent re-executes its own binary as a small pre-exec stub. The stub
// waits for a one byte "go" message, reports the time it was released as a
// 16 byte "start-time" message, and then execs the command in place, keeping
// its process id. Both sides measure time against the same CLOCK_MONOTONIC
// origin, T0, which the parent passes to the stub explicitly.
package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrProtocol indicates the handshake between parent and stub did not follow
// the protocol. A run that hits it cannot trust its own timing.
var ErrProtocol = errors.New("launch protocol violation")

// errCancelled means the parent closed the go pipe without writing anything,
// which is how it abandons a launch.
var errCancelled = errors.New("launch cancelled before release")

const (
	goMessageSize        = 1
	startTimeMessageSize = 16
	goMessage            = byte(1)
)

// sendGo writes the single byte that releases the stub.
func sendGo(w io.Writer) error {
	n, err := w.Write([]byte{goMessage})
	if err != nil {
		return fmt.Errorf("%w: failed to send go: %v", ErrProtocol, err)
	}
	if n != goMessageSize {
		return fmt.Errorf("%w: wrote %d bytes of go message, expected %d", ErrProtocol, n, goMessageSize)
	}
	return nil
}

// awaitGo blocks until the go byte arrives. End of file before any byte means
// the parent closed the pipe without releasing us and yields errCancelled.
func awaitGo(r io.Reader) error {
	buf := make([]byte, goMessageSize)
	n, err := r.Read(buf)
	if n != goMessageSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: failed to receive go: %v", ErrProtocol, err)
		}
		if n == 0 {
			return errCancelled
		}
		return fmt.Errorf("%w: received %d bytes of go message, expected %d", ErrProtocol, n, goMessageSize)
	}
	return nil
}

// encodeStartTime packs nanoseconds since T0 into the 16 byte message: a
// little-endian uint64 followed by eight zero bytes.
func encodeStartTime(elapsed time.Duration) []byte {
	buf := make([]byte, startTimeMessageSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(elapsed.Nanoseconds()))
	return buf
}

func decodeStartTime(buf []byte) (time.Duration, error) {
	if len(buf) != startTimeMessageSize {
		return 0, fmt.Errorf("%w: start time message is %d bytes, expected %d", ErrProtocol, len(buf), startTimeMessageSize)
	}
	if binary.LittleEndian.Uint64(buf[8:16]) != 0 {
		return 0, fmt.Errorf("%w: start time out of range", ErrProtocol)
	}
	ns := binary.LittleEndian.Uint64(buf[0:8])
	if ns > uint64(1<<63-1) {
		return 0, fmt.Errorf("%w: start time out of range", ErrProtocol)
	}
	return time.Duration(ns), nil
}

// sendStartTime writes the start-time message.
func sendStartTime(w io.Writer, elapsed time.Duration) error {
	n, err := w.Write(encodeStartTime(elapsed))
	if err != nil {
		return fmt.Errorf("%w: failed to send start time: %v", ErrProtocol, err)
	}
	if n != startTimeMessageSize {
		return fmt.Errorf("%w: wrote %d bytes of start time, expected %d", ErrProtocol, n, startTimeMessageSize)
	}
	return nil
}

// receiveStartTime reads exactly one start-time message and then requires end
// of file; the stub closes its end before exec.
func receiveStartTime(r io.Reader) (time.Duration, error) {
	buf := make([]byte, startTimeMessageSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: received %d bytes of start time, expected %d", ErrProtocol, n, startTimeMessageSize)
	}
	extra := make([]byte, 1)
	if n, err := r.Read(extra); n != 0 || !errors.Is(err, io.EOF) {
		if n == 0 && err != nil {
			return 0, fmt.Errorf("%w: failed to confirm end of start time: %v", ErrProtocol, err)
		}
		return 0, fmt.Errorf("%w: received more than %d bytes of start time", ErrProtocol, startTimeMessageSize)
	}
	return decodeStartTime(buf)
}

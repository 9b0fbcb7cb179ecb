package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortWriter accepts at most limit bytes per write without reporting an error.
type shortWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("input/output error")
}

func TestGoMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sendGo(&buf))
	assert.Equal(t, []byte{goMessage}, buf.Bytes())
	require.NoError(t, awaitGo(&buf))
}

func TestGoMessageTruncated(t *testing.T) {
	err := sendGo(&shortWriter{limit: 0})
	assert.ErrorIs(t, err, ErrProtocol)

	err = sendGo(failingWriter{})
	assert.ErrorIs(t, err, ErrProtocol)

	err = awaitGo(failingReader{})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestGoPipeClosedWithoutMessage(t *testing.T) {
	// the parent abandons a launch by closing the pipe
	err := awaitGo(bytes.NewReader(nil))
	assert.ErrorIs(t, err, errCancelled)
	assert.NotErrorIs(t, err, ErrProtocol)
}

func TestStartTimeRoundTrip(t *testing.T) {
	tests := []time.Duration{0, 1, 1500 * time.Microsecond, 72 * time.Hour}
	for _, elapsed := range tests {
		t.Run(elapsed.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, sendStartTime(&buf, elapsed))
			assert.Equal(t, startTimeMessageSize, buf.Len())
			got, err := receiveStartTime(&buf)
			require.NoError(t, err)
			assert.Equal(t, elapsed, got)
		})
	}
}

func TestStartTimeEncoding(t *testing.T) {
	buf := encodeStartTime(0x0102030405060708)
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0}, buf)
}

func TestStartTimeWrongLength(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", make([]byte, 8)},
		{"one short", make([]byte, 15)},
		{"one long", make([]byte, 17)},
		{"double", make([]byte, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := receiveStartTime(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestSendStartTimeTruncated(t *testing.T) {
	w := &shortWriter{limit: 8}
	err := sendStartTime(w, time.Second)
	assert.ErrorIs(t, err, ErrProtocol)
	_, err = receiveStartTime(&w.buf)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeStartTimeOutOfRange(t *testing.T) {
	buf := make([]byte, startTimeMessageSize)
	buf[12] = 1
	_, err := decodeStartTime(buf)
	assert.ErrorIs(t, err, ErrProtocol)

	buf = make([]byte, startTimeMessageSize)
	buf[7] = 0x80
	_, err = decodeStartTime(buf)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestStubArgs(t *testing.T) {
	args := stubArgs(12345, []string{"ls", "-l", "--", "x"})
	assert.Equal(t, []string{StubArg, "12345", "--", "ls", "-l", "--", "x"}, args)
	origin, command, err := parseStubArgs(args)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(12345), origin)
	assert.Equal(t, []string{"ls", "-l", "--", "x"}, command)

	for _, bad := range [][]string{
		{StubArg},
		{StubArg, "1", "--"},
		{StubArg, "x", "--", "ls"},
		{StubArg, "1", "ls", "ls"},
		{"other", "1", "--", "ls"},
	} {
		_, _, err := parseStubArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonotonicClock(t *testing.T) {
	origin, err := monotonicNow()
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	elapsed, err := sinceOrigin(origin)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, time.Millisecond)
}

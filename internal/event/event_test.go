package event

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		identifier string
		expected   Kind
	}{
		{"cycles", Cycles},
		{"instructions", Instructions},
		{"task-clock", TaskClock},
		{"context-switches", ContextSwitches},
		{"L1D-cache-reads", L1DCacheRead},
		{"L1D-cache-writes", L1DCacheWrite},
		{"L1D-cache-read-misses", L1DCacheReadMiss},
		{"L1I-cache-read-misses", L1ICacheReadMiss},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			kind, err := Parse(tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, identifier := range []string{"not-a-real-event", "", "Cycles", "l1d-cache-reads", "task clock", "context switches", " cycles"} {
		t.Run(identifier, func(t *testing.T) {
			_, err := Parse(identifier)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEvent))
		})
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	for _, kind := range Defaults() {
		if kind == TaskClock || kind == ContextSwitches {
			continue
		}
		parsed, err := Parse(kind.String())
		require.NoError(t, err, kind.String())
		assert.Equal(t, kind, parsed)
	}
}

func TestIdentifierRoundTrip(t *testing.T) {
	for _, kind := range Defaults() {
		parsed, err := Parse(kind.Identifier())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
}

func TestTaskClockAsymmetry(t *testing.T) {
	assert.Equal(t, "task-clock", TaskClock.Identifier())
	assert.Equal(t, "task clock", TaskClock.String())
	_, err := Parse(TaskClock.String())
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDefaults(t *testing.T) {
	expected := []Kind{Cycles, Instructions, TaskClock, ContextSwitches, L1DCacheRead, L1DCacheWrite, L1DCacheReadMiss, L1ICacheReadMiss}
	assert.Equal(t, expected, Defaults())
	// each call returns an independent slice
	d := Defaults()
	d[0] = L1ICacheReadMiss
	assert.Equal(t, Cycles, Defaults()[0])
}

func TestResolve(t *testing.T) {
	t.Run("empty uses defaults", func(t *testing.T) {
		var requested []Kind
		resolved := Resolve(requested)
		assert.Equal(t, Defaults(), resolved)
		assert.Empty(t, requested)
	})
	t.Run("order and duplicates preserved", func(t *testing.T) {
		requested := []Kind{L1DCacheWrite, Cycles, Cycles}
		resolved := Resolve(requested)
		assert.Equal(t, []Kind{L1DCacheWrite, Cycles, Cycles}, resolved)
		resolved[0] = Instructions
		assert.Equal(t, L1DCacheWrite, requested[0])
	})
}

func TestParseList(t *testing.T) {
	kinds, err := ParseList([]string{"cycles", "cycles", "task-clock"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{Cycles, Cycles, TaskClock}, kinds)

	_, err = ParseList([]string{"cycles", "bogus"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestKernelMode(t *testing.T) {
	for _, kind := range Defaults() {
		assert.Equal(t, kind == ContextSwitches, kind.KernelMode(), kind.String())
	}
}

func TestInvalidKind(t *testing.T) {
	k := Kind(42)
	assert.False(t, k.Valid())
	assert.Equal(t, "Kind(42)", k.String())
	assert.Equal(t, "", k.Identifier())
}

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withNMIWatchdog(t *testing.T, content string) {
	path := filepath.Join(t.TempDir(), "nmi_watchdog")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	saved := nmiWatchdogPath
	nmiWatchdogPath = path
	t.Cleanup(func() { nmiWatchdogPath = saved })
}

func TestNMIWatchdogEnabled(t *testing.T) {
	withNMIWatchdog(t, "1\n")
	enabled, err := NMIWatchdogEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	withNMIWatchdog(t, "0\n")
	enabled, err = NMIWatchdogEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	withNMIWatchdog(t, "")
	_, err = NMIWatchdogEnabled()
	assert.Error(t, err)
}

func TestMultiplexingHint(t *testing.T) {
	withNMIWatchdog(t, "1\n")
	assert.Equal(t, "", MultiplexingHint([]float64{1, 1}))
	assert.Equal(t, "", MultiplexingHint(nil))
	assert.Contains(t, MultiplexingHint([]float64{1, 0.5}), "nmi_watchdog=0")

	withNMIWatchdog(t, "0\n")
	assert.Contains(t, MultiplexingHint([]float64{0}), "count fewer events")

	withNMIWatchdog(t, "")
	assert.Contains(t, MultiplexingHint([]float64{0.75}), "count fewer events")
}

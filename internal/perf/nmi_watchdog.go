package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// the NMI (non-maskable interrupt) watchdog keeps one general purpose counter
// busy, so fewer hardware events fit on the PMU at once

import (
	"log/slog"
)

var nmiWatchdogPath = "/proc/sys/kernel/nmi_watchdog"

// NMIWatchdogEnabled reads the kernel.nmi_watchdog value. If it is 1, returns true.
func NMIWatchdogEnabled() (enabled bool, err error) {
	var setting int
	if setting, err = readSysctl(nmiWatchdogPath); err != nil {
		return
	}
	enabled = setting == 1
	return
}

// MultiplexingHint explains counters that were not scheduled for the whole run,
// or returns an empty string when every coverage is 1.
func MultiplexingHint(coverages []float64) string {
	multiplexed := false
	for _, coverage := range coverages {
		if coverage < 1 {
			multiplexed = true
			break
		}
	}
	if !multiplexed {
		return ""
	}
	enabled, err := NMIWatchdogEnabled()
	if err != nil {
		slog.Debug("failed to read NMI watchdog setting", slog.String("error", err.Error()))
	}
	if enabled {
		return "some counters shared the PMU and did not count for the whole run; the NMI watchdog is using a counter, 'sysctl kernel.nmi_watchdog=0' frees it"
	}
	return "some counters shared the PMU and did not count for the whole run; count fewer events to measure each for the whole run"
}

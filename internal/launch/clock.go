package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// monotonicNow reads CLOCK_MONOTONIC. Its origin is fixed for the host, so
// values read in different processes can be compared.
func monotonicNow() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("failed to read monotonic clock: %w", err)
	}
	return time.Duration(ts.Nano()), nil
}

// sinceOrigin returns the time elapsed since origin on the monotonic clock.
func sinceOrigin(origin time.Duration) (time.Duration, error) {
	now, err := monotonicNow()
	if err != nil {
		return 0, err
	}
	return now - origin, nil
}

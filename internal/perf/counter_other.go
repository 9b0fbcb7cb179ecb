//go:build !linux

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"runtime"

	"perfstat/internal/event"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned by Open on platforms without perf_event_open.
var ErrUnsupported = errors.New("performance counters are only supported on Linux")

// Open always fails on this platform.
func Open(kind event.Kind, pid int) (*Counter, error) {
	return nil, errors.Wrap(ErrUnsupported, fmt.Sprintf("%s counter for pid %d on %s", kind, pid, runtime.GOOS))
}

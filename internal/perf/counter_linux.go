//go:build linux

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"perfstat/internal/event"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// value, time_enabled, time_running
const readSize = 3 * 8

type perfEvent struct {
	fd int
}

func cacheConfig(cache, op, result uint64) uint64 {
	return cache | op<<8 | result<<16
}

// eventAttr returns the perf_event_attr for kind. Counters start disabled and
// are inherited by the children of the profiled process.
func eventAttr(kind event.Kind) (*unix.PerfEventAttr, error) {
	attr := &unix.PerfEventAttr{
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Read_format: unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_TOTAL_TIME_RUNNING,
		Bits:        unix.PerfBitDisabled | unix.PerfBitInherit | unix.PerfBitExcludeHv,
	}
	if !kind.KernelMode() {
		attr.Bits |= unix.PerfBitExcludeKernel
	}
	switch kind {
	case event.Cycles:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_CPU_CYCLES
	case event.Instructions:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_INSTRUCTIONS
	case event.TaskClock:
		attr.Type = unix.PERF_TYPE_SOFTWARE
		attr.Config = unix.PERF_COUNT_SW_TASK_CLOCK
	case event.ContextSwitches:
		attr.Type = unix.PERF_TYPE_SOFTWARE
		attr.Config = unix.PERF_COUNT_SW_CONTEXT_SWITCHES
	case event.L1DCacheRead:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)
	case event.L1DCacheWrite:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_WRITE, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)
	case event.L1DCacheReadMiss:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)
	case event.L1ICacheReadMiss:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_L1I, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)
	default:
		return nil, fmt.Errorf("no perf event configuration for %s", kind)
	}
	return attr, nil
}

// Open asks the kernel to count kind for pid on any CPU. The process does not
// need to have exec'd the command yet. A denied request is returned as is,
// annotated with the host's paranoid setting; it is never retried with a
// reduced configuration.
func Open(kind event.Kind, pid int) (*Counter, error) {
	attr, err := eventAttr(kind)
	if err != nil {
		return nil, err
	}
	fd, err := unix.PerfEventOpen(attr, pid, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		if hint := permissionHint(err, kind); hint != "" {
			return nil, errors.Wrapf(err, "failed to open %s counter for pid %d (%s)", kind, pid, hint)
		}
		return nil, errors.Wrapf(err, "failed to open %s counter for pid %d", kind, pid)
	}
	return NewCounter(kind, pid, &perfEvent{fd: fd}), nil
}

func (p *perfEvent) Enable() error {
	return errors.Wrap(unix.IoctlSetInt(p.fd, unix.PERF_EVENT_IOC_ENABLE, 0), "ioctl PERF_EVENT_IOC_ENABLE")
}

func (p *perfEvent) Disable() error {
	return errors.Wrap(unix.IoctlSetInt(p.fd, unix.PERF_EVENT_IOC_DISABLE, 0), "ioctl PERF_EVENT_IOC_DISABLE")
}

func (p *perfEvent) Read() (Reading, error) {
	buf := make([]byte, readSize)
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		return Reading{}, errors.Wrap(err, "read")
	}
	if n != readSize {
		return Reading{}, fmt.Errorf("wrong byte count %d reading counter, expected %d", n, readSize)
	}
	return Reading{
		Value:   binary.NativeEndian.Uint64(buf[0:8]),
		Enabled: binary.NativeEndian.Uint64(buf[8:16]),
		Running: binary.NativeEndian.Uint64(buf[16:24]),
	}, nil
}

func (p *perfEvent) Close() error {
	return unix.Close(p.fd)
}

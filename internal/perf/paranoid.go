package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// helpers for explaining perf_event_open permission failures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"perfstat/internal/event"

	"github.com/pkg/errors"
)

var paranoidPath = "/proc/sys/kernel/perf_event_paranoid"

const (
	// highest kernel.perf_event_paranoid value that allows an unprivileged user
	// to count user space events of their own processes
	paranoidMaxUser = 2
	// ... and kernel mode events
	paranoidMaxKernel = 1
)

// ParanoidSetting reads the kernel.perf_event_paranoid value. It is only read,
// perfstat never changes it.
func ParanoidSetting() (int, error) {
	return readSysctl(paranoidPath)
}

// readSysctl reads an integer kernel setting from /proc/sys.
func readSysctl(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", filepath.Base(path))
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected %s content %q", filepath.Base(path), strings.TrimSpace(string(content)))
	}
	return value, nil
}

// RequiredParanoid returns the highest paranoid setting that still allows an
// unprivileged user to open kind.
func RequiredParanoid(kind event.Kind) int {
	if kind.KernelMode() {
		return paranoidMaxKernel
	}
	return paranoidMaxUser
}

// permissionHint describes why the kernel may have denied the request, or
// returns an empty string when err is not a permission error.
func permissionHint(err error, kind event.Kind) string {
	if !errors.Is(err, syscall.EACCES) && !errors.Is(err, syscall.EPERM) {
		return ""
	}
	required := RequiredParanoid(kind)
	setting, readErr := ParanoidSetting()
	if readErr != nil {
		return fmt.Sprintf("%s requires kernel.perf_event_paranoid <= %d or CAP_PERFMON", kind, required)
	}
	return fmt.Sprintf("kernel.perf_event_paranoid is %d, %s requires <= %d or CAP_PERFMON", setting, kind, required)
}

package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"testing"

	"perfstat/internal/launch"
)

// TestMain lets the test binary act as the launch stub, so runs with the real
// launcher exec through it the same way the perfstat binary does.
func TestMain(m *testing.M) {
	if launch.IsStub() {
		os.Exit(launch.RunStub(os.Args[1:]))
	}
	os.Exit(m.Run())
}

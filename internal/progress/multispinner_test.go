package progress

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMultiSpinner(t *testing.T) {
	spinner := NewMultiSpinner()
	if spinner == nil {
		t.Fatal("failed to create a spinner")
	}
}

func TestMultiSpinner(t *testing.T) {
	var out bytes.Buffer
	spinner := newMultiSpinner(&out, false)
	require.NoError(t, spinner.AddSpinner("A"))
	require.NoError(t, spinner.AddSpinner("B"))
	assert.Error(t, spinner.AddSpinner("A"), "added spinner with same label")
	spinner.Start()

	assert.NoError(t, spinner.Status("A", "FOO"))
	assert.NoError(t, spinner.Status("B", "BAR"))
	assert.Error(t, spinner.Status("C", "WOOPS"), "updated status of non-existent spinner")
	spinner.Finish()
	spinner.Finish()

	// not a terminal: only status changes are written, no cursor movement
	text := out.String()
	assert.Contains(t, text, "FOO")
	assert.Contains(t, text, "BAR")
	assert.NotContains(t, text, "\x1b[1A")
	assert.Equal(t, 1, strings.Count(text, "FOO"))
}

func TestMultiSpinnerTerminal(t *testing.T) {
	var out bytes.Buffer
	spinner := newMultiSpinner(&out, true)
	require.NoError(t, spinner.AddSpinner("run"))
	spinner.Start()
	spinner.Finish()
	assert.Contains(t, out.String(), "\x1b[1A")
	assert.Contains(t, out.String(), "run")
}

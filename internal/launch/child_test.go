package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModeEnv = "PERFSTAT_LAUNCH_TEST_MODE"

// TestMain lets the test binary act as the launch stub, the same way the
// perfstat binary does in main.
func TestMain(m *testing.M) {
	if IsStub() {
		if os.Getenv(testModeEnv) == "truncate" {
			goPipe := os.NewFile(goFD, "go")
			startTimePipe := os.NewFile(startTimeFD, "start-time")
			if awaitGo(goPipe) != nil {
				os.Exit(ExitProtocol)
			}
			_, _ = startTimePipe.Write(make([]byte, 8))
			os.Exit(0)
		}
		os.Exit(RunStub(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func requireLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("launch tests require Linux")
	}
}

func requireCommand(t *testing.T, name string) {
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found", name)
	}
}

// stderrFile gives the stub a stderr the test can read back after the child
// is reaped.
func stderrFile(t *testing.T) *os.File {
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readStderr(t *testing.T, f *os.File) string {
	out, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(out)
}

func TestSpawnReleaseWait(t *testing.T) {
	requireLinux(t)
	requireCommand(t, "true")
	child, err := Spawn([]string{"true"}, Options{})
	require.NoError(t, err)
	assert.Greater(t, child.PID(), 0)

	start, err := child.Release()
	require.NoError(t, err)
	assert.Positive(t, int64(start))
	assert.Equal(t, start, child.Start())

	exit, err := child.Wait()
	require.NoError(t, err)
	assert.True(t, exit.Success())
	assert.Greater(t, exit.Stop, start)
}

func TestExitCodeAndSignal(t *testing.T) {
	requireLinux(t)
	requireCommand(t, "sh")
	child, err := Spawn([]string{"sh", "-c", "exit 3"}, Options{})
	require.NoError(t, err)
	_, err = child.Release()
	require.NoError(t, err)
	exit, err := child.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, exit.Code)
	assert.False(t, exit.Success())

	child, err = Spawn([]string{"sh", "-c", "kill -TERM $$"}, Options{})
	require.NoError(t, err)
	_, err = child.Release()
	require.NoError(t, err)
	exit, err = child.Wait()
	require.NoError(t, err)
	assert.Equal(t, -1, exit.Code)
	assert.Equal(t, "SIGTERM", exit.Signal)
}

func TestExecFailure(t *testing.T) {
	requireLinux(t)
	stderr := stderrFile(t)
	child, err := Spawn([]string{"/nonexistent/perfstat-command"}, Options{Stderr: stderr})
	require.NoError(t, err)
	_, err = child.Release()
	require.NoError(t, err)
	exit, err := child.Wait()
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr), "expected ExecError, got %v", err)
	assert.Equal(t, "/nonexistent/perfstat-command", execErr.Command)
	assert.Equal(t, ExitExec, exit.Code)
	// the failure travels over the exec status pipe only
	assert.Empty(t, readStderr(t, stderr))
}

func TestAbortBeforeRelease(t *testing.T) {
	requireLinux(t)
	requireCommand(t, "true")
	stderr := stderrFile(t)
	child, err := Spawn([]string{"true"}, Options{Stderr: stderr})
	require.NoError(t, err)
	require.NoError(t, child.Abort())
	require.NoError(t, child.Abort())
	_, err = child.Release()
	assert.Error(t, err)
	// an abandoned stub exits without complaint
	assert.Empty(t, readStderr(t, stderr))
}

func TestWaitFailureClosesExecStatus(t *testing.T) {
	requireLinux(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	w.Close()
	// pid 1 is never our child, so wait4 fails with ECHILD
	proc, err := os.FindProcess(1)
	require.NoError(t, err)
	child := &Child{pid: 1, command: []string{"true"}, process: proc, execStatus: r, state: stateReleased}
	_, err = child.Wait()
	require.Error(t, err)
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestTruncatedStartTime(t *testing.T) {
	requireLinux(t)
	t.Setenv(testModeEnv, "truncate")
	child, err := Spawn([]string{"true"}, Options{})
	require.NoError(t, err)
	_, err = child.Release()
	assert.ErrorIs(t, err, ErrProtocol)
	require.NoError(t, child.Abort())
}

func TestWaitBeforeRelease(t *testing.T) {
	requireLinux(t)
	requireCommand(t, "true")
	child, err := Spawn([]string{"true"}, Options{})
	require.NoError(t, err)
	_, err = child.Wait()
	assert.Error(t, err)
	require.NoError(t, child.Abort())
}

func TestSpawnEmptyCommand(t *testing.T) {
	_, err := Spawn(nil, Options{})
	assert.Error(t, err)
	_, err = Spawn([]string{""}, Options{})
	assert.Error(t, err)
}

package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// the parent side of the launch protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ExecError reports that the stub was released but could not execute the
// command. Counters may still hold values for the stub's short life.
type ExecError struct {
	Command string
	Message string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute %s: %s", e.Command, e.Message)
}

// Options configures the child's standard streams. Nil fields inherit the
// parent's.
type Options struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// Executable is the binary run as the stub, defaults to os.Executable().
	Executable string
}

// Exit describes how the child terminated.
type Exit struct {
	Stop       time.Duration // elapsed since T0 when the child was reaped
	Code       int           // exit code, -1 when killed by a signal
	Signal     string        // name of the terminating signal, if any
	UserTime   time.Duration
	SystemTime time.Duration
}

// Success reports whether the command exited with code 0.
func (e Exit) Success() bool {
	return e.Code == 0 && e.Signal == ""
}

type childState int

const (
	stateSpawned childState = iota
	stateReleased
	stateDone
)

// Child is a spawned stub waiting to be released. Its process id is valid as
// soon as Spawn returns, which is when counters should be attached.
type Child struct {
	pid        int
	command    []string
	origin     time.Duration
	process    *os.Process
	goPipe     *os.File // write end
	startPipe  *os.File // read end
	execStatus *os.File // read end
	start      time.Duration
	state      childState
}

// Spawn records T0, creates the handshake pipes and starts the stub. The stub
// blocks until Release.
func Spawn(command []string, opts Options) (child *Child, err error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("no command to launch")
	}
	self := opts.Executable
	if self == "" {
		if self, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("failed to locate own executable: %w", err)
		}
	}
	var pipes []*os.File
	closeAll := func() {
		for _, p := range pipes {
			p.Close()
		}
	}
	newPipe := func() (r, w *os.File) {
		if err != nil {
			return
		}
		if r, w, err = os.Pipe(); err == nil {
			pipes = append(pipes, r, w)
		}
		return
	}
	goRead, goWrite := newPipe()
	startRead, startWrite := newPipe()
	execRead, execWrite := newPipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to create handshake pipes: %w", err)
	}

	origin, err := monotonicNow()
	if err != nil {
		closeAll()
		return nil, err
	}
	cmd := exec.Command(self, stubArgs(origin, command)...) // #nosec G204
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}
	// order must match goFD, startTimeFD, execStatusFD
	cmd.ExtraFiles = []*os.File{goRead, startWrite, execWrite}
	if err = cmd.Start(); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to start launch stub: %w", err)
	}
	// the stub owns these ends now; keeping them open here would hide EOF
	goRead.Close()
	startWrite.Close()
	execWrite.Close()
	child = &Child{
		pid:        cmd.Process.Pid,
		command:    command,
		origin:     origin,
		process:    cmd.Process,
		goPipe:     goWrite,
		startPipe:  startRead,
		execStatus: execRead,
	}
	slog.Debug("launch stub started", slog.Int("pid", child.pid), slog.String("command", strings.Join(command, " ")))
	return child, nil
}

// PID returns the child's process id. It stays the same across the exec of
// the command.
func (c *Child) PID() int {
	return c.pid
}

// Release sends the go message and returns the start timestamp reported by the
// child, relative to T0. Counters must be started before calling Release.
func (c *Child) Release() (time.Duration, error) {
	if c.state != stateSpawned {
		return 0, fmt.Errorf("child %d already released", c.pid)
	}
	c.state = stateReleased
	if err := sendGo(c.goPipe); err != nil {
		return 0, err
	}
	start, err := receiveStartTime(c.startPipe)
	c.startPipe.Close()
	if err != nil {
		return 0, err
	}
	c.start = start
	slog.Debug("child released", slog.Int("pid", c.pid), slog.Duration("start", start))
	return start, nil
}

// Start returns the start timestamp received by Release.
func (c *Child) Start() time.Duration {
	return c.start
}

// Wait blocks until the child terminates and records the stop timestamp. When
// the stub could not execute the command the returned error is an *ExecError
// and the Exit is still populated.
func (c *Child) Wait() (Exit, error) {
	if c.state != stateReleased {
		return Exit{}, fmt.Errorf("child %d has not been released", c.pid)
	}
	exit, err := c.reap()
	if err != nil {
		c.execStatus.Close()
		return exit, err
	}
	if msg := c.readExecStatus(); msg != "" {
		return exit, &ExecError{Command: c.command[0], Message: msg}
	}
	return exit, nil
}

// Abort terminates and reaps a child that will not be (or was not fully)
// measured. An unreleased stub exits on its own when the go pipe closes.
func (c *Child) Abort() error {
	if c.state == stateDone {
		return nil
	}
	if c.state == stateReleased {
		if err := unix.Kill(c.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			slog.Warn("failed to kill child", slog.Int("pid", c.pid), slog.String("error", err.Error()))
		}
	}
	c.goPipe.Close()
	_, err := c.reap()
	c.readExecStatus()
	return err
}

func (c *Child) reap() (Exit, error) {
	var status unix.WaitStatus
	var rusage unix.Rusage
	var wpid int
	var err error
	for {
		wpid, err = unix.Wait4(c.pid, &status, 0, &rusage)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	stop, clockErr := sinceOrigin(c.origin)
	c.state = stateDone
	// the write end stays open until the child is gone
	c.goPipe.Close()
	c.startPipe.Close()
	if releaseErr := c.process.Release(); releaseErr != nil {
		slog.Debug("failed to release process handle", slog.String("error", releaseErr.Error()))
	}
	if err != nil {
		return Exit{}, fmt.Errorf("failed to wait for child %d: %w", c.pid, err)
	}
	if wpid != c.pid {
		return Exit{}, fmt.Errorf("%w: waited for child %d, got %d", ErrProtocol, c.pid, wpid)
	}
	if clockErr != nil {
		return Exit{}, clockErr
	}
	exit := Exit{
		Stop:       stop,
		Code:       -1,
		UserTime:   time.Duration(rusage.Utime.Nano()),
		SystemTime: time.Duration(rusage.Stime.Nano()),
	}
	switch {
	case status.Exited():
		exit.Code = status.ExitStatus()
	case status.Signaled():
		exit.Signal = unix.SignalName(status.Signal())
		if exit.Signal == "" {
			exit.Signal = status.Signal().String()
		}
	}
	slog.Debug("child exited", slog.Int("pid", c.pid), slog.Int("code", exit.Code), slog.String("signal", exit.Signal), slog.Duration("stop", stop))
	return exit, nil
}

// readExecStatus returns the stub's exec failure message, or "" when the exec
// succeeded and the close-on-exec pipe was closed without data.
func (c *Child) readExecStatus() string {
	defer c.execStatus.Close()
	msg, err := io.ReadAll(c.execStatus)
	if err != nil {
		slog.Debug("failed to read exec status", slog.String("error", err.Error()))
	}
	return strings.TrimSpace(string(msg))
}

package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// the child side of the launch protocol

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// StubArg is the hidden first argument that makes the binary run as the
// launch stub instead of the command line interface.
const StubArg = "__perfstat_launch"

// descriptors handed to the stub, in ExtraFiles order
const (
	goFD         = 3
	startTimeFD  = 4
	execStatusFD = 5
)

const (
	// ExitProtocol is the stub's exit code when the handshake fails.
	ExitProtocol = 125
	// ExitExec is the stub's exit code when the command cannot be executed.
	ExitExec = 127
)

func init() {
	// counters are bound to the stub's main thread, and exec must run on that
	// thread to keep it
	if IsStub() {
		runtime.LockOSThread()
	}
}

// IsStub reports whether this process was started as the launch stub.
func IsStub() bool {
	return len(os.Args) > 1 && os.Args[1] == StubArg
}

func stubArgs(origin time.Duration, command []string) []string {
	args := []string{StubArg, strconv.FormatInt(int64(origin), 10), "--"}
	return append(args, command...)
}

func parseStubArgs(args []string) (origin time.Duration, command []string, err error) {
	if len(args) < 4 || args[0] != StubArg || args[2] != "--" {
		err = fmt.Errorf("usage: %s <origin> -- command [args...]", StubArg)
		return
	}
	ns, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		err = fmt.Errorf("invalid time origin %q: %v", args[1], err)
		return
	}
	origin = time.Duration(ns)
	command = args[3:]
	return
}

// RunStub runs the child side of the handshake and replaces the process with
// the command. It only returns on failure, with the exit code to use. args
// starts with StubArg.
func RunStub(args []string) int {
	origin, command, err := parseStubArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitProtocol
	}
	goPipe := os.NewFile(goFD, "go")
	startTimePipe := os.NewFile(startTimeFD, "start-time")
	// closed by a successful exec, so the parent reads nothing
	unix.CloseOnExec(execStatusFD)
	execStatusPipe := os.NewFile(execStatusFD, "exec-status")

	if err := awaitGo(goPipe); err != nil {
		if !errors.Is(err, errCancelled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return ExitProtocol
	}
	elapsed, err := sinceOrigin(origin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitProtocol
	}
	if err := sendStartTime(startTimePipe, elapsed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitProtocol
	}
	startTimePipe.Close()
	goPipe.Close()

	path, err := exec.LookPath(command[0])
	if err == nil {
		err = unix.Exec(path, command, os.Environ())
	}
	// still here, exec failed; the parent reports it
	_, _ = fmt.Fprintf(execStatusPipe, "%v", err)
	execStatusPipe.Close()
	return ExitExec
}

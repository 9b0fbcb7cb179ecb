// Package stat runs a command under performance counters and reports the
// counts, the elapsed time and the CPU utilization of the run.
package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"perfstat/internal/event"
	"perfstat/internal/launch"
	"perfstat/internal/perf"
)

// Phase names the step of a run that failed.
type Phase string

const (
	PhaseLaunch       Phase = "launch"
	PhaseCounterSetup Phase = "counter setup"
	PhaseCounterStart Phase = "counter start"
	PhaseHandshake    Phase = "handshake"
	PhaseWait         Phase = "wait"
	PhaseCounterStop  Phase = "counter stop"
	PhaseTargetLaunch Phase = "target launch"
)

// PhaseError is returned by Run for every fatal condition.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Process is the launched command as seen by the runner.
type Process interface {
	PID() int
	Release() (time.Duration, error)
	Wait() (launch.Exit, error)
	Abort() error
}

// SpawnFunc starts command suspended, ready to be released.
type SpawnFunc func(command []string, opts launch.Options) (Process, error)

func spawnChild(command []string, opts launch.Options) (Process, error) {
	child, err := launch.Spawn(command, opts)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Runner measures one command per call to Run. The zero value is ready to use.
type Runner struct {
	// Open opens counters, defaults to perf.Open.
	Open perf.Opener
	// Spawn starts the command, defaults to launch.Spawn.
	Spawn SpawnFunc
	// Launch configures the command's standard streams.
	Launch launch.Options
	// Progress, if set, is called as the run moves through its phases.
	Progress func(phase Phase, status string)
}

func (r *Runner) progress(phase Phase, status string) {
	if r.Progress != nil {
		r.Progress(phase, status)
	}
}

// Run launches command, counts the requested events for it (the default set
// when requested is empty) and returns the report. Counters are started before
// the command is released and stopped after it has exited.
//
// When the command could not be executed the report is returned together with
// a PhaseError for PhaseTargetLaunch and the report is marked Failed.
func (r *Runner) Run(requested []event.Kind, command []string) (report *Report, err error) {
	if len(command) == 0 {
		return nil, &PhaseError{Phase: PhaseLaunch, Err: errors.New("no command given")}
	}
	kinds := event.Resolve(requested)
	spawn := r.Spawn
	if spawn == nil {
		spawn = spawnChild
	}
	open := r.Open
	if open == nil {
		open = perf.Open
	}

	r.progress(PhaseLaunch, "starting")
	child, err := spawn(command, r.Launch)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseLaunch, Err: err}
	}
	pid := child.PID()
	abort := func(phase Phase, cause error) error {
		slog.Error("run aborted", slog.String("phase", string(phase)), slog.Int("pid", pid), slog.String("error", cause.Error()))
		if abortErr := child.Abort(); abortErr != nil {
			slog.Error("failed to abort child", slog.Int("pid", pid), slog.String("error", abortErr.Error()))
		}
		return &PhaseError{Phase: phase, Err: cause}
	}

	r.progress(PhaseCounterSetup, fmt.Sprintf("opening %d counters", len(kinds)))
	counters, err := perf.BuildCounterSet(kinds, pid, open)
	if err != nil {
		return nil, abort(PhaseCounterSetup, err)
	}
	defer func() {
		if closeErr := counters.Close(); closeErr != nil {
			slog.Error("failed to close counters", slog.String("error", closeErr.Error()))
		}
	}()

	r.progress(PhaseCounterStart, "starting counters")
	if err := counters.StartAll(); err != nil {
		return nil, abort(PhaseCounterStart, err)
	}

	// the run is already failing, a stop error only adds detail
	stopOnFailure := func() {
		if stopErr := counters.StopAll(); stopErr != nil {
			slog.Debug("failed to stop counters", slog.String("error", stopErr.Error()))
		}
	}

	r.progress(PhaseHandshake, "releasing command")
	start, err := child.Release()
	if err != nil {
		stopOnFailure()
		return nil, abort(PhaseHandshake, err)
	}

	r.progress(PhaseWait, "running "+command[0])
	exit, waitErr := child.Wait()
	var execErr *launch.ExecError
	if waitErr != nil && !errors.As(waitErr, &execErr) {
		stopOnFailure()
		return nil, &PhaseError{Phase: PhaseWait, Err: waitErr}
	}

	r.progress(PhaseCounterStop, "stopping counters")
	if err := counters.StopAll(); err != nil {
		return nil, &PhaseError{Phase: PhaseCounterStop, Err: err}
	}
	if exit.Stop <= start {
		return nil, &PhaseError{Phase: PhaseHandshake, Err: fmt.Errorf("%w: stop time %d is not after start time %d", launch.ErrProtocol, exit.Stop, start)}
	}
	report = &Report{
		Command: command,
		Start:   start,
		Stop:    exit.Stop,
		Exit:    exit,
		Results: make([]Result, 0, counters.Len()),
	}
	for _, c := range counters.Counters() {
		delta, err := c.Delta()
		if err != nil {
			return nil, &PhaseError{Phase: PhaseCounterStop, Err: err}
		}
		report.Results = append(report.Results, Result{
			Kind:     c.Kind(),
			Start:    c.StartValue(),
			Stop:     c.StopValue(),
			Delta:    delta,
			Coverage: c.Coverage(),
		})
	}
	slog.Info("run complete", slog.String("command", strings.Join(command, " ")), slog.Duration("elapsed", report.Elapsed()), slog.Int("exit code", exit.Code), slog.String("signal", exit.Signal))
	r.progress(PhaseCounterStop, "done")
	if execErr != nil {
		report.Failed = true
		report.FailureReason = execErr.Error()
		return report, &PhaseError{Phase: PhaseTargetLaunch, Err: execErr}
	}
	return report, nil
}

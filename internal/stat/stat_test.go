package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"perfstat/internal/event"
	"perfstat/internal/launch"
	"perfstat/internal/perf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trace records the order of operations across counters and the process.
type trace struct {
	steps []string
}

func (t *trace) add(format string, args ...any) {
	t.steps = append(t.steps, fmt.Sprintf(format, args...))
}

type fakeSource struct {
	tr      *trace
	kind    event.Kind
	values  []uint64
	next    int
	closed  bool
	failOn  string
	enabled bool
}

func (s *fakeSource) Enable() error {
	if s.failOn == "enable" {
		return errors.New("enable failed")
	}
	s.enabled = true
	s.tr.add("enable %s", s.kind.Identifier())
	return nil
}

func (s *fakeSource) Disable() error {
	if s.failOn == "disable" {
		return errors.New("disable failed")
	}
	s.enabled = false
	s.tr.add("disable %s", s.kind.Identifier())
	return nil
}

func (s *fakeSource) Read() (perf.Reading, error) {
	v := s.values[s.next]
	s.next++
	return perf.Reading{Value: v}, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeProcess struct {
	tr         *trace
	pid        int
	start      time.Duration
	exit       launch.Exit
	releaseErr error
	waitErr    error
	aborted    bool
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Release() (time.Duration, error) {
	p.tr.add("release")
	return p.start, p.releaseErr
}

func (p *fakeProcess) Wait() (launch.Exit, error) {
	p.tr.add("wait")
	return p.exit, p.waitErr
}

func (p *fakeProcess) Abort() error {
	p.aborted = true
	p.tr.add("abort")
	return nil
}

type fixture struct {
	tr       *trace
	proc     *fakeProcess
	sources  []*fakeSource
	openErr  map[event.Kind]error
	failOn   map[event.Kind]string
	pids     []int
	spawned  [][]string
	deltaFor map[event.Kind]uint64
}

func newFixture() *fixture {
	tr := &trace{}
	return &fixture{
		tr: tr,
		proc: &fakeProcess{
			tr:    tr,
			pid:   4242,
			start: 10 * time.Millisecond,
			exit:  launch.Exit{Stop: 30 * time.Millisecond, Code: 0},
		},
		deltaFor: map[event.Kind]uint64{},
	}
}

func (f *fixture) runner() *Runner {
	return &Runner{
		Spawn: func(command []string, opts launch.Options) (Process, error) {
			f.spawned = append(f.spawned, command)
			f.tr.add("spawn")
			return f.proc, nil
		},
		Open: func(kind event.Kind, pid int) (*perf.Counter, error) {
			if err := f.openErr[kind]; err != nil {
				return nil, err
			}
			f.pids = append(f.pids, pid)
			delta, ok := f.deltaFor[kind]
			if !ok {
				delta = 1000
			}
			src := &fakeSource{tr: f.tr, kind: kind, values: []uint64{5, 5 + delta}, failOn: f.failOn[kind]}
			f.sources = append(f.sources, src)
			return perf.NewCounter(kind, pid, src), nil
		},
	}
}

func TestRunDefaultEvents(t *testing.T) {
	f := newFixture()
	report, err := f.runner().Run(nil, []string{"true"})
	require.NoError(t, err)
	require.Len(t, report.Results, 8)
	var kinds []event.Kind
	for _, r := range report.Results {
		kinds = append(kinds, r.Kind)
		assert.Equal(t, uint64(1000), r.Delta)
		assert.GreaterOrEqual(t, r.Stop, r.Start)
	}
	assert.Equal(t, event.Defaults(), kinds)
	for _, pid := range f.pids {
		assert.Equal(t, 4242, pid)
	}
	assert.Equal(t, 20*time.Millisecond, report.Elapsed())
	for _, src := range f.sources {
		assert.True(t, src.closed)
	}
}

func TestRunOrdering(t *testing.T) {
	f := newFixture()
	_, err := f.runner().Run([]event.Kind{event.Cycles, event.Instructions}, []string{"sleep", "0.01"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"spawn",
		"enable cycles",
		"enable instructions",
		"release",
		"wait",
		"disable cycles",
		"disable instructions",
	}, f.tr.steps)
}

func TestRunOrderPreservedWithDuplicates(t *testing.T) {
	f := newFixture()
	f.deltaFor[event.Cycles] = 77
	requested := []event.Kind{event.Cycles, event.Cycles}
	report, err := f.runner().Run(requested, []string{"true"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf))
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, " Number of cycles: 77", lines[2])
	assert.Equal(t, " Number of cycles: 77", lines[3])
	assert.Equal(t, []event.Kind{event.Cycles, event.Cycles}, requested)
}

func TestRunCounterSetupFailure(t *testing.T) {
	f := newFixture()
	denied := errors.New("permission denied")
	f.openErr = map[event.Kind]error{event.ContextSwitches: denied}
	report, err := f.runner().Run([]event.Kind{event.Cycles, event.ContextSwitches}, []string{"true"})
	assert.Nil(t, report)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseCounterSetup, phaseErr.Phase)
	assert.ErrorIs(t, err, denied)
	assert.True(t, f.proc.aborted)
	assert.NotContains(t, f.tr.steps, "release")
	assert.True(t, f.sources[0].closed)
}

func TestRunCounterStartFailure(t *testing.T) {
	f := newFixture()
	f.failOn = map[event.Kind]string{event.Instructions: "enable"}
	_, err := f.runner().Run([]event.Kind{event.Cycles, event.Instructions}, []string{"true"})
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseCounterStart, phaseErr.Phase)
	assert.True(t, f.proc.aborted)
	assert.NotContains(t, f.tr.steps, "release")
}

func TestRunHandshakeFailure(t *testing.T) {
	f := newFixture()
	f.proc.releaseErr = fmt.Errorf("%w: short start time", launch.ErrProtocol)
	report, err := f.runner().Run([]event.Kind{event.Cycles}, []string{"true"})
	assert.Nil(t, report)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseHandshake, phaseErr.Phase)
	assert.ErrorIs(t, err, launch.ErrProtocol)
	assert.True(t, f.proc.aborted)
	assert.NotContains(t, f.tr.steps, "wait")
	assert.False(t, f.sources[0].enabled)
}

func TestRunHandshakeFailureLogsStopError(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(previous)

	f := newFixture()
	f.proc.releaseErr = fmt.Errorf("%w: short start time", launch.ErrProtocol)
	f.failOn = map[event.Kind]string{event.Cycles: "disable"}
	_, err := f.runner().Run([]event.Kind{event.Cycles, event.Instructions}, []string{"true"})
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseHandshake, phaseErr.Phase)
	assert.NotContains(t, err.Error(), "disable failed")
	assert.True(t, f.proc.aborted)
	assert.False(t, f.sources[1].enabled)
	assert.Contains(t, logs.String(), "failed to stop counters")
	assert.Contains(t, logs.String(), "disable failed")
}

func TestRunWaitFailure(t *testing.T) {
	f := newFixture()
	f.proc.waitErr = fmt.Errorf("%w: waited for child 4242, got 1", launch.ErrProtocol)
	_, err := f.runner().Run([]event.Kind{event.Cycles}, []string{"true"})
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseWait, phaseErr.Phase)
}

func TestRunTargetLaunchFailure(t *testing.T) {
	f := newFixture()
	f.proc.exit.Code = launch.ExitExec
	f.proc.waitErr = &launch.ExecError{Command: "nope", Message: "executable file not found in $PATH"}
	report, err := f.runner().Run([]event.Kind{event.Cycles}, []string{"nope"})
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseTargetLaunch, phaseErr.Phase)
	require.NotNil(t, report)
	assert.True(t, report.Failed)
	assert.Len(t, report.Results, 1)
	assert.Contains(t, report.Status(), "run failed")
}

func TestRunStopNotAfterStart(t *testing.T) {
	f := newFixture()
	f.proc.exit.Stop = f.proc.start
	_, err := f.runner().Run([]event.Kind{event.Cycles}, []string{"true"})
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.ErrorIs(t, err, launch.ErrProtocol)
}

func TestRunNoCommand(t *testing.T) {
	f := newFixture()
	_, err := f.runner().Run(nil, nil)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, PhaseLaunch, phaseErr.Phase)
	assert.Empty(t, f.spawned)
}

func TestRunProgress(t *testing.T) {
	f := newFixture()
	r := f.runner()
	var phases []Phase
	r.Progress = func(phase Phase, status string) {
		phases = append(phases, phase)
	}
	_, err := r.Run([]event.Kind{event.Cycles}, []string{"true"})
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseLaunch, PhaseCounterSetup, PhaseCounterStart, PhaseHandshake, PhaseWait, PhaseCounterStop, PhaseCounterStop}, phases)
}

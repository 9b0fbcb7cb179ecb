// Package perf owns the kernel performance counters bound to a profiled process.
//
// A Counter wraps one perf event file descriptor. A CounterSet owns the counters
// for one run and releases all of them on Close, on every exit path.
package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"

	"perfstat/internal/event"

	"github.com/pkg/errors"
)

var (
	// ErrNotStarted is returned when a counter is stopped or read before Start.
	ErrNotStarted = errors.New("counter not started")
	// ErrNotStopped is returned when the delta of a running counter is requested.
	ErrNotStopped = errors.New("counter not stopped")
	// ErrNegativeDelta indicates the stop value is below the start value.
	ErrNegativeDelta = errors.New("counter stop value is less than start value")
	// ErrClosed is returned by operations on a closed counter.
	ErrClosed = errors.New("counter closed")
)

// Reading is one read of a counter. Enabled and Running are the nanoseconds the
// event was enabled and actually scheduled on the PMU; they differ when the
// kernel multiplexes counters.
type Reading struct {
	Value   uint64
	Enabled uint64
	Running uint64
}

// Source is the resource behind a Counter, normally a perf event file
// descriptor.
type Source interface {
	Enable() error
	Disable() error
	Read() (Reading, error)
	Close() error
}

// Counter counts one event for one process.
type Counter struct {
	kind    event.Kind
	pid     int
	src     Source
	start   Reading
	stop    Reading
	started bool
	stopped bool
	closed  bool
}

// Opener opens a counter for kind bound to pid.
type Opener func(kind event.Kind, pid int) (*Counter, error)

// NewCounter returns a counter for kind bound to pid, backed by src. The
// counter owns src.
func NewCounter(kind event.Kind, pid int, src Source) *Counter {
	return &Counter{kind: kind, pid: pid, src: src}
}

// Kind returns the event counted.
func (c *Counter) Kind() event.Kind {
	return c.kind
}

// PID returns the process the counter is bound to.
func (c *Counter) PID() int {
	return c.pid
}

// Start enables counting and returns the baseline value.
func (c *Counter) Start() (uint64, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if err := c.src.Enable(); err != nil {
		return 0, errors.Wrapf(err, "failed to enable %s counter", c.kind)
	}
	r, err := c.src.Read()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s counter", c.kind)
	}
	c.start = r
	c.started = true
	slog.Debug("counter started", slog.String("event", c.kind.Identifier()), slog.Int("pid", c.pid), slog.Uint64("value", r.Value))
	return r.Value, nil
}

// Stop disables counting and returns the final value.
func (c *Counter) Stop() (uint64, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if !c.started {
		return 0, errors.Wrap(ErrNotStarted, c.kind.String())
	}
	if err := c.src.Disable(); err != nil {
		return 0, errors.Wrapf(err, "failed to disable %s counter", c.kind)
	}
	r, err := c.src.Read()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s counter", c.kind)
	}
	c.stop = r
	c.stopped = true
	slog.Debug("counter stopped", slog.String("event", c.kind.Identifier()), slog.Int("pid", c.pid), slog.Uint64("value", r.Value))
	return r.Value, nil
}

// StartValue returns the value recorded by Start.
func (c *Counter) StartValue() uint64 {
	return c.start.Value
}

// StopValue returns the value recorded by Stop.
func (c *Counter) StopValue() uint64 {
	return c.stop.Value
}

// Delta returns stop - start. A stop value below the start value is an error,
// it is never clamped.
func (c *Counter) Delta() (uint64, error) {
	if !c.started {
		return 0, errors.Wrap(ErrNotStarted, c.kind.String())
	}
	if !c.stopped {
		return 0, errors.Wrap(ErrNotStopped, c.kind.String())
	}
	if c.stop.Value < c.start.Value {
		return 0, errors.Wrapf(ErrNegativeDelta, "%s: start %d, stop %d", c.kind, c.start.Value, c.stop.Value)
	}
	return c.stop.Value - c.start.Value, nil
}

// Coverage returns the fraction of the measured interval during which the
// event was actually counted. It is 1 unless the kernel multiplexed the PMU.
func (c *Counter) Coverage() float64 {
	enabled := c.stop.Enabled - c.start.Enabled
	running := c.stop.Running - c.start.Running
	if !c.stopped || enabled == 0 || running >= enabled {
		return 1
	}
	return float64(running) / float64(enabled)
}

// Close releases the kernel resource. It is safe to call more than once.
func (c *Counter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.Close()
}

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"

	"perfstat/internal/event"

	"github.com/pkg/errors"
)

// CounterSet is the ordered set of counters for one run.
type CounterSet struct {
	counters []*Counter
}

// BuildCounterSet opens one counter per requested kind, in order, bound to pid.
// When requested is empty the default event set is used. Duplicates each get
// their own counter. If any open fails the counters already opened are closed
// and the error is returned.
func BuildCounterSet(requested []event.Kind, pid int, open Opener) (*CounterSet, error) {
	if open == nil {
		open = Open
	}
	kinds := event.Resolve(requested)
	set := &CounterSet{counters: make([]*Counter, 0, len(kinds))}
	for _, kind := range kinds {
		counter, err := open(kind, pid)
		if err != nil {
			if closeErr := set.Close(); closeErr != nil {
				slog.Error("failed to close counters", slog.String("error", closeErr.Error()))
			}
			return nil, err
		}
		set.counters = append(set.counters, counter)
	}
	slog.Debug("counters opened", slog.Int("count", len(set.counters)), slog.Int("pid", pid))
	return set, nil
}

// Counters returns the counters in collection order.
func (s *CounterSet) Counters() []*Counter {
	return s.counters
}

// Kinds returns the event kinds in collection order.
func (s *CounterSet) Kinds() []event.Kind {
	kinds := make([]event.Kind, 0, len(s.counters))
	for _, c := range s.counters {
		kinds = append(kinds, c.Kind())
	}
	return kinds
}

// Len returns the number of counters.
func (s *CounterSet) Len() int {
	return len(s.counters)
}

// StartAll starts every counter in order and stops at the first failure.
func (s *CounterSet) StartAll() error {
	for i, c := range s.counters {
		if _, err := c.Start(); err != nil {
			return errors.Wrapf(err, "counter %d of %d", i+1, len(s.counters))
		}
	}
	return nil
}

// StopAll stops every counter in order. All counters are stopped even when one
// fails; the first error is returned.
func (s *CounterSet) StopAll() error {
	var first error
	for i, c := range s.counters {
		if _, err := c.Stop(); err != nil && first == nil {
			first = errors.Wrapf(err, "counter %d of %d", i+1, len(s.counters))
		}
	}
	return first
}

// Close releases every counter. The first error is returned.
func (s *CounterSet) Close() error {
	var first error
	for _, c := range s.counters {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

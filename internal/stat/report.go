package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"strings"
	"time"

	"perfstat/internal/event"
	"perfstat/internal/launch"
)

// Result is the measurement of one counter.
type Result struct {
	Kind     event.Kind
	Start    uint64
	Stop     uint64
	Delta    uint64
	Coverage float64 // fraction of the run the event was scheduled on the PMU
}

// Report is the outcome of one run. Results are in the order requested, or in
// the default order.
type Report struct {
	Command []string
	Results []Result
	// Start and Stop are relative to the run's monotonic time origin.
	Start time.Duration
	Stop  time.Duration
	Exit  launch.Exit
	// Failed is set when the command could not be executed.
	Failed        bool
	FailureReason string
}

// Elapsed is the measured interval, from the command's release to its exit.
func (r *Report) Elapsed() time.Duration {
	return r.Stop - r.Start
}

// Utilization returns task clock time divided by elapsed time, the average
// number of CPUs busy with the command.
func (r *Report) Utilization(taskClock uint64) float64 {
	elapsed := r.Elapsed()
	if elapsed <= 0 {
		return 0
	}
	return float64(taskClock) / float64(elapsed.Nanoseconds())
}

// CommandLine returns the command as a single string.
func (r *Report) CommandLine() string {
	return strings.Join(r.Command, " ")
}

// Line formats one result the way the text report shows it.
func (r *Report) Line(result Result) string {
	if result.Kind == event.TaskClock {
		return fmt.Sprintf(" %.2f msec task-clock (CPU utilized: %.3f)", float64(result.Delta)/1_000_000.0, r.Utilization(result.Delta))
	}
	return fmt.Sprintf(" Number of %s: %d", result.Kind, result.Delta)
}

// Header returns the line naming the profiled command.
func (r *Report) Header() string {
	return fmt.Sprintf("Performance counter stats for '%s':", r.CommandLine())
}

// WriteText writes the text report: the header, one line per counter and a
// footer with timing and exit status.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString(r.Header() + "\n\n")
	for _, result := range r.Results {
		sb.WriteString(r.Line(result) + "\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, " %.9f seconds time elapsed\n", r.Elapsed().Seconds())
	fmt.Fprintf(&sb, " %.9f seconds user\n", r.Exit.UserTime.Seconds())
	fmt.Fprintf(&sb, " %.9f seconds sys\n", r.Exit.SystemTime.Seconds())
	if status := r.Status(); status != "" {
		sb.WriteString("\n " + status + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Status describes an unsuccessful command, or returns "" when it exited with 0.
func (r *Report) Status() string {
	switch {
	case r.Failed:
		return "run failed: " + r.FailureReason
	case r.Exit.Signal != "":
		return fmt.Sprintf("command terminated by %s", r.Exit.Signal)
	case r.Exit.Code != 0:
		return fmt.Sprintf("command exited with status %d", r.Exit.Code)
	}
	return ""
}

// Deltas maps event identifiers to deltas. When an event was measured more
// than once the first measurement is used.
func (r *Report) Deltas() map[string]uint64 {
	deltas := make(map[string]uint64, len(r.Results))
	for _, result := range r.Results {
		if _, ok := deltas[result.Kind.Identifier()]; !ok {
			deltas[result.Kind.Identifier()] = result.Delta
		}
	}
	return deltas
}

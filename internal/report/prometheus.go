package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"perfstat/internal/metrics"
	"perfstat/internal/stat"
)

// Gatherer returns a registry holding the run's counters, timing and derived
// metrics as gauges labelled by command.
func Gatherer(run *stat.Report, derived []metrics.Metric) (*prometheus.Registry, error) {
	command := run.CommandLine()
	registry := prometheus.NewRegistry()
	events := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfstat_event_count",
			Help: "Events counted while the command ran.",
		},
		[]string{"command", "event"},
	)
	coverage := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfstat_event_coverage_ratio",
			Help: "Fraction of the run the event was counting.",
		},
		[]string{"command", "event"},
	)
	seconds := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfstat_run_seconds",
			Help: "Elapsed, user and system time of the command.",
		},
		[]string{"command", "clock"},
	)
	exitCode := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfstat_exit_code",
			Help: "Exit code of the command, -1 when terminated by a signal.",
		},
		[]string{"command"},
	)
	derivedGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfstat_metric",
			Help: "Metrics derived from the event counts.",
		},
		[]string{"command", "metric"},
	)
	for _, collector := range []prometheus.Collector{events, coverage, seconds, exitCode, derivedGauge} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	seen := make(map[string]bool)
	for _, result := range run.Results {
		identifier := result.Kind.Identifier()
		if seen[identifier] {
			continue
		}
		seen[identifier] = true
		events.WithLabelValues(command, identifier).Set(float64(result.Delta))
		coverage.WithLabelValues(command, identifier).Set(result.Coverage)
	}
	seconds.WithLabelValues(command, "elapsed").Set(run.Elapsed().Seconds())
	seconds.WithLabelValues(command, "user").Set(run.Exit.UserTime.Seconds())
	seconds.WithLabelValues(command, "sys").Set(run.Exit.SystemTime.Seconds())
	exitCode.WithLabelValues(command).Set(float64(run.Exit.Code))
	for _, metric := range derived {
		if math.IsNaN(metric.Value) {
			continue
		}
		derivedGauge.WithLabelValues(command, promLabel(metric.Name)).Set(metric.Value)
	}
	return registry, nil
}

// WriteTextfile writes the run in the Prometheus text exposition format, for
// the node exporter's textfile collector.
func WriteTextfile(path string, run *stat.Report, derived []metrics.Metric) error {
	registry, err := Gatherer(run, derived)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("failed to write prometheus textfile %s: %w", path, err)
	}
	return nil
}

// promLabel makes a metric name usable as a label value, e.g.,
// "% of host CPUs utilized" becomes "pct_of_host_cpus_utilized".
func promLabel(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "%", "pct"))
	return strings.Join(strings.Fields(name), "_")
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"math"

	"perfstat/internal/metrics"
	"perfstat/internal/stat"
)

type jsonCounter struct {
	Event    string  `json:"event"`
	Name     string  `json:"name"`
	Start    uint64  `json:"start"`
	Stop     uint64  `json:"stop"`
	Value    uint64  `json:"value"`
	Coverage float64 `json:"coverage"`
}

type jsonMetric struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"` // null when the metric could not be computed
}

type jsonReport struct {
	Command        []string      `json:"command"`
	Status         string        `json:"status"`
	ExitCode       int           `json:"exit_code"`
	Signal         string        `json:"signal,omitempty"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	UserSeconds    float64       `json:"user_seconds"`
	SystemSeconds  float64       `json:"system_seconds"`
	Counters       []jsonCounter `json:"counters"`
	Metrics        []jsonMetric  `json:"metrics,omitempty"`
}

func createJsonReport(run *stat.Report, derived []metrics.Metric) (out []byte, err error) {
	oReport := jsonReport{
		Command:        run.Command,
		Status:         run.Status(),
		ExitCode:       run.Exit.Code,
		Signal:         run.Exit.Signal,
		ElapsedSeconds: run.Elapsed().Seconds(),
		UserSeconds:    run.Exit.UserTime.Seconds(),
		SystemSeconds:  run.Exit.SystemTime.Seconds(),
		Counters:       []jsonCounter{},
	}
	if oReport.Status == "" {
		oReport.Status = "ok"
	}
	for _, result := range run.Results {
		oReport.Counters = append(oReport.Counters, jsonCounter{
			Event:    result.Kind.Identifier(),
			Name:     result.Kind.String(),
			Start:    result.Start,
			Stop:     result.Stop,
			Value:    result.Delta,
			Coverage: result.Coverage,
		})
	}
	for _, metric := range derived {
		oMetric := jsonMetric{Name: metric.Name}
		if !math.IsNaN(metric.Value) {
			value := metric.Value
			oMetric.Value = &value
		}
		oReport.Metrics = append(oReport.Metrics, oMetric)
	}
	return json.MarshalIndent(oReport, "", " ")
}

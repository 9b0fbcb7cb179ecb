package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// table.go converts a run into the tables shared by the table and xlsx renderers.

import (
	"fmt"
	"math"
	"strconv"

	"perfstat/internal/metrics"
	"perfstat/internal/stat"
)

const (
	SummaryTableName  = "Summary"
	CountersTableName = "Counters"
	MetricsTableName  = "Metrics"
)

// Field is a named column. For tables without rows only Values[0] is used.
type Field struct {
	Name   string
	Values []string
}

// TableValues holds the values of one table, column by column.
type TableValues struct {
	Name        string
	HasRows     bool
	Fields      []Field
	NoDataFound string
}

// Tables returns the summary, counters and, if any were evaluated, metrics
// tables for a run.
func Tables(run *stat.Report, derived []metrics.Metric) []TableValues {
	tables := []TableValues{summaryTable(run), countersTable(run)}
	if len(derived) > 0 {
		tables = append(tables, metricsTable(derived))
	}
	return tables
}

func summaryTable(run *stat.Report) TableValues {
	status := run.Status()
	if status == "" {
		status = "ok"
	}
	return TableValues{
		Name: SummaryTableName,
		Fields: []Field{
			{Name: "Command", Values: []string{run.CommandLine()}},
			{Name: "Status", Values: []string{status}},
			{Name: "Exit Code", Values: []string{strconv.Itoa(run.Exit.Code)}},
			{Name: "Elapsed (s)", Values: []string{fmt.Sprintf("%.9f", run.Elapsed().Seconds())}},
			{Name: "User (s)", Values: []string{fmt.Sprintf("%.9f", run.Exit.UserTime.Seconds())}},
			{Name: "Sys (s)", Values: []string{fmt.Sprintf("%.9f", run.Exit.SystemTime.Seconds())}},
		},
	}
}

func countersTable(run *stat.Report) TableValues {
	table := TableValues{
		Name:    CountersTableName,
		HasRows: true,
		Fields: []Field{
			{Name: "Event"},
			{Name: "Value"},
			{Name: "Coverage"},
		},
		NoDataFound: "No counters measured.",
	}
	for _, result := range run.Results {
		table.Fields[0].Values = append(table.Fields[0].Values, result.Kind.Identifier())
		table.Fields[1].Values = append(table.Fields[1].Values, strconv.FormatUint(result.Delta, 10))
		table.Fields[2].Values = append(table.Fields[2].Values, fmt.Sprintf("%.2f%%", result.Coverage*100))
	}
	return table
}

func metricsTable(derived []metrics.Metric) TableValues {
	table := TableValues{
		Name:    MetricsTableName,
		HasRows: true,
		Fields: []Field{
			{Name: "Metric"},
			{Name: "Value"},
		},
	}
	for _, metric := range derived {
		table.Fields[0].Values = append(table.Fields[0].Values, metric.Name)
		table.Fields[1].Values = append(table.Fields[1].Values, formatMetricValue(metric.Value))
	}
	return table
}

func formatMetricValue(value float64) string {
	if math.IsNaN(value) {
		return "n/a"
	}
	return strconv.FormatFloat(value, 'f', 4, 64)
}

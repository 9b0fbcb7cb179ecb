// Package report renders the result of a run in the supported output formats.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"perfstat/internal/metrics"
	"perfstat/internal/stat"
)

const (
	FormatTxt   = "txt"
	FormatTable = "table"
	FormatJson  = "json"
	FormatCsv   = "csv"
	FormatXlsx  = "xlsx"
	FormatAll   = "all"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatTxt, FormatTable, FormatJson, FormatCsv, FormatXlsx}

// Create renders a run, and the metrics derived from it, in the given format.
func Create(format string, run *stat.Report, derived []metrics.Metric) (out []byte, err error) {
	if run == nil {
		err = fmt.Errorf("no run to report")
		return
	}
	switch format {
	case FormatTxt:
		return createTxtReport(run, derived)
	case FormatTable:
		return createTableReport(Tables(run, derived))
	case FormatJson:
		return createJsonReport(run, derived)
	case FormatCsv:
		return createCsvReport(run, derived)
	case FormatXlsx:
		return createXlsxReport(Tables(run, derived))
	}
	err = fmt.Errorf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format)
	return
}

// createTxtReport writes the run's text report followed by the derived metrics
// that could be computed.
func createTxtReport(run *stat.Report, derived []metrics.Metric) (out []byte, err error) {
	var buf bytes.Buffer
	if err = run.WriteText(&buf); err != nil {
		return
	}
	var computed []metrics.Metric
	for _, metric := range derived {
		if !math.IsNaN(metric.Value) {
			computed = append(computed, metric)
		}
	}
	if len(computed) > 0 {
		buf.WriteString("\n")
		for _, metric := range computed {
			fmt.Fprintf(&buf, " %15s  %s\n", formatMetricValue(metric.Value), metric.Name)
		}
	}
	out = buf.Bytes()
	return
}

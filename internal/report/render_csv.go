package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"perfstat/internal/metrics"
	"perfstat/internal/stat"
)

// createCsvReport writes one record per counter and one per derived metric.
func createCsvReport(run *stat.Report, derived []metrics.Metric) (out []byte, err error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{{"Type", "Name", "Value", "Coverage"}}
	for _, result := range run.Results {
		records = append(records, []string{"counter", result.Kind.Identifier(), strconv.FormatUint(result.Delta, 10), fmt.Sprintf("%.4f", result.Coverage)})
	}
	for _, metric := range derived {
		records = append(records, []string{"metric", metric.Name, formatMetricValue(metric.Value), ""})
	}
	records = append(records, []string{"time", "elapsed_seconds", fmt.Sprintf("%.9f", run.Elapsed().Seconds()), ""})
	if err = w.WriteAll(records); err != nil {
		err = fmt.Errorf("failed to write csv report: %w", err)
		return
	}
	out = buf.Bytes()
	return
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func createTableReport(allTableValues []TableValues) (out []byte, err error) {
	var sb strings.Builder
	for _, tableValues := range allTableValues {
		sb.WriteString(fmt.Sprintf("%s\n", tableValues.Name))
		sb.WriteString(strings.Repeat("=", len(tableValues.Name)))
		sb.WriteString("\n")
		if len(tableValues.Fields) == 0 || len(tableValues.Fields[0].Values) == 0 {
			msg := NoDataFound
			if tableValues.NoDataFound != "" {
				msg = tableValues.NoDataFound
			}
			sb.WriteString(msg + "\n\n")
			continue
		}
		sb.WriteString(renderTextTable(tableValues))
		sb.WriteString("\n")
	}
	out = []byte(sb.String())
	return
}

// withSeparators adds thousands separators to integer values, e.g., 1,234,567.
func withSeparators(p *message.Printer, value string) string {
	if n, err := strconv.ParseUint(value, 10, 64); err == nil {
		return p.Sprintf("%d", n)
	}
	return value
}

func renderTextTable(tableValues TableValues) string {
	var sb strings.Builder
	p := message.NewPrinter(language.English) // use printer to get commas at thousands
	if tableValues.HasRows {
		// format every value first, the widths depend on the formatted text
		columns := make([][]string, len(tableValues.Fields))
		widths := make([]int, len(tableValues.Fields))
		for i, field := range tableValues.Fields {
			widths[i] = len(field.Name)
			for _, val := range field.Values {
				formatted := withSeparators(p, val)
				columns[i] = append(columns[i], formatted)
				widths[i] = max(widths[i], len(formatted))
			}
		}
		columnSpacing := 3
		var header, underline strings.Builder
		for i, field := range tableValues.Fields {
			header.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, field.Name))
			underline.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, strings.Repeat("-", len(field.Name))))
		}
		sb.WriteString(strings.TrimRight(header.String(), " ") + "\n")
		sb.WriteString(strings.TrimRight(underline.String(), " ") + "\n")
		for row := 0; row < len(columns[0]); row++ {
			var line strings.Builder
			for i := range tableValues.Fields {
				// numbers are right aligned, the first column is a name
				if i == 0 {
					line.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, columns[i][row]))
				} else {
					line.WriteString(fmt.Sprintf("%*s%*s", widths[i], columns[i][row], columnSpacing, ""))
				}
			}
			sb.WriteString(strings.TrimRight(line.String(), " ") + "\n")
		}
	} else {
		maxFieldNameLen := 0
		for _, field := range tableValues.Fields {
			maxFieldNameLen = max(maxFieldNameLen, len(field.Name))
		}
		// print the field names followed by their value
		for _, field := range tableValues.Fields {
			var value string
			if len(field.Values) > 0 {
				value = field.Values[0]
			}
			sb.WriteString(fmt.Sprintf("%s%-*s %s\n", field.Name, maxFieldNameLen-len(field.Name)+1, ":", value))
		}
	}
	return sb.String()
}

// Package list is a subcommand of the root command. It prints the events that
// can be counted.
package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"strings"

	"perfstat/internal/common"
	"perfstat/internal/event"

	"github.com/spf13/cobra"
)

const cmdName = "list"

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List the events that can be counted",
	Example:       fmt.Sprintf("  List events:   $ %s %s", common.AppName, cmdName),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

func runCmd(cmd *cobra.Command, args []string) error {
	return writeList(cmd.OutOrStdout())
}

// writeList prints one line per event: the identifier accepted by stat -e,
// the name used in reports and the privilege it needs.
func writeList(w io.Writer) error {
	identifiers := event.Identifiers()
	width := len("Event")
	for _, identifier := range identifiers {
		width = max(width, len(identifier))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s   %-24s %s\n", width, "Event", "Reported As", "Counts")
	fmt.Fprintf(&sb, "%-*s   %-24s %s\n", width, "-----", "-----------", "------")
	for _, kind := range event.Defaults() {
		mode := "user"
		if kind.KernelMode() {
			mode = "user+kernel"
		}
		fmt.Fprintf(&sb, "%-*s   %-24s %s\n", width, kind.Identifier(), kind.String(), mode)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

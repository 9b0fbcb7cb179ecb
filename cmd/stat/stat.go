// Package stat is a subcommand of the root command. It runs a command and
// reports the performance events counted while it ran.
package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"perfstat/internal/common"
	"perfstat/internal/event"
	"perfstat/internal/launch"
	"perfstat/internal/metrics"
	"perfstat/internal/perf"
	"perfstat/internal/progress"
	"perfstat/internal/report"
	"perfstat/internal/stat"
	"perfstat/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const cmdName = "stat"

var examples = []string{
	fmt.Sprintf("  Count the default events:              $ %s %s -- ls -l", common.AppName, cmdName),
	fmt.Sprintf("  Count cycles and instructions:         $ %s %s -e cycles,instructions -- make -j8", common.AppName, cmdName),
	fmt.Sprintf("  Write json and xlsx reports:           $ %s %s --format json,xlsx --output /tmp -- ./bench", common.AppName, cmdName),
	fmt.Sprintf("  Export for the node exporter:          $ %s %s --prom-textfile /var/lib/node_exporter/perfstat.prom -- ./bench", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] -- command [args...]",
	Short:         "Run a command and count performance events while it runs",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
}

var (
	flagEvents       []string
	flagFormat       []string
	flagMetrics      bool
	flagMetricFile   string
	flagMetricNames  []string
	flagPromTextfile string
	flagProgress     bool
)

const (
	flagEventsName       = "event"
	flagFormatName       = "format"
	flagMetricsName      = "metrics"
	flagMetricFileName   = "metricfile"
	flagMetricNamesName  = "metric"
	flagPromTextfileName = "prom-textfile"
	flagProgressName     = "progress"
)

func init() {
	Cmd.Flags().StringSliceVarP(&flagEvents, flagEventsName, "e", []string{}, "")
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{report.FormatTxt}, "")
	Cmd.Flags().BoolVar(&flagMetrics, flagMetricsName, true, "")
	Cmd.Flags().StringVar(&flagMetricFile, flagMetricFileName, "", "")
	Cmd.Flags().StringSliceVar(&flagMetricNames, flagMetricNamesName, []string{}, "")
	Cmd.Flags().StringVar(&flagPromTextfile, flagPromTextfileName, "", "")
	Cmd.Flags().BoolVar(&flagProgress, flagProgressName, false, "")
	// everything after the first argument belongs to the command
	Cmd.Flags().SetInterspersed(false)
	for _, name := range []string{flagEventsName, flagFormatName, flagMetricsName, flagMetricFileName, flagMetricNamesName, flagPromTextfileName, flagProgressName} {
		_ = viper.BindPFlag(name, Cmd.Flags().Lookup(name))
	}
	Cmd.SetUsageFunc(common.UsageFunc(fmt.Sprintf("%s %s [flags] -- command [args...]", common.AppName, cmdName), getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	groups = append(groups, common.FlagGroup{
		GroupName: "Event Options",
		Flags: []common.Flag{
			{
				Name: flagEventsName,
				Help: fmt.Sprintf("comma separated list of events to count, default is all of: %s", strings.Join(event.Identifiers(), ", ")),
			},
			{
				Name: flagMetricsName,
				Help: "derive metrics, e.g., instructions per cycle, from the counted events",
			},
			{
				Name: flagMetricFileName,
				Help: "YAML file with metric definitions to use instead of the built-in definitions",
			},
			{
				Name: flagMetricNamesName,
				Help: "comma separated list of metric names to derive, default is all",
			},
		},
	})
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags: []common.Flag{
			{
				Name: flagFormatName,
				Help: fmt.Sprintf("choose output format(s) from: %s. txt is written to stdout, other formats to files in the output directory", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
			},
			{
				Name: flagPromTextfileName,
				Help: "also write the results to this file in the Prometheus text format",
			},
			{
				Name: flagProgressName,
				Help: "show the phase of the run on stderr",
			},
		},
	})
	return groups
}

// options are the validated settings of one invocation, from flags, the
// environment and the config file.
type options struct {
	events       []event.Kind
	formats      []string
	metrics      bool
	metricFile   string
	metricNames  []string
	promTextfile string
	progress     bool
	writeTxt     bool // write the txt report to a file as well as stdout
}

// splitList accepts both repeated values and comma separated values, as
// values from the environment and config file are not split by the flag parser.
func splitList(values []string) (items []string) {
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return
}

// expandFormats replaces "all" with every format and removes duplicates.
func expandFormats(formats []string) ([]string, error) {
	var expanded []string
	for _, format := range formats {
		switch {
		case format == report.FormatAll:
			for _, f := range report.FormatOptions {
				expanded = util.UniqueAppend(expanded, f)
			}
		case slices.Contains(report.FormatOptions, format):
			expanded = util.UniqueAppend(expanded, format)
		default:
			return nil, fmt.Errorf("format options are: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", "))
		}
	}
	if len(expanded) == 0 {
		expanded = []string{report.FormatTxt}
	}
	return expanded, nil
}

func readOptions() (opts options, err error) {
	if opts.events, err = event.ParseList(splitList(viper.GetStringSlice(flagEventsName))); err != nil {
		return
	}
	if opts.formats, err = expandFormats(splitList(viper.GetStringSlice(flagFormatName))); err != nil {
		return
	}
	opts.metrics = viper.GetBool(flagMetricsName)
	opts.metricNames = splitList(viper.GetStringSlice(flagMetricNamesName))
	opts.progress = viper.GetBool(flagProgressName)
	if opts.metricFile = viper.GetString(flagMetricFileName); opts.metricFile != "" {
		if opts.metricFile, err = util.AbsPath(opts.metricFile); err != nil {
			return
		}
		var exists bool
		if exists, err = util.FileExists(opts.metricFile); err != nil {
			return
		} else if !exists {
			err = fmt.Errorf("metric file %s does not exist", opts.metricFile)
			return
		}
	}
	if opts.promTextfile = viper.GetString(flagPromTextfileName); opts.promTextfile != "" {
		if opts.promTextfile, err = util.AbsPath(opts.promTextfile); err != nil {
			return
		}
	}
	opts.writeTxt = viper.GetString("output") != ""
	return
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return common.FlagValidationError(cmd, "no command given, e.g., perfstat stat -- ls")
	}
	if _, err := readOptions(); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	appContext, ok := common.GetAppContext(cmd)
	if !ok {
		return errors.New("application context not initialized")
	}
	opts, err := readOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	// the terminal sends ctrl-c to the command too, keep running until it exits
	release := holdInterrupts()
	defer release()
	runner := &stat.Runner{
		Launch: launch.Options{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
	}
	if err := runStat(appContext, opts, args, runner, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// runStat measures command and writes its reports.
func runStat(appContext common.AppContext, opts options, command []string, runner *stat.Runner, stdout io.Writer) error {
	var defs []metrics.Definition
	if opts.metrics {
		var err error
		if defs, err = metrics.LoadDefinitions(opts.metricFile, opts.metricNames); err != nil {
			return fmt.Errorf("failed to load metric definitions: %w", err)
		}
		if err = metrics.Configure(defs, map[string]string{"SYSTEM_CPU_COUNT": strconv.Itoa(runtime.NumCPU())}); err != nil {
			return fmt.Errorf("failed to configure metrics: %w", err)
		}
	}
	if opts.progress && progress.StderrIsTerminal() {
		spinner := progress.NewMultiSpinner()
		label := command[0]
		if err := spinner.AddSpinner(label); err != nil {
			return err
		}
		runner.Progress = func(phase stat.Phase, status string) {
			_ = spinner.Status(label, status)
		}
		spinner.Start()
		defer spinner.Finish()
	}
	slog.Info("starting run", slog.String("command", strings.Join(command, " ")), slog.Int("events", len(event.Resolve(opts.events))))
	run, runErr := runner.Run(opts.events, command)
	if run == nil {
		slog.Error("run failed", slog.String("error", runErr.Error()))
		return runErr
	}
	coverages := make([]float64, 0, len(run.Results))
	for _, result := range run.Results {
		coverages = append(coverages, result.Coverage)
	}
	if hint := perf.MultiplexingHint(coverages); hint != "" {
		slog.Warn(hint)
		fmt.Fprintf(os.Stderr, "Warning: %s\n", hint)
	}
	var derived []metrics.Metric
	if opts.metrics && !run.Failed {
		derived = metrics.Evaluate(defs, metricValues(run))
	}
	if err := writeReports(appContext, opts, run, derived, stdout); err != nil {
		return err
	}
	if runErr != nil {
		slog.Error("run failed", slog.String("error", runErr.Error()))
		return runErr
	}
	return nil
}

// metricValues are the variables available to metric expressions: every
// event delta by identifier and the elapsed time in nanoseconds.
func metricValues(run *stat.Report) map[string]float64 {
	values := make(map[string]float64)
	for identifier, delta := range run.Deltas() {
		values[identifier] = float64(delta)
	}
	values[metrics.ElapsedVariable] = float64(run.Elapsed().Nanoseconds())
	return values
}

// holdInterrupts logs SIGINT instead of exiting. The returned function restores
// the default handling and waits for the logging goroutine to finish.
func holdInterrupts() (release func()) {
	sigChannel := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigChannel, syscall.SIGINT)
	go func() {
		defer close(done)
		for sig := range sigChannel {
			slog.Info("received signal, waiting for command to exit", slog.String("signal", sig.String()))
		}
	}()
	return func() {
		signal.Stop(sigChannel)
		close(sigChannel)
		<-done
	}
}

func writeReports(appContext common.AppContext, opts options, run *stat.Report, derived []metrics.Metric, stdout io.Writer) error {
	var files []string
	for _, format := range opts.formats {
		out, err := report.Create(format, run, derived)
		if err != nil {
			return fmt.Errorf("failed to create %s report: %w", format, err)
		}
		if format == report.FormatTxt {
			if _, err := stdout.Write(out); err != nil {
				return err
			}
			if !opts.writeTxt {
				continue
			}
		}
		if len(files) == 0 {
			if err := common.CreateOutputDir(appContext.OutputDir); err != nil {
				return err
			}
		}
		path := common.OutputFilePath(appContext, format)
		if err := common.WriteOutputFile(out, path); err != nil {
			return err
		}
		files = append(files, path)
	}
	if opts.promTextfile != "" {
		if err := report.WriteTextfile(opts.promTextfile, run, derived); err != nil {
			return err
		}
		files = append(files, opts.promTextfile)
	}
	if len(files) > 0 {
		fmt.Fprintln(os.Stderr, "Report files:")
		for _, file := range files {
			fmt.Fprintf(os.Stderr, "  %s\n", file)
		}
	}
	return nil
}

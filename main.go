// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"perfstat/cmd"
	"perfstat/internal/launch"
)

func main() {
	// the re-executed child waits for the go signal, then becomes the profiled command
	if launch.IsStub() {
		os.Exit(launch.RunStub(os.Args[1:]))
	}
	os.Exit(run())
}

func run() int {
	// profile only if the environment variable is set
	if os.Getenv("PERFSTAT_PROFILE") != "" {
		// CPU profiling
		cpuFile, err := os.Create("cpu.prof")
		if err != nil {
			panic(err)
		}
		defer cpuFile.Close()

		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()

		// Memory profiling
		memFile, err := os.Create("mem.prof")
		if err != nil {
			panic(err)
		}
		defer memFile.Close()
		defer func() {
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				panic(err)
			}
		}()
		defer func() {
			fmt.Fprintf(os.Stderr, "Profiling data written to cpu.prof and mem.prof\n")
			fmt.Fprintf(os.Stderr, "To analyze, use:\n")
			fmt.Fprintf(os.Stderr, "  go tool pprof cpu.prof\n")
			fmt.Fprintf(os.Stderr, "  go tool pprof -http=:8080 cpu.prof\n")
		}()
	}
	return cmd.Execute()
}

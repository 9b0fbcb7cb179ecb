// Package metrics derives ratios such as instructions per cycle from the
// counter deltas of a run.
package metrics

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"embed"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/casbin/govaluate"
	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v2"
)

//go:embed resources
var resources embed.FS

// ElapsedVariable is the run's elapsed time in nanoseconds.
const ElapsedVariable = "elapsed-ns"

// Definition is a named expression over event deltas.
type Definition struct {
	Name       string                         `yaml:"name"`
	Expression string                         `yaml:"expression"`
	Variables  mapset.Set[string]             `yaml:"-"` // parsed from Expression
	Evaluable  *govaluate.EvaluableExpression `yaml:"-"` // parse expression once, store here for use in evaluation
}

// Metric is an evaluated Definition. Value is NaN when the metric could not be
// computed, e.g., one of its events was not collected.
type Metric struct {
	Name  string
	Value float64
}

// LoadDefinitions reads metric definitions from the override file, or the
// embedded defaults when the path is empty. When names are given only those
// definitions are returned, in file order.
func LoadDefinitions(overridePath string, names []string) (defs []Definition, err error) {
	var bytes []byte
	if overridePath != "" {
		if bytes, err = os.ReadFile(overridePath); err != nil {
			return
		}
	} else {
		if bytes, err = resources.ReadFile("resources/metrics.yaml"); err != nil {
			return
		}
	}
	var inFile []Definition
	if err = yaml.Unmarshal(bytes, &inFile); err != nil {
		err = fmt.Errorf("failed to parse metric definitions: %w", err)
		return
	}
	if len(names) == 0 {
		defs = inFile
		return
	}
	for _, name := range names {
		if !slices.ContainsFunc(inFile, func(d Definition) bool { return d.Name == name }) {
			err = fmt.Errorf("metric name not found: %s", name)
			return
		}
	}
	for _, def := range inFile {
		if slices.Contains(names, def.Name) {
			defs = append(defs, def)
		}
	}
	return
}

// Configure replaces constants in each expression with their values and
// compiles the expression. Constants are written as [NAME] in expressions.
func Configure(defs []Definition, constants map[string]string) (err error) {
	functions := evaluatorFunctions()
	for i := range defs {
		for name, value := range constants {
			defs[i].Expression = strings.ReplaceAll(defs[i].Expression, "["+name+"]", value)
		}
		if defs[i].Evaluable, err = govaluate.NewEvaluableExpressionWithFunctions(defs[i].Expression, functions); err != nil {
			slog.Error("failed to create evaluable expression for metric", slog.String("error", err.Error()), slog.String("metric name", defs[i].Name), slog.String("metric expression", defs[i].Expression))
			err = fmt.Errorf("metric %s: %w", defs[i].Name, err)
			return
		}
		defs[i].Variables = mapset.NewSet(defs[i].Evaluable.Vars()...)
	}
	return
}

// Evaluate computes every configured definition from values, keyed by
// variable name. Metrics whose variables are not all present, or whose result
// is not a finite number, have a NaN value.
func Evaluate(defs []Definition, values map[string]float64) []Metric {
	available := mapset.NewSetFromMapKeys(values)
	metrics := make([]Metric, 0, len(defs))
	for _, def := range defs {
		metric := Metric{Name: def.Name, Value: math.NaN()}
		if def.Evaluable == nil {
			slog.Debug("metric not configured", slog.String("metric", def.Name))
			metrics = append(metrics, metric)
			continue
		}
		missing := def.Variables.Difference(available)
		if missing.Cardinality() > 0 {
			slog.Debug("metric variables not collected", slog.String("metric", def.Name), slog.String("missing", strings.Join(missing.ToSlice(), ", ")))
			metrics = append(metrics, metric)
			continue
		}
		parameters := make(map[string]any, def.Variables.Cardinality())
		for name := range def.Variables.Iter() {
			parameters[name] = values[name]
		}
		result, err := evaluateExpression(def, parameters)
		if err != nil {
			slog.Debug("failed to evaluate expression", slog.String("error", err.Error()))
		} else if value, ok := result.(float64); ok && !math.IsInf(value, 0) {
			metric.Value = value
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

func evaluateExpression(def Definition, parameters map[string]any) (result any, err error) {
	defer func() {
		if errx := recover(); errx != nil {
			err = fmt.Errorf("%v", errx)
		}
	}()
	if result, err = def.Evaluable.Evaluate(parameters); err != nil {
		err = fmt.Errorf("%v : %s : %s", err, def.Name, def.Expression)
	}
	return
}

func toFloat(arg any) float64 {
	switch t := arg.(type) {
	case int:
		return float64(t)
	case float64:
		return t
	}
	return math.NaN()
}

func evaluatorFunctions() (functions map[string]govaluate.ExpressionFunction) {
	functions = make(map[string]govaluate.ExpressionFunction)
	functions["max"] = func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("max takes 2 arguments, got %d", len(args))
		}
		return max(toFloat(args[0]), toFloat(args[1])), nil
	}
	functions["min"] = func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("min takes 2 arguments, got %d", len(args))
		}
		return min(toFloat(args[0]), toFloat(args[1])), nil
	}
	return
}

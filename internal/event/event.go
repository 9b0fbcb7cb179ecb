// Package event defines the catalogue of countable events supported by perfstat.
package event

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind identifies one countable event.
type Kind int

const (
	Cycles Kind = iota
	Instructions
	TaskClock
	ContextSwitches
	L1DCacheRead
	L1DCacheWrite
	L1DCacheReadMiss
	L1ICacheReadMiss
)

// ErrInvalidEvent is returned by Parse for identifiers not found in the catalogue.
var ErrInvalidEvent = errors.New("invalid event")

type definition struct {
	kind       Kind
	identifier string // accepted on the command line
	display    string // used in report lines
	// kernelMode is set for events that cannot be restricted to user space and
	// therefore need a lower kernel.perf_event_paranoid setting
	kernelMode bool
}

// catalogue order is the default collection order
var catalogue = []definition{
	{Cycles, "cycles", "cycles", false},
	{Instructions, "instructions", "instructions", false},
	// display differs from the identifier; report text depends on "task clock"
	{TaskClock, "task-clock", "task clock", false},
	{ContextSwitches, "context-switches", "context switches", true},
	{L1DCacheRead, "L1D-cache-reads", "L1D-cache-reads", false},
	{L1DCacheWrite, "L1D-cache-writes", "L1D-cache-writes", false},
	{L1DCacheReadMiss, "L1D-cache-read-misses", "L1D-cache-read-misses", false},
	{L1ICacheReadMiss, "L1I-cache-read-misses", "L1I-cache-read-misses", false},
}

func lookup(k Kind) (definition, bool) {
	if k < 0 || int(k) >= len(catalogue) {
		return definition{}, false
	}
	return catalogue[k], true
}

// Parse returns the Kind matching the identifier exactly. Matching is case
// sensitive and there are no aliases.
func Parse(identifier string) (Kind, error) {
	for _, def := range catalogue {
		if def.identifier == identifier {
			return def.kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q, valid events are: %s", ErrInvalidEvent, identifier, strings.Join(Identifiers(), ", "))
}

// ParseList parses each identifier in order. Duplicates are kept.
func ParseList(identifiers []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(identifiers))
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, identifier := range identifiers {
		kind, err := Parse(identifier)
		if err != nil {
			return nil, err
		}
		if !seen.Add(identifier) {
			slog.Debug("event requested more than once, each request gets its own counter", slog.String("event", identifier))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// String returns the human readable label used in reports. It is not
// guaranteed to be accepted by Parse, see Identifier.
func (k Kind) String() string {
	if def, ok := lookup(k); ok {
		return def.display
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Identifier returns the identifier accepted by Parse.
func (k Kind) Identifier() string {
	if def, ok := lookup(k); ok {
		return def.identifier
	}
	return ""
}

// KernelMode reports whether the event is counted in kernel mode.
func (k Kind) KernelMode() bool {
	def, _ := lookup(k)
	return def.kernelMode
}

// Valid reports whether k is one of the catalogue kinds.
func (k Kind) Valid() bool {
	_, ok := lookup(k)
	return ok
}

// Defaults returns the default event set in canonical order. A new slice is
// returned on each call.
func Defaults() []Kind {
	kinds := make([]Kind, 0, len(catalogue))
	for _, def := range catalogue {
		kinds = append(kinds, def.kind)
	}
	return kinds
}

// Resolve returns the events to collect: the defaults when requested is empty,
// otherwise a copy of requested. The caller's slice is never modified.
func Resolve(requested []Kind) []Kind {
	if len(requested) == 0 {
		return Defaults()
	}
	resolved := make([]Kind, len(requested))
	copy(resolved, requested)
	return resolved
}

// Identifiers returns every identifier in catalogue order.
func Identifiers() []string {
	identifiers := make([]string, 0, len(catalogue))
	for _, def := range catalogue {
		identifiers = append(identifiers, def.identifier)
	}
	return identifiers
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compare diffs two reasoning chains.
//
// The package has two layers. The matcher builds a keyed correspondence
// between the events of two chains under a chosen strategy; the diff
// engine consumes that correspondence to compute added/removed/modified
// sets, confidence deltas, and a similarity score.
//
// All operations are pure functions of their arguments: no I/O, no
// mutation of inputs, no goroutines. Calling Compare concurrently on
// independent chains needs no synchronization.
package compare

import (
	"strconv"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// Strategy selects how events in one chain are matched to events in the
// other.
type Strategy string

const (
	// MatchByID keys events by their id. Right for chains sharing lineage
	// (a chain and its later revision).
	MatchByID Strategy = "id"

	// MatchByPosition keys events by their zero-based index. Right for
	// comparing runs of identical length step by step.
	MatchByPosition Strategy = "position"

	// MatchByContent keys events by (type, decision). Structurally
	// identical decisions of the same type collide intentionally; this is
	// the heuristic for chains generated independently (re-runs), which
	// never share ids.
	MatchByContent Strategy = "content"

	// MatchAuto uses MatchByID when the two chains share any id and
	// falls back to MatchByContent when they share none.
	MatchAuto Strategy = "auto"
)

// Valid reports whether s is a recognized strategy.
func (s Strategy) Valid() bool {
	switch s {
	case MatchByID, MatchByPosition, MatchByContent, MatchAuto:
		return true
	}
	return false
}

// contentKeySep separates type from decision in content keys. A unit
// separator keeps "a|b"+"c" and "a"+"b|c" style collisions out of the
// key space.
const contentKeySep = "\x1f"

// contentKey builds the composite (type, decision) key.
func contentKey(e trace.Event) string {
	return string(e.Type) + contentKeySep + e.Decision
}

// buildMaps produces the key-to-event correspondence maps for both event
// sequences under the given strategy.
//
// The strategy must already be validated and resolved; buildMaps has no
// error conditions. For MatchAuto callers resolve the effective strategy
// with resolveAuto first.
func buildMaps(events1, events2 []trace.Event, strategy Strategy) (map[string]trace.Event, map[string]trace.Event) {
	key := func(e trace.Event, pos int) string {
		switch strategy {
		case MatchByPosition:
			return strconv.Itoa(pos)
		case MatchByContent:
			return contentKey(e)
		default:
			return e.ID
		}
	}

	m1 := make(map[string]trace.Event, len(events1))
	for i, e := range events1 {
		m1[key(e, i)] = e
	}
	m2 := make(map[string]trace.Event, len(events2))
	for i, e := range events2 {
		m2[key(e, i)] = e
	}
	return m1, m2
}

// resolveAuto picks the effective strategy for MatchAuto: by id when the
// id sets intersect at all, by content when they are disjoint. Chains
// generated independently never share ids, so id matching would report
// everything as added+removed; content matching is the useful signal
// there.
func resolveAuto(events1, events2 []trace.Event) Strategy {
	ids := make(map[string]struct{}, len(events1))
	for _, e := range events1 {
		ids[e.ID] = struct{}{}
	}
	for _, e := range events2 {
		if _, ok := ids[e.ID]; ok {
			return MatchByID
		}
	}
	return MatchByContent
}

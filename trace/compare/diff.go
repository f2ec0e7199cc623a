// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compare

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// Options controls how two chains are compared.
type Options struct {
	// MatchBy selects the matching strategy. Zero value means MatchAuto.
	MatchBy Strategy

	// IgnoreTimestamps excludes the timestamp field from modification
	// detection. Most traces are re-generated, so timestamps differ even
	// when nothing meaningful changed.
	IgnoreTimestamps bool
}

// DefaultOptions returns the defaults: auto matching, timestamps ignored.
func DefaultOptions() Options {
	return Options{MatchBy: MatchAuto, IgnoreTimestamps: true}
}

// FieldChange records one field that differs between two matched events.
type FieldChange struct {
	// Field is the name of the differing field.
	Field string `json:"field"`

	// Old is the value in the first chain.
	Old any `json:"old"`

	// New is the value in the second chain.
	New any `json:"new"`
}

// Modification pairs a matching key with the field changes found between
// the two events that key matched.
type Modification struct {
	// Key is the matching key (id, position, or content key depending on
	// the strategy in effect).
	Key string `json:"key"`

	// Changes lists every differing field, in a fixed field order.
	Changes []FieldChange `json:"changes"`
}

// Diff is the structured difference between two chains. Key-sorted
// fields order position keys numerically and every other key kind as a
// string.
type Diff struct {
	// Added holds events present only in the second chain, sorted by
	// matching key.
	Added []trace.Event `json:"added"`

	// Removed holds events present only in the first chain, sorted by
	// matching key.
	Removed []trace.Event `json:"removed"`

	// Modified holds matched events whose compared fields differ, sorted
	// by matching key. Matched events with no differing fields are
	// omitted entirely.
	Modified []Modification `json:"modified"`

	// ConfidenceDeltas maps matching key to round(new−old, 6) for every
	// matched event whose confidence changed.
	ConfidenceDeltas map[string]float64 `json:"confidence_deltas"`

	// SimilarityScore is |common| / max(len(A.Events), len(B.Events)),
	// in [0, 1]. Two empty chains score 1.0. The denominator is the
	// event count, not the key-set size, so duplicate content keys
	// lower the score on purpose.
	SimilarityScore float64 `json:"similarity_score"`

	// Strategy is the effective strategy used (auto is resolved).
	Strategy Strategy `json:"strategy"`

	// Summary is "<n> added, <n> removed, <n> modified", in that fixed
	// order, for script consumption.
	Summary string `json:"summary"`
}

// Compare computes the structured difference between two chains.
//
// Description:
//
//	Builds keyed event maps for both chains under opts.MatchBy, takes
//	key-set differences for added/removed, and compares matched events
//	field by field (decision, reasoning, confidence, alternatives, and
//	timestamp only when opts.IgnoreTimestamps is false). Field values
//	are compared with strict equality; confidence by exact float
//	equality, not epsilon, so results are deterministic.
//
// Inputs:
//
//	chainA - Baseline chain.
//	chainB - Candidate chain.
//	opts   - Matching strategy and timestamp handling; nil means defaults.
//
// Outputs:
//
//	*Diff - Added/removed/modified sets, confidence deltas, similarity
//	        score, and a fixed-format summary. Added/removed/modified
//	        are sorted by matching key so output order is reproducible.
//	error - ErrInvalidMatchStrategy when opts.MatchBy is unrecognized.
//	        Comparing has no other failure modes: empty chains, disjoint
//	        chains, and events without relationships all diff cleanly.
func Compare(chainA, chainB trace.Chain, opts *Options) (*Diff, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
		if o.MatchBy == "" {
			o.MatchBy = MatchAuto
		}
	}
	if !o.MatchBy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMatchStrategy, o.MatchBy)
	}

	strategy := o.MatchBy
	if strategy == MatchAuto {
		strategy = resolveAuto(chainA.Events, chainB.Events)
	}
	mapA, mapB := buildMaps(chainA.Events, chainB.Events, strategy)

	var addedKeys, removedKeys, commonKeys []string
	for k := range mapB {
		if _, ok := mapA[k]; ok {
			commonKeys = append(commonKeys, k)
		} else {
			addedKeys = append(addedKeys, k)
		}
	}
	for k := range mapA {
		if _, ok := mapB[k]; !ok {
			removedKeys = append(removedKeys, k)
		}
	}
	sortKeys(addedKeys, strategy)
	sortKeys(removedKeys, strategy)
	sortKeys(commonKeys, strategy)

	diff := &Diff{
		Added:            make([]trace.Event, 0, len(addedKeys)),
		Removed:          make([]trace.Event, 0, len(removedKeys)),
		ConfidenceDeltas: make(map[string]float64),
		Strategy:         strategy,
	}
	for _, k := range addedKeys {
		diff.Added = append(diff.Added, mapB[k])
	}
	for _, k := range removedKeys {
		diff.Removed = append(diff.Removed, mapA[k])
	}

	for _, k := range commonKeys {
		oldEv, newEv := mapA[k], mapB[k]
		changes := compareEvents(oldEv, newEv, o.IgnoreTimestamps)
		if len(changes) > 0 {
			diff.Modified = append(diff.Modified, Modification{Key: k, Changes: changes})
		}
		if oldEv.Confidence != newEv.Confidence {
			diff.ConfidenceDeltas[k] = roundTo(newEv.Confidence-oldEv.Confidence, 6)
		}
	}

	diff.SimilarityScore = similarity(len(commonKeys), len(chainA.Events), len(chainB.Events))
	diff.Summary = fmt.Sprintf("%d added, %d removed, %d modified",
		len(diff.Added), len(diff.Removed), len(diff.Modified))
	return diff, nil
}

// sortKeys orders matching keys for output. Position keys are decimal
// indexes, so they sort numerically; lexicographic order would put
// position 10 before position 2. All other key kinds sort as strings.
func sortKeys(keys []string, strategy Strategy) {
	if strategy == MatchByPosition {
		slices.SortFunc(keys, func(a, b string) int {
			ai, _ := strconv.Atoi(a)
			bi, _ := strconv.Atoi(b)
			return ai - bi
		})
		return
	}
	slices.Sort(keys)
}

// compareEvents produces one FieldChange per differing field, in a fixed
// field order so Modification.Changes is reproducible.
func compareEvents(oldEv, newEv trace.Event, ignoreTimestamps bool) []FieldChange {
	var changes []FieldChange
	if oldEv.Decision != newEv.Decision {
		changes = append(changes, FieldChange{Field: "decision", Old: oldEv.Decision, New: newEv.Decision})
	}
	if oldEv.Reasoning != newEv.Reasoning {
		changes = append(changes, FieldChange{Field: "reasoning", Old: oldEv.Reasoning, New: newEv.Reasoning})
	}
	if oldEv.Confidence != newEv.Confidence {
		changes = append(changes, FieldChange{Field: "confidence", Old: oldEv.Confidence, New: newEv.Confidence})
	}
	if !slices.Equal(oldEv.Alternatives, newEv.Alternatives) {
		changes = append(changes, FieldChange{Field: "alternatives", Old: oldEv.Alternatives, New: newEv.Alternatives})
	}
	if !ignoreTimestamps && !oldEv.Timestamp.Equal(newEv.Timestamp) {
		changes = append(changes, FieldChange{Field: "timestamp", Old: oldEv.Timestamp, New: newEv.Timestamp})
	}
	return changes
}

// similarity computes |common| / max(countA, countB). Two chains with no
// events at all are perfectly similar. The denominator deliberately uses
// the raw event counts: under content matching, duplicate (type, decision)
// pairs collapse into one key and shrink the common set without shrinking
// the denominator. That penalty is documented behavior, not a bug.
func similarity(common, countA, countB int) float64 {
	larger := max(countA, countB)
	if larger == 0 {
		return 1.0
	}
	return float64(common) / float64(larger)
}

// roundTo rounds v to the given number of decimal places, half away from
// zero.
func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}

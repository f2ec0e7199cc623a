// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package relationship answers structural queries about one chain's
// parent/dependency graph and certifies its integrity.
//
// Relationships between events are weak, id-based references. The graph
// here is never materialized as linked nodes: queries resolve ids through
// the chain's event list and a built id index, which sidesteps cyclic
// ownership entirely.
//
// The accessors in this file are lenient: a dangling ParentID resolves to
// "no parent" rather than an error. Strict checking is Validate's job;
// the storage layer calls it before persisting a chain.
//
// All functions are pure and read-only over immutable inputs; concurrent
// calls on independent chains need no synchronization.
package relationship

import (
	"fmt"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// Children returns every event whose ParentID equals eventID, in chain
// insertion order.
//
// Returns ErrEventNotFound when eventID is not present in the chain at
// all, so callers can tell "no children" from "unknown event".
func Children(chain trace.Chain, eventID string) ([]trace.Event, error) {
	if _, ok := chain.EventByID(eventID); !ok {
		return nil, fmt.Errorf("%w: %q in chain %q", ErrEventNotFound, eventID, chain.ID)
	}
	var children []trace.Event
	for _, e := range chain.Events {
		if e.ParentID == eventID {
			children = append(children, e)
		}
	}
	return children, nil
}

// Parent resolves the parent of the event with the given id.
//
// Returns (nil, nil) when the event has no ParentID, and also when the
// ParentID dangles. Dangling references are reported by Validate, not by
// this lenient accessor. Returns ErrEventNotFound when eventID itself is
// absent from the chain.
func Parent(chain trace.Chain, eventID string) (*trace.Event, error) {
	e, ok := chain.EventByID(eventID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in chain %q", ErrEventNotFound, eventID, chain.ID)
	}
	if e.ParentID == "" {
		return nil, nil
	}
	parent, ok := chain.EventByID(e.ParentID)
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

// Roots returns the chain's events that have no parent reference, in
// insertion order.
func Roots(chain trace.Chain) []trace.Event {
	var roots []trace.Event
	for _, e := range chain.Events {
		if e.IsRoot() {
			roots = append(roots, e)
		}
	}
	return roots
}

// Leaves returns the events never referenced as any other event's parent,
// in insertion order.
func Leaves(chain trace.Chain) []trace.Event {
	referenced := make(map[string]struct{}, len(chain.Events))
	for _, e := range chain.Events {
		if e.ParentID != "" {
			referenced[e.ParentID] = struct{}{}
		}
	}
	var leaves []trace.Event
	for _, e := range chain.Events {
		if _, ok := referenced[e.ID]; !ok {
			leaves = append(leaves, e)
		}
	}
	return leaves
}

// EventsByStage returns the events tagged with the given stage id, in
// insertion order.
func EventsByStage(chain trace.Chain, stageID string) []trace.Event {
	var events []trace.Event
	for _, e := range chain.Events {
		if e.StageID == stageID {
			events = append(events, e)
		}
	}
	return events
}

// EventsByExperiment returns the events tagged with the given experiment
// id, in insertion order.
func EventsByExperiment(chain trace.Chain, experimentID string) []trace.Event {
	var events []trace.Event
	for _, e := range chain.Events {
		if e.ExperimentID == experimentID {
			events = append(events, e)
		}
	}
	return events
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relationship

import "github.com/North-Shore-AI/crucible-trace/trace"

// Validate certifies that a chain's relationship graph is well-formed.
//
// Description:
//
//	Runs an ordered pipeline, stopping at the first failure:
//	 1. Every non-empty ParentID resolves to an existing event id.
//	 2. Every DependsOn entry resolves to an existing event id.
//	 3. The directed graph of parent and dependency edges is acyclic.
//
//	Short-circuiting is deliberate: a dangling reference can make cycle
//	analysis meaningless, so problems are reported one at a time.
//	Callers that want exhaustive linting re-run Validate after fixing
//	each reported issue. Validation is advisory and never mutates the
//	chain.
//
// Inputs:
//
//	chain - The chain to certify. The storage layer calls this before
//	        persisting; renderers may call it before drawing graphs.
//
// Outputs:
//
//	error - nil on success; *MissingReferenceError (matches
//	        ErrMissingReference) for a dangling parent or dependency;
//	        *CycleError (matches ErrCycleDetected) for a cycle.
func Validate(chain trace.Chain) error {
	index := chain.Index()

	for _, e := range chain.Events {
		if e.ParentID == "" {
			continue
		}
		if _, ok := index[e.ParentID]; !ok {
			return &MissingReferenceError{Field: RefParent, EventID: e.ID, TargetID: e.ParentID}
		}
	}

	for _, e := range chain.Events {
		for _, dep := range e.DependsOn {
			if _, ok := index[dep]; !ok {
				return &MissingReferenceError{Field: RefDependsOn, EventID: e.ID, TargetID: dep}
			}
		}
	}

	return detectCycle(chain)
}

// adjacency builds the outgoing-edge map id -> [parent?, deps...]. The
// parent edge is included only when set. References are assumed resolved
// (Validate checks them first).
func adjacency(chain trace.Chain) map[string][]string {
	adj := make(map[string][]string, len(chain.Events))
	for _, e := range chain.Events {
		edges := make([]string, 0, len(e.DependsOn)+1)
		if e.ParentID != "" {
			edges = append(edges, e.ParentID)
		}
		edges = append(edges, e.DependsOn...)
		adj[e.ID] = edges
	}
	return adj
}

// dfsFrame is one node on the explicit DFS stack: the node id plus the
// index of the next outgoing edge to explore.
type dfsFrame struct {
	id   string
	next int
}

// detectCycle runs iterative depth-first search over every event,
// tracking two disjoint sets per traversal: onPath (grey, on the current
// branch) and done (black, fully processed). Hitting a grey node means a
// cycle; a black node short-circuits descent so shared sub-DAGs are not
// re-walked.
//
// The DFS uses an explicit frame stack rather than call recursion, so
// chains with thousands of events and deep dependency fan-out cannot
// exhaust the native call stack. Roots are visited in chain insertion
// order, which keeps the reported cycle deterministic for a given input.
func detectCycle(chain trace.Chain) error {
	adj := adjacency(chain)
	onPath := make(map[string]bool, len(chain.Events))
	done := make(map[string]bool, len(chain.Events))

	for _, root := range chain.Events {
		if done[root.ID] {
			continue
		}

		stack := []dfsFrame{{id: root.ID}}
		onPath[root.ID] = true

		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			edges := adj[frame.id]

			if frame.next >= len(edges) {
				// All edges explored: node moves from grey to black.
				onPath[frame.id] = false
				done[frame.id] = true
				stack = stack[:len(stack)-1]
				continue
			}

			target := edges[frame.next]
			frame.next++

			if onPath[target] {
				return &CycleError{Path: cyclePath(stack, target)}
			}
			if done[target] {
				continue
			}
			onPath[target] = true
			stack = append(stack, dfsFrame{id: target})
		}
	}
	return nil
}

// cyclePath extracts the portion of the current DFS branch from the
// re-encountered node to the top of the stack, closing the loop by
// appending the node again.
func cyclePath(stack []dfsFrame, target string) []string {
	start := 0
	for i, frame := range stack {
		if frame.id == target {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, frame := range stack[start:] {
		path = append(path, frame.id)
	}
	path = append(path, target)
	return path
}

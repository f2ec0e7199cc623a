// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relationship

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

func TestValidate_WellFormed(t *testing.T) {
	t.Run("empty chain", func(t *testing.T) {
		assert.NoError(t, Validate(testChain()))
	})

	t.Run("linear parent chain", func(t *testing.T) {
		assert.NoError(t, Validate(rootMidLeaf()))
	})

	t.Run("shared sub-DAG is not a cycle", func(t *testing.T) {
		// d1 and d2 both depend on base: a diamond, still acyclic.
		chain := testChain(
			testEvent("base"),
			testEvent("d1", trace.WithDependencies("base")),
			testEvent("d2", trace.WithDependencies("base")),
			testEvent("top", trace.WithDependencies("d1", "d2")),
		)
		assert.NoError(t, Validate(chain))
	})
}

func TestValidate_MissingParent(t *testing.T) {
	chain := testChain(testEvent("orphan", trace.WithParent("ghost")))

	err := Validate(chain)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingReference)

	var missing *MissingReferenceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, RefParent, missing.Field)
	assert.Equal(t, "orphan", missing.EventID)
	assert.Equal(t, "ghost", missing.TargetID)
}

func TestValidate_MissingDependency(t *testing.T) {
	chain := testChain(
		testEvent("a"),
		testEvent("b", trace.WithDependencies("a", "ghost")),
	)

	err := Validate(chain)
	require.Error(t, err)

	var missing *MissingReferenceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, RefDependsOn, missing.Field)
	assert.Equal(t, "b", missing.EventID)
	assert.Equal(t, "ghost", missing.TargetID)
}

func TestValidate_ParentCheckedBeforeDependencies(t *testing.T) {
	// Both violations present: the pipeline reports the parent one first.
	chain := testChain(
		testEvent("a", trace.WithDependencies("ghost-dep")),
		testEvent("b", trace.WithParent("ghost-parent")),
	)

	var missing *MissingReferenceError
	require.ErrorAs(t, Validate(chain), &missing)
	assert.Equal(t, RefParent, missing.Field)
	assert.Equal(t, "ghost-parent", missing.TargetID)
}

func TestValidate_TwoNodeCycle(t *testing.T) {
	chain := testChain(
		testEvent("x", trace.WithDependencies("y")),
		testEvent("y", trace.WithDependencies("x")),
	)

	err := Validate(chain)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.NotEmpty(t, cycle.Path)
	// Every node on the reported path is genuinely on the cycle.
	for _, id := range cycle.Path {
		assert.Contains(t, []string{"x", "y"}, id)
	}
}

func TestValidate_SelfLoop(t *testing.T) {
	chain := testChain(testEvent("selfie", trace.WithDependencies("selfie")))

	err := Validate(chain)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestValidate_ParentEdgeCycle(t *testing.T) {
	// Cycles through parent edges count the same as dependency edges.
	chain := testChain(
		testEvent("a", trace.WithParent("b")),
		testEvent("b", trace.WithParent("a")),
	)

	assert.ErrorIs(t, Validate(chain), ErrCycleDetected)
}

func TestValidate_CycleReachedThroughPrefix(t *testing.T) {
	// entry -> a -> b -> a: the cycle does not include the traversal root.
	chain := testChain(
		testEvent("entry", trace.WithDependencies("a")),
		testEvent("a", trace.WithDependencies("b")),
		testEvent("b", trace.WithDependencies("a")),
	)

	var cycle *CycleError
	require.ErrorAs(t, Validate(chain), &cycle)
	assert.NotContains(t, cycle.Path, "entry", "path should start at the cycle, not the root")
}

func TestValidate_DeterministicCycleReport(t *testing.T) {
	chain := testChain(
		testEvent("x", trace.WithDependencies("y")),
		testEvent("y", trace.WithDependencies("x")),
	)

	var first *CycleError
	require.ErrorAs(t, Validate(chain), &first)
	for i := 0; i < 10; i++ {
		var again *CycleError
		require.ErrorAs(t, Validate(chain), &again)
		assert.Equal(t, first.Path, again.Path, "same input must report the same cycle")
	}
}

func TestValidate_DeepChainIterative(t *testing.T) {
	// A dependency chain deep enough to blow a recursive DFS off the
	// native stack. The iterative traversal must handle it.
	const depth = 200_000
	events := make([]trace.Event, depth)
	for i := 0; i < depth-1; i++ {
		// Each event depends on the next, so the traversal that starts
		// at the first event descends the full depth in one branch.
		events[i] = testEvent(fmt.Sprintf("n%d", i),
			trace.WithDependencies(fmt.Sprintf("n%d", i+1)))
	}
	events[depth-1] = testEvent(fmt.Sprintf("n%d", depth-1))

	chain := testChain(events...)
	assert.NoError(t, Validate(chain))
}

func TestValidate_AdvisoryDoesNotMutate(t *testing.T) {
	chain := rootMidLeaf()
	before := len(chain.Events)

	require.NoError(t, Validate(chain))
	assert.Len(t, chain.Events, before)
	assert.Equal(t, "root", chain.Events[0].ID)
}

func TestValidate_ErrorsAreValues(t *testing.T) {
	// Errors must compose with the standard errors package, nothing
	// panics and nothing is stringly matched.
	err := Validate(testChain(testEvent("e", trace.WithParent("ghost"))))
	wrapped := fmt.Errorf("saving chain: %w", err)
	assert.True(t, errors.Is(wrapped, ErrMissingReference))
}

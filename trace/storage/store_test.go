// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleChain(id, name string, eventCount int) trace.Chain {
	chain := trace.NewChain(name, trace.WithChainID(id))
	for i := 0; i < eventCount; i++ {
		chain = chain.Append(trace.NewEvent(
			trace.EventHypothesisFormed,
			fmt.Sprintf("decision %d of %s", i, name),
			"reasoning",
			trace.WithEventID(fmt.Sprintf("%s-e%d", id, i)),
			trace.WithConfidence(0.9),
		))
	}
	return chain
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	chain := sampleChain("c1", "session one", 3)

	require.NoError(t, store.Save(ctx, chain))

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, chain.ID, loaded.ID)
	assert.Equal(t, chain.Name, loaded.Name)
	require.Len(t, loaded.Events, 3)
	assert.Equal(t, chain.Events[0].Decision, loaded.Events[0].Decision)
}

func TestStore_SaveRejectsDuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleChain("c1", "v1", 1)))

	t.Run("active id collides", func(t *testing.T) {
		err := store.Save(ctx, sampleChain("c1", "v2", 2))
		assert.ErrorIs(t, err, ErrChainExists)

		loaded, err := store.Load(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "v1", loaded.Name, "rejected save must not clobber the stored chain")
	})

	t.Run("archived id collides", func(t *testing.T) {
		require.NoError(t, store.Archive(ctx, "c1"))
		err := store.Save(ctx, sampleChain("c1", "v3", 1))
		assert.ErrorIs(t, err, ErrChainExists)
	})
}

func TestStore_Update(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleChain("c1", "v1", 1)))
	require.NoError(t, store.Update(ctx, sampleChain("c1", "v2", 2)))

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Name)
	assert.Len(t, loaded.Events, 2)

	t.Run("missing chain", func(t *testing.T) {
		err := store.Update(ctx, sampleChain("ghost", "x", 1))
		assert.ErrorIs(t, err, ErrChainNotFound)
	})

	t.Run("archived chain must be restored first", func(t *testing.T) {
		require.NoError(t, store.Archive(ctx, "c1"))
		err := store.Update(ctx, sampleChain("c1", "v3", 1))
		assert.ErrorIs(t, err, ErrChainNotFound)
	})

	t.Run("broken graph rejected", func(t *testing.T) {
		chain := trace.NewChain("broken", trace.WithChainID("upd-1"))
		chain = chain.Append(trace.NewEvent(trace.EventHypothesisFormed, "d", "r",
			trace.WithEventID("e1"), trace.WithParent("ghost")))

		assert.ErrorIs(t, store.Update(ctx, chain), ErrInvalidChain)
	})
}

func TestStore_SaveRejectsBrokenGraph(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("dangling parent", func(t *testing.T) {
		chain := trace.NewChain("broken", trace.WithChainID("broken-1"))
		chain = chain.Append(trace.NewEvent(trace.EventHypothesisFormed, "d", "r",
			trace.WithEventID("e1"), trace.WithParent("ghost")))

		err := store.Save(ctx, chain)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidChain)

		_, err = store.Load(ctx, "broken-1")
		assert.ErrorIs(t, err, ErrChainNotFound, "rejected chain must not be written")
	})

	t.Run("cycle", func(t *testing.T) {
		chain := trace.NewChain("cyclic", trace.WithChainID("cyclic-1"))
		chain = chain.Append(trace.NewEvent(trace.EventHypothesisFormed, "d", "r",
			trace.WithEventID("x"), trace.WithDependencies("y")))
		chain = chain.Append(trace.NewEvent(trace.EventHypothesisFormed, "d2", "r2",
			trace.WithEventID("y"), trace.WithDependencies("x")))

		assert.ErrorIs(t, store.Save(ctx, chain), ErrInvalidChain)
	})

	t.Run("bad model fields", func(t *testing.T) {
		chain := trace.NewChain("badfields", trace.WithChainID("badfields-1"))
		chain = chain.Append(trace.NewEvent(trace.EventHypothesisFormed, "d", "r",
			trace.WithConfidence(7)))

		assert.ErrorIs(t, store.Save(ctx, chain), ErrInvalidChain)
	})
}

func TestStore_LoadMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleChain("c1", "doomed", 1)))
	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrChainNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "c1"), ErrChainNotFound)
}

func TestStore_List(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := sampleChain("old", "older session", 1)
	older.UpdatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleChain("new", "newer session", 2)
	newer.UpdatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].ID, "most recently updated first")
	assert.Equal(t, "old", summaries[1].ID)
	assert.Equal(t, 2, summaries[0].EventCount)
}

func TestStore_Search(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	chainA := sampleChain("a", "auth refactor", 2)
	chainB := sampleChain("b", "parser rewrite", 2)
	require.NoError(t, store.Save(ctx, chainA))
	require.NoError(t, store.Save(ctx, chainB))

	t.Run("matches name", func(t *testing.T) {
		got, err := store.Search(ctx, "AUTH")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("matches decision text", func(t *testing.T) {
		got, err := store.Search(ctx, "decision 1 of parser")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := store.Search(ctx, "kubernetes")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty query returns everything", func(t *testing.T) {
		got, err := store.Search(ctx, "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestStore_ArchiveLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleChain("c1", "keeper", 1)))
	require.NoError(t, store.Archive(ctx, "c1"))

	t.Run("archived chains leave List and Search", func(t *testing.T) {
		summaries, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries)

		matches, err := store.Search(ctx, "keeper")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("archived chains stay loadable", func(t *testing.T) {
		loaded, err := store.Load(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "keeper", loaded.Name)
	})

	t.Run("archive listing sees them", func(t *testing.T) {
		archived, err := store.ListArchived(ctx)
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, "c1", archived[0].ID)
	})

	t.Run("unarchive restores", func(t *testing.T) {
		require.NoError(t, store.Unarchive(ctx, "c1"))
		summaries, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 1)

		archived, err := store.ListArchived(ctx)
		require.NoError(t, err)
		assert.Empty(t, archived)
	})

	t.Run("archive of missing chain fails", func(t *testing.T) {
		assert.ErrorIs(t, store.Archive(ctx, "ghost"), ErrChainNotFound)
		assert.ErrorIs(t, store.Unarchive(ctx, "c1"), ErrChainNotFound)
	})
}

func TestStore_Closed(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Save(ctx, sampleChain("c1", "late", 1)), ErrStoreClosed)
	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_ContextCancelled(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, sampleChain("c1", "x", 1)), context.Canceled)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestOpen_GCLifecycle(t *testing.T) {
	store, err := Open(Options{
		Dir:        t.TempDir(),
		GCInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotNil(t, store.gcStop, "GC loop should be running")

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleChain("c1", "collected", 1)))
	time.Sleep(20 * time.Millisecond)

	// Close must stop the loop and wait for it; a second Close is a no-op.
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestOpen_NoGCInMemory(t *testing.T) {
	store, err := Open(Options{InMemory: true, GCInterval: time.Second})
	require.NoError(t, err)
	defer store.Close()
	assert.Nil(t, store.gcStop, "in-memory stores have no value log to compact")
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Options{Dir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleChain("c1", "durable", 1)))
	require.NoError(t, store.Close())

	reopened, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "durable", loaded.Name)
}

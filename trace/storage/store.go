// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage persists reasoning chains in an embedded BadgerDB.
//
// Chains are stored as JSON values under id-derived keys in two tiers:
// active ("chain:<id>") and archived ("archive:<id>"). Archived chains
// are excluded from List and Search but remain loadable and can be
// restored with Unarchive.
//
// Save refuses to persist a chain whose relationship graph fails
// integrity validation; a broken graph is surfaced to the caller, never
// silently written.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"github.com/North-Shore-AI/crucible-trace/trace"
	"github.com/North-Shore-AI/crucible-trace/trace/relationship"
)

// Key prefixes for the two storage tiers.
const (
	activePrefix  = "chain:"
	archivePrefix = "archive:"
)

// defaultSearchWorkers bounds Search fan-out when Options leaves
// SearchWorkers unset.
const defaultSearchWorkers = 4

// defaultGCDiscardRatio is used when a GC interval is configured but no
// discard ratio is. Badger rewrites a value-log file when at least this
// fraction of it is discardable.
const defaultGCDiscardRatio = 0.5

// Options configures a Store.
type Options struct {
	// Dir is the BadgerDB directory. Required unless InMemory is set.
	// Supports ~ expansion. Created with 0750 if absent.
	Dir string

	// InMemory disables disk persistence. Intended for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// SearchWorkers bounds the concurrent decode fan-out in Search.
	// Zero means defaultSearchWorkers.
	SearchWorkers int

	// GCInterval, when positive, starts a background value-log GC loop
	// that runs at this interval until Close. Ignored for in-memory
	// stores, which have no value log to compact.
	GCInterval time.Duration

	// GCDiscardRatio is the discardable fraction a value-log file must
	// reach before GC rewrites it. Zero means defaultGCDiscardRatio.
	// Only meaningful with GCInterval set.
	GCDiscardRatio float64

	// Logger receives store events. Nil disables logging.
	Logger *slog.Logger
}

// Summary is the listing view of a stored chain: enough to render an
// index without decoding full event payloads at the call site.
type Summary struct {
	// ID is the chain id.
	ID string `json:"id"`

	// Name is the chain's human-readable label.
	Name string `json:"name"`

	// Description is the chain description, possibly empty.
	Description string `json:"description,omitempty"`

	// EventCount is the number of events in the chain.
	EventCount int `json:"event_count"`

	// UpdatedAt is the chain's last-updated timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a BadgerDB-backed chain store.
//
// Thread Safety: safe for concurrent use. BadgerDB transactions provide
// isolation; Close is guarded against double invocation.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	workers int

	// gcStop and gcDone are nil unless Options.GCInterval started the
	// value-log GC loop.
	gcStop chan struct{}
	gcDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open creates a Store with the given options.
//
// The returned Store owns the underlying database; callers must Close it
// when done.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("dir is required for a persistent store")
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dir, err := expandDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
		badgerOpts = badger.DefaultOptions(dir)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open chain database: %w", err)
	}

	workers := opts.SearchWorkers
	if workers <= 0 {
		workers = defaultSearchWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := &Store{db: db, logger: logger, workers: workers}

	if opts.GCInterval > 0 && !opts.InMemory {
		ratio := opts.GCDiscardRatio
		if ratio <= 0 {
			ratio = defaultGCDiscardRatio
		}
		store.gcStop = make(chan struct{})
		store.gcDone = make(chan struct{})
		go store.runGC(opts.GCInterval, ratio)
	}
	return store, nil
}

// runGC compacts the value log at the configured interval until Close.
// Badger returns ErrNoRewrite when no file crosses the discard ratio;
// that is the idle case, not a failure.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				s.logger.Debug("value log GC reclaimed space")
			case !errors.Is(err, badger.ErrNoRewrite):
				s.logger.Warn("value log GC failed", "error", err)
			}
		}
	}
}

// Close stops the GC loop, if running, and releases the underlying
// database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Save persists a new chain to the active tier. An id already present
// in either tier is rejected with ErrChainExists; replacing a stored
// chain goes through Update.
//
// The chain is validated first: model field shapes, then relationship
// integrity (dangling references, cycles). A chain that fails either
// check is rejected with ErrInvalidChain wrapping the cause; nothing is
// written.
func (s *Store) Save(ctx context.Context, chain trace.Chain) error {
	return s.put(ctx, chain, "chain saved", func(txn *badger.Txn) error {
		for _, key := range []string{activePrefix + chain.ID, archivePrefix + chain.ID} {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return fmt.Errorf("%w: %q", ErrChainExists, chain.ID)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// Update replaces the active chain with the same id, applying the same
// validation as Save. Returns ErrChainNotFound when the id is not in
// the active tier; archived chains must be restored with Unarchive
// before updating.
func (s *Store) Update(ctx context.Context, chain trace.Chain) error {
	return s.put(ctx, chain, "chain updated", func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(activePrefix + chain.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrChainNotFound, chain.ID)
		}
		return err
	})
}

// put validates and writes a chain to the active tier after the guard
// accepts the transaction state. Guard sentinels pass through unwrapped.
func (s *Store) put(ctx context.Context, chain trace.Chain, event string, guard func(*badger.Txn) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChain, err)
	}
	if err := relationship.Validate(chain); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChain, err)
	}

	data, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("encoding chain %q: %w", chain.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := guard(txn); err != nil {
			return err
		}
		return txn.Set([]byte(activePrefix+chain.ID), data)
	})
	if errors.Is(err, ErrChainExists) || errors.Is(err, ErrChainNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("saving chain %q: %w", chain.ID, err)
	}

	s.logger.Info(event, "chain_id", chain.ID, "events", chain.Len())
	return nil
}

// Load retrieves a chain by id, checking the active tier first and the
// archive second. Returns ErrChainNotFound when neither tier has it.
func (s *Store) Load(ctx context.Context, id string) (trace.Chain, error) {
	var chain trace.Chain
	if err := s.ready(ctx); err != nil {
		return chain, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		data, err := getFirst(txn, activePrefix+id, archivePrefix+id)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &chain)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chain, fmt.Errorf("%w: %q", ErrChainNotFound, id)
	}
	if err != nil {
		return chain, fmt.Errorf("loading chain %q: %w", id, err)
	}
	return chain, nil
}

// Delete removes a chain from whichever tier holds it. Returns
// ErrChainNotFound when neither does.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{activePrefix + id, archivePrefix + id} {
			if _, err := txn.Get([]byte(key)); err == nil {
				return txn.Delete([]byte(key))
			}
		}
		return badger.ErrKeyNotFound
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %q", ErrChainNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting chain %q: %w", id, err)
	}

	s.logger.Info("chain deleted", "chain_id", id)
	return nil
}

// List returns summaries of every active chain, sorted by UpdatedAt
// descending (most recently touched first), ties broken by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	return s.listTier(ctx, activePrefix)
}

// ListArchived returns summaries of every archived chain, in the same
// order as List.
func (s *Store) ListArchived(ctx context.Context) ([]Summary, error) {
	return s.listTier(ctx, archivePrefix)
}

func (s *Store) listTier(ctx context.Context, prefix string) ([]Summary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var summaries []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var chain trace.Chain
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &chain)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			summaries = append(summaries, summarize(chain))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Search returns summaries of active chains where the query appears
// (case-insensitive) in the chain name, description, or any event's
// decision text. Results are ordered like List.
//
// Candidate payloads are collected in one read transaction, then decoded
// and matched by a bounded worker pool.
func (s *Store) Search(ctx context.Context, query string) ([]Summary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var payloads [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(activePrefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			payloads = append(payloads, data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning chains: %w", err)
	}

	needle := strings.ToLower(query)
	var (
		mu      sync.Mutex
		matches []Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, data := range payloads {
		data := data
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			var chain trace.Chain
			if err := json.Unmarshal(data, &chain); err != nil {
				return fmt.Errorf("decoding chain: %w", err)
			}
			if !chainMatches(chain, needle) {
				return nil
			}
			mu.Lock()
			matches = append(matches, summarize(chain))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// Archive moves an active chain to the archive tier, removing it from
// List and Search. Returns ErrChainNotFound when the chain is not active.
func (s *Store) Archive(ctx context.Context, id string) error {
	return s.move(ctx, id, activePrefix, archivePrefix, "chain archived")
}

// Unarchive restores an archived chain to the active tier. Returns
// ErrChainNotFound when the chain is not archived.
func (s *Store) Unarchive(ctx context.Context, id string) error {
	return s.move(ctx, id, archivePrefix, activePrefix, "chain restored")
}

func (s *Store) move(ctx context.Context, id, from, to, event string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(from + id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(to+id), data); err != nil {
			return err
		}
		return txn.Delete([]byte(from + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %q", ErrChainNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("moving chain %q: %w", id, err)
	}

	s.logger.Info(event, "chain_id", id)
	return nil
}

// ready rejects operations on a closed store or a done context.
func (s *Store) ready(ctx context.Context) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	return ctx.Err()
}

// getFirst returns the value of the first key that exists.
func getFirst(txn *badger.Txn, keys ...string) ([]byte, error) {
	for i, key := range keys {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) && i < len(keys)-1 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return item.ValueCopy(nil)
	}
	return nil, badger.ErrKeyNotFound
}

func summarize(chain trace.Chain) Summary {
	return Summary{
		ID:          chain.ID,
		Name:        chain.Name,
		Description: chain.Description,
		EventCount:  len(chain.Events),
		UpdatedAt:   chain.UpdatedAt,
	}
}

func chainMatches(chain trace.Chain, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(chain.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(chain.Description), needle) {
		return true
	}
	for _, e := range chain.Events {
		if strings.Contains(strings.ToLower(e.Decision), needle) {
			return true
		}
	}
	return false
}

func expandDir(dir string) (string, error) {
	if !strings.HasPrefix(dir, "~") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding store dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}

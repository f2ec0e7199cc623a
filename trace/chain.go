// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chain is an ordered collection of events representing one reasoning
// session. Event order is insertion order and is meaningful: position-based
// matching and root/leaf iteration both depend on it.
type Chain struct {
	// ID uniquely identifies the chain.
	ID string `json:"id" validate:"required"`

	// Name is a human-readable label for the session.
	Name string `json:"name" validate:"required"`

	// Description optionally explains what the session was for.
	Description string `json:"description,omitempty"`

	// Events is the ordered sequence of decision events.
	Events []Event `json:"events"`

	// Metadata carries open key/value context, opaque to this library.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the chain was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the chain last gained an event.
	UpdatedAt time.Time `json:"updated_at"`
}

// ChainOption configures optional Chain fields at construction time.
type ChainOption func(*Chain)

// WithDescription sets the chain description.
func WithDescription(desc string) ChainOption {
	return func(c *Chain) { c.Description = desc }
}

// WithChainMetadata attaches open key/value context to the chain.
func WithChainMetadata(md map[string]any) ChainOption {
	return func(c *Chain) { c.Metadata = md }
}

// WithChainID overrides the generated chain id.
func WithChainID(id string) ChainOption {
	return func(c *Chain) { c.ID = id }
}

// NewChain constructs an empty Chain with a generated UUID and the
// current time for both timestamps.
func NewChain(name string, opts ...ChainOption) Chain {
	now := time.Now().UTC()
	c := Chain{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Append returns a copy of the chain with the event added and UpdatedAt
// refreshed. The receiver is not mutated.
func (c Chain) Append(e Event) Chain {
	events := make([]Event, 0, len(c.Events)+1)
	events = append(events, c.Events...)
	events = append(events, e)
	c.Events = events
	c.UpdatedAt = time.Now().UTC()
	return c
}

// Len returns the number of events in the chain.
func (c Chain) Len() int {
	return len(c.Events)
}

// Index builds the chain's id-to-position index. Later duplicates win, which
// matches by_id matching semantics in trace/compare.
func (c Chain) Index() map[string]int {
	idx := make(map[string]int, len(c.Events))
	for i, e := range c.Events {
		idx[e.ID] = i
	}
	return idx
}

// EventByID looks up an event by id. The second return reports presence.
func (c Chain) EventByID(id string) (Event, bool) {
	for _, e := range c.Events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// Validate checks chain field shapes and every event's field shapes,
// plus id uniqueness within the chain. Referential integrity between
// events is the relationship package's concern.
func (c Chain) Validate() error {
	if err := fieldValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid chain %q: %w", c.ID, err)
	}
	seen := make(map[string]struct{}, len(c.Events))
	for i, e := range c.Events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("chain %q event %d: %w", c.ID, i, err)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("chain %q event %d: %w: %q", c.ID, i, ErrDuplicateEventID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

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

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Event is one decision record in a reasoning chain.
//
// Events are immutable after construction. ParentID and DependsOn are weak
// references: plain id strings resolved against the owning chain's event
// list, never pointers. The model itself permits dangling references and
// cycles; the relationship package detects them.
type Event struct {
	// ID uniquely identifies the event within its chain.
	ID string `json:"id" validate:"required"`

	// Timestamp is the instant the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the decision.
	Type EventType `json:"type" validate:"required"`

	// Decision is what was decided. Never empty.
	Decision string `json:"decision" validate:"required"`

	// Reasoning is why it was decided. Never empty.
	Reasoning string `json:"reasoning" validate:"required"`

	// Alternatives lists approaches considered and not taken.
	Alternatives []string `json:"alternatives,omitempty"`

	// Confidence is the model's self-assessed certainty, in [0, 1].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// CodeSection names the code region the decision applies to.
	CodeSection string `json:"code_section,omitempty"`

	// SpecReference points at the requirement that motivated the decision.
	SpecReference string `json:"spec_reference,omitempty"`

	// Metadata carries open key/value context, opaque to this library.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ParentID is a weak reference to the causally preceding event.
	// Empty means the event is a root.
	ParentID string `json:"parent_id,omitempty"`

	// DependsOn lists weak references to events this one depends on.
	DependsOn []string `json:"depends_on,omitempty"`

	// StageID tags the pipeline stage the event belongs to.
	StageID string `json:"stage_id,omitempty"`

	// ExperimentID tags the experiment run the event belongs to.
	ExperimentID string `json:"experiment_id,omitempty"`
}

// EventOption configures optional Event fields at construction time.
type EventOption func(*Event)

// WithConfidence sets the event's confidence. Values outside [0, 1] are
// stored as given and rejected later by Validate.
func WithConfidence(c float64) EventOption {
	return func(e *Event) { e.Confidence = c }
}

// WithAlternatives sets the considered-but-rejected alternatives.
func WithAlternatives(alts ...string) EventOption {
	return func(e *Event) { e.Alternatives = alts }
}

// WithCodeSection sets the code section the decision applies to.
func WithCodeSection(section string) EventOption {
	return func(e *Event) { e.CodeSection = section }
}

// WithSpecReference sets the spec reference for the decision.
func WithSpecReference(ref string) EventOption {
	return func(e *Event) { e.SpecReference = ref }
}

// WithParent sets the weak parent reference.
func WithParent(parentID string) EventOption {
	return func(e *Event) { e.ParentID = parentID }
}

// WithDependencies sets the weak dependency references.
func WithDependencies(ids ...string) EventOption {
	return func(e *Event) { e.DependsOn = ids }
}

// WithStage tags the event with a pipeline stage id.
func WithStage(stageID string) EventOption {
	return func(e *Event) { e.StageID = stageID }
}

// WithExperiment tags the event with an experiment id.
func WithExperiment(experimentID string) EventOption {
	return func(e *Event) { e.ExperimentID = experimentID }
}

// WithEventMetadata attaches open key/value context to the event.
func WithEventMetadata(md map[string]any) EventOption {
	return func(e *Event) { e.Metadata = md }
}

// WithEventID overrides the generated id. Used by extraction and tests
// that need stable ids.
func WithEventID(id string) EventOption {
	return func(e *Event) { e.ID = id }
}

// WithTimestamp overrides the generated timestamp.
func WithTimestamp(ts time.Time) EventOption {
	return func(e *Event) { e.Timestamp = ts }
}

// NewEvent constructs an Event with a generated UUID and the current
// time. Confidence defaults to 1.0 unless overridden.
func NewEvent(t EventType, decision, reasoning string, opts ...EventOption) Event {
	e := Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Type:       t,
		Decision:   decision,
		Reasoning:  reasoning,
		Confidence: 1.0,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// IsRoot reports whether the event has no parent reference.
func (e Event) IsRoot() bool {
	return e.ParentID == ""
}

// fieldValidator is shared across Validate calls. The validator caches
// struct metadata internally and is safe for concurrent use.
var fieldValidator = validator.New()

// Validate checks the event's field shapes: required id/type/decision/
// reasoning and confidence within [0, 1]. It does NOT check referential
// integrity; that requires the owning chain and lives in the relationship
// package.
func (e Event) Validate() error {
	if err := fieldValidator.Struct(e); err != nil {
		return fmt.Errorf("invalid event %q: %w", e.ID, err)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid event %q: %w: %q", e.ID, ErrUnknownEventType, e.Type)
	}
	return nil
}

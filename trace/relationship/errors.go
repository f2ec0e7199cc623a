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
	"strings"
)

// Sentinel errors for relationship queries and validation.
var (
	// ErrEventNotFound is returned when a queried event id does not exist
	// in the chain.
	ErrEventNotFound = errors.New("event not found in chain")

	// ErrMissingReference is the base error for dangling parent or
	// dependency references. Match with errors.Is; inspect the field and
	// ids with errors.As against *MissingReferenceError.
	ErrMissingReference = errors.New("missing reference")

	// ErrCycleDetected is the base error for relationship cycles. Match
	// with errors.Is; inspect the cycle path with errors.As against
	// *CycleError.
	ErrCycleDetected = errors.New("cycle detected in relationship graph")
)

// RefField names which relationship field carried a dangling reference.
type RefField string

const (
	// RefParent means an event's ParentID pointed at a missing id.
	RefParent RefField = "parent"

	// RefDependsOn means a DependsOn entry pointed at a missing id.
	RefDependsOn RefField = "depends_on"
)

// MissingReferenceError reports the first dangling reference found during
// validation.
type MissingReferenceError struct {
	// Field is which relationship field dangled.
	Field RefField

	// EventID is the event holding the dangling reference.
	EventID string

	// TargetID is the referenced id that does not exist in the chain.
	TargetID string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("missing reference: event %q field %s points at nonexistent id %q",
		e.EventID, e.Field, e.TargetID)
}

// Unwrap lets errors.Is(err, ErrMissingReference) match.
func (e *MissingReferenceError) Unwrap() error {
	return ErrMissingReference
}

// CycleError reports a cycle in the relationship graph. Path holds at
// least one node on the cycle; it is not guaranteed minimal.
type CycleError struct {
	// Path lists event ids on the detected cycle, in traversal order.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in relationship graph: %s", strings.Join(e.Path, " -> "))
}

// Unwrap lets errors.Is(err, ErrCycleDetected) match.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

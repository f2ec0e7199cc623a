// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trace defines the causal reasoning chain model.
//
// A Chain is an ordered sequence of decision Events produced by an LLM
// during code generation. Each Event records what was decided, why, with
// what confidence, and how it relates to other events in the same chain.
//
// # Ownership Model
//
// Chains own their events by value. Relationships between events are weak,
// id-based references (ParentID, DependsOn), never pointers. An event
// holding a reference to a missing id is representable; detecting that is
// the job of the relationship package, not the model.
//
// # Immutability
//
// Events and Chains are treated as immutable values throughout the
// library. Packages that consume them never mutate their inputs; any
// transformation constructs new values. This makes every operation in
// trace/compare and trace/relationship safe to call concurrently on
// independent chains without locking.
package trace

// EventType classifies a decision event.
type EventType string

// Decision-lifecycle event types.
const (
	// EventHypothesisFormed records a working hypothesis about the task.
	EventHypothesisFormed EventType = "hypothesis_formed"

	// EventAlternativeRejected records a considered-but-discarded approach.
	EventAlternativeRejected EventType = "alternative_rejected"

	// EventConstraintEvaluated records a constraint check against the spec.
	EventConstraintEvaluated EventType = "constraint_evaluated"

	// EventPatternApplied records the application of a known code pattern.
	EventPatternApplied EventType = "pattern_applied"

	// EventAmbiguityFlagged records an ambiguity the model could not resolve.
	EventAmbiguityFlagged EventType = "ambiguity_flagged"

	// EventConfidenceUpdated records a revision of an earlier confidence.
	EventConfidenceUpdated EventType = "confidence_updated"
)

// Generation lifecycle event types.
const (
	// EventGenerationStarted marks the beginning of a generation session.
	EventGenerationStarted EventType = "generation_started"

	// EventGenerationCompleted marks the end of a generation session.
	EventGenerationCompleted EventType = "generation_completed"
)

// Stage, training, deployment, and feedback event types.
const (
	// EventStageStarted marks entry into a named pipeline stage.
	EventStageStarted EventType = "stage_started"

	// EventStageCompleted marks exit from a named pipeline stage.
	EventStageCompleted EventType = "stage_completed"

	// EventTrainingExampleTagged marks an event selected as training data.
	EventTrainingExampleTagged EventType = "training_example_tagged"

	// EventDeploymentCheckpoint records a deployment gate decision.
	EventDeploymentCheckpoint EventType = "deployment_checkpoint"

	// EventFeedbackReceived records operator or downstream feedback.
	EventFeedbackReceived EventType = "feedback_received"
)

// AllEventTypes lists every known event type in declaration order.
var AllEventTypes = []EventType{
	EventHypothesisFormed,
	EventAlternativeRejected,
	EventConstraintEvaluated,
	EventPatternApplied,
	EventAmbiguityFlagged,
	EventConfidenceUpdated,
	EventGenerationStarted,
	EventGenerationCompleted,
	EventStageStarted,
	EventStageCompleted,
	EventTrainingExampleTagged,
	EventDeploymentCheckpoint,
	EventFeedbackReceived,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	return string(t)
}

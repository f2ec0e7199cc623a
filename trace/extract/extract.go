// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extract pulls reasoning chains out of free-form LLM output.
//
// Models are asked (via Prompt) to wrap their decision traces in a tag:
//
//	<reasoning_trace>
//	{"name": "session", "events": [{"type": "hypothesis_formed", ...}]}
//	</reasoning_trace>
//
// Extract tolerates surrounding prose and Markdown code fences inside
// the tag. The payload is either a chain object or a bare event array;
// missing event ids and timestamps are filled in, missing confidence
// defaults to 1.0.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// DefaultTag is the element name wrapping reasoning traces.
const DefaultTag = "reasoning_trace"

// Extractor finds and decodes tagged reasoning traces.
type Extractor struct {
	tag     string
	pattern *regexp.Regexp
}

// New creates an Extractor for the default tag.
func New() *Extractor {
	return NewWithTag(DefaultTag)
}

// NewWithTag creates an Extractor for a custom tag name. The tag is
// matched literally; regex metacharacters in it are escaped.
func NewWithTag(tag string) *Extractor {
	quoted := regexp.QuoteMeta(tag)
	return &Extractor{
		tag:     tag,
		pattern: regexp.MustCompile(`(?s)<` + quoted + `>(.*?)</` + quoted + `>`),
	}
}

// wireEvent is the permissive decode target for one event. Confidence is
// a pointer so absent and zero can be told apart.
type wireEvent struct {
	ID            string         `json:"id"`
	Timestamp     *time.Time     `json:"timestamp"`
	Type          string         `json:"type"`
	Decision      string         `json:"decision"`
	Reasoning     string         `json:"reasoning"`
	Alternatives  []string       `json:"alternatives"`
	Confidence    *float64       `json:"confidence"`
	CodeSection   string         `json:"code_section"`
	SpecReference string         `json:"spec_reference"`
	Metadata      map[string]any `json:"metadata"`
	ParentID      string         `json:"parent_id"`
	DependsOn     []string       `json:"depends_on"`
	StageID       string         `json:"stage_id"`
	ExperimentID  string         `json:"experiment_id"`
}

// wireChain is the permissive decode target for a whole trace block.
type wireChain struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Events      []wireEvent    `json:"events"`
}

// Extract returns the first reasoning chain found in the text.
//
// Returns ErrNoTrace when no tag pair is present, and a
// *MalformedTraceError (matching ErrMalformedTrace) when a tag is
// present but its payload does not decode.
func (x *Extractor) Extract(text string) (*trace.Chain, error) {
	chains, err := x.ExtractAll(text)
	if err != nil {
		return nil, err
	}
	return chains[0], nil
}

// ExtractAll returns every reasoning chain found in the text, one per
// tag pair, in order of appearance. The first malformed block aborts the
// whole extraction: partially trusted traces are worse than none.
func (x *Extractor) ExtractAll(text string) ([]*trace.Chain, error) {
	locs := x.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, fmt.Errorf("%w: no <%s> block in %d bytes of output", ErrNoTrace, x.tag, len(text))
	}

	chains := make([]*trace.Chain, 0, len(locs))
	for _, loc := range locs {
		payload := strings.TrimSpace(stripFences(text[loc[2]:loc[3]]))
		chain, err := decodeChain(payload)
		if err != nil {
			return nil, &MalformedTraceError{Offset: loc[0], Err: err}
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

// decodeChain parses a payload that is either a chain object or a bare
// event array, then materializes a trace.Chain with defaults filled in.
func decodeChain(payload string) (*trace.Chain, error) {
	var wire wireChain
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &wire.Events); err != nil {
			return nil, fmt.Errorf("decoding event array: %w", err)
		}
	} else {
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, fmt.Errorf("decoding chain object: %w", err)
		}
	}

	name := wire.Name
	if name == "" {
		name = "extracted trace"
	}
	opts := []trace.ChainOption{trace.WithDescription(wire.Description)}
	if wire.ID != "" {
		opts = append(opts, trace.WithChainID(wire.ID))
	}
	if wire.Metadata != nil {
		opts = append(opts, trace.WithChainMetadata(wire.Metadata))
	}
	chain := trace.NewChain(name, opts...)

	events := make([]trace.Event, 0, len(wire.Events))
	for i, we := range wire.Events {
		event, err := materialize(we)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}
	chain.Events = events

	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return &chain, nil
}

// materialize converts a wire event to a model event, generating the id
// and timestamp when the model omitted them.
func materialize(we wireEvent) (trace.Event, error) {
	eventType := trace.EventType(we.Type)
	if !eventType.Valid() {
		return trace.Event{}, fmt.Errorf("%w: %q", trace.ErrUnknownEventType, we.Type)
	}

	e := trace.Event{
		ID:            we.ID,
		Type:          eventType,
		Decision:      we.Decision,
		Reasoning:     we.Reasoning,
		Alternatives:  we.Alternatives,
		Confidence:    1.0,
		CodeSection:   we.CodeSection,
		SpecReference: we.SpecReference,
		Metadata:      we.Metadata,
		ParentID:      we.ParentID,
		DependsOn:     we.DependsOn,
		StageID:       we.StageID,
		ExperimentID:  we.ExperimentID,
		Timestamp:     time.Now().UTC(),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if we.Timestamp != nil {
		e.Timestamp = *we.Timestamp
	}
	if we.Confidence != nil {
		e.Confidence = *we.Confidence
	}
	return e, nil
}

// stripFences removes a single surrounding Markdown code fence, with or
// without a language tag. Models add them despite instructions.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return trimmed
}

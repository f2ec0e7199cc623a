// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"fmt"
	"strings"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// PromptOptions tunes the generated instruction block.
type PromptOptions struct {
	// Tag overrides the element name. Empty means DefaultTag.
	Tag string

	// EventTypes limits the types the model is told about. Empty means
	// all known types.
	EventTypes []trace.EventType

	// RequireRelationships asks the model to link events with parent_id
	// and depends_on where causality exists.
	RequireRelationships bool
}

// Prompt returns the standard instruction block appended to a code
// generation prompt so the model logs its decision trace in extractable
// form.
func Prompt() string {
	return PromptWith(PromptOptions{})
}

// PromptWith builds the instruction block with the given options.
func PromptWith(opts PromptOptions) string {
	tag := opts.Tag
	if tag == "" {
		tag = DefaultTag
	}
	types := opts.EventTypes
	if len(types) == 0 {
		types = trace.AllEventTypes
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "While working, log every significant decision as an event inside a <%s> block.\n", tag)
	b.WriteString("The block must contain a single JSON object:\n\n")
	fmt.Fprintf(&b, "<%s>\n", tag)
	b.WriteString(`{"name": "<short session name>", "events": [`)
	b.WriteString("\n")
	b.WriteString(`  {"type": "<event type>", "decision": "<what you decided>", "reasoning": "<why>",`)
	b.WriteString("\n")
	b.WriteString(`   "alternatives": ["<rejected option>"], "confidence": <0.0-1.0>}`)
	b.WriteString("\n]}\n")
	fmt.Fprintf(&b, "</%s>\n\n", tag)
	fmt.Fprintf(&b, "Valid event types: %s.\n", strings.Join(names, ", "))
	b.WriteString("Emit plain JSON inside the block, no code fences. Confidence reflects how certain you are the decision is right.\n")
	if opts.RequireRelationships {
		b.WriteString("Set parent_id to the id of the event that caused this one, and depends_on to the ids of events this decision relies on.\n")
	}
	return b.String()
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package render turns chains and diffs into presentation formats.
//
// Four formats are supported: Markdown reports, Mermaid flowcharts of
// the relationship graph, standalone HTML documents, and CSV exports.
// Every renderer writes to a caller-supplied io.Writer, performs no
// other I/O, and produces byte-identical output for identical input;
// golden-file tests downstream depend on that.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/North-Shore-AI/crucible-trace/trace"
	"github.com/North-Shore-AI/crucible-trace/trace/compare"
)

// timeLayout is the timestamp format used in human-readable output.
const timeLayout = "2006-01-02 15:04:05 UTC"

// Markdown writes a human-readable report of the chain.
func Markdown(w io.Writer, chain trace.Chain) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", chain.Name)
	if chain.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", chain.Description)
	}
	fmt.Fprintf(&b, "- Chain ID: `%s`\n", chain.ID)
	fmt.Fprintf(&b, "- Events: %d\n", len(chain.Events))
	fmt.Fprintf(&b, "- Created: %s\n\n", chain.CreatedAt.UTC().Format(timeLayout))

	for i, e := range chain.Events {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, e.Decision)
		fmt.Fprintf(&b, "- Type: `%s`\n", e.Type)
		fmt.Fprintf(&b, "- Confidence: %.2f\n", e.Confidence)
		fmt.Fprintf(&b, "- Reasoning: %s\n", e.Reasoning)
		if len(e.Alternatives) > 0 {
			fmt.Fprintf(&b, "- Alternatives: %s\n", strings.Join(e.Alternatives, "; "))
		}
		if e.ParentID != "" {
			fmt.Fprintf(&b, "- Parent: `%s`\n", e.ParentID)
		}
		if len(e.DependsOn) > 0 {
			fmt.Fprintf(&b, "- Depends on: `%s`\n", strings.Join(e.DependsOn, "`, `"))
		}
		if e.CodeSection != "" {
			fmt.Fprintf(&b, "- Code section: `%s`\n", e.CodeSection)
		}
		if e.SpecReference != "" {
			fmt.Fprintf(&b, "- Spec reference: %s\n", e.SpecReference)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// MarkdownDiff writes a human-readable report of a comparison result.
//
// Sections appear in a fixed order (summary, added, removed, modified,
// confidence deltas); map-backed sections are sorted by key.
func MarkdownDiff(w io.Writer, diff *compare.Diff) error {
	var b strings.Builder
	b.WriteString("# Chain Comparison\n\n")
	fmt.Fprintf(&b, "- Summary: %s\n", diff.Summary)
	fmt.Fprintf(&b, "- Similarity: %.4f\n", diff.SimilarityScore)
	fmt.Fprintf(&b, "- Strategy: %s\n\n", diff.Strategy)

	if len(diff.Added) > 0 {
		b.WriteString("## Added\n\n")
		for _, e := range diff.Added {
			fmt.Fprintf(&b, "- `%s` %s (confidence %.2f)\n", e.Type, e.Decision, e.Confidence)
		}
		b.WriteString("\n")
	}
	if len(diff.Removed) > 0 {
		b.WriteString("## Removed\n\n")
		for _, e := range diff.Removed {
			fmt.Fprintf(&b, "- `%s` %s (confidence %.2f)\n", e.Type, e.Decision, e.Confidence)
		}
		b.WriteString("\n")
	}
	if len(diff.Modified) > 0 {
		b.WriteString("## Modified\n\n")
		for _, mod := range diff.Modified {
			fmt.Fprintf(&b, "### %s\n\n", mod.Key)
			for _, ch := range mod.Changes {
				fmt.Fprintf(&b, "- %s: %v -> %v\n", ch.Field, ch.Old, ch.New)
			}
			b.WriteString("\n")
		}
	}
	if len(diff.ConfidenceDeltas) > 0 {
		b.WriteString("## Confidence Deltas\n\n")
		keys := make([]string, 0, len(diff.ConfidenceDeltas))
		for k := range diff.ConfidenceDeltas {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %+.6f\n", k, diff.ConfidenceDeltas[k])
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

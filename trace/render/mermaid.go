// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// maxMermaidLabel caps node label length so large decisions do not
// produce unreadable diagrams.
const maxMermaidLabel = 40

// Mermaid writes a top-down flowchart of the chain's relationship graph.
//
// Parent edges are solid arrows, dependency edges dotted. Nodes appear
// in chain insertion order, edges in the order they occur on each event,
// so output is stable for a given chain.
func Mermaid(w io.Writer, chain trace.Chain) error {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for i, e := range chain.Events {
		fmt.Fprintf(&b, "    n%d[\"%s\"]\n", i, mermaidLabel(e))
	}

	index := chain.Index()
	for i, e := range chain.Events {
		if e.ParentID != "" {
			if p, ok := index[e.ParentID]; ok {
				fmt.Fprintf(&b, "    n%d --> n%d\n", p, i)
			}
		}
		for _, dep := range e.DependsOn {
			if d, ok := index[dep]; ok {
				fmt.Fprintf(&b, "    n%d -.-> n%d\n", d, i)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// mermaidLabel builds a quoted-safe, length-capped node label. The cap
// counts runes, not bytes, so multi-byte decisions truncate cleanly.
func mermaidLabel(e trace.Event) string {
	label := fmt.Sprintf("%s: %s", e.Type, e.Decision)
	if runes := []rune(label); len(runes) > maxMermaidLabel {
		label = string(runes[:maxMermaidLabel-3]) + "..."
	}
	return strings.ReplaceAll(label, `"`, "'")
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// csvHeader is the fixed column set, one row per event.
var csvHeader = []string{
	"id", "timestamp", "type", "decision", "reasoning",
	"confidence", "alternatives", "parent_id", "depends_on",
	"stage_id", "experiment_id", "code_section", "spec_reference",
}

// CSV writes the chain's events as comma-separated rows with a header.
// List-valued fields are joined with "|".
func CSV(w io.Writer, chain trace.Chain) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range chain.Events {
		row := []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.Type),
			e.Decision,
			e.Reasoning,
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			strings.Join(e.Alternatives, "|"),
			e.ParentID,
			strings.Join(e.DependsOn, "|"),
			e.StageID,
			e.ExperimentID,
			e.CodeSection,
			e.SpecReference,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compare

import "errors"

// Sentinel errors for chain comparison.
var (
	// ErrInvalidMatchStrategy is returned when Options.MatchBy is not one
	// of the recognized strategies. It is rejected at the Compare boundary
	// before any matching runs.
	ErrInvalidMatchStrategy = errors.New("invalid match strategy")
)

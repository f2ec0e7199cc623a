// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trace

import "errors"

// Sentinel errors for model validation.
var (
	// ErrUnknownEventType indicates an event type outside the known set.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrDuplicateEventID indicates two events in one chain share an id.
	ErrDuplicateEventID = errors.New("duplicate event id")
)

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import "errors"

// Sentinel errors for the chain store.
var (
	// ErrChainNotFound is returned when no chain with the requested id
	// exists in the queried tier (active or archive).
	ErrChainNotFound = errors.New("chain not found")

	// ErrChainExists is returned by Save when either tier already holds
	// a chain with the same id. Replacing a stored chain goes through
	// Update.
	ErrChainExists = errors.New("chain already exists")

	// ErrStoreClosed is returned when an operation runs after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidChain wraps model or integrity failures detected before
	// persisting. The underlying validation error is attached.
	ErrInvalidChain = errors.New("chain failed validation")
)

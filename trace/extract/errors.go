// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"errors"
	"fmt"
)

// Sentinel errors for trace extraction.
var (
	// ErrNoTrace is returned when the text contains no trace tag at all.
	ErrNoTrace = errors.New("no reasoning trace in output")

	// ErrMalformedTrace is the base error for tag blocks whose payload
	// does not decode. Match with errors.Is; inspect the offset and
	// cause with errors.As against *MalformedTraceError.
	ErrMalformedTrace = errors.New("malformed reasoning trace")

	// ErrEmptyCompletion is returned when a chat completion carries no
	// content to extract from.
	ErrEmptyCompletion = errors.New("chat completion has no content")
)

// MalformedTraceError reports a trace block that was found but could not
// be decoded.
type MalformedTraceError struct {
	// Offset is the byte offset of the opening tag in the scanned text.
	Offset int

	// Err is the decode failure.
	Err error
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("malformed reasoning trace at offset %d: %v", e.Offset, e.Err)
}

// Unwrap exposes both the base error and the decode cause, so
// errors.Is(err, ErrMalformedTrace) and errors.As against the cause's
// type both work.
func (e *MalformedTraceError) Unwrap() []error {
	return []error{ErrMalformedTrace, e.Err}
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// FromChatCompletion extracts the reasoning chain from the first choice
// of an OpenAI-compatible chat completion response.
//
// Returns ErrEmptyCompletion when the response has no choices or the
// first choice has empty content; otherwise behaves like Extract.
func (x *Extractor) FromChatCompletion(resp openai.ChatCompletionResponse) (*trace.Chain, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}
	return x.Extract(resp.Choices[0].Message.Content)
}

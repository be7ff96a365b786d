// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for language model backends.
//
// The pipeline depends on typed, structured model output for every
// control-flow-relevant field (retrieval plans, guard verdicts, span
// replacements). Backends must therefore support a JSON output mode;
// free-text responses are never parsed for structure.
package llm

import "context"

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request describes one completion call.
type Request struct {
	// System is the system prompt. Optional.
	System string

	// Messages are the conversation turns, oldest first. At least one
	// user message is required.
	Messages []Message

	// Temperature overrides the backend default when non-nil.
	Temperature *float32

	// MaxTokens caps the completion length when non-nil.
	MaxTokens *int

	// JSONMode forces the backend to emit a single JSON object.
	// Required for every structured call (see CompleteInto).
	JSONMode bool
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	// Complete runs one chat completion and returns the raw assistant
	// message content.
	Complete(ctx context.Context, req Request) (string, error)
}

// UserMessage is a convenience constructor for a single-turn request.
func UserMessage(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CompleteInto runs a JSON-mode completion and unmarshals the response
// into T. The target type's json tags define the expected shape; the
// prompt must describe the same shape to the model.
//
// Backends in JSON mode occasionally wrap the object in a markdown
// fence. salvageJSON strips that wrapping; anything beyond it is a
// hard error, never a reason to fall back to free-text parsing.
func CompleteInto[T any](ctx context.Context, c Client, req Request) (*T, error) {
	req.JSONMode = true

	raw, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return &out, nil
	}

	salvaged, ok := salvageJSON(raw)
	if !ok {
		return nil, fmt.Errorf("model response is not a JSON object: %q", truncate(raw, 200))
	}
	if err := json.Unmarshal([]byte(salvaged), &out); err != nil {
		return nil, fmt.Errorf("unmarshal structured response: %w", err)
	}
	return &out, nil
}

// salvageJSON extracts the outermost JSON object from a response that
// carries fence markers or stray prose around it.
func salvageJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

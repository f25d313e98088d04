// Package llmjson extracts JSON payloads from LLM chat responses.
// Models often wrap JSON in ```json ... ``` blocks even when told not
// to, so every consumer strips fences before unmarshaling.
package llmjson

import (
	"bytes"
	"encoding/json"
)

// Clean strips markdown code fences and leading/trailing whitespace
// from an LLM response. Handles ```json\n{...}\n```, ```\n{...}\n```,
// and bare JSON.
func Clean(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		// Strip opening fence line
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}

// Parse cleans the payload and unmarshals it into T
func Parse[T any](data []byte) (*T, error) {
	cleaned := Clean(data)
	var result T
	if err := json.Unmarshal(cleaned, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Valid reports whether the cleaned payload is well-formed JSON
func Valid(data []byte) bool {
	return json.Valid(Clean(data))
}

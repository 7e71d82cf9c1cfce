// Package analysis turns a session transcript into a written summary and a progress assessment
// by asking a language model for strict JSON, then validating what comes back.
package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedResponse is returned when the model output is not a JSON object.
var ErrMalformedResponse = errors.New("completion response is not a JSON object")

// Completer sends one chat completion request constrained to a JSON object response.
type Completer interface {
	// Configured is false when no credential is available; pipelines then fall back without calling.
	Configured() bool
	// CompleteJSON returns the raw content of the first choice.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func isConfigured(c Completer) bool {
	return c != nil && c.Configured()
}

// decodeObject parses the model output into its top level fields.
// An empty output counts as an empty object.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decoding %q", truncate(raw, 120))
	}
	return fields, nil
}

// stringField returns the field when it is a non-blank string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// stringList keeps the string items of an array field, dropping anything else.
// A missing or non-array field yields an empty list.
func stringList(fields map[string]json.RawMessage, key string) []string {
	out := make([]string, 0)
	raw, ok := fields[key]
	if !ok {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s *string
		if err := json.Unmarshal(item, &s); err != nil || s == nil {
			continue
		}
		out = append(out, *s)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/progress"
)

const (
	progressSystemPrompt = "You analyse student tutorial transcripts. Return strict JSON with keys: " +
		"confidenceScore (0..1), strengths (string[]), improvements (string[]), " +
		"focus (string[]), repeat ({ concept, reason, priority }[]). " +
		"priority must be one of high|medium|low."

	emptyTranscriptPrompt = "No transcript content available."
)

type RepeatItem struct {
	Concept  string `json:"concept"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

type ProgressResult struct {
	ConfidenceScore float64      `json:"confidenceScore"`
	Strengths       []string     `json:"strengths"`
	Improvements    []string     `json:"improvements"`
	Focus           []string     `json:"focus"`
	Repeat          []RepeatItem `json:"repeat"`
}

func fallbackProgress() ProgressResult {
	return ProgressResult{
		ConfidenceScore: progress.DefaultConfidence,
		Strengths:       []string{},
		Improvements:    []string{},
		Focus:           []string{},
		Repeat:          []RepeatItem{},
	}
}

type ProgressAnalyzer struct {
	completer Completer
}

func NewProgressAnalyzer(completer Completer) *ProgressAnalyzer {
	return &ProgressAnalyzer{completer: completer}
}

func (a *ProgressAnalyzer) Analyze(ctx context.Context, transcript string) (ProgressResult, error) {
	if !isConfigured(a.completer) {
		return fallbackProgress(), nil
	}

	if strings.TrimSpace(transcript) == "" {
		transcript = emptyTranscriptPrompt
	}
	raw, err := a.completer.CompleteJSON(ctx, progressSystemPrompt, transcript)
	if err != nil {
		return ProgressResult{}, errors.Wrap(err, "requesting progress analysis")
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return ProgressResult{}, errors.Wrap(err, "decoding progress analysis")
	}

	return ProgressResult{
		ConfidenceScore: confidence(fields),
		Strengths:       stringList(fields, "strengths"),
		Improvements:    stringList(fields, "improvements"),
		Focus:           stringList(fields, "focus"),
		Repeat:          repeatItems(fields),
	}, nil
}

// confidence is the numeric confidenceScore clamped to [0, 1], or the default when absent or not a number.
func confidence(fields map[string]json.RawMessage) float64 {
	score := progress.DefaultConfidence
	if raw, ok := fields["confidenceScore"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			score = f
		}
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// repeatItems keeps the entries with both a concept and a reason.
// Unknown priorities become medium.
func repeatItems(fields map[string]json.RawMessage) []RepeatItem {
	out := make([]RepeatItem, 0)
	raw, ok := fields["repeat"]
	if !ok {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}

	for _, item := range items {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
			continue
		}
		concept, _ := stringField(entry, "concept")
		reason, _ := stringField(entry, "reason")
		if concept == "" || reason == "" {
			continue
		}
		priority, _ := stringField(entry, "priority")
		priority = strings.ToLower(priority)
		if !progress.IsValidPriority(priority) {
			priority = progress.PriorityMedium
		}
		out = append(out, RepeatItem{Concept: concept, Reason: reason, Priority: priority})
	}
	return out
}

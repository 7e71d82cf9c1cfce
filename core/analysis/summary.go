package analysis

import (
	"context"

	"github.com/pkg/errors"
)

const (
	summarySystemPrompt = "You are a Director of Studies reviewing a tutoring session transcript. " +
		"Return strict JSON with exactly these keys: " +
		"summaryMd, keyTakeaways, citations. " +
		"summaryMd: markdown 2-4 paragraphs assessing performance. " +
		"keyTakeaways: up to 6 short strings of topics covered. " +
		"citations: up to 5 concrete personalized study recommendations."

	// SummaryNotConfigured is the summary stored when no completion service is configured.
	SummaryNotConfigured = "No summary generated because the completion service is not configured."
	// SummaryMissing replaces a missing or blank summaryMd in the model output.
	SummaryMissing = "No summary generated."
)

type SummaryResult struct {
	SummaryMd    string   `json:"summaryMd"`
	KeyTakeaways []string `json:"keyTakeaways"`
	Citations    []string `json:"citations"`
}

type Summarizer struct {
	completer Completer
}

func NewSummarizer(completer Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

func (s *Summarizer) Summarize(ctx context.Context, transcript string) (SummaryResult, error) {
	if !isConfigured(s.completer) {
		return SummaryResult{SummaryMd: SummaryNotConfigured, KeyTakeaways: []string{}, Citations: []string{}}, nil
	}

	raw, err := s.completer.CompleteJSON(ctx, summarySystemPrompt, transcript)
	if err != nil {
		return SummaryResult{}, errors.Wrap(err, "requesting summary")
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return SummaryResult{}, errors.Wrap(err, "decoding summary")
	}

	md, ok := stringField(fields, "summaryMd")
	if !ok {
		md = SummaryMissing
	}
	return SummaryResult{
		SummaryMd:    md,
		KeyTakeaways: stringList(fields, "keyTakeaways"),
		Citations:    stringList(fields, "citations"),
	}, nil
}

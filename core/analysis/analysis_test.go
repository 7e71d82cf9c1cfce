package analysis

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completerStub struct {
	configured bool
	output     string
	err        error

	calls      int
	lastSystem string
	lastUser   string
}

func (c *completerStub) Configured() bool { return c.configured }

func (c *completerStub) CompleteJSON(_ context.Context, system, user string) (string, error) {
	c.calls++
	c.lastSystem, c.lastUser = system, user
	return c.output, c.err
}

func TestSummarizer_Summarize(t *testing.T) {
	tests := []struct {
		name      string
		completer *completerStub
		want      SummaryResult
		wantErr   error
	}{
		{
			name:      "not configured",
			completer: &completerStub{},
			want:      SummaryResult{SummaryMd: SummaryNotConfigured, KeyTakeaways: []string{}, Citations: []string{}},
		},
		{
			name: "well formed",
			completer: &completerStub{configured: true, output: `{
				"summaryMd": "Good work on **fractions**.",
				"keyTakeaways": ["fractions", "ratios"],
				"citations": ["Revise equivalent fractions"]
			}`},
			want: SummaryResult{
				SummaryMd:    "Good work on **fractions**.",
				KeyTakeaways: []string{"fractions", "ratios"},
				Citations:    []string{"Revise equivalent fractions"},
			},
		},
		{
			name:      "missing fields",
			completer: &completerStub{configured: true, output: `{}`},
			want:      SummaryResult{SummaryMd: SummaryMissing, KeyTakeaways: []string{}, Citations: []string{}},
		},
		{
			name:      "empty output counts as empty object",
			completer: &completerStub{configured: true, output: ""},
			want:      SummaryResult{SummaryMd: SummaryMissing, KeyTakeaways: []string{}, Citations: []string{}},
		},
		{
			name:      "wrong types are dropped",
			completer: &completerStub{configured: true, output: `{"summaryMd": 42, "keyTakeaways": ["a", 1, null, "b"], "citations": "nope"}`},
			want:      SummaryResult{SummaryMd: SummaryMissing, KeyTakeaways: []string{"a", "b"}, Citations: []string{}},
		},
		{
			name: "longer lists than asked for are kept",
			completer: &completerStub{configured: true, output: `{"summaryMd": "ok",
				"keyTakeaways": ["1","2","3","4","5","6","7","8"],
				"citations": ["1","2","3","4","5","6"]}`},
			want: SummaryResult{
				SummaryMd:    "ok",
				KeyTakeaways: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
				Citations:    []string{"1", "2", "3", "4", "5", "6"},
			},
		},
		{
			name:      "not json",
			completer: &completerStub{configured: true, output: `Sure! Here is your summary`},
			wantErr:   ErrMalformedResponse,
		},
		{
			name:      "json but not an object",
			completer: &completerStub{configured: true, output: `["summaryMd"]`},
			wantErr:   ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSummarizer(tt.completer).Summarize(context.Background(), "tutor: hi")
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.completer.configured {
				assert.Equal(t, summarySystemPrompt, tt.completer.lastSystem)
				assert.Equal(t, "tutor: hi", tt.completer.lastUser)
			} else {
				assert.Zero(t, tt.completer.calls)
			}
		})
	}
}

func TestSummarizer_nilCompleter(t *testing.T) {
	got, err := NewSummarizer(nil).Summarize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, SummaryNotConfigured, got.SummaryMd)
}

func TestProgressAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		completer  *completerStub
		transcript string
		want       ProgressResult
		wantErr    error
		wantPrompt string
	}{
		{
			name:      "not configured",
			completer: &completerStub{},
			want:      fallbackProgress(),
		},
		{
			name:       "empty transcript gets a placeholder",
			completer:  &completerStub{configured: true, output: `{"confidenceScore": 0.4}`},
			transcript: "  ",
			want:       ProgressResult{ConfidenceScore: 0.4, Strengths: []string{}, Improvements: []string{}, Focus: []string{}, Repeat: []RepeatItem{}},
			wantPrompt: emptyTranscriptPrompt,
		},
		{
			name: "well formed",
			completer: &completerStub{configured: true, output: `{
				"confidenceScore": 0.82,
				"strengths": ["algebra"],
				"improvements": ["showing working"],
				"focus": ["simultaneous equations"],
				"repeat": [{"concept": "substitution", "reason": "mixed up signs", "priority": "high"}]
			}`},
			transcript: "student: x = 2",
			want: ProgressResult{
				ConfidenceScore: 0.82,
				Strengths:       []string{"algebra"},
				Improvements:    []string{"showing working"},
				Focus:           []string{"simultaneous equations"},
				Repeat:          []RepeatItem{{Concept: "substitution", Reason: "mixed up signs", Priority: "high"}},
			},
			wantPrompt: "student: x = 2",
		},
		{
			name:       "score above range is clamped",
			completer:  &completerStub{configured: true, output: `{"confidenceScore": 1.7}`},
			transcript: "t",
			want:       ProgressResult{ConfidenceScore: 1, Strengths: []string{}, Improvements: []string{}, Focus: []string{}, Repeat: []RepeatItem{}},
			wantPrompt: "t",
		},
		{
			name:       "score below range is clamped",
			completer:  &completerStub{configured: true, output: `{"confidenceScore": -3}`},
			transcript: "t",
			want:       ProgressResult{ConfidenceScore: 0, Strengths: []string{}, Improvements: []string{}, Focus: []string{}, Repeat: []RepeatItem{}},
			wantPrompt: "t",
		},
		{
			name:       "non numeric score defaults",
			completer:  &completerStub{configured: true, output: `{"confidenceScore": "high"}`},
			transcript: "t",
			want:       ProgressResult{ConfidenceScore: 0.6, Strengths: []string{}, Improvements: []string{}, Focus: []string{}, Repeat: []RepeatItem{}},
			wantPrompt: "t",
		},
		{
			name: "repeat entries are normalized",
			completer: &completerStub{configured: true, output: `{"repeat": [
				{"concept": " fractions ", "reason": "slow", "priority": " HIGH "},
				{"concept": "decimals", "reason": "errors", "priority": "urgent"},
				{"concept": "decimals", "reason": "errors"},
				{"concept": "", "reason": "no concept"},
				{"concept": "no reason", "reason": "   "},
				"not an object"
			]}`},
			transcript: "t",
			want: ProgressResult{
				ConfidenceScore: 0.6, Strengths: []string{}, Improvements: []string{}, Focus: []string{},
				Repeat: []RepeatItem{
					{Concept: "fractions", Reason: "slow", Priority: "high"},
					{Concept: "decimals", Reason: "errors", Priority: "medium"},
					{Concept: "decimals", Reason: "errors", Priority: "medium"},
				},
			},
			wantPrompt: "t",
		},
		{
			name:      "malformed output",
			completer: &completerStub{configured: true, output: `{"confidenceScore": 0.5`},
			wantErr:   ErrMalformedResponse,
		},
		{
			name:      "completer failure",
			completer: &completerStub{configured: true, err: errors.New("boom")},
			wantErr:   errors.New("boom"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewProgressAnalyzer(tt.completer).Analyze(context.Background(), tt.transcript)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr.Error(), errors.Cause(err).Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.wantPrompt != "" {
				assert.Equal(t, progressSystemPrompt, tt.completer.lastSystem)
				assert.Equal(t, tt.wantPrompt, tt.completer.lastUser)
			}
		})
	}
}

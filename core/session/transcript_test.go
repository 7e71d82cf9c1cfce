package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transcriptStub struct {
	texts []string // returned in turn, the last one repeats
	err   error
	reads int
}

func (s *transcriptStub) GetTranscriptText(context.Context, string) (string, error) {
	s.reads++
	if s.err != nil {
		return "", s.err
	}
	if s.reads > len(s.texts) {
		return s.texts[len(s.texts)-1], nil
	}
	return s.texts[s.reads-1], nil
}

func mockSleep(t *testing.T) *[]time.Duration {
	var slept []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &slept
}

func TestTranscriptWaiter_Wait(t *testing.T) {
	delay := 400 * time.Millisecond

	tests := []struct {
		name      string
		texts     []string
		want      string
		wantReads int
		wantSleep int
	}{
		{name: "available at once", texts: []string{"  hello  "}, want: "hello", wantReads: 1},
		{name: "available on third read", texts: []string{"", " \n", "hi"}, want: "hi", wantReads: 3, wantSleep: 2},
		{name: "never available", texts: []string{""}, want: "", wantReads: 6, wantSleep: 5},
		{name: "whitespace only", texts: []string{" \t\n"}, want: "", wantReads: 6, wantSleep: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slept := mockSleep(t)
			reader := &transcriptStub{texts: tc.texts}

			got, err := NewTranscriptWaiter(reader, 6, delay).Wait(context.Background(), "sess")

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantReads, reader.reads)
			assert.Len(t, *slept, tc.wantSleep)
			for _, d := range *slept {
				assert.Equal(t, delay, d)
			}
		})
	}
}

func TestTranscriptWaiter_Wait_errors(t *testing.T) {
	t.Run("read error", func(t *testing.T) {
		mockSleep(t)
		boom := errors.New("boom")
		reader := &transcriptStub{err: boom}

		_, err := NewTranscriptWaiter(reader, 6, time.Millisecond).Wait(context.Background(), "sess")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, reader.reads)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		mockSleep(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		reader := &transcriptStub{texts: []string{""}}

		_, err := NewTranscriptWaiter(reader, 6, time.Millisecond).Wait(ctx, "sess")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, reader.reads)
	})

	t.Run("at least one attempt", func(t *testing.T) {
		slept := mockSleep(t)
		reader := &transcriptStub{texts: []string{""}}

		got, err := NewTranscriptWaiter(reader, 0, time.Millisecond).Wait(context.Background(), "sess")
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 1, reader.reads)
		assert.Empty(t, *slept)
	})
}

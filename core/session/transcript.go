package session

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var sleepFunc = sleepContext // mockable

// TranscriptReader reads what the live agent wrote. A missing transcript is an empty string.
type TranscriptReader interface {
	GetTranscriptText(ctx context.Context, sessionID string) (string, error)
}

// TranscriptWaiter polls for the transcript of a session that just ended,
// since the agent may still be flushing it.
type TranscriptWaiter struct {
	reader      TranscriptReader
	maxAttempts int
	delay       time.Duration
}

func NewTranscriptWaiter(reader TranscriptReader, maxAttempts int, delay time.Duration) *TranscriptWaiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TranscriptWaiter{reader: reader, maxAttempts: maxAttempts, delay: delay}
}

// Wait returns the trimmed transcript as soon as one attempt finds it non-empty.
// It sleeps `delay` between attempts (not after the last) and returns "" once the budget is spent.
func (w *TranscriptWaiter) Wait(ctx context.Context, sessionID string) (string, error) {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		text, err := w.reader.GetTranscriptText(ctx, sessionID)
		if err != nil {
			return "", errors.Wrap(err, "reading transcript")
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
		if attempt < w.maxAttempts {
			if err = sleepFunc(ctx, w.delay); err != nil {
				return "", errors.Wrap(err, "waiting for transcript")
			}
		}
	}
	return "", nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

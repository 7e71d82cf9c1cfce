package restriction

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Deny reasons, shown to the student as is.
const (
	ReasonDailyLimit  = "daily tutorial limit reached"
	ReasonWeeklyLimit = "weekly tutorial limit reached"
	ReasonBlockedTime = "tutorials are blocked at this time"
)

// Evaluate decides whether a new session may start at `now`.
// Each guardian's row is checked in turn (daily limit, weekly limit, blocked windows);
// the first denial wins. No rows means no restriction.
func Evaluate(rows []Restriction, usage Usage, now time.Time) Decision {
	for _, r := range rows {
		if r.MaxDailyMinutes != nil && usage.DailyMinutes >= float64(*r.MaxDailyMinutes) {
			return Decision{Reason: ReasonDailyLimit}
		}
		if r.MaxWeeklyMinutes != nil && usage.WeeklyMinutes >= float64(*r.MaxWeeklyMinutes) {
			return Decision{Reason: ReasonWeeklyLimit}
		}
		for _, bt := range r.BlockedTimes {
			if bt.Covers(now) {
				return Decision{Reason: ReasonBlockedTime}
			}
		}
	}
	return Decision{Allowed: true}
}

// UsageReader sums the minutes of summarized sessions started since each bound.
type UsageReader interface {
	SummarizedMinutes(ctx context.Context, studentID string, dayStart, weekStart time.Time) (Usage, error)
}

// Evaluator loads a student's restrictions and usage, then applies Evaluate.
// The check is not atomic with the session insert that follows it: two concurrent
// creations may both be admitted against the same remaining quota.
type Evaluator struct {
	repo  Repository
	usage UsageReader
	loc   *time.Location
}

func NewEvaluator(repo Repository, usage UsageReader, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{repo: repo, usage: usage, loc: loc}
}

func (ev *Evaluator) Evaluate(ctx context.Context, studentID string, now time.Time) (Decision, error) {
	rows, err := ev.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "listing restrictions")
	}
	if len(rows) == 0 {
		return Decision{Allowed: true}, nil
	}

	now = now.In(ev.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, ev.loc)
	weekStart := now.Add(-7 * 24 * time.Hour)

	usage, err := ev.usage.SummarizedMinutes(ctx, studentID, dayStart, weekStart)
	if err != nil {
		return Decision{}, errors.Wrap(err, "summing usage")
	}
	return Evaluate(rows, usage, now), nil
}

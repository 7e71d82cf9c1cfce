package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core/session"
)

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func Test_sessionRepository_MarkLive(t *testing.T) {
	s := newSeed(t)
	repo := NewSessionRepository(s.db)
	ctx := context.Background()
	started := now.Add(-time.Hour)

	tests := []struct {
		name        string
		status      session.Status
		startedAt   *time.Time
		wantOk      bool
		wantStatus  session.Status
		wantStarted time.Time
	}{
		{name: "pending", status: session.StatusPending, wantOk: true, wantStatus: session.StatusLive, wantStarted: now},
		{name: "live keeps its start", status: session.StatusLive, startedAt: &started, wantOk: true, wantStatus: session.StatusLive, wantStarted: started},
		{name: "ended is refused", status: session.StatusEnded, startedAt: &started, wantStatus: session.StatusEnded, wantStarted: started},
		{name: "summarized is refused", status: session.StatusSummarized, startedAt: &started, wantStatus: session.StatusSummarized, wantStarted: started},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := s.addSession(t, tt.status, tt.startedAt, nil)

			ok, err := repo.MarkLive(ctx, sess.ID, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOk, ok)

			got, err := repo.Get(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.NotNil(t, got.StartedAt)
			assert.True(t, tt.wantStarted.Equal(*got.StartedAt))
		})
	}
}

func Test_sessionRepository_MarkEnded(t *testing.T) {
	s := newSeed(t)
	repo := NewSessionRepository(s.db)
	ctx := context.Background()

	t.Run("live session gets its duration", func(t *testing.T) {
		sess := s.addSession(t, session.StatusLive, timePtr(now.Add(-10*time.Minute)), nil)

		got, ok, err := repo.MarkEnded(ctx, sess.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, session.StatusEnded, got.Status)
		require.NotNil(t, got.DurationSeconds)
		assert.Equal(t, 600, *got.DurationSeconds)
	})

	t.Run("never started has no duration", func(t *testing.T) {
		sess := s.addSession(t, session.StatusPending, nil, nil)

		got, ok, err := repo.MarkEnded(ctx, sess.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, got.DurationSeconds)
	})

	t.Run("summarized is left alone", func(t *testing.T) {
		sess := s.addSession(t, session.StatusSummarized, timePtr(now.Add(-time.Hour)), intPtr(1200))

		got, ok, err := repo.MarkEnded(ctx, sess.ID, now)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, session.StatusSummarized, got.Status)
		require.NotNil(t, got.DurationSeconds)
		assert.Equal(t, 1200, *got.DurationSeconds)
		require.NotNil(t, got.EndedAt)
		assert.True(t, now.Add(-40*time.Minute).Equal(*got.EndedAt))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, ok, err := repo.MarkEnded(ctx, "00000000-0000-4000-8000-000000000000", now)
		assert.False(t, ok)
		assert.Equal(t, session.ErrNotFound, err)
	})
}

func Test_sessionRepository_SummarizedMinutes(t *testing.T) {
	s := newSeed(t)
	repo := NewSessionRepository(s.db)
	ctx := context.Background()

	dayStart := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	weekStart := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)

	s.addSession(t, session.StatusSummarized, timePtr(dayStart.Add(9*time.Hour)), intPtr(30*60))  // today
	s.addSession(t, session.StatusSummarized, timePtr(dayStart.Add(-time.Minute)), intPtr(15*60)) // yesterday, same week
	s.addSession(t, session.StatusSummarized, timePtr(weekStart.Add(-time.Hour)), intPtr(45*60))  // last week
	s.addSession(t, session.StatusEnded, timePtr(dayStart.Add(10*time.Hour)), intPtr(60*60))      // not summarized yet
	s.addSession(t, session.StatusSummarized, nil, nil)                                           // never started
	s.addSession(t, session.StatusSummarized, timePtr(dayStart.Add(11*time.Hour)), intPtr(90))    // 1.5 minutes

	got, err := repo.SummarizedMinutes(ctx, s.studentID, dayStart, weekStart)
	require.NoError(t, err)
	assert.InDelta(t, 31.5, got.DailyMinutes, 0.001)
	assert.InDelta(t, 46.5, got.WeeklyMinutes, 0.001)

	t.Run("unknown student", func(t *testing.T) {
		got, err := repo.SummarizedMinutes(ctx, "not-a-uuid", dayStart, weekStart)
		require.NoError(t, err)
		assert.Zero(t, got.DailyMinutes)
		assert.Zero(t, got.WeeklyMinutes)
	})
}

package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
)

func Test_restrictionRepository_Upsert(t *testing.T) {
	s := newSeed(t)
	repo := NewRestrictionRepository(s.db)
	flags := progressRepository{base{db: s.db}}
	ctx := context.Background()

	flag := progress.RepeatFlag{
		StudentID:      s.studentID,
		EnrolmentID:    s.enrolmentID,
		Concept:        "Quadratics",
		Reason:         "Assigned by parent",
		Priority:       "high",
		Status:         "active",
		ParentAssigned: true,
		FlaggedAt:      now,
	}
	r := restriction.Restriction{ParentID: s.parentID, StudentID: s.studentID, MaxDailyMinutes: intPtr(30), UpdatedAt: now}

	t.Run("restriction and flags together", func(t *testing.T) {
		got, err := repo.Upsert(ctx, r, flag)
		require.NoError(t, err)
		require.NotNil(t, got.MaxDailyMinutes)
		assert.Equal(t, 30, *got.MaxDailyMinutes)
		assert.Empty(t, got.BlockedTimes)

		active, err := flags.ActiveRepeatFlags(ctx, s.studentID, s.enrolmentID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.True(t, active[0].ParentAssigned)
	})

	t.Run("a failing flag rolls the restriction back", func(t *testing.T) {
		changed := r
		changed.MaxDailyMinutes = intPtr(5)
		bad := flag
		bad.EnrolmentID = 424242 // no such enrolment

		_, err := repo.Upsert(ctx, changed, bad)
		require.Error(t, err)

		got, err := repo.Get(ctx, s.parentID, s.studentID)
		require.NoError(t, err)
		require.NotNil(t, got.MaxDailyMinutes)
		assert.Equal(t, 30, *got.MaxDailyMinutes)

		active, err := flags.ActiveRepeatFlags(ctx, s.studentID, s.enrolmentID)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("listed for the student", func(t *testing.T) {
		got, err := repo.ListForStudent(ctx, s.studentID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, s.parentID, got[0].ParentID)
	})
}

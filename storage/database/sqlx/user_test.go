package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core/user"
)

func Test_userRepository_inviteCodes(t *testing.T) {
	s := newSeed(t)
	repo := NewUserRepository(s.db)
	ctx := context.Background()
	s.db.MustExec(`UPDATE students SET date_of_birth = $2 WHERE id = $1`, s.studentID, now.AddDate(-11, 0, 0))

	code := user.InviteCode{Code: "AB3KQ9", StudentID: s.studentID, ExpiresAt: now.Add(user.InviteCodeTTL)}
	require.NoError(t, repo.CreateInviteCode(ctx, code))

	t.Run("duplicate code", func(t *testing.T) {
		err := repo.CreateInviteCode(ctx, code)
		assert.Equal(t, user.ErrDuplicateCode, err)
	})

	t.Run("active code", func(t *testing.T) {
		got, err := repo.ActiveInviteCode(ctx, s.studentID, now)
		require.NoError(t, err)
		assert.Equal(t, "AB3KQ9", got.Code)

		_, err = repo.ActiveInviteCode(ctx, s.studentID, now.Add(user.InviteCodeTTL+time.Second))
		assert.Equal(t, user.ErrInviteNotFound, err)
	})

	redemption := user.Redemption{
		Code:         code.Code,
		ParentID:     s.parentID,
		StudentID:    s.studentID,
		Relationship: "mother",
		At:           now,
		GrantConsent: true,
	}

	t.Run("redeem links and grants consent", func(t *testing.T) {
		require.NoError(t, repo.Redeem(ctx, redemption))

		linked, err := repo.IsLinked(ctx, s.parentID, s.studentID)
		require.NoError(t, err)
		assert.True(t, linked)

		links, err := repo.ListLinks(ctx, s.parentID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "mother", links[0].Relationship)

		got, err := repo.GetStudent(ctx, s.studentID)
		require.NoError(t, err)
		assert.False(t, got.NeedsConsent(now))
	})

	t.Run("a code works once", func(t *testing.T) {
		err := repo.Redeem(ctx, redemption)
		assert.Equal(t, user.ErrInviteNotFound, err)
	})

	t.Run("soft deleted guardians are not listed", func(t *testing.T) {
		require.NoError(t, repo.SoftDelete(ctx, s.parentID, now))

		got, err := repo.ListGuardians(ctx, s.studentID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

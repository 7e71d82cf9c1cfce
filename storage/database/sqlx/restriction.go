package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
)

type restrictionRow struct {
	ParentID         string                   `db:"parent_id"`
	StudentID        string                   `db:"student_id"`
	MaxDailyMinutes  null.Int                 `db:"max_daily_minutes"`
	MaxWeeklyMinutes null.Int                 `db:"max_weekly_minutes"`
	BlockedTimes     restriction.BlockedTimes `db:"blocked_times"`
	UpdatedAt        time.Time                `db:"updated_at"`
}

func (r restrictionRow) unpack() restriction.Restriction {
	return restriction.Restriction{
		ParentID:         r.ParentID,
		StudentID:        r.StudentID,
		MaxDailyMinutes:  r.MaxDailyMinutes.Ptr(),
		MaxWeeklyMinutes: r.MaxWeeklyMinutes.Ptr(),
		BlockedTimes:     r.BlockedTimes,
		UpdatedAt:        r.UpdatedAt,
	}
}

const restrictionColumns = `parent_id, student_id, max_daily_minutes, max_weekly_minutes, blocked_times, updated_at`

type restrictionRepository struct {
	base
}

var _ restriction.Repository = (*restrictionRepository)(nil) // interface compliance check

func NewRestrictionRepository(db *sqlx.DB) *restrictionRepository {
	return &restrictionRepository{base{db: db}}
}

func (repo restrictionRepository) ListForStudent(ctx context.Context, studentID string) ([]restriction.Restriction, error) {
	out := make([]restriction.Restriction, 0)
	if !isUUID(studentID) {
		return out, nil
	}
	var rows []restrictionRow
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+restrictionColumns+` FROM restrictions WHERE student_id = $1 ORDER BY parent_id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing restrictions")
	}
	for _, r := range rows {
		out = append(out, r.unpack())
	}
	return out, nil
}

func (repo restrictionRepository) Get(ctx context.Context, parentID, studentID string) (restriction.Restriction, error) {
	if !isUUID(parentID, studentID) {
		return restriction.Restriction{}, restriction.ErrNotFound
	}
	var row restrictionRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT `+restrictionColumns+` FROM restrictions WHERE parent_id = $1 AND student_id = $2`, parentID, studentID)
	if err != nil {
		return restriction.Restriction{}, trapNoRowsErr(err, restriction.ErrNotFound, "getting restriction")
	}
	return row.unpack(), nil
}

func (repo restrictionRepository) Upsert(ctx context.Context, r restriction.Restriction, flags ...progress.RepeatFlag) (restriction.Restriction, error) {
	if r.BlockedTimes == nil {
		r.BlockedTimes = restriction.BlockedTimes{}
	}
	in := restrictionRow{
		ParentID:         r.ParentID,
		StudentID:        r.StudentID,
		MaxDailyMinutes:  null.IntFromPtr(r.MaxDailyMinutes),
		MaxWeeklyMinutes: null.IntFromPtr(r.MaxWeeklyMinutes),
		BlockedTimes:     r.BlockedTimes,
		UpdatedAt:        r.UpdatedAt,
	}

	q, args, err := sqlx.Named(`
		INSERT INTO restrictions (`+restrictionColumns+`)
		VALUES (:parent_id, :student_id, :max_daily_minutes, :max_weekly_minutes, :blocked_times, :updated_at)
		ON CONFLICT (parent_id, student_id) DO UPDATE SET
			max_daily_minutes = EXCLUDED.max_daily_minutes,
			max_weekly_minutes = EXCLUDED.max_weekly_minutes,
			blocked_times = EXCLUDED.blocked_times,
			updated_at = EXCLUDED.updated_at
		RETURNING `+restrictionColumns, in)
	if err != nil {
		return restriction.Restriction{}, errors.Wrap(err, "binding restriction")
	}

	var out restrictionRow
	err = repo.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := sqlx.GetContext(ctx, tx, &out, tx.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "upserting restriction")
		}
		return progressRepository{repo.base}.addRepeatFlags(ctx, flags, tx)
	})
	if err != nil {
		return restriction.Restriction{}, err
	}
	return out.unpack(), nil
}

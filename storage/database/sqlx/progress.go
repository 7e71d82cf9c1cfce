package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/progress"
)

type snapshotRow struct {
	ID              int64           `db:"id"`
	StudentID       string          `db:"student_id"`
	EnrolmentID     int64           `db:"enrolment_id"`
	TopicID         null.Int64      `db:"topic_id"`
	SessionID       null.String     `db:"session_id"`
	ConfidenceScore float64         `db:"confidence_score"`
	Strengths       core.StringList `db:"strengths"`
	Improvements    core.StringList `db:"improvements"`
	Focus           core.StringList `db:"focus"`
	GeneratedAt     time.Time       `db:"generated_at"`
}

func packSnapshot(s progress.Snapshot) snapshotRow {
	return snapshotRow{
		StudentID:       s.StudentID,
		EnrolmentID:     s.EnrolmentID,
		TopicID:         null.Int64FromPtr(s.TopicID),
		SessionID:       null.StringFromPtr(s.SessionID),
		ConfidenceScore: s.ConfidenceScore,
		Strengths:       s.Strengths,
		Improvements:    s.Improvements,
		Focus:           s.Focus,
		GeneratedAt:     s.GeneratedAt.UTC(),
	}
}

func (r snapshotRow) unpack() progress.Snapshot {
	return progress.Snapshot{
		ID:              r.ID,
		StudentID:       r.StudentID,
		EnrolmentID:     r.EnrolmentID,
		TopicID:         r.TopicID.Ptr(),
		SessionID:       r.SessionID.Ptr(),
		ConfidenceScore: r.ConfidenceScore,
		Strengths:       r.Strengths,
		Improvements:    r.Improvements,
		Focus:           r.Focus,
		GeneratedAt:     r.GeneratedAt,
	}
}

type flagRow struct {
	ID             int64       `db:"id"`
	StudentID      string      `db:"student_id"`
	EnrolmentID    int64       `db:"enrolment_id"`
	TopicID        null.Int64  `db:"topic_id"`
	Concept        string      `db:"concept"`
	Reason         string      `db:"reason"`
	Priority       string      `db:"priority"`
	Status         string      `db:"status"`
	ParentAssigned bool        `db:"parent_assigned"`
	FlaggedAt      time.Time   `db:"flagged_at"`
	ResolvedAt     null.Time   `db:"resolved_at"`
	SubjectName    null.String `db:"subject_name"`
}

func packFlag(f progress.RepeatFlag) flagRow {
	if f.Status == "" {
		f.Status = progress.FlagActive
	}
	return flagRow{
		StudentID:      f.StudentID,
		EnrolmentID:    f.EnrolmentID,
		TopicID:        null.Int64FromPtr(f.TopicID),
		Concept:        f.Concept,
		Reason:         f.Reason,
		Priority:       f.Priority,
		Status:         f.Status,
		ParentAssigned: f.ParentAssigned,
		FlaggedAt:      f.FlaggedAt.UTC(),
		ResolvedAt:     null.TimeFromPtr(f.ResolvedAt),
	}
}

func (r flagRow) unpack() progress.RepeatFlag {
	return progress.RepeatFlag{
		ID:             r.ID,
		StudentID:      r.StudentID,
		EnrolmentID:    r.EnrolmentID,
		TopicID:        r.TopicID.Ptr(),
		Concept:        r.Concept,
		Reason:         r.Reason,
		Priority:       r.Priority,
		Status:         r.Status,
		ParentAssigned: r.ParentAssigned,
		FlaggedAt:      r.FlaggedAt,
		ResolvedAt:     r.ResolvedAt.Ptr(),
		SubjectName:    r.SubjectName.String,
	}
}

func unpackFlags(rows []flagRow) []progress.RepeatFlag {
	flags := make([]progress.RepeatFlag, 0, len(rows))
	for _, r := range rows {
		flags = append(flags, r.unpack())
	}
	return flags
}

const (
	flagColumns = `rf.id, rf.student_id, rf.enrolment_id, rf.topic_id, rf.concept, rf.reason, rf.priority,
		rf.status, rf.parent_assigned, rf.flagged_at, rf.resolved_at`
	flagOrdering = `CASE rf.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, rf.flagged_at DESC`

	insertSnapshot = `
		INSERT INTO progress_snapshots
			(student_id, enrolment_id, topic_id, session_id, confidence_score, strengths, improvements, focus, generated_at)
		VALUES
			(:student_id, :enrolment_id, :topic_id, :session_id, :confidence_score, :strengths, :improvements, :focus, :generated_at)`
	insertFlag = `
		INSERT INTO repeat_flags
			(student_id, enrolment_id, topic_id, concept, reason, priority, status, parent_assigned, flagged_at)
		VALUES
			(:student_id, :enrolment_id, :topic_id, :concept, :reason, :priority, :status, :parent_assigned, :flagged_at)`
)

type progressRepository struct {
	base
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{base{db: db}}
}

func (repo progressRepository) ActiveRepeatFlags(ctx context.Context, studentID string, enrolmentID int64) ([]progress.RepeatFlag, error) {
	if !isUUID(studentID) {
		return []progress.RepeatFlag{}, nil
	}
	var rows []flagRow
	err := sqlx.SelectContext(ctx, repo.db, &rows, `
		SELECT `+flagColumns+`
		FROM repeat_flags rf
		WHERE rf.student_id = $1 AND rf.enrolment_id = $2 AND rf.status = 'active'
		ORDER BY `+flagOrdering, studentID, enrolmentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing active repeat flags")
	}
	return unpackFlags(rows), nil
}

func (repo progressRepository) LatestSnapshot(ctx context.Context, studentID string, enrolmentID int64) (progress.Snapshot, error) {
	if !isUUID(studentID) {
		return progress.Snapshot{}, progress.ErrNotFound
	}
	var row snapshotRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		SELECT id, student_id, enrolment_id, topic_id, session_id, confidence_score, strengths, improvements, focus, generated_at
		FROM progress_snapshots
		WHERE student_id = $1 AND enrolment_id = $2
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`, studentID, enrolmentID)
	if err != nil {
		return progress.Snapshot{}, trapNoRowsErr(err, progress.ErrNotFound, "getting latest snapshot")
	}
	return row.unpack(), nil
}

func (repo progressRepository) addSnapshot(ctx context.Context, snap progress.Snapshot, exec ...sqlx.ExtContext) error {
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), insertSnapshot, packSnapshot(snap))
	return errors.Wrap(err, "inserting snapshot")
}

func (repo progressRepository) addRepeatFlags(ctx context.Context, flags []progress.RepeatFlag, exec ...sqlx.ExtContext) error {
	if len(flags) == 0 {
		return nil
	}
	rows := make([]flagRow, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, packFlag(f))
	}
	// batch insert
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), insertFlag, rows)
	return errors.Wrap(err, "inserting repeat flags")
}

func (repo progressRepository) AddRepeatFlags(ctx context.Context, flags ...progress.RepeatFlag) error {
	return repo.addRepeatFlags(ctx, flags)
}

func (repo progressRepository) GetRepeatFlag(ctx context.Context, id int64) (progress.RepeatFlag, error) {
	var row flagRow
	err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+flagColumns+` FROM repeat_flags rf WHERE rf.id = $1`, id)
	if err != nil {
		return progress.RepeatFlag{}, trapNoRowsErr(err, progress.ErrNotFound, "getting repeat flag")
	}
	return row.unpack(), nil
}

func (repo progressRepository) ResolveRepeatFlag(ctx context.Context, id int64, at time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE repeat_flags SET status = 'resolved', resolved_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "resolving repeat flag")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (repo progressRepository) Overview(ctx context.Context, studentID string, weekStart time.Time) (progress.Overview, error) {
	ov := progress.Overview{
		SubjectProgress:   make([]progress.SubjectProgress, 0),
		ActiveRepeatFlags: make([]progress.RepeatFlag, 0),
	}
	if !isUUID(studentID) {
		return ov, nil
	}

	err := sqlx.GetContext(ctx, repo.db, &ov.Stats, `
		SELECT COUNT(*) AS "totalsessions",
		       COUNT(*) FILTER (WHERE created_at >= $2) AS "sessionsthisweek"
		FROM sessions
		WHERE student_id = $1`, studentID, weekStart.UTC())
	if err != nil {
		return progress.Overview{}, errors.Wrap(err, "counting sessions")
	}

	err = sqlx.SelectContext(ctx, repo.db, &ov.SubjectProgress, `
		SELECT se.id AS "enrolmentid",
		       s.name AS "subjectname",
		       COALESCE(AVG(ps.confidence_score), 0) AS "avgconfidence"
		FROM student_enrolments se
		INNER JOIN board_subjects bs ON bs.id = se.board_subject_id
		INNER JOIN subjects s ON s.id = bs.subject_id
		LEFT JOIN progress_snapshots ps ON ps.student_id = se.student_id AND ps.enrolment_id = se.id
		WHERE se.student_id = $1
		GROUP BY se.id, s.name
		ORDER BY s.name`, studentID)
	if err != nil {
		return progress.Overview{}, errors.Wrap(err, "averaging confidence")
	}

	var rows []flagRow
	err = sqlx.SelectContext(ctx, repo.db, &rows, `
		SELECT `+flagColumns+`, s.name AS subject_name
		FROM repeat_flags rf
		INNER JOIN student_enrolments se ON se.id = rf.enrolment_id
		INNER JOIN board_subjects bs ON bs.id = se.board_subject_id
		INNER JOIN subjects s ON s.id = bs.subject_id
		WHERE rf.student_id = $1 AND rf.status = 'active'
		ORDER BY `+flagOrdering, studentID)
	if err != nil {
		return progress.Overview{}, errors.Wrap(err, "listing active repeat flags")
	}
	ov.ActiveRepeatFlags = unpackFlags(rows)
	return ov, nil
}

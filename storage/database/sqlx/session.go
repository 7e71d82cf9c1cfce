package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
)

type sessionRow struct {
	ID               string      `db:"id"`
	StudentID        null.String `db:"student_id"`
	EnrolmentID      null.Int64  `db:"enrolment_id"`
	CourseID         int64       `db:"course_id"`
	TopicID          int64       `db:"topic_id"`
	RoomName         string      `db:"room_name"`
	ParticipantToken string      `db:"participant_token"`
	Status           string      `db:"status"`
	StartedAt        null.Time   `db:"started_at"`
	EndedAt          null.Time   `db:"ended_at"`
	DurationSeconds  null.Int    `db:"duration_seconds"`
	CreatedAt        time.Time   `db:"created_at"`
}

func packSession(s session.Session) sessionRow {
	return sessionRow{
		ID:               s.ID,
		StudentID:        null.StringFromPtr(s.StudentID),
		EnrolmentID:      null.Int64FromPtr(s.EnrolmentID),
		CourseID:         s.CourseID,
		TopicID:          s.TopicID,
		RoomName:         s.RoomName,
		ParticipantToken: s.ParticipantToken,
		Status:           string(s.Status),
		StartedAt:        null.TimeFromPtr(s.StartedAt),
		EndedAt:          null.TimeFromPtr(s.EndedAt),
		DurationSeconds:  null.IntFromPtr(s.DurationSeconds),
		CreatedAt:        s.CreatedAt.UTC(),
	}
}

func (r sessionRow) unpack() session.Session {
	return session.Session{
		ID:               r.ID,
		StudentID:        r.StudentID.Ptr(),
		EnrolmentID:      r.EnrolmentID.Ptr(),
		CourseID:         r.CourseID,
		TopicID:          r.TopicID,
		RoomName:         r.RoomName,
		ParticipantToken: r.ParticipantToken,
		Status:           session.Status(r.Status),
		StartedAt:        r.StartedAt.Ptr(),
		EndedAt:          r.EndedAt.Ptr(),
		DurationSeconds:  r.DurationSeconds.Ptr(),
		CreatedAt:        r.CreatedAt,
	}
}

type detailRow struct {
	sessionRow
	CourseName     string          `db:"course_name"`
	TopicName      string          `db:"topic_name"`
	TranscriptText null.String     `db:"transcript_text"`
	TranscriptJSON null.JSON       `db:"transcript_json"`
	SummaryMd      null.String     `db:"summary_md"`
	KeyTakeaways   core.StringList `db:"key_takeaways"`
	Citations      core.StringList `db:"citations"`
	SummaryCreated null.Time       `db:"summary_created_at"`
	SummaryUpdated null.Time       `db:"summary_updated_at"`
}

const (
	sessionColumns = `s.id, s.student_id, s.enrolment_id, s.course_id, s.topic_id, s.room_name, s.participant_token,
		s.status, s.started_at, s.ended_at, s.duration_seconds, s.created_at`
	returningSession = `id, student_id, enrolment_id, course_id, topic_id, room_name, participant_token,
		status, started_at, ended_at, duration_seconds, created_at`
)

// sortable fields of the session list
var sessionOrderColumns = map[string]string{
	"createdAt": "s.created_at",
	"startedAt": "s.started_at",
	"endedAt":   "s.ended_at",
	"status":    "s.status",
}

type sessionRepository struct {
	base
	progress progressRepository
}

var (
	// interface compliance checks
	_ session.Repository       = (*sessionRepository)(nil)
	_ session.TranscriptReader = (*sessionRepository)(nil)
	_ restriction.UsageReader  = (*sessionRepository)(nil)
)

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{
		base:     base{db: db},
		progress: progressRepository{base{db: db}},
	}
}

func (repo sessionRepository) Create(ctx context.Context, s session.Session) error {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO sessions (`+returningSession+`)
		VALUES (:id, :student_id, :enrolment_id, :course_id, :topic_id, :room_name, :participant_token,
			:status, :started_at, :ended_at, :duration_seconds, :created_at)`, packSession(s))
	return errors.Wrap(err, "inserting session")
}

func (repo sessionRepository) Get(ctx context.Context, id string) (session.Session, error) {
	if !isUUID(id) {
		return session.Session{}, session.ErrNotFound
	}
	var row sessionRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`, id); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "getting session")
	}
	return row.unpack(), nil
}

func (repo sessionRepository) List(ctx context.Context, studentID string, ordering []core.DBOrdering) ([]session.ListItem, error) {
	items := make([]session.ListItem, 0)
	if !isUUID(studentID) {
		return items, nil
	}
	var rows []detailRow
	err := sqlx.SelectContext(ctx, repo.db, &rows, `
		SELECT `+sessionColumns+`, c.name AS course_name, t.name AS topic_name
		FROM sessions s
		INNER JOIN courses c ON c.id = s.course_id
		INNER JOIN topics t ON t.id = s.topic_id
		WHERE s.student_id = $1
		ORDER BY `+core.OrderByClause(ordering, sessionOrderColumns, "s.created_at DESC"), studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	for _, r := range rows {
		items = append(items, session.ListItem{
			ID:         r.ID,
			Status:     session.Status(r.Status),
			RoomName:   r.RoomName,
			CourseName: r.CourseName,
			TopicName:  r.TopicName,
			CreatedAt:  r.CreatedAt,
			StartedAt:  r.StartedAt.Ptr(),
			EndedAt:    r.EndedAt.Ptr(),
		})
	}
	return items, nil
}

func (repo sessionRepository) GetDetail(ctx context.Context, id string) (session.Detail, error) {
	if !isUUID(id) {
		return session.Detail{}, session.ErrNotFound
	}
	var row detailRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		SELECT `+sessionColumns+`,
		       c.name AS course_name,
		       t.name AS topic_name,
		       tr.transcript_text,
		       tr.transcript_json,
		       ss.summary_md,
		       ss.key_takeaways,
		       ss.citations,
		       ss.created_at AS summary_created_at,
		       ss.updated_at AS summary_updated_at
		FROM sessions s
		INNER JOIN courses c ON c.id = s.course_id
		INNER JOIN topics t ON t.id = s.topic_id
		LEFT JOIN session_transcripts tr ON tr.session_id = s.id
		LEFT JOIN session_summaries ss ON ss.session_id = s.id
		WHERE s.id = $1`, id)
	if err != nil {
		return session.Detail{}, trapNoRowsErr(err, session.ErrNotFound, "getting session detail")
	}

	detail := session.Detail{
		Session:        row.unpack(),
		CourseName:     row.CourseName,
		TopicName:      row.TopicName,
		TranscriptText: row.TranscriptText.String,
	}
	if row.TranscriptJSON.Valid {
		detail.TranscriptTurns = json.RawMessage(row.TranscriptJSON.JSON)
	}
	if row.SummaryMd.Valid {
		detail.Summary = &progress.Summary{
			SessionID:    row.ID,
			SummaryMd:    row.SummaryMd.String,
			KeyTakeaways: row.KeyTakeaways,
			Citations:    row.Citations,
			CreatedAt:    row.SummaryCreated.Time,
			UpdatedAt:    row.SummaryUpdated.Time,
		}
	}
	return detail, nil
}

func (repo sessionRepository) MarkLive(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'live', started_at = COALESCE(started_at, $2)
		WHERE id = $1 AND status IN ('pending', 'live')`, id, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "marking session live")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "marking session live")
	}
	return n > 0, nil
}

func (repo sessionRepository) MarkEnded(ctx context.Context, id string, at time.Time) (session.Session, bool, error) {
	var row sessionRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		UPDATE sessions
		SET status = 'ended',
		    ended_at = $2,
		    duration_seconds = CASE
		        WHEN started_at IS NULL THEN NULL
		        ELSE GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at)))::int
		    END
		WHERE id = $1 AND status IN ('pending', 'live', 'ended')
		RETURNING `+returningSession, id, at.UTC())
	if err == nil {
		return row.unpack(), true, nil
	}
	if err != sql.ErrNoRows {
		return session.Session{}, false, errors.Wrap(err, "marking session ended")
	}

	// already summarized, or gone
	s, err := repo.Get(ctx, id)
	if err != nil {
		return session.Session{}, false, err
	}
	return s, false, nil
}

// Complete stores the pipeline output and marks the session summarized, in one transaction.
func (repo sessionRepository) Complete(ctx context.Context, c session.Completion) error {
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		sum := c.Summary
		if sum.KeyTakeaways == nil {
			sum.KeyTakeaways = core.StringList{}
		}
		if sum.Citations == nil {
			sum.Citations = core.StringList{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_summaries (session_id, summary_md, key_takeaways, citations, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (session_id) DO UPDATE SET
				summary_md = EXCLUDED.summary_md,
				key_takeaways = EXCLUDED.key_takeaways,
				citations = EXCLUDED.citations,
				updated_at = EXCLUDED.updated_at`,
			c.SessionID, sum.SummaryMd, sum.KeyTakeaways, sum.Citations, sum.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "upserting summary")
		}

		if c.Snapshot != nil {
			if err = repo.progress.addSnapshot(ctx, *c.Snapshot, tx); err != nil {
				return err
			}
		}
		if err = repo.progress.addRepeatFlags(ctx, c.RepeatFlags, tx); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET status = 'summarized' WHERE id = $1 AND status IN ('ended', 'summarized')`, c.SessionID)
		return errors.Wrap(err, "marking session summarized")
	})
}

func (repo sessionRepository) GetTranscriptText(ctx context.Context, sessionID string) (string, error) {
	var text string
	err := sqlx.GetContext(ctx, repo.db, &text,
		`SELECT transcript_text FROM session_transcripts WHERE session_id = $1`, sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return text, errors.Wrap(err, "reading transcript")
}

func (repo sessionRepository) SummarizedMinutes(ctx context.Context, studentID string, dayStart, weekStart time.Time) (restriction.Usage, error) {
	var usage restriction.Usage
	if !isUUID(studentID) {
		return usage, nil
	}
	err := sqlx.GetContext(ctx, repo.db, &usage, `
		WITH done AS (
			SELECT started_at,
			       COALESCE(duration_seconds, EXTRACT(EPOCH FROM (ended_at - started_at)), 0) / 60.0 AS minutes
			FROM sessions
			WHERE student_id = $1 AND status = 'summarized' AND started_at IS NOT NULL
		)
		SELECT COALESCE(SUM(minutes) FILTER (WHERE started_at >= $2), 0) AS "dailyminutes",
		       COALESCE(SUM(minutes) FILTER (WHERE started_at >= $3), 0) AS "weeklyminutes"
		FROM done`, studentID, dayStart.UTC(), weekStart.UTC())
	return usage, errors.Wrap(err, "summing usage")
}

package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/tests"
)

var now = time.Date(2026, time.March, 11, 16, 30, 0, 0, time.UTC)

type seed struct {
	db           *sqlx.DB
	studentID    string
	parentID     string
	boardSubject int64
	enrolmentID  int64
	courseID     int64
	topicID      int64
}

func newSeed(t *testing.T) *seed {
	db := testutil.PrepareDB(t)
	s := &seed{db: db, studentID: uuid.NewString(), parentID: uuid.NewString()}

	db.MustExec(`INSERT INTO users (id, role, full_name, email, terms_accepted_at) VALUES
		($1, 'student', 'Ada Lovelace', 'ada@test.uk', $3),
		($2, 'parent', 'Anne Byron', 'anne@test.uk', $3)`, s.studentID, s.parentID, now)
	db.MustExec(`INSERT INTO students (id, school_year) VALUES ($1, 11)`, s.studentID)

	var subjectID, boardID int64
	require.NoError(t, db.Get(&subjectID, `INSERT INTO subjects (name) VALUES ('Mathematics') RETURNING id`))
	require.NoError(t, db.Get(&boardID, `INSERT INTO exam_boards (name) VALUES ('AQA') RETURNING id`))
	require.NoError(t, db.Get(&s.boardSubject,
		`INSERT INTO board_subjects (subject_id, exam_board_id) VALUES ($1, $2) RETURNING id`, subjectID, boardID))
	require.NoError(t, db.Get(&s.enrolmentID,
		`INSERT INTO student_enrolments (student_id, board_subject_id, exam_year) VALUES ($1, $2, 2027) RETURNING id`,
		s.studentID, s.boardSubject))
	require.NoError(t, db.Get(&s.courseID,
		`INSERT INTO courses (name, subject_id, exam_board_id) VALUES ('GCSE Maths', $1, $2) RETURNING id`, subjectID, boardID))
	require.NoError(t, db.Get(&s.topicID,
		`INSERT INTO topics (course_id, name) VALUES ($1, 'Algebra') RETURNING id`, s.courseID))
	return s
}

// addSession inserts a session for the seeded student, already moved to status.
func (s *seed) addSession(t *testing.T, status session.Status, startedAt *time.Time, duration *int) session.Session {
	id := uuid.NewString()
	sess := session.Session{
		ID:              id,
		StudentID:       &s.studentID,
		EnrolmentID:     &s.enrolmentID,
		CourseID:        s.courseID,
		TopicID:         s.topicID,
		RoomName:        "session-" + id,
		Status:          status,
		StartedAt:       startedAt,
		DurationSeconds: duration,
		CreatedAt:       now,
	}
	if startedAt != nil && duration != nil {
		ended := startedAt.Add(time.Duration(*duration) * time.Second)
		sess.EndedAt = &ended
	}
	require.NoError(t, NewSessionRepository(s.db).Create(context.Background(), sess))
	return sess
}

package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core/course"
)

type courseRow struct {
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	SubjectID   null.Int64 `db:"subject_id"`
	ExamBoardID null.Int64 `db:"exam_board_id"`
}

type boardSubjectRow struct {
	ID          int64       `db:"id"`
	SubjectID   int64       `db:"subject_id"`
	SubjectName string      `db:"subject_name"`
	ExamBoardID null.Int64  `db:"exam_board_id"`
	BoardName   null.String `db:"board_name"`
}

func (r boardSubjectRow) unpack() course.BoardSubject {
	return course.BoardSubject{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		ExamBoardID: r.ExamBoardID.Ptr(),
		BoardName:   r.BoardName.String,
	}
}

const boardSubjectSelect = `
	SELECT bs.id, bs.subject_id, s.name AS subject_name, bs.exam_board_id, eb.name AS board_name
	FROM board_subjects bs
	INNER JOIN subjects s ON s.id = bs.subject_id
	LEFT JOIN exam_boards eb ON eb.id = bs.exam_board_id`

type enrolmentRow struct {
	ID             int64       `db:"id"`
	StudentID      string      `db:"student_id"`
	BoardSubjectID int64       `db:"board_subject_id"`
	SubjectID      int64       `db:"subject_id"`
	SubjectName    string      `db:"subject_name"`
	ExamBoardID    null.Int64  `db:"exam_board_id"`
	BoardName      null.String `db:"board_name"`
	ExamYear       null.Int    `db:"exam_year"`
	YearOfStudy    null.Int    `db:"year_of_study"`
}

func (r enrolmentRow) unpack() course.Enrolment {
	return course.Enrolment{
		ID:             r.ID,
		StudentID:      r.StudentID,
		BoardSubjectID: r.BoardSubjectID,
		SubjectID:      r.SubjectID,
		SubjectName:    r.SubjectName,
		ExamBoardID:    r.ExamBoardID.Ptr(),
		BoardName:      r.BoardName.String,
		ExamYear:       r.ExamYear.Ptr(),
		YearOfStudy:    r.YearOfStudy.Ptr(),
	}
}

const enrolmentSelect = `
	SELECT se.id, se.student_id, se.board_subject_id, bs.subject_id, s.name AS subject_name,
	       bs.exam_board_id, eb.name AS board_name, se.exam_year, se.year_of_study
	FROM student_enrolments se
	INNER JOIN board_subjects bs ON bs.id = se.board_subject_id
	INNER JOIN subjects s ON s.id = bs.subject_id
	LEFT JOIN exam_boards eb ON eb.id = bs.exam_board_id`

type courseRepository struct {
	base
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{base{db: db}}
}

func (repo courseRepository) GetCourse(ctx context.Context, id int64) (course.Course, error) {
	var row courseRow
	err := sqlx.GetContext(ctx, repo.db, &row, `SELECT id, name, subject_id, exam_board_id FROM courses WHERE id = $1`, id)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "getting course")
	}
	return course.Course{
		ID:          row.ID,
		Name:        row.Name,
		SubjectID:   row.SubjectID.Ptr(),
		ExamBoardID: row.ExamBoardID.Ptr(),
	}, nil
}

func (repo courseRepository) GetTopic(ctx context.Context, courseID, topicID int64) (course.Topic, error) {
	var t course.Topic
	err := sqlx.GetContext(ctx, repo.db, &t,
		`SELECT id AS "id", course_id AS "courseid", name AS "name" FROM topics WHERE id = $1 AND course_id = $2`,
		topicID, courseID)
	if err != nil {
		return course.Topic{}, trapNoRowsErr(err, course.ErrTopicNotFound, "getting topic")
	}
	return t, nil
}

// ListEnrolments returns enrolments in insertion order; MatchEnrolment keeps the first that fits.
func (repo courseRepository) ListEnrolments(ctx context.Context, studentID string) ([]course.Enrolment, error) {
	enrolments := make([]course.Enrolment, 0)
	if !isUUID(studentID) {
		return enrolments, nil
	}
	var rows []enrolmentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, enrolmentSelect+` WHERE se.student_id = $1 ORDER BY se.id`, studentID); err != nil {
		return nil, errors.Wrap(err, "listing enrolments")
	}
	for _, r := range rows {
		enrolments = append(enrolments, r.unpack())
	}
	return enrolments, nil
}

func (repo courseRepository) GetEnrolment(ctx context.Context, id int64) (course.Enrolment, error) {
	var row enrolmentRow
	if err := sqlx.GetContext(ctx, repo.db, &row, enrolmentSelect+` WHERE se.id = $1`, id); err != nil {
		return course.Enrolment{}, trapNoRowsErr(err, course.ErrEnrolmentNotFound, "getting enrolment")
	}
	return row.unpack(), nil
}

func (repo courseRepository) ListBoardSubjects(ctx context.Context) ([]course.BoardSubject, error) {
	var rows []boardSubjectRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, boardSubjectSelect+` ORDER BY s.name, eb.name NULLS FIRST`); err != nil {
		return nil, errors.Wrap(err, "listing board subjects")
	}
	subjects := make([]course.BoardSubject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.unpack())
	}
	return subjects, nil
}

func (repo courseRepository) GetBoardSubject(ctx context.Context, id int64) (course.BoardSubject, error) {
	var row boardSubjectRow
	if err := sqlx.GetContext(ctx, repo.db, &row, boardSubjectSelect+` WHERE bs.id = $1`, id); err != nil {
		return course.BoardSubject{}, trapNoRowsErr(err, course.ErrBoardSubjectNotFound, "getting board subject")
	}
	return row.unpack(), nil
}

func (repo courseRepository) UpsertEnrolment(ctx context.Context, e course.Enrolment) (course.Enrolment, error) {
	var id int64
	err := sqlx.GetContext(ctx, repo.db, &id, `
		INSERT INTO student_enrolments (student_id, board_subject_id, exam_year, year_of_study)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, board_subject_id) DO UPDATE SET
			exam_year = EXCLUDED.exam_year,
			year_of_study = EXCLUDED.year_of_study
		RETURNING id`,
		e.StudentID, e.BoardSubjectID, null.IntFromPtr(e.ExamYear), null.IntFromPtr(e.YearOfStudy))
	if err != nil {
		return course.Enrolment{}, errors.Wrap(err, "upserting enrolment")
	}
	return repo.GetEnrolment(ctx, id)
}

func (repo courseRepository) DeleteEnrolment(ctx context.Context, studentID string, id int64) error {
	if !isUUID(studentID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM student_enrolments WHERE id = $1 AND student_id = $2`, id, studentID)
	return errors.Wrap(err, "deleting enrolment")
}

package course

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
)

var (
	// errors
	ErrCourseNotFound       = errors.New("course not found")
	ErrTopicNotFound        = errors.New("topic not found")
	ErrEnrolmentNotFound    = errors.New("enrolment not found")
	ErrBoardSubjectNotFound = errors.New("board subject not found")
)

type Repository interface {
	GetCourse(ctx context.Context, id int64) (Course, error)
	// GetTopic fails with ErrTopicNotFound unless the topic belongs to the course.
	GetTopic(ctx context.Context, courseID, topicID int64) (Topic, error)
	// ListEnrolments returns the student's enrolments in storage order.
	ListEnrolments(ctx context.Context, studentID string) ([]Enrolment, error)
	GetEnrolment(ctx context.Context, id int64) (Enrolment, error)

	ListBoardSubjects(ctx context.Context) ([]BoardSubject, error)
	GetBoardSubject(ctx context.Context, id int64) (BoardSubject, error)
	// UpsertEnrolment creates the (student, board subject) enrolment or updates its years.
	UpsertEnrolment(ctx context.Context, e Enrolment) (Enrolment, error)
	// DeleteEnrolment only deletes an enrolment the student owns; it is a no-op otherwise.
	DeleteEnrolment(ctx context.Context, studentID string, id int64) error
}

// Service lets students manage what they are enrolled in.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) ListBoardSubjects(ctx context.Context) ([]BoardSubject, error) {
	subjects, err := svc.repo.ListBoardSubjects(ctx)
	return subjects, errors.Wrap(err, "listing board subjects")
}

func (svc *Service) ListEnrolments(ctx context.Context, studentID string) ([]Enrolment, error) {
	enrolments, err := svc.repo.ListEnrolments(ctx, studentID)
	return enrolments, errors.Wrap(err, "listing enrolments")
}

func (svc *Service) Enrol(ctx context.Context, studentID string, data NewEnrolment) (Enrolment, error) {
	if err := svc.validate.Struct(data); err != nil {
		return Enrolment{}, err
	}
	bs, err := svc.repo.GetBoardSubject(ctx, data.BoardSubjectID)
	if err != nil {
		if errors.Cause(err) == ErrBoardSubjectNotFound {
			return Enrolment{}, core.NewNotFoundError("board subject")
		}
		return Enrolment{}, errors.Wrap(err, "getting board subject")
	}

	examYear, yearOfStudy := data.ExamYear, data.YearOfStudy
	e, err := svc.repo.UpsertEnrolment(ctx, Enrolment{
		StudentID:      studentID,
		BoardSubjectID: bs.ID,
		SubjectID:      bs.SubjectID,
		SubjectName:    bs.SubjectName,
		ExamBoardID:    bs.ExamBoardID,
		BoardName:      bs.BoardName,
		ExamYear:       &examYear,
		YearOfStudy:    &yearOfStudy,
	})
	return e, errors.Wrap(err, "upserting enrolment")
}

func (svc *Service) Unenrol(ctx context.Context, studentID string, enrolmentID int64) error {
	return errors.Wrap(svc.repo.DeleteEnrolment(ctx, studentID, enrolmentID), "deleting enrolment")
}

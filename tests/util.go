package testutil

import (
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/user"
	"github.com/trezcool/dos/services/logger"
	"github.com/trezcool/dos/storage/database/inmem"
)

// Fixtures is a small catalogue: one student enrolled in maths under a board, linked to one parent.
type Fixtures struct {
	DB            *inmemdb.DB
	Student       user.Student
	Parent        user.Guardian
	MathsAQA      course.BoardSubject
	Physics       course.BoardSubject // board-agnostic
	Maths         course.Course       // subject + board
	Algebra       course.Topic
	Enrolment     course.Enrolment
	Debate        course.Course // no subject
	Rhetoric      course.Topic
	TermsSignedAt time.Time
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

// MockNow pins core.NowFunc to `now` for the duration of the test.
func MockNow(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func Seed(t *testing.T) *Fixtures {
	t.Helper()
	db := inmemdb.Open()

	signed := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	dob := time.Date(2009, time.May, 4, 0, 0, 0, 0, time.UTC)
	student := db.AddStudent(user.Student{
		ID:              uuid.New().String(),
		FullName:        "Ada Lovelace",
		Email:           "ada@test.uk",
		DateOfBirth:     &dob,
		TermsAcceptedAt: &signed,
	})
	parent := user.Guardian{ID: uuid.New().String(), FullName: "Anne Lovelace", Email: "anne@test.uk"}
	db.LinkGuardian(parent, student.ID)

	subject := db.AddSubject("Mathematics")
	board := int64(77)
	mathsAQA := db.AddBoardSubject(course.BoardSubject{SubjectID: subject, ExamBoardID: &board, BoardName: "AQA"})
	physics := db.AddBoardSubject(course.BoardSubject{SubjectID: db.AddSubject("Physics")})
	maths := db.AddCourse(course.Course{Name: "GCSE Maths", SubjectID: &subject, ExamBoardID: &board})
	algebra := db.AddTopic(course.Topic{CourseID: maths.ID, Name: "Quadratics"})
	enrolment := db.AddEnrolment(course.Enrolment{
		StudentID:      student.ID,
		BoardSubjectID: mathsAQA.ID,
		SubjectID:      subject,
		ExamBoardID:    &board,
		BoardName:      mathsAQA.BoardName,
	})

	debate := db.AddCourse(course.Course{Name: "Debate Club"})
	rhetoric := db.AddTopic(course.Topic{CourseID: debate.ID, Name: "Rhetoric"})

	return &Fixtures{
		DB:            db,
		Student:       student,
		Parent:        parent,
		MathsAQA:      mathsAQA,
		Physics:       physics,
		Maths:         maths,
		Algebra:       algebra,
		Enrolment:     enrolment,
		Debate:        debate,
		Rhetoric:      rhetoric,
		TermsSignedAt: signed,
	}
}

// AddStudent adds another student who accepted the terms, optionally linked to `parent`.
func (f *Fixtures) AddStudent(name string, dob *time.Time, parent *user.Guardian) user.Student {
	signed := f.TermsSignedAt
	s := f.DB.AddStudent(user.Student{
		ID:              uuid.New().String(),
		FullName:        name,
		Email:           strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.uk",
		DateOfBirth:     dob,
		TermsAcceptedAt: &signed,
	})
	if parent != nil {
		f.DB.LinkGuardian(*parent, s.ID)
	}
	return s
}

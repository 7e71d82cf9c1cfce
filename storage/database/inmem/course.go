package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/dos/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) GetCourse(_ context.Context, id int64) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) GetTopic(_ context.Context, courseID, topicID int64) (course.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.topics[topicID]; ok && t.CourseID == courseID {
		return t, nil
	}
	return course.Topic{}, course.ErrTopicNotFound
}

func (repo *courseRepository) ListEnrolments(_ context.Context, studentID string) ([]course.Enrolment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrolments := make([]course.Enrolment, 0)
	for _, e := range repo.db.enrolments {
		if e.StudentID == studentID {
			enrolments = append(enrolments, e)
		}
	}
	return enrolments, nil
}

func (repo *courseRepository) GetEnrolment(_ context.Context, id int64) (course.Enrolment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrolments {
		if e.ID == id {
			return e, nil
		}
	}
	return course.Enrolment{}, course.ErrEnrolmentNotFound
}

func (repo *courseRepository) ListBoardSubjects(_ context.Context) ([]course.BoardSubject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]course.BoardSubject, 0, len(repo.db.boardSubjects))
	for _, bs := range repo.db.boardSubjects {
		subjects = append(subjects, bs)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].SubjectName != subjects[j].SubjectName {
			return subjects[i].SubjectName < subjects[j].SubjectName
		}
		return subjects[i].BoardName < subjects[j].BoardName
	})
	return subjects, nil
}

func (repo *courseRepository) GetBoardSubject(_ context.Context, id int64) (course.BoardSubject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if bs, ok := repo.db.boardSubjects[id]; ok {
		return bs, nil
	}
	return course.BoardSubject{}, course.ErrBoardSubjectNotFound
}

func (repo *courseRepository) UpsertEnrolment(_ context.Context, e course.Enrolment) (course.Enrolment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, existing := range repo.db.enrolments {
		if existing.StudentID == e.StudentID && existing.BoardSubjectID == e.BoardSubjectID {
			existing.ExamYear, existing.YearOfStudy = e.ExamYear, e.YearOfStudy
			repo.db.enrolments[i] = existing
			return existing, nil
		}
	}
	e.ID = repo.db.nextID()
	repo.db.enrolments = append(repo.db.enrolments, e)
	return e, nil
}

// DeleteEnrolment cascades to the enrolment's tutor config, snapshots and repeat flags.
func (repo *courseRepository) DeleteEnrolment(_ context.Context, studentID string, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	kept := repo.db.enrolments[:0]
	deleted := false
	for _, e := range repo.db.enrolments {
		if e.ID == id && e.StudentID == studentID {
			deleted = true
			continue
		}
		kept = append(kept, e)
	}
	repo.db.enrolments = kept
	if !deleted {
		return nil
	}

	delete(repo.db.tutorConfigs, configKey{studentID, id})
	snapshots := repo.db.snapshots[:0]
	for _, s := range repo.db.snapshots {
		if s.EnrolmentID != id {
			snapshots = append(snapshots, s)
		}
	}
	repo.db.snapshots = snapshots
	flags := repo.db.flags[:0]
	for _, f := range repo.db.flags {
		if f.EnrolmentID != id {
			flags = append(flags, f)
		}
	}
	repo.db.flags = flags
	return nil
}

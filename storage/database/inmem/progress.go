package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/dos/core/progress"
)

var priorityRanks = map[string]int{progress.PriorityHigh: 0, progress.PriorityMedium: 1, progress.PriorityLow: 2}

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func sortFlags(flags []progress.RepeatFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		ri, rj := priorityRanks[flags[i].Priority], priorityRanks[flags[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return flags[i].FlaggedAt.After(flags[j].FlaggedAt)
	})
}

func (repo *progressRepository) ActiveRepeatFlags(_ context.Context, studentID string, enrolmentID int64) ([]progress.RepeatFlag, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	flags := make([]progress.RepeatFlag, 0)
	for _, f := range repo.db.flags {
		if f.StudentID == studentID && f.EnrolmentID == enrolmentID && f.Status == progress.FlagActive {
			flags = append(flags, f)
		}
	}
	sortFlags(flags)
	return flags, nil
}

func (repo *progressRepository) LatestSnapshot(_ context.Context, studentID string, enrolmentID int64) (progress.Snapshot, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var latest *progress.Snapshot
	for i := range repo.db.snapshots {
		s := &repo.db.snapshots[i]
		if s.StudentID != studentID || s.EnrolmentID != enrolmentID {
			continue
		}
		if latest == nil || !s.GeneratedAt.Before(latest.GeneratedAt) {
			latest = s
		}
	}
	if latest == nil {
		return progress.Snapshot{}, progress.ErrNotFound
	}
	return *latest, nil
}

// addFlags must be called with the write lock held.
func (db *DB) addFlags(flags ...progress.RepeatFlag) {
	for _, f := range flags {
		f.ID = db.nextID()
		if f.Status == "" {
			f.Status = progress.FlagActive
		}
		db.flags = append(db.flags, f)
	}
}

func (repo *progressRepository) AddRepeatFlags(_ context.Context, flags ...progress.RepeatFlag) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.addFlags(flags...)
	return nil
}

func (repo *progressRepository) GetRepeatFlag(_ context.Context, id int64) (progress.RepeatFlag, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, f := range repo.db.flags {
		if f.ID == id {
			return f, nil
		}
	}
	return progress.RepeatFlag{}, progress.ErrNotFound
}

func (repo *progressRepository) ResolveRepeatFlag(_ context.Context, id int64, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.flags {
		if repo.db.flags[i].ID == id {
			repo.db.flags[i].Status = progress.FlagResolved
			repo.db.flags[i].ResolvedAt = &at
			return nil
		}
	}
	return progress.ErrNotFound
}

func (repo *progressRepository) Overview(_ context.Context, studentID string, weekStart time.Time) (progress.Overview, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ov progress.Overview
	for _, s := range repo.db.sessions {
		if !s.OwnedBy(studentID) {
			continue
		}
		ov.Stats.TotalSessions++
		if !s.CreatedAt.Before(weekStart) {
			ov.Stats.SessionsThisWeek++
		}
	}

	subjectOf := make(map[int64]string)
	ov.SubjectProgress = make([]progress.SubjectProgress, 0)
	for _, e := range repo.db.enrolments {
		if e.StudentID != studentID {
			continue
		}
		name := repo.db.subjectNames[e.SubjectID]
		subjectOf[e.ID] = name

		var sum float64
		var n int
		for _, snap := range repo.db.snapshots {
			if snap.StudentID == studentID && snap.EnrolmentID == e.ID {
				sum += snap.ConfidenceScore
				n++
			}
		}
		sp := progress.SubjectProgress{EnrolmentID: e.ID, SubjectName: name}
		if n > 0 {
			sp.AvgConfidence = sum / float64(n)
		}
		ov.SubjectProgress = append(ov.SubjectProgress, sp)
	}
	sort.SliceStable(ov.SubjectProgress, func(i, j int) bool {
		return ov.SubjectProgress[i].SubjectName < ov.SubjectProgress[j].SubjectName
	})

	ov.ActiveRepeatFlags = make([]progress.RepeatFlag, 0)
	for _, f := range repo.db.flags {
		name, enrolled := subjectOf[f.EnrolmentID]
		if f.StudentID == studentID && f.Status == progress.FlagActive && enrolled {
			f.SubjectName = name
			ov.ActiveRepeatFlags = append(ov.ActiveRepeatFlags, f)
		}
	}
	sortFlags(ov.ActiveRepeatFlags)
	return ov, nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
)

type restrictionRepository struct {
	db *DB
}

var _ restriction.Repository = (*restrictionRepository)(nil) // interface compliance check

func NewRestrictionRepository(db *DB) restriction.Repository {
	return &restrictionRepository{db: db}
}

func (repo *restrictionRepository) ListForStudent(_ context.Context, studentID string) ([]restriction.Restriction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]restriction.Restriction, 0)
	for key, r := range repo.db.restrictions {
		if key.studentID == studentID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ParentID < rows[j].ParentID })
	return rows, nil
}

func (repo *restrictionRepository) Get(_ context.Context, parentID, studentID string) (restriction.Restriction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.restrictions[restrictionKey{parentID, studentID}]; ok {
		return r, nil
	}
	return restriction.Restriction{}, restriction.ErrNotFound
}

func (repo *restrictionRepository) Upsert(_ context.Context, r restriction.Restriction, flags ...progress.RepeatFlag) (restriction.Restriction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if r.BlockedTimes == nil {
		r.BlockedTimes = restriction.BlockedTimes{}
	}
	repo.db.restrictions[restrictionKey{r.ParentID, r.StudentID}] = r
	repo.db.addFlags(flags...)
	return r, nil
}

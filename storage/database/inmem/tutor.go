package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/dos/core/tutor"
)

type tutorRepository struct {
	db *DB
}

var _ tutor.Repository = (*tutorRepository)(nil) // interface compliance check

func NewTutorRepository(db *DB) tutor.Repository {
	return &tutorRepository{db: db}
}

func (repo *tutorRepository) GetPersona(_ context.Context, studentID string, enrolmentID int64) (tutor.Persona, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if id := repo.db.tutorConfigs[configKey{studentID, enrolmentID}]; id != nil {
		if p, ok := repo.db.personas[*id]; ok {
			return p, nil
		}
	}
	return tutor.Persona{}, tutor.ErrNotFound
}

func (repo *tutorRepository) ListPersonas(_ context.Context, studentID string) ([]tutor.Persona, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	personas := make([]tutor.Persona, 0)
	for _, p := range repo.db.personas {
		if p.StudentID == studentID {
			personas = append(personas, p)
		}
	}
	sort.Slice(personas, func(i, j int) bool {
		if personas[i].Name != personas[j].Name {
			return personas[i].Name < personas[j].Name
		}
		return personas[i].ID < personas[j].ID
	})
	return personas, nil
}

func (repo *tutorRepository) GetStudentPersona(_ context.Context, studentID string, id int64) (tutor.Persona, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.personas[id]; ok && p.StudentID == studentID {
		return p, nil
	}
	return tutor.Persona{}, tutor.ErrNotFound
}

func (repo *tutorRepository) CreatePersona(_ context.Context, p tutor.Persona) (tutor.Persona, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = repo.db.nextID()
	repo.db.personas[p.ID] = p
	return p, nil
}

func (repo *tutorRepository) UpdatePersona(_ context.Context, p tutor.Persona) (tutor.Persona, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if existing, ok := repo.db.personas[p.ID]; !ok || existing.StudentID != p.StudentID {
		return tutor.Persona{}, tutor.ErrNotFound
	}
	repo.db.personas[p.ID] = p
	return p, nil
}

func (repo *tutorRepository) DeletePersona(_ context.Context, studentID string, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if p, ok := repo.db.personas[id]; !ok || p.StudentID != studentID {
		return nil
	}
	delete(repo.db.personas, id)
	for key, personaID := range repo.db.tutorConfigs {
		if personaID != nil && *personaID == id {
			repo.db.tutorConfigs[key] = nil
		}
	}
	return nil
}

func (repo *tutorRepository) ListConfigs(_ context.Context, studentID string) ([]tutor.Config, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	configs := make([]tutor.Config, 0)
	for _, e := range repo.db.enrolments {
		if e.StudentID != studentID {
			continue
		}
		cfg := tutor.Config{EnrolmentID: e.ID, SubjectName: e.SubjectName, BoardName: e.BoardName}
		if id := repo.db.tutorConfigs[configKey{studentID, e.ID}]; id != nil {
			personaID := *id
			cfg.PersonaID = &personaID
			cfg.PersonaName = repo.db.personas[personaID].Name
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (repo *tutorRepository) SetConfig(_ context.Context, studentID string, enrolmentID int64, personaID *int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var id *int64
	if personaID != nil {
		v := *personaID
		id = &v
	}
	repo.db.tutorConfigs[configKey{studentID, enrolmentID}] = id
	return nil
}

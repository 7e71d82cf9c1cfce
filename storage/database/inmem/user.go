package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/dos/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) GetStudent(_ context.Context, id string) (user.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return user.Student{}, user.ErrNotFound
}

func (repo *userRepository) FindStudentByEmail(_ context.Context, email string) (user.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.students {
		if s.Email != "" && strings.EqualFold(s.Email, email) && !s.IsDeleted() {
			return s, nil
		}
	}
	return user.Student{}, user.ErrNotFound
}

func (repo *userRepository) IsLinked(_ context.Context, parentID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	_, ok := repo.db.links[parentID][studentID]
	return ok, nil
}

func (repo *userRepository) ListGuardians(_ context.Context, studentID string) ([]user.Guardian, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	guardians := make([]user.Guardian, 0)
	for parentID, students := range repo.db.links {
		if _, ok := students[studentID]; !ok || repo.db.accounts[parentID].deletedAt != nil {
			continue
		}
		guardians = append(guardians, repo.db.guardians[parentID])
	}
	sort.Slice(guardians, func(i, j int) bool { return guardians[i].ID < guardians[j].ID })
	return guardians, nil
}

func (repo *userRepository) ListLinks(_ context.Context, parentID string) ([]user.Link, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	links := make([]user.Link, 0)
	for studentID, relationship := range repo.db.links[parentID] {
		s := repo.db.students[studentID]
		links = append(links, user.Link{
			StudentID:    studentID,
			Relationship: relationship,
			StudentName:  s.FullName,
			StudentEmail: s.Email,
			SchoolYear:   s.SchoolYear,
		})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].StudentName < links[j].StudentName })
	return links, nil
}

func (repo *userRepository) Link(_ context.Context, parentID, studentID, relationship string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.link(parentID, studentID, relationship)
	return nil
}

func (repo *userRepository) ActiveInviteCode(_ context.Context, studentID string, now time.Time) (user.InviteCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var latest *user.InviteCode
	for _, c := range repo.db.inviteCodes {
		c := c
		if c.StudentID != studentID || !c.IsValid(now) {
			continue
		}
		if latest == nil || c.ExpiresAt.After(latest.ExpiresAt) {
			latest = &c
		}
	}
	if latest == nil {
		return user.InviteCode{}, user.ErrInviteNotFound
	}
	return *latest, nil
}

func (repo *userRepository) GetInviteCode(_ context.Context, code string) (user.InviteCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.inviteCodes[code]; ok {
		return c, nil
	}
	return user.InviteCode{}, user.ErrInviteNotFound
}

func (repo *userRepository) CreateInviteCode(_ context.Context, c user.InviteCode) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, taken := repo.db.inviteCodes[c.Code]; taken {
		return user.ErrDuplicateCode
	}
	repo.db.inviteCodes[c.Code] = c
	return nil
}

func (repo *userRepository) Redeem(_ context.Context, r user.Redemption) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.inviteCodes[r.Code]
	if !ok || c.UsedAt != nil {
		return user.ErrInviteNotFound
	}
	at := r.At
	c.UsedAt = &at
	repo.db.inviteCodes[r.Code] = c

	repo.db.link(r.ParentID, r.StudentID, r.Relationship)
	if s, ok := repo.db.students[r.StudentID]; ok && r.GrantConsent && s.ConsentGrantedAt == nil {
		s.ConsentGrantedAt = &at
		repo.db.students[s.ID] = s
	}
	return nil
}

func (repo *userRepository) AcceptTerms(_ context.Context, userID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if s, ok := repo.db.students[userID]; ok {
		if s.TermsAcceptedAt == nil {
			s.TermsAcceptedAt = &at
			repo.db.students[userID] = s
		}
		return nil
	}
	acc := repo.db.accounts[userID]
	if acc.termsAcceptedAt == nil {
		acc.termsAcceptedAt = &at
		repo.db.accounts[userID] = acc
	}
	return nil
}

func (repo *userRepository) SoftDelete(_ context.Context, userID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if s, ok := repo.db.students[userID]; ok {
		if s.DeletedAt == nil {
			s.DeletedAt = &at
			repo.db.students[userID] = s
		}
		return nil
	}
	acc := repo.db.accounts[userID]
	if acc.deletedAt == nil {
		acc.deletedAt = &at
		repo.db.accounts[userID] = acc
	}
	return nil
}

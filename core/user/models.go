package user

import (
	"net/mail"
	"time"
)

// Roles
const (
	RoleStudent = "student"
	RoleParent  = "parent"
	RoleAdmin   = "admin"
)

// MinorAge is the age under which a student needs guardian consent to book sessions.
const MinorAge = 13

var AllRoles = []string{RoleStudent, RoleParent, RoleAdmin}

// Identity is the caller resolved from the bearer token (or the internal API key headers).
type Identity struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

func (id Identity) IsStudent() bool { return id.Role == RoleStudent }
func (id Identity) IsParent() bool  { return id.Role == RoleParent }
func (id Identity) IsAdmin() bool   { return id.Role == RoleAdmin }

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Student struct {
	ID               string     `json:"id"`
	FullName         string     `json:"fullName"`
	Email            string     `json:"email"`
	DateOfBirth      *time.Time `json:"dateOfBirth"`
	SchoolYear       *int       `json:"schoolYear"`
	ConsentGrantedAt *time.Time `json:"consentGrantedAt"`
	TermsAcceptedAt  *time.Time `json:"termsAcceptedAt"`
	DeletedAt        *time.Time `json:"-"`
}

func (s Student) IsDeleted() bool { return s.DeletedAt != nil }

// Age returns the student's age in whole years at `now`; ok is false when the date of birth is unknown.
func (s Student) Age(now time.Time) (age int, ok bool) {
	if s.DateOfBirth == nil {
		return 0, false
	}
	dob := *s.DateOfBirth
	age = now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, true
}

// ConsentStatus describes the guardian consent gate for a student.
type ConsentStatus struct {
	Required bool `json:"required"`
	Granted  bool `json:"granted"`
	Age      *int `json:"age,omitempty"`
}

func (s Student) ConsentStatus(now time.Time) ConsentStatus {
	status := ConsentStatus{Granted: s.ConsentGrantedAt != nil}
	if age, ok := s.Age(now); ok {
		status.Age = &age
		status.Required = age < MinorAge
	}
	return status
}

// NeedsConsent reports whether the student may not book sessions until a guardian consents.
func (s Student) NeedsConsent(now time.Time) bool {
	st := s.ConsentStatus(now)
	return st.Required && !st.Granted
}

type Guardian struct {
	ID       string
	FullName string
	Email    string
}

func (g Guardian) Address() (mail.Address, bool) {
	if g.Email == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: g.FullName, Address: g.Email}, true
}

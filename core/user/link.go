package user

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/trezcool/dos/core"
)

// DefaultRelationship is used when a guardian links without saying how they relate to the student.
const DefaultRelationship = "guardian"

// Invite codes
const (
	InviteCodeLength   = 6
	InviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I
	InviteCodeTTL      = 24 * time.Hour
)

// Link is one student as seen from a linked guardian's account.
type Link struct {
	StudentID    string `json:"studentId"`
	Relationship string `json:"relationship"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	SchoolYear   *int   `json:"schoolYear"`
}

// InviteCode lets a guardian link to a student without knowing the student's email.
type InviteCode struct {
	Code      string     `json:"code"`
	StudentID string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"-"`
}

func (c InviteCode) IsValid(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}

// Redemption links ParentID to the student owning Code and marks the code used.
// GrantConsent also records the guardian's consent when none was given yet.
type Redemption struct {
	Code         string
	ParentID     string
	StudentID    string
	Relationship string
	At           time.Time
	GrantConsent bool
}

type NewLink struct {
	StudentEmail string `json:"studentEmail"`
	Relationship string `json:"relationship"`
}

func (nl *NewLink) Clean() {
	nl.StudentEmail = core.CleanString(nl.StudentEmail, true)
	nl.Relationship = cleanRelationship(nl.Relationship)
}

type LinkCode struct {
	Code         string `json:"code"`
	Relationship string `json:"relationship"`
}

func (lc *LinkCode) Clean() {
	lc.Code = strings.ToUpper(core.CleanString(lc.Code))
	lc.Relationship = cleanRelationship(lc.Relationship)
}

func cleanRelationship(r string) string {
	if r = core.CleanString(r); r == "" {
		return DefaultRelationship
	}
	return r
}

// newInviteCode draws InviteCodeLength characters from InviteCodeAlphabet.
func newInviteCode() (string, error) {
	size := big.NewInt(int64(len(InviteCodeAlphabet)))
	var b strings.Builder
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(InviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

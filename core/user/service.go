package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
)

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrNotLinked      = errors.New("student not linked to this parent account")
	ErrInviteNotFound = errors.New("invite code not found")
	ErrDuplicateCode  = errors.New("invite code already exists")
)

const inviteCodeAttempts = 5

type Repository interface {
	// GetStudent returns deleted students too; callers decide what a deleted account may do.
	GetStudent(ctx context.Context, id string) (Student, error)
	// FindStudentByEmail matches the email case-insensitively and skips deleted accounts.
	FindStudentByEmail(ctx context.Context, email string) (Student, error)
	// IsLinked reports whether the parent account is linked to the student.
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
	// ListGuardians returns the guardians linked to the student, deleted accounts excluded.
	ListGuardians(ctx context.Context, studentID string) ([]Guardian, error)
	ListLinks(ctx context.Context, parentID string) ([]Link, error)
	// Link is a no-op when the parent is already linked to the student.
	Link(ctx context.Context, parentID, studentID, relationship string) error

	// ActiveInviteCode returns the student's latest unused code still valid at `now`, or ErrInviteNotFound.
	ActiveInviteCode(ctx context.Context, studentID string, now time.Time) (InviteCode, error)
	GetInviteCode(ctx context.Context, code string) (InviteCode, error)
	// CreateInviteCode fails with ErrDuplicateCode when the code is taken.
	CreateInviteCode(ctx context.Context, c InviteCode) error
	// Redeem marks the code used, links the parent and grants consent, atomically.
	// It fails with ErrInviteNotFound when the code was used meanwhile.
	Redeem(ctx context.Context, r Redemption) error

	AcceptTerms(ctx context.Context, userID string, at time.Time) error
	SoftDelete(ctx context.Context, userID string, at time.Time) error
}

// Service runs the account flows: guardian links, invite codes, terms and account deletion.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) ListLinks(ctx context.Context, parentID string) ([]Link, error) {
	links, err := svc.repo.ListLinks(ctx, parentID)
	return links, errors.Wrap(err, "listing links")
}

// LinkByEmail links the guardian to the student registered with `data.StudentEmail`.
func (svc *Service) LinkByEmail(ctx context.Context, parentID string, data NewLink) error {
	data.Clean()
	if data.StudentEmail == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "studentEmail", Error: "this field is required"})
	}
	student, err := svc.repo.FindStudentByEmail(ctx, data.StudentEmail)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewNotFoundError("student")
		}
		return errors.Wrap(err, "finding student")
	}
	return errors.Wrap(svc.repo.Link(ctx, parentID, student.ID, data.Relationship), "linking student")
}

// LinkByCode redeems a student's invite code. Linking to a minor also grants the consent
// the student is still waiting for.
func (svc *Service) LinkByCode(ctx context.Context, parentID string, data LinkCode) (string, error) {
	data.Clean()
	if data.Code == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "code", Error: "this field is required"})
	}

	now := core.NowFunc().UTC()
	invite, err := svc.repo.GetInviteCode(ctx, data.Code)
	if err != nil {
		if errors.Cause(err) == ErrInviteNotFound {
			return "", core.NewNotFoundError("invite code")
		}
		return "", errors.Wrap(err, "getting invite code")
	}
	if !invite.IsValid(now) {
		return "", core.NewNotFoundError("invite code")
	}

	student, err := svc.repo.GetStudent(ctx, invite.StudentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", core.NewNotFoundError("invite code")
		}
		return "", errors.Wrap(err, "getting student")
	}

	err = svc.repo.Redeem(ctx, Redemption{
		Code:         invite.Code,
		ParentID:     parentID,
		StudentID:    student.ID,
		Relationship: data.Relationship,
		At:           now,
		GrantConsent: student.NeedsConsent(now),
	})
	if err != nil {
		if errors.Cause(err) == ErrInviteNotFound {
			return "", core.NewNotFoundError("invite code")
		}
		return "", errors.Wrap(err, "redeeming invite code")
	}
	return student.ID, nil
}

// InviteCode returns the student's valid code, creating one when there is none.
func (svc *Service) InviteCode(ctx context.Context, studentID string) (InviteCode, error) {
	now := core.NowFunc().UTC()
	code, err := svc.repo.ActiveInviteCode(ctx, studentID, now)
	if err == nil {
		return code, nil
	}
	if errors.Cause(err) != ErrInviteNotFound {
		return InviteCode{}, errors.Wrap(err, "getting invite code")
	}

	for i := 0; i < inviteCodeAttempts; i++ {
		c, err := newInviteCode()
		if err != nil {
			return InviteCode{}, errors.Wrap(err, "generating invite code")
		}
		code = InviteCode{Code: c, StudentID: studentID, ExpiresAt: now.Add(InviteCodeTTL)}
		err = svc.repo.CreateInviteCode(ctx, code)
		if err == nil {
			return code, nil
		}
		if errors.Cause(err) != ErrDuplicateCode {
			return InviteCode{}, errors.Wrap(err, "creating invite code")
		}
	}
	return InviteCode{}, errors.Errorf("no free invite code after %d attempts", inviteCodeAttempts)
}

func (svc *Service) AcceptTerms(ctx context.Context, userID string) error {
	return errors.Wrap(svc.repo.AcceptTerms(ctx, userID, core.NowFunc().UTC()), "accepting terms")
}

// DeleteAccount soft-deletes the account; it stays readable for guardians and reports.
func (svc *Service) DeleteAccount(ctx context.Context, userID string) error {
	return errors.Wrap(svc.repo.SoftDelete(ctx, userID, core.NowFunc().UTC()), "deleting account")
}

package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("not found")
)

type (
	Repository interface {
		// ActiveRepeatFlags lists active flags, highest priority first.
		ActiveRepeatFlags(ctx context.Context, studentID string, enrolmentID int64) ([]RepeatFlag, error)
		// LatestSnapshot fails with ErrNotFound when the enrolment has no snapshot yet.
		LatestSnapshot(ctx context.Context, studentID string, enrolmentID int64) (Snapshot, error)
		AddRepeatFlags(ctx context.Context, flags ...RepeatFlag) error
		GetRepeatFlag(ctx context.Context, id int64) (RepeatFlag, error)
		ResolveRepeatFlag(ctx context.Context, id int64, at time.Time) error
		Overview(ctx context.Context, studentID string, weekStart time.Time) (Overview, error)
	}

	Service struct {
		repo  Repository
		users user.Repository
	}
)

func NewService(repo Repository, users user.Repository) *Service {
	return &Service{repo: repo, users: users}
}

func (svc *Service) Overview(ctx context.Context, studentID string) (Overview, error) {
	now := core.NowFunc()
	ov, err := svc.repo.Overview(ctx, studentID, now.Add(-7*24*time.Hour))
	if err != nil {
		return Overview{}, errors.Wrap(err, "building overview")
	}
	if ov.SubjectProgress == nil {
		ov.SubjectProgress = []SubjectProgress{}
	}
	if ov.ActiveRepeatFlags == nil {
		ov.ActiveRepeatFlags = []RepeatFlag{}
	}
	return ov, nil
}

// ResolveRepeatFlag marks a flag resolved. Only the student it belongs to, or a linked guardian, may do so.
func (svc *Service) ResolveRepeatFlag(ctx context.Context, caller user.Identity, id int64) (RepeatFlag, error) {
	flag, err := svc.repo.GetRepeatFlag(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return RepeatFlag{}, core.NewNotFoundError("repeat flag")
		}
		return RepeatFlag{}, errors.Wrap(err, "getting repeat flag")
	}

	switch {
	case caller.IsStudent() && caller.ID == flag.StudentID:
	case caller.IsParent():
		linked, err := svc.users.IsLinked(ctx, caller.ID, flag.StudentID)
		if err != nil {
			return RepeatFlag{}, errors.Wrap(err, "checking parent link")
		}
		if !linked {
			return RepeatFlag{}, core.NewNotFoundError("repeat flag")
		}
	default:
		return RepeatFlag{}, core.NewNotFoundError("repeat flag")
	}

	if flag.Status == FlagResolved {
		return flag, nil
	}
	now := core.NowFunc().UTC()
	if err = svc.repo.ResolveRepeatFlag(ctx, id, now); err != nil {
		return RepeatFlag{}, errors.Wrap(err, "resolving repeat flag")
	}
	flag.Status = FlagResolved
	flag.ResolvedAt = &now
	return flag, nil
}

package restriction

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("restriction not found")

	errNotLinked = "student not linked to this parent account"
)

type (
	Repository interface {
		// ListForStudent returns the restrictions every guardian set for the student.
		ListForStudent(ctx context.Context, studentID string) ([]Restriction, error)
		// Get fails with ErrNotFound when the parent set no restriction for the student.
		Get(ctx context.Context, parentID, studentID string) (Restriction, error)
		// Upsert creates or replaces the (parent, student) restriction and stores the flags
		// assigned along with it. Either both are written or neither is.
		Upsert(ctx context.Context, r Restriction, flags ...progress.RepeatFlag) (Restriction, error)
	}

	// Service lets guardians read and set restrictions for the students linked to them.
	Service struct {
		repo     Repository
		users    user.Repository
		courses  course.Repository
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	users user.Repository,
	courses course.Repository,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, users: users, courses: courses, validate: validate}
}

func (svc *Service) checkLinked(ctx context.Context, parentID, studentID string) error {
	linked, err := svc.users.IsLinked(ctx, parentID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking parent link")
	}
	if !linked {
		return core.NewAuthzError(errNotLinked)
	}
	return nil
}

// Get returns nil when the guardian has not set anything yet.
func (svc *Service) Get(ctx context.Context, parentID, studentID string) (*Restriction, error) {
	if err := svc.checkLinked(ctx, parentID, studentID); err != nil {
		return nil, err
	}
	r, err := svc.repo.Get(ctx, parentID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting restriction")
	}
	return &r, nil
}

func (svc *Service) validateUpsert(data *UpsertRestriction) error {
	data.Clean()
	if err := svc.validate.Struct(data); err != nil {
		return err
	}
	for _, bt := range data.BlockedTimes {
		if bt.StartTime > bt.EndTime {
			return core.NewValidationError(nil, core.FieldError{
				Field: "blockedTimes",
				Error: "startTime must not be after endTime",
			})
		}
	}
	return nil
}

// Upsert sets the guardian's restriction for a student, then adds the mandatory revision items
// as high priority repeat flags. Items for enrolments the student does not own are skipped.
func (svc *Service) Upsert(ctx context.Context, parentID string, data UpsertRestriction) (Restriction, error) {
	if err := svc.validateUpsert(&data); err != nil {
		return Restriction{}, err
	}
	if err := svc.checkLinked(ctx, parentID, data.StudentID); err != nil {
		return Restriction{}, err
	}

	now := core.NowFunc().UTC()
	flags := make([]progress.RepeatFlag, 0, len(data.MandatoryRevision))
	for _, item := range data.MandatoryRevision {
		enr, err := svc.courses.GetEnrolment(ctx, item.EnrolmentID)
		if err != nil {
			if errors.Cause(err) == course.ErrEnrolmentNotFound {
				continue
			}
			return Restriction{}, errors.Wrap(err, "getting enrolment")
		}
		if enr.StudentID != data.StudentID {
			continue
		}
		flags = append(flags, progress.RepeatFlag{
			StudentID:      data.StudentID,
			EnrolmentID:    enr.ID,
			TopicID:        item.TopicID,
			Concept:        item.Concept,
			Reason:         item.Reason,
			Priority:       progress.PriorityHigh,
			Status:         progress.FlagActive,
			ParentAssigned: true,
			FlaggedAt:      now,
		})
	}

	r, err := svc.repo.Upsert(ctx, Restriction{
		ParentID:         parentID,
		StudentID:        data.StudentID,
		MaxDailyMinutes:  data.MaxDailyMinutes,
		MaxWeeklyMinutes: data.MaxWeeklyMinutes,
		BlockedTimes:     BlockedTimes(data.BlockedTimes),
		UpdatedAt:        now,
	}, flags...)
	if err != nil {
		return Restriction{}, errors.Wrap(err, "upserting restriction")
	}
	return r, nil
}

package tutor

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/course"
)

var (
	// errors
	ErrNotFound = errors.New("tutor persona not found")
)

type Repository interface {
	// GetPersona fails with ErrNotFound when no persona is configured for the enrolment.
	GetPersona(ctx context.Context, studentID string, enrolmentID int64) (Persona, error)

	// ListPersonas returns the student's personas ordered by name.
	ListPersonas(ctx context.Context, studentID string) ([]Persona, error)
	// GetStudentPersona fails with ErrNotFound unless the student owns the persona.
	GetStudentPersona(ctx context.Context, studentID string, id int64) (Persona, error)
	CreatePersona(ctx context.Context, p Persona) (Persona, error)
	// UpdatePersona fails with ErrNotFound unless p.StudentID owns the persona.
	UpdatePersona(ctx context.Context, p Persona) (Persona, error)
	// DeletePersona unsets the persona wherever it was picked. It is a no-op for personas the student does not own.
	DeletePersona(ctx context.Context, studentID string, id int64) error

	// ListConfigs returns every enrolment of the student, configured or not.
	ListConfigs(ctx context.Context, studentID string) ([]Config, error)
	// SetConfig picks the persona for the enrolment; a nil personaID falls back to the defaults.
	SetConfig(ctx context.Context, studentID string, enrolmentID int64, personaID *int64) error
}

// Service lets students design tutor personas and pick one per enrolment.
type Service struct {
	repo     Repository
	courses  course.Repository
	validate *validator.Validate
	defaults Persona
}

func NewService(conf *core.Config, repo Repository, courses course.Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, courses: courses, validate: validate, defaults: Defaults(conf)}
}

func (svc *Service) ListPersonas(ctx context.Context, studentID string) ([]Persona, error) {
	personas, err := svc.repo.ListPersonas(ctx, studentID)
	return personas, errors.Wrap(err, "listing personas")
}

// newPersona stores blank optional fields as the defaults so students see what the tutor will use.
func (svc *Service) newPersona(studentID string, data *PersonaData) (Persona, error) {
	data.Clean()
	if err := svc.validate.Struct(data); err != nil {
		return Persona{}, err
	}
	p := Persona{
		StudentID:         studentID,
		Name:              data.Name,
		PersonalityPrompt: data.PersonalityPrompt,
		VoiceModel:        data.VoiceModel,
		TTSSpeed:          data.TTSSpeed,
	}
	return p.Resolve(svc.defaults, ""), nil
}

func (svc *Service) CreatePersona(ctx context.Context, studentID string, data PersonaData) (Persona, error) {
	p, err := svc.newPersona(studentID, &data)
	if err != nil {
		return Persona{}, err
	}
	p, err = svc.repo.CreatePersona(ctx, p)
	return p, errors.Wrap(err, "creating persona")
}

func (svc *Service) UpdatePersona(ctx context.Context, studentID string, id int64, data PersonaData) (Persona, error) {
	p, err := svc.newPersona(studentID, &data)
	if err != nil {
		return Persona{}, err
	}
	p.ID = id
	p, err = svc.repo.UpdatePersona(ctx, p)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Persona{}, core.NewNotFoundError("persona")
		}
		return Persona{}, errors.Wrap(err, "updating persona")
	}
	return p, nil
}

func (svc *Service) DeletePersona(ctx context.Context, studentID string, id int64) error {
	return errors.Wrap(svc.repo.DeletePersona(ctx, studentID, id), "deleting persona")
}

func (svc *Service) ListConfigs(ctx context.Context, studentID string) ([]Config, error) {
	configs, err := svc.repo.ListConfigs(ctx, studentID)
	return configs, errors.Wrap(err, "listing tutor configs")
}

// SetConfig picks the tutor for one enrolment. Both the enrolment and the persona must be the student's.
func (svc *Service) SetConfig(ctx context.Context, studentID string, data ConfigUpdate) error {
	if err := svc.validate.Struct(data); err != nil {
		return err
	}

	enr, err := svc.courses.GetEnrolment(ctx, data.EnrolmentID)
	if err != nil && errors.Cause(err) != course.ErrEnrolmentNotFound {
		return errors.Wrap(err, "getting enrolment")
	}
	if err != nil || enr.StudentID != studentID {
		return core.NewNotFoundError("enrolment")
	}

	if data.PersonaID != nil {
		if _, err = svc.repo.GetStudentPersona(ctx, studentID, *data.PersonaID); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewNotFoundError("persona")
			}
			return errors.Wrap(err, "getting persona")
		}
	}
	return errors.Wrap(svc.repo.SetConfig(ctx, studentID, enr.ID, data.PersonaID), "setting tutor config")
}

package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core/tutor"
)

type personaRow struct {
	ID                int64       `db:"id"`
	StudentID         null.String `db:"student_id"`
	Name              string      `db:"name"`
	PersonalityPrompt string      `db:"personality_prompt"`
	VoiceModel        string      `db:"tts_voice_model"`
	TTSSpeed          string      `db:"tts_speed"`
}

func (r personaRow) unpack() tutor.Persona {
	return tutor.Persona{
		ID:                r.ID,
		StudentID:         r.StudentID.String,
		Name:              r.Name,
		PersonalityPrompt: r.PersonalityPrompt,
		VoiceModel:        r.VoiceModel,
		TTSSpeed:          r.TTSSpeed,
	}
}

const personaColumns = `id, student_id, name, personality_prompt, tts_voice_model, tts_speed`

type configRow struct {
	EnrolmentID int64       `db:"enrolment_id"`
	SubjectName string      `db:"subject_name"`
	BoardName   null.String `db:"board_name"`
	PersonaID   null.Int64  `db:"persona_id"`
	PersonaName null.String `db:"persona_name"`
}

type tutorRepository struct {
	base
}

var _ tutor.Repository = (*tutorRepository)(nil) // interface compliance check

func NewTutorRepository(db *sqlx.DB) *tutorRepository {
	return &tutorRepository{base{db: db}}
}

func (repo tutorRepository) GetPersona(ctx context.Context, studentID string, enrolmentID int64) (tutor.Persona, error) {
	if !isUUID(studentID) {
		return tutor.Persona{}, tutor.ErrNotFound
	}
	var row personaRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		SELECT tp.id, tp.student_id, tp.name, tp.personality_prompt, tp.tts_voice_model, tp.tts_speed
		FROM tutor_configs tc
		INNER JOIN tutor_personas tp ON tp.id = tc.persona_id
		WHERE tc.student_id = $1 AND tc.enrolment_id = $2`, studentID, enrolmentID)
	if err != nil {
		return tutor.Persona{}, trapNoRowsErr(err, tutor.ErrNotFound, "getting tutor persona")
	}
	return row.unpack(), nil
}

func (repo tutorRepository) ListPersonas(ctx context.Context, studentID string) ([]tutor.Persona, error) {
	personas := make([]tutor.Persona, 0)
	if !isUUID(studentID) {
		return personas, nil
	}
	var rows []personaRow
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+personaColumns+` FROM tutor_personas WHERE student_id = $1 ORDER BY name, id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing personas")
	}
	for _, r := range rows {
		personas = append(personas, r.unpack())
	}
	return personas, nil
}

func (repo tutorRepository) GetStudentPersona(ctx context.Context, studentID string, id int64) (tutor.Persona, error) {
	if !isUUID(studentID) {
		return tutor.Persona{}, tutor.ErrNotFound
	}
	var row personaRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT `+personaColumns+` FROM tutor_personas WHERE id = $1 AND student_id = $2`, id, studentID)
	if err != nil {
		return tutor.Persona{}, trapNoRowsErr(err, tutor.ErrNotFound, "getting persona")
	}
	return row.unpack(), nil
}

func (repo tutorRepository) CreatePersona(ctx context.Context, p tutor.Persona) (tutor.Persona, error) {
	var row personaRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		INSERT INTO tutor_personas (student_id, name, personality_prompt, tts_voice_model, tts_speed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+personaColumns,
		p.StudentID, p.Name, p.PersonalityPrompt, p.VoiceModel, p.TTSSpeed)
	if err != nil {
		return tutor.Persona{}, errors.Wrap(err, "creating persona")
	}
	return row.unpack(), nil
}

func (repo tutorRepository) UpdatePersona(ctx context.Context, p tutor.Persona) (tutor.Persona, error) {
	if !isUUID(p.StudentID) {
		return tutor.Persona{}, tutor.ErrNotFound
	}
	var row personaRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		UPDATE tutor_personas
		SET name = $3, personality_prompt = $4, tts_voice_model = $5, tts_speed = $6, updated_at = NOW()
		WHERE id = $1 AND student_id = $2
		RETURNING `+personaColumns,
		p.ID, p.StudentID, p.Name, p.PersonalityPrompt, p.VoiceModel, p.TTSSpeed)
	if err != nil {
		return tutor.Persona{}, trapNoRowsErr(err, tutor.ErrNotFound, "updating persona")
	}
	return row.unpack(), nil
}

// DeletePersona relies on tutor_configs.persona_id being ON DELETE SET NULL.
func (repo tutorRepository) DeletePersona(ctx context.Context, studentID string, id int64) error {
	if !isUUID(studentID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM tutor_personas WHERE id = $1 AND student_id = $2`, id, studentID)
	return errors.Wrap(err, "deleting persona")
}

func (repo tutorRepository) ListConfigs(ctx context.Context, studentID string) ([]tutor.Config, error) {
	configs := make([]tutor.Config, 0)
	if !isUUID(studentID) {
		return configs, nil
	}
	var rows []configRow
	err := sqlx.SelectContext(ctx, repo.db, &rows, `
		SELECT se.id AS enrolment_id, s.name AS subject_name, eb.name AS board_name,
		       tc.persona_id, tp.name AS persona_name
		FROM student_enrolments se
		INNER JOIN board_subjects bs ON bs.id = se.board_subject_id
		INNER JOIN subjects s ON s.id = bs.subject_id
		LEFT JOIN exam_boards eb ON eb.id = bs.exam_board_id
		LEFT JOIN tutor_configs tc ON tc.student_id = se.student_id AND tc.enrolment_id = se.id
		LEFT JOIN tutor_personas tp ON tp.id = tc.persona_id
		WHERE se.student_id = $1
		ORDER BY se.id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing tutor configs")
	}
	for _, r := range rows {
		configs = append(configs, tutor.Config{
			EnrolmentID: r.EnrolmentID,
			SubjectName: r.SubjectName,
			BoardName:   r.BoardName.String,
			PersonaID:   r.PersonaID.Ptr(),
			PersonaName: r.PersonaName.String,
		})
	}
	return configs, nil
}

func (repo tutorRepository) SetConfig(ctx context.Context, studentID string, enrolmentID int64, personaID *int64) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO tutor_configs (student_id, enrolment_id, persona_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, enrolment_id) DO UPDATE SET
			persona_id = EXCLUDED.persona_id,
			updated_at = NOW()`,
		studentID, enrolmentID, null.Int64FromPtr(personaID))
	return errors.Wrap(err, "setting tutor config")
}

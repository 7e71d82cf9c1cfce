package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dos/core/user"
)

const pqUniqueViolation = "23505"

type studentRow struct {
	ID               string    `db:"id"`
	FullName         string    `db:"full_name"`
	Email            string    `db:"email"`
	DateOfBirth      null.Time `db:"date_of_birth"`
	SchoolYear       null.Int  `db:"school_year"`
	ConsentGrantedAt null.Time `db:"consent_granted_at"`
	TermsAcceptedAt  null.Time `db:"terms_accepted_at"`
	DeletedAt        null.Time `db:"deleted_at"`
}

func (r studentRow) unpack() user.Student {
	return user.Student{
		ID:               r.ID,
		FullName:         r.FullName,
		Email:            r.Email,
		DateOfBirth:      r.DateOfBirth.Ptr(),
		SchoolYear:       r.SchoolYear.Ptr(),
		ConsentGrantedAt: r.ConsentGrantedAt.Ptr(),
		TermsAcceptedAt:  r.TermsAcceptedAt.Ptr(),
		DeletedAt:        r.DeletedAt.Ptr(),
	}
}

const studentSelect = `
	SELECT u.id, u.full_name, u.email, s.date_of_birth, s.school_year, s.consent_granted_at,
	       u.terms_accepted_at, u.deleted_at
	FROM students s
	INNER JOIN users u ON u.id = s.id`

type inviteCodeRow struct {
	Code      string    `db:"code"`
	StudentID string    `db:"student_id"`
	ExpiresAt time.Time `db:"expires_at"`
	UsedAt    null.Time `db:"used_at"`
}

func (r inviteCodeRow) unpack() user.InviteCode {
	return user.InviteCode{Code: r.Code, StudentID: r.StudentID, ExpiresAt: r.ExpiresAt, UsedAt: r.UsedAt.Ptr()}
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{base{db: db}}
}

func (repo userRepository) GetStudent(ctx context.Context, id string) (user.Student, error) {
	if !isUUID(id) {
		return user.Student{}, user.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.db, &row, studentSelect+` WHERE s.id = $1`, id); err != nil {
		return user.Student{}, trapNoRowsErr(err, user.ErrNotFound, "getting student")
	}
	return row.unpack(), nil
}

func (repo userRepository) FindStudentByEmail(ctx context.Context, email string) (user.Student, error) {
	if email == "" {
		return user.Student{}, user.ErrNotFound
	}
	var row studentRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		studentSelect+` WHERE LOWER(u.email) = LOWER($1) AND u.deleted_at IS NULL`, email)
	if err != nil {
		return user.Student{}, trapNoRowsErr(err, user.ErrNotFound, "finding student")
	}
	return row.unpack(), nil
}

func (repo userRepository) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	if !isUUID(parentID, studentID) {
		return false, nil
	}
	var linked bool
	err := sqlx.GetContext(ctx, repo.db, &linked,
		`SELECT EXISTS (SELECT 1 FROM parent_student_links WHERE parent_id = $1 AND student_id = $2)`,
		parentID, studentID)
	return linked, errors.Wrap(err, "checking parent link")
}

func (repo userRepository) ListGuardians(ctx context.Context, studentID string) ([]user.Guardian, error) {
	guardians := make([]user.Guardian, 0)
	if !isUUID(studentID) {
		return guardians, nil
	}
	err := sqlx.SelectContext(ctx, repo.db, &guardians, `
		SELECT u.id AS "id", u.full_name AS "fullname", u.email AS "email"
		FROM parent_student_links l
		INNER JOIN users u ON u.id = l.parent_id
		WHERE l.student_id = $1 AND u.deleted_at IS NULL
		ORDER BY u.id`, studentID)
	return guardians, errors.Wrap(err, "listing guardians")
}

func (repo userRepository) ListLinks(ctx context.Context, parentID string) ([]user.Link, error) {
	links := make([]user.Link, 0)
	if !isUUID(parentID) {
		return links, nil
	}
	var rows []struct {
		StudentID    string   `db:"student_id"`
		Relationship string   `db:"relationship"`
		StudentName  string   `db:"student_name"`
		StudentEmail string   `db:"student_email"`
		SchoolYear   null.Int `db:"school_year"`
	}
	err := sqlx.SelectContext(ctx, repo.db, &rows, `
		SELECT l.student_id, l.relationship, u.full_name AS student_name, u.email AS student_email, s.school_year
		FROM parent_student_links l
		INNER JOIN students s ON s.id = l.student_id
		INNER JOIN users u ON u.id = l.student_id
		WHERE l.parent_id = $1
		ORDER BY u.full_name`, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing links")
	}
	for _, r := range rows {
		links = append(links, user.Link{
			StudentID:    r.StudentID,
			Relationship: r.Relationship,
			StudentName:  r.StudentName,
			StudentEmail: r.StudentEmail,
			SchoolYear:   r.SchoolYear.Ptr(),
		})
	}
	return links, nil
}

func (repo userRepository) Link(ctx context.Context, parentID, studentID, relationship string) error {
	if !isUUID(parentID, studentID) {
		return nil
	}
	return repo.link(ctx, parentID, studentID, relationship)
}

func (repo userRepository) link(ctx context.Context, parentID, studentID, relationship string, exec ...sqlx.ExtContext) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO parent_student_links (parent_id, student_id, relationship)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_id, student_id) DO NOTHING`, parentID, studentID, relationship)
	return errors.Wrap(err, "linking student")
}

func (repo userRepository) ActiveInviteCode(ctx context.Context, studentID string, now time.Time) (user.InviteCode, error) {
	if !isUUID(studentID) {
		return user.InviteCode{}, user.ErrInviteNotFound
	}
	var row inviteCodeRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		SELECT code, student_id, expires_at, used_at
		FROM student_invite_codes
		WHERE student_id = $1 AND used_at IS NULL AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`, studentID, now)
	if err != nil {
		return user.InviteCode{}, trapNoRowsErr(err, user.ErrInviteNotFound, "getting active invite code")
	}
	return row.unpack(), nil
}

func (repo userRepository) GetInviteCode(ctx context.Context, code string) (user.InviteCode, error) {
	var row inviteCodeRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT code, student_id, expires_at, used_at FROM student_invite_codes WHERE code = $1`, code)
	if err != nil {
		return user.InviteCode{}, trapNoRowsErr(err, user.ErrInviteNotFound, "getting invite code")
	}
	return row.unpack(), nil
}

func (repo userRepository) CreateInviteCode(ctx context.Context, c user.InviteCode) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO student_invite_codes (code, student_id, expires_at) VALUES ($1, $2, $3)`,
		c.Code, c.StudentID, c.ExpiresAt)
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
		return user.ErrDuplicateCode
	}
	return errors.Wrap(err, "creating invite code")
}

func (repo userRepository) Redeem(ctx context.Context, r user.Redemption) error {
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE student_invite_codes SET used_at = $2, used_by = $3
			WHERE code = $1 AND used_at IS NULL`, r.Code, r.At, r.ParentID)
		if err != nil {
			return errors.Wrap(err, "using invite code")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "using invite code")
		}
		if n == 0 {
			return user.ErrInviteNotFound
		}

		if err = repo.link(ctx, r.ParentID, r.StudentID, r.Relationship, tx); err != nil {
			return err
		}

		if r.GrantConsent {
			_, err = tx.ExecContext(ctx, `
				UPDATE students SET consent_granted_at = $2, consent_granted_by = $3
				WHERE id = $1 AND consent_granted_at IS NULL`, r.StudentID, r.At, r.ParentID)
			return errors.Wrap(err, "granting consent")
		}
		return nil
	})
}

func (repo userRepository) AcceptTerms(ctx context.Context, userID string, at time.Time) error {
	if !isUUID(userID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE users SET terms_accepted_at = $2 WHERE id = $1 AND terms_accepted_at IS NULL`, userID, at)
	return errors.Wrap(err, "accepting terms")
}

func (repo userRepository) SoftDelete(ctx context.Context, userID string, at time.Time) error {
	if !isUUID(userID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, userID, at)
	return errors.Wrap(err, "deleting account")
}

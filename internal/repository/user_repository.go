package repository

import (
	"context"
	"errors"
	"strings"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	DB *db.Postgres
}

const userColumns = `id, company_id, name, email, password_hash, role, status, phone, address, position,
	emergency_contact_name, emergency_contact_phone, start_date, onboarding_completed, handbook_completed,
	approved_by, approved_at, rejection_reason, created_at, updated_at`

const insertUserSQL = `
	INSERT INTO users (company_id, name, email, password_hash, role, status, phone, position, onboarding_completed, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now(), now())
	RETURNING ` + userColumns

func (r UserRepository) Create(ctx context.Context, p ports.NewUser) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, insertUserSQL, userArgs(p)...)
	u, err := scanUser(row)
	if err != nil {
		return nil, translateUserErr(err)
	}
	return u, nil
}

func (r UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email)=lower($1) AND deleted_at IS NULL
	`, strings.TrimSpace(email))
	return oneUser(row)
}

func (r UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	return oneUser(row)
}

// ListByCompany returns the tenant's users, optionally narrowed to one status.
func (r UserRepository) ListByCompany(ctx context.Context, companyID int64, status domain.UserStatus) ([]domain.User, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id=$1 AND deleted_at IS NULL AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, companyID, string(status))
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r UserRepository) ListManagement(ctx context.Context, companyID int64) ([]domain.User, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id=$1 AND deleted_at IS NULL
		  AND role IN ('manager','owner')
		  AND status IN ('approved','active')
		ORDER BY id ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// UpdateStatus applies ch only while the row still holds ch.From, so two
// reviewers racing on the same registration cannot both win.
func (r UserRepository) UpdateStatus(ctx context.Context, ch ports.StatusChange) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE users SET
			status=$4,
			approved_by=COALESCE($5, approved_by),
			approved_at=COALESCE($6, approved_at),
			rejection_reason=CASE WHEN $4 = 'rejected' THEN $7 ELSE rejection_reason END,
			updated_at=now()
		WHERE id=$1 AND company_id=$2 AND status=$3 AND deleted_at IS NULL
		RETURNING `+userColumns,
		ch.UserID, ch.CompanyID, string(ch.From), string(ch.To), ch.ApprovedBy, ch.ApprovedAt, ch.Reason)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrStale
	}
	return u, err
}

func (r UserRepository) SaveOnboarding(ctx context.Context, userID int64, p domain.OnboardingProfile) (*domain.User, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE users SET
			phone=$2, address=$3, position=$4,
			emergency_contact_name=$5, emergency_contact_phone=$6,
			start_date=$7, onboarding_completed=true, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+userColumns,
		userID, p.Phone, p.Address, p.Position, p.EmergencyContactName, p.EmergencyContactPhone, p.StartDate)
	return oneUser(row)
}

func (r UserRepository) SetHandbookCompleted(ctx context.Context, userID int64, completed bool) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE users SET handbook_completed=$2, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
	`, userID, completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func userArgs(p ports.NewUser) []any {
	var hash *string
	if p.PasswordHash != "" {
		hash = &p.PasswordHash
	}
	status := p.Status
	if status == "" {
		status = domain.StatusPending
	}
	return []any{p.CompanyID, strings.TrimSpace(p.Name), strings.TrimSpace(p.Email), hash,
		string(p.Role), string(status), p.Phone, p.Position, p.OnboardingCompleted}
}

func translateUserErr(err error) error {
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "users_email_key" {
		return apperr.ErrDuplicateEmail
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func oneUser(row rowScanner) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u            domain.User
		role, status string
	)
	if err := row.Scan(
		&u.ID,
		&u.CompanyID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&status,
		&u.Phone,
		&u.Address,
		&u.Position,
		&u.EmergencyContactName,
		&u.EmergencyContactPhone,
		&u.StartDate,
		&u.OnboardingCompleted,
		&u.HandbookCompleted,
		&u.ApprovedBy,
		&u.ApprovedAt,
		&u.RejectionReason,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.UserRole(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = ports.ErrNotFound

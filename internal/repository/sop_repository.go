package repository

import (
	"context"
	"errors"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

type SOPRepository struct {
	DB *db.Postgres
}

func (r SOPRepository) CreateSOP(ctx context.Context, sop domain.SOP) (*domain.SOP, error) {
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO sops (company_id, title, description, category, created_by, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5, now(), now())
			RETURNING id, created_at, updated_at
		`, sop.CompanyID, sop.Title, sop.Description, sop.Category, sop.CreatedBy).Scan(&sop.ID, &sop.CreatedAt, &sop.UpdatedAt); err != nil {
			return err
		}
		for i := range sop.Steps {
			st := &sop.Steps[i]
			st.SOPID = sop.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO sop_steps (sop_id, step_number, title, description, required, estimated_minutes)
				VALUES ($1,$2,$3,$4,$5,$6)
				RETURNING id
			`, sop.ID, st.StepNumber, st.Title, st.Description, st.Required, st.EstimatedMinutes).Scan(&st.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Validation("step numbers must be unique")
		}
		return nil, err
	}
	return &sop, nil
}

func (r SOPRepository) ListSOPs(ctx context.Context, companyID int64) ([]domain.SOP, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, company_id, title, description, category, created_by, created_at, updated_at
		FROM sops
		WHERE company_id=$1
		ORDER BY title ASC, id ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SOP
	index := map[int64]int{}
	for rows.Next() {
		var s domain.SOP
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Title, &s.Description, &s.Category, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	steps, err := r.steps(ctx, `
		SELECT st.id, st.sop_id, st.step_number, st.title, st.description, st.required, st.estimated_minutes
		FROM sop_steps st
		JOIN sops s ON s.id = st.sop_id
		WHERE s.company_id=$1
		ORDER BY st.step_number ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	for _, st := range steps {
		if i, ok := index[st.SOPID]; ok {
			out[i].Steps = append(out[i].Steps, st)
		}
	}
	return out, nil
}

func (r SOPRepository) GetSOP(ctx context.Context, companyID, sopID int64) (*domain.SOP, error) {
	var s domain.SOP
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, company_id, title, description, category, created_by, created_at, updated_at
		FROM sops
		WHERE id=$1 AND company_id=$2
	`, sopID, companyID).Scan(&s.ID, &s.CompanyID, &s.Title, &s.Description, &s.Category, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Steps, err = r.steps(ctx, `
		SELECT id, sop_id, step_number, title, description, required, estimated_minutes
		FROM sop_steps
		WHERE sop_id=$1
		ORDER BY step_number ASC
	`, sopID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r SOPRepository) steps(ctx context.Context, query string, arg int64) ([]domain.SOPStep, error) {
	rows, err := r.DB.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SOPStep
	for rows.Next() {
		var st domain.SOPStep
		if err := rows.Scan(&st.ID, &st.SOPID, &st.StepNumber, &st.Title, &st.Description, &st.Required, &st.EstimatedMinutes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

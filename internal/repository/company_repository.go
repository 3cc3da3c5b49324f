package repository

import (
	"context"
	"errors"
	"strings"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"github.com/jackc/pgx/v5"
)

type CompanyRepository struct {
	DB *db.Postgres
}

// CreateWithOwner inserts a tenant and its first owner atomically.
func (r CompanyRepository) CreateWithOwner(ctx context.Context, name string, owner ports.NewUser) (*domain.Company, *domain.User, error) {
	var (
		company domain.Company
		user    *domain.User
	)
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO companies (name, created_at, updated_at)
			VALUES ($1, now(), now())
			RETURNING id, name, created_at, updated_at
		`, strings.TrimSpace(name)).Scan(&company.ID, &company.Name, &company.CreatedAt, &company.UpdatedAt); err != nil {
			return err
		}
		owner.CompanyID = company.ID
		u, err := scanUser(tx.QueryRow(ctx, insertUserSQL, userArgs(owner)...))
		if err != nil {
			return translateUserErr(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &company, user, nil
}

func (r CompanyRepository) Get(ctx context.Context, id int64) (*domain.Company, error) {
	var c domain.Company
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at FROM companies WHERE id=$1
	`, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

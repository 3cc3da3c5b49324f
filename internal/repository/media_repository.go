package repository

import (
	"context"
	"errors"
	"time"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"github.com/jackc/pgx/v5"
)

// MediaRepository tracks upload slots and their owners.
type MediaRepository struct {
	DB *db.Postgres
}

func (r MediaRepository) CreateObject(ctx context.Context, o domain.MediaObject) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO media_objects (id, company_id, uploader_id, created_at)
		VALUES ($1,$2,$3,$4)
	`, o.ID, o.CompanyID, o.UploaderID, o.CreatedAt)
	return err
}

func (r MediaRepository) GetObject(ctx context.Context, id string) (*domain.MediaObject, error) {
	var o domain.MediaObject
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id::text, company_id, uploader_id, size, created_at, stored_at
		FROM media_objects WHERE id=$1
	`, id).Scan(&o.ID, &o.CompanyID, &o.UploaderID, &o.Size, &o.CreatedAt, &o.StoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkStored only succeeds on the first write.
func (r MediaRepository) MarkStored(ctx context.Context, id string, size int64, at time.Time) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE media_objects SET size=$2, stored_at=$3
		WHERE id=$1 AND stored_at IS NULL
	`, id, size, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStale
	}
	return nil
}

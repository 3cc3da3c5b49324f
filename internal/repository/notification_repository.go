package repository

import (
	"context"
	"time"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
)

type NotificationRepository struct {
	DB *db.Postgres
}

func (r NotificationRepository) Create(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	actionType, actionData, err := domain.EncodeAction(n.Action)
	if err != nil {
		return nil, err
	}
	var typ *string
	if actionType != "" {
		s := string(actionType)
		typ = &s
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	err = r.DB.Pool.QueryRow(ctx, `
		INSERT INTO notifications (company_id, user_id, title, message, type, action_type, action_data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, read_at
	`, n.CompanyID, n.UserID, n.Title, n.Message, string(n.Type), typ, actionData, n.CreatedAt).Scan(
		&n.ID, &n.CreatedAt, &n.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r NotificationRepository) List(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, company_id, user_id, title, message, type, action_type, action_data, created_at, read_at
		FROM notifications
		WHERE deleted_at IS NULL AND user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var (
			n          domain.Notification
			actionType *string
			actionData []byte
		)
		if err := rows.Scan(&n.ID, &n.CompanyID, &n.UserID, &n.Title, &n.Message, (*string)(&n.Type),
			&actionType, &actionData, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		if actionType != nil {
			n.Action, err = domain.DecodeAction(domain.ActionType(*actionType), actionData)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkRead stamps read_at once; repeated calls keep the first timestamp.
func (r NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL
	`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

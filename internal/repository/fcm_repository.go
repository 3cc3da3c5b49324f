package repository

import (
	"context"

	"staffbook-backend/internal/db"
)

// FCMRepository stores the device tokens push notifications are sent to.
type FCMRepository struct {
	DB *db.Postgres
}

func (r FCMRepository) Register(ctx context.Context, userID int64, token, platform string) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1,$2,$3, now())
		ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, platform=EXCLUDED.platform, created_at=now()
	`, userID, token, platform)
	return err
}

func (r FCMRepository) TokensForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT token FROM device_tokens WHERE user_id=$1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Remove drops a token the push provider reported as unregistered.
func (r FCMRepository) Remove(ctx context.Context, token string) error {
	_, err := r.DB.Pool.Exec(ctx, `DELETE FROM device_tokens WHERE token=$1`, token)
	return err
}

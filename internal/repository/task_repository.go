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

type TaskRepository struct {
	DB *db.Postgres
}

const taskColumns = `id, company_id, title, description, assigned_by, assigned_to, priority, status,
	due_date, completed_at, created_at, updated_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                domain.Task
		priority, status string
	)
	if err := row.Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &t.AssignedBy, &t.AssignedTo,
		&priority, &status, &t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = domain.TaskPriority(priority)
	t.Status = domain.TaskStatus(status)
	return &t, nil
}

func (r TaskRepository) Create(ctx context.Context, t domain.Task) (*domain.Task, error) {
	return scanTask(r.DB.Pool.QueryRow(ctx, `
		INSERT INTO tasks (company_id, title, description, assigned_by, assigned_to, priority, status, due_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',$7, now(), now())
		RETURNING `+taskColumns,
		t.CompanyID, t.Title, t.Description, t.AssignedBy, t.AssignedTo, string(t.Priority), t.DueDate))
}

func (r TaskRepository) Get(ctx context.Context, companyID, id int64) (*domain.Task, error) {
	t, err := scanTask(r.DB.Pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND company_id=$2
	`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r TaskRepository) List(ctx context.Context, f ports.TaskFilter) ([]domain.Task, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE company_id=$1
		  AND ($2::bigint = 0 OR assigned_to = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			due_date ASC NULLS LAST, id DESC
		LIMIT $4
	`, f.CompanyID, f.AssignedTo, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r TaskRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.TaskStatus, completedAt *time.Time) (*domain.Task, error) {
	t, err := scanTask(r.DB.Pool.QueryRow(ctx, `
		UPDATE tasks SET status=$3, completed_at=$4, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+taskColumns,
		id, string(from), string(to), completedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrStale
	}
	return t, err
}

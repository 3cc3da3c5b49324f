package repository

import (
	"context"
	"time"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
)

// DashboardRepository aggregates the management stats for one company.
type DashboardRepository struct {
	DB *db.Postgres
}

func (r DashboardRepository) Summary(ctx context.Context, companyID int64, now time.Time) (*domain.Stats, error) {
	var s domain.Stats
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users
				WHERE company_id=$1 AND deleted_at IS NULL AND role IN ('employee','manager') AND status IN ('approved','active')),
			(SELECT COUNT(*) FROM users
				WHERE company_id=$1 AND deleted_at IS NULL AND status='pending'),
			(SELECT COUNT(*) FROM tasks
				WHERE company_id=$1 AND status IN ('pending','in_progress')),
			(SELECT COUNT(*) FROM tasks
				WHERE company_id=$1 AND status IN ('pending','in_progress') AND due_date IS NOT NULL AND due_date < $2),
			(SELECT COUNT(*) FROM incidents
				WHERE company_id=$1 AND status IN ('open','under_review')),
			(SELECT COUNT(*) FROM sop_executions e JOIN sops s ON s.id = e.sop_id
				WHERE s.company_id=$1 AND e.status='completed')
	`, companyID, now).Scan(
		&s.TotalEmployees, &s.PendingApprovals, &s.ActiveTasks, &s.OverdueTasks, &s.OpenIncidents, &s.CompletedExecutions,
	)
	if err != nil {
		return nil, err
	}

	var completed, signed, required int
	err = r.DB.Pool.QueryRow(ctx, `
		WITH staff AS (
			SELECT u.id, `+handbookCompleteSQL+` AS handbook_completed FROM users u
			WHERE u.company_id=$1 AND u.deleted_at IS NULL AND u.role IN ('employee','manager') AND u.status IN ('approved','active')
		), sections AS (
			SELECT id FROM handbook_sections WHERE company_id=$1 AND requires_signature
		)
		SELECT
			(SELECT COUNT(*) FROM staff WHERE handbook_completed),
			(SELECT COUNT(*) FROM section_signatures ss
				WHERE ss.user_id IN (SELECT id FROM staff) AND ss.section_id IN (SELECT id FROM sections)),
			(SELECT COUNT(*) FROM staff) * (SELECT COUNT(*) FROM sections)
	`, companyID).Scan(&completed, &signed, &required)
	if err != nil {
		return nil, err
	}
	s.ComplianceRate = percent(completed, s.TotalEmployees)
	s.TrainingProgress = percent(signed, required)
	return &s, nil
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*100 + total/2) / total
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

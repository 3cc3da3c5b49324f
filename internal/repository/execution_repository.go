package repository

import (
	"context"
	"errors"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"github.com/jackc/pgx/v5"
)

type ExecutionRepository struct {
	DB *db.Postgres
}

const executionColumns = `e.id, e.user_id, e.sop_id, e.status, e.current_step,
	COALESCE((SELECT array_agg(c.step_id ORDER BY c.completed_at, c.id) FROM sop_step_completions c WHERE c.execution_id = e.id), '{}'),
	e.started_at, e.resumed_at, e.accumulated_ms, e.completed_at, e.updated_at`

func scanExecution(row rowScanner) (*domain.SOPExecution, error) {
	var (
		e      domain.SOPExecution
		status string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.SOPID, &status, &e.CurrentStep, &e.CompletedSteps,
		&e.StartedAt, &e.ResumedAt, &e.AccumulatedMillis, &e.CompletedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.ExecutionStatus(status)
	if e.CompletedSteps == nil {
		e.CompletedSteps = []int64{}
	}
	return &e, nil
}

func oneExecution(row rowScanner) (*domain.SOPExecution, error) {
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// CreateExecution starts a run. The partial unique index admits one active
// run per user and SOP.
func (r ExecutionRepository) CreateExecution(ctx context.Context, e domain.SOPExecution) (*domain.SOPExecution, error) {
	var id int64
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO sop_executions (user_id, sop_id, status, current_step, started_at, resumed_at, accumulated_ms, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING id
	`, e.UserID, e.SOPID, string(e.Status), e.CurrentStep, e.StartedAt, e.ResumedAt, e.AccumulatedMillis).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == "sop_executions_active_key" {
			return nil, apperr.ErrAlreadyActive
		}
		return nil, err
	}
	return r.GetExecution(ctx, id)
}

func (r ExecutionRepository) GetExecution(ctx context.Context, id int64) (*domain.SOPExecution, error) {
	return oneExecution(r.DB.Pool.QueryRow(ctx, `
		SELECT `+executionColumns+` FROM sop_executions e WHERE e.id=$1
	`, id))
}

func (r ExecutionRepository) ActiveExecution(ctx context.Context, userID, sopID int64) (*domain.SOPExecution, error) {
	return oneExecution(r.DB.Pool.QueryRow(ctx, `
		SELECT `+executionColumns+`
		FROM sop_executions e
		WHERE e.user_id=$1 AND e.sop_id=$2 AND e.status IN ('in_progress','paused')
	`, userID, sopID))
}

func (r ExecutionRepository) ListExecutions(ctx context.Context, userID int64) ([]domain.SOPExecution, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+executionColumns+`
		FROM sop_executions e
		WHERE e.user_id=$1
		ORDER BY e.started_at DESC, e.id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SOPExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r ExecutionRepository) ListStepCompletions(ctx context.Context, executionID int64) ([]domain.SOPStepCompletion, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, execution_id, step_id, notes, media_urls, completed_at
		FROM sop_step_completions
		WHERE execution_id=$1
		ORDER BY completed_at ASC, id ASC
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SOPStepCompletion
	for rows.Next() {
		var c domain.SOPStepCompletion
		if err := rows.Scan(&c.ID, &c.ExecutionID, &c.StepID, &c.Notes, &c.MediaURLs, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordStep locks the run, so a concurrent pause or completion cannot
// interleave with the insert.
func (r ExecutionRepository) RecordStep(ctx context.Context, c domain.SOPStepCompletion, currentStep int) (bool, error) {
	inserted := false
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM sop_executions WHERE id=$1 FOR UPDATE`, c.ExecutionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if domain.ExecutionStatus(status) != domain.ExecutionInProgress {
			return ports.ErrStale
		}
		media := c.MediaURLs
		if media == nil {
			media = []string{}
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO sop_step_completions (execution_id, step_id, notes, media_urls, completed_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT ON CONSTRAINT sop_step_completions_execution_step_key DO NOTHING
		`, c.ExecutionID, c.StepID, c.Notes, media, c.CompletedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true
		_, err = tx.Exec(ctx, `
			UPDATE sop_executions SET current_step=GREATEST(current_step, $2), updated_at=now()
			WHERE id=$1
		`, c.ExecutionID, currentStep)
		return err
	})
	return inserted, err
}

// UpdateExecution persists the clock and status fields while the stored
// status is one of from.
func (r ExecutionRepository) UpdateExecution(ctx context.Context, e domain.SOPExecution, from ...domain.ExecutionStatus) (*domain.SOPExecution, error) {
	var id int64
	err := r.DB.Pool.QueryRow(ctx, `
		UPDATE sop_executions SET
			status=$2, resumed_at=$3, accumulated_ms=$4, completed_at=$5, updated_at=now()
		WHERE id=$1 AND status = ANY($6)
		RETURNING id
	`, e.ID, string(e.Status), e.ResumedAt, e.AccumulatedMillis, e.CompletedAt, statusStrings(from)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrStale
	}
	if err != nil {
		return nil, err
	}
	return r.GetExecution(ctx, id)
}

// DeleteExecution removes a run and, by cascade, its step completions.
func (r ExecutionRepository) DeleteExecution(ctx context.Context, id int64, from ...domain.ExecutionStatus) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		DELETE FROM sop_executions WHERE id=$1 AND status = ANY($2)
	`, id, statusStrings(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStale
	}
	return nil
}

func statusStrings(in []domain.ExecutionStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

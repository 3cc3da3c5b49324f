package workflow

import (
	"slices"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
)

// NewExecution returns a fresh in-progress run with the clock started at now.
func NewExecution(userID, sopID int64, now time.Time) domain.SOPExecution {
	return domain.SOPExecution{
		UserID:         userID,
		SOPID:          sopID,
		Status:         domain.ExecutionInProgress,
		CurrentStep:    1,
		CompletedSteps: []int64{},
		StartedAt:      now,
		ResumedAt:      &now,
	}
}

// Elapsed is the accrued in-progress time. Paused and completed runs report
// their frozen total.
func Elapsed(e domain.SOPExecution, now time.Time) time.Duration {
	d := time.Duration(e.AccumulatedMillis) * time.Millisecond
	if e.Status == domain.ExecutionInProgress && e.ResumedAt != nil && now.After(*e.ResumedAt) {
		d += now.Sub(*e.ResumedAt).Truncate(time.Millisecond)
	}
	return d
}

// IsActive reports whether the run blocks a new start.
func IsActive(e domain.SOPExecution) bool {
	return e.Status == domain.ExecutionInProgress || e.Status == domain.ExecutionPaused
}

// Pause freezes the clock. Only valid while in progress.
func Pause(e *domain.SOPExecution, now time.Time) error {
	if e.Status != domain.ExecutionInProgress {
		return apperr.Transition(string(e.Status), string(domain.ExecutionPaused))
	}
	e.AccumulatedMillis = Elapsed(*e, now).Milliseconds()
	e.ResumedAt = nil
	e.Status = domain.ExecutionPaused
	return nil
}

// Resume restarts accrual on top of the frozen total.
func Resume(e *domain.SOPExecution, now time.Time) error {
	if e.Status != domain.ExecutionPaused {
		return apperr.Transition(string(e.Status), string(domain.ExecutionInProgress))
	}
	e.ResumedAt = &now
	e.Status = domain.ExecutionInProgress
	return nil
}

// CompleteStep marks stepID done and advances CurrentStep past it. It
// reports false when the step was already done; that case leaves e untouched.
func CompleteStep(e *domain.SOPExecution, steps []domain.SOPStep, stepID int64) (bool, error) {
	if e.Status != domain.ExecutionInProgress {
		return false, apperr.Transition(string(e.Status), "step_completed")
	}
	idx := slices.IndexFunc(steps, func(s domain.SOPStep) bool { return s.ID == stepID })
	if idx < 0 {
		return false, apperr.NotFound("step")
	}
	if slices.Contains(e.CompletedSteps, stepID) {
		return false, nil
	}
	e.CompletedSteps = append(e.CompletedSteps, stepID)
	e.CurrentStep = NextStepNumber(steps, e.CurrentStep, steps[idx].StepNumber)
	return true, nil
}

// NextStepNumber is the step after completed, never moving backwards and never
// past the last step.
func NextStepNumber(steps []domain.SOPStep, current, completed int) int {
	last := 1
	for _, s := range steps {
		if s.StepNumber > last {
			last = s.StepNumber
		}
	}
	next := completed + 1
	if next > last {
		next = last
	}
	if current > next {
		return current
	}
	return next
}

// MissingRequired lists required step ids absent from completed.
func MissingRequired(steps []domain.SOPStep, completed []int64) []int64 {
	var missing []int64
	for _, s := range steps {
		if s.Required && !slices.Contains(completed, s.ID) {
			missing = append(missing, s.ID)
		}
	}
	return missing
}

// Complete finishes the run. On error e is not modified.
func Complete(e *domain.SOPExecution, steps []domain.SOPStep, now time.Time) error {
	if !IsActive(*e) {
		return apperr.Transition(string(e.Status), string(domain.ExecutionCompleted))
	}
	if len(MissingRequired(steps, e.CompletedSteps)) > 0 {
		return apperr.ErrIncompleteSteps
	}
	e.AccumulatedMillis = Elapsed(*e, now).Milliseconds()
	e.ResumedAt = nil
	e.CompletedAt = &now
	e.Status = domain.ExecutionCompleted
	return nil
}

// CheckReset allows discarding any run that has not completed.
func CheckReset(e domain.SOPExecution) error {
	if !IsActive(e) {
		return apperr.Transition(string(e.Status), string(domain.ExecutionNotStarted))
	}
	return nil
}

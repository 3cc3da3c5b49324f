package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/metrics"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/storage"
	"staffbook-backend/internal/workflow"
)

// SOPService authors SOPs and drives their executions.
type SOPService struct {
	Users      ports.UserStore
	SOPs       ports.SOPStore
	Executions ports.ExecutionStore
	Access     AccessService
	Activity   ports.ActivityStore
	Logger     *slog.Logger
	Clock      Clock
}

type SOPInput struct {
	Title       string
	Description string
	Category    string
	Steps       []StepInput
}

type StepInput struct {
	Title            string
	Description      string
	Required         bool
	EstimatedMinutes int
}

type StepCompletionInput struct {
	UserID      int64
	ExecutionID int64
	StepID      int64
	Notes       string
	MediaURLs   []string
}

func (s SOPService) CreateSOP(ctx context.Context, actorID int64, in SOPInput) (*domain.SOP, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if len(in.Steps) == 0 {
		return nil, apperr.Validation("at least one step is required")
	}
	sop := domain.SOP{
		CompanyID:   actor.CompanyID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		CreatedBy:   &actor.ID,
	}
	for i, st := range in.Steps {
		if strings.TrimSpace(st.Title) == "" {
			return nil, apperr.Validation("step %d: title is required", i+1)
		}
		if st.EstimatedMinutes < 0 {
			return nil, apperr.Validation("step %d: estimatedMinutes must not be negative", i+1)
		}
		sop.Steps = append(sop.Steps, domain.SOPStep{
			StepNumber:       i + 1,
			Title:            strings.TrimSpace(st.Title),
			Description:      st.Description,
			Required:         st.Required,
			EstimatedMinutes: st.EstimatedMinutes,
		})
	}
	created, err := s.SOPs.CreateSOP(ctx, sop)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: actor.CompanyID,
		ActorID:   &actor.ID,
		Action:    "sop.created",
		Entity:    "sop",
		EntityID:  &created.ID,
		Message:   created.Title,
		LoggedAt:  s.Clock.now(),
	})
	return created, nil
}

// ListSOPs is open to management for authoring and to staff once the
// handbook is complete.
func (s SOPService) ListSOPs(ctx context.Context, userID int64) ([]domain.SOP, error) {
	u, err := s.reader(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.SOPs.ListSOPs(ctx, u.CompanyID)
}

func (s SOPService) GetSOP(ctx context.Context, userID, sopID int64) (*domain.SOP, error) {
	u, err := s.reader(ctx, userID)
	if err != nil {
		return nil, err
	}
	sop, err := s.SOPs.GetSOP(ctx, u.CompanyID, sopID)
	if err != nil {
		return nil, notFound(err, "sop")
	}
	return sop, nil
}

func (s SOPService) reader(ctx context.Context, userID int64) (*domain.User, error) {
	res, err := s.Access.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if res.Gates.SOPs {
		return &res.User, nil
	}
	if res.User.Role.IsManagement() && res.User.Status == domain.StatusApproved {
		return &res.User, nil
	}
	return nil, apperr.ErrSOPsLocked
}

// Start opens a new execution. Only one active run per user and SOP exists.
func (s SOPService) Start(ctx context.Context, userID, sopID int64) (*domain.SOPExecution, error) {
	res, err := s.Access.RequireSOPs(ctx, userID)
	if err != nil {
		return nil, err
	}
	sop, err := s.SOPs.GetSOP(ctx, res.User.CompanyID, sopID)
	if err != nil {
		return nil, notFound(err, "sop")
	}
	e, err := s.Executions.CreateExecution(ctx, workflow.NewExecution(userID, sop.ID, s.Clock.now()))
	if err != nil {
		return nil, err
	}
	metrics.Transition("sop_execution", string(domain.ExecutionInProgress))
	s.audit(ctx, res.User, "sop.started", e, sop.Title)
	return e, nil
}

func (s SOPService) ActiveExecution(ctx context.Context, userID, sopID int64) (*domain.SOPExecution, error) {
	if _, err := s.Access.RequireSOPs(ctx, userID); err != nil {
		return nil, err
	}
	e, err := s.Executions.ActiveExecution(ctx, userID, sopID)
	if err != nil {
		return nil, notFound(err, "execution")
	}
	return e, nil
}

func (s SOPService) ListExecutions(ctx context.Context, userID int64) ([]domain.SOPExecution, error) {
	if _, err := s.Access.RequireSOPs(ctx, userID); err != nil {
		return nil, err
	}
	return s.Executions.ListExecutions(ctx, userID)
}

func (s SOPService) Steps(ctx context.Context, userID, executionID int64) ([]domain.SOPStepCompletion, error) {
	run, err := s.load(ctx, userID, executionID)
	if err != nil {
		return nil, err
	}
	return s.Executions.ListStepCompletions(ctx, run.exec.ID)
}

// CompleteStep records a step. Repeating a recorded step changes nothing.
func (s SOPService) CompleteStep(ctx context.Context, in StepCompletionInput) (*domain.SOPExecution, error) {
	for _, m := range in.MediaURLs {
		if !storage.IsObjectPath(m) {
			return nil, apperr.Validation("media %q is not an uploaded object", m)
		}
	}
	run, err := s.load(ctx, in.UserID, in.ExecutionID)
	if err != nil {
		return nil, err
	}
	next := *run.exec
	next.CompletedSteps = append([]int64(nil), run.exec.CompletedSteps...)
	changed, err := workflow.CompleteStep(&next, run.sop.Steps, in.StepID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return run.exec, nil
	}
	_, err = s.Executions.RecordStep(ctx, domain.SOPStepCompletion{
		ExecutionID: next.ID,
		StepID:      in.StepID,
		Notes:       strings.TrimSpace(in.Notes),
		MediaURLs:   in.MediaURLs,
		CompletedAt: s.Clock.now(),
	}, next.CurrentStep)
	if err != nil {
		return nil, stale(err, string(run.exec.Status), "step_completed")
	}
	return s.fetch(ctx, next.ID)
}

func (s SOPService) Pause(ctx context.Context, userID, executionID int64) (*domain.SOPExecution, error) {
	return s.transition(ctx, userID, executionID, domain.ExecutionPaused, func(e *domain.SOPExecution, _ []domain.SOPStep, now time.Time) error {
		return workflow.Pause(e, now)
	}, domain.ExecutionInProgress)
}

func (s SOPService) Resume(ctx context.Context, userID, executionID int64) (*domain.SOPExecution, error) {
	return s.transition(ctx, userID, executionID, domain.ExecutionInProgress, func(e *domain.SOPExecution, _ []domain.SOPStep, now time.Time) error {
		return workflow.Resume(e, now)
	}, domain.ExecutionPaused)
}

// Complete finishes the run once every required step is recorded.
func (s SOPService) Complete(ctx context.Context, userID, executionID int64) (*domain.SOPExecution, error) {
	return s.transition(ctx, userID, executionID, domain.ExecutionCompleted, workflow.Complete,
		domain.ExecutionInProgress, domain.ExecutionPaused)
}

// Reset discards an unfinished run together with its recorded steps.
func (s SOPService) Reset(ctx context.Context, userID, executionID int64) error {
	run, err := s.load(ctx, userID, executionID)
	if err != nil {
		return err
	}
	if err := workflow.CheckReset(*run.exec); err != nil {
		return err
	}
	if err := s.Executions.DeleteExecution(ctx, run.exec.ID, domain.ExecutionInProgress, domain.ExecutionPaused); err != nil {
		return stale(notFound(err, "execution"), string(run.exec.Status), string(domain.ExecutionNotStarted))
	}
	metrics.Transition("sop_execution", "reset")
	s.audit(ctx, run.user, "sop.reset", run.exec, run.sop.Title)
	return nil
}

// Elapsed is the server-side running time of e.
func (s SOPService) Elapsed(e domain.SOPExecution) time.Duration {
	return workflow.Elapsed(e, s.Clock.now())
}

type executionRun struct {
	user domain.User
	exec *domain.SOPExecution
	sop  *domain.SOP
}

func (s SOPService) transition(ctx context.Context, userID, executionID int64, to domain.ExecutionStatus,
	apply func(*domain.SOPExecution, []domain.SOPStep, time.Time) error, from ...domain.ExecutionStatus) (*domain.SOPExecution, error) {
	run, err := s.load(ctx, userID, executionID)
	if err != nil {
		return nil, err
	}
	next := *run.exec
	if err := apply(&next, run.sop.Steps, s.Clock.now()); err != nil {
		return nil, err
	}
	updated, err := s.Executions.UpdateExecution(ctx, next, from...)
	if err != nil {
		return nil, stale(err, string(run.exec.Status), string(to))
	}
	metrics.Transition("sop_execution", string(to))
	if to == domain.ExecutionCompleted {
		s.audit(ctx, run.user, "sop.completed", updated, run.sop.Title)
	}
	return updated, nil
}

// load returns an execution owned by userID. Runs of other users are
// reported as missing.
func (s SOPService) load(ctx context.Context, userID, executionID int64) (*executionRun, error) {
	res, err := s.Access.RequireSOPs(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, err := s.Executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, notFound(err, "execution")
	}
	if e.UserID != userID {
		return nil, apperr.NotFound("execution")
	}
	sop, err := s.SOPs.GetSOP(ctx, res.User.CompanyID, e.SOPID)
	if err != nil {
		return nil, notFound(err, "sop")
	}
	return &executionRun{user: res.User, exec: e, sop: sop}, nil
}

func (s SOPService) fetch(ctx context.Context, id int64) (*domain.SOPExecution, error) {
	e, err := s.Executions.GetExecution(ctx, id)
	if err != nil {
		return nil, notFound(err, "execution")
	}
	return e, nil
}

func (s SOPService) audit(ctx context.Context, u domain.User, action string, e *domain.SOPExecution, title string) {
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: u.CompanyID,
		ActorID:   &u.ID,
		Action:    action,
		Entity:    "sop_execution",
		EntityID:  &e.ID,
		Message:   fmt.Sprintf("%s: %s", u.Name, title),
		LoggedAt:  s.Clock.now(),
	})
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
)

// sopFixture returns an owner, an employee with a completed handbook and a
// two-step SOP.
func sopFixture(t *testing.T, e *env) (domain.User, domain.User, domain.SOP) {
	t.Helper()
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})
	completeAll(t, e, emp.ID, s)
	_, err := e.book.SignSection(ctx, SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "sig"})
	require.NoError(t, err)

	sop, err := e.sop.CreateSOP(ctx, owner.ID, SOPInput{
		Title: "Opening",
		Steps: []StepInput{
			{Title: "Unlock doors", Required: true, EstimatedMinutes: 2},
			{Title: "Start ovens", Required: true, EstimatedMinutes: 10},
		},
	})
	require.NoError(t, err)
	return owner, emp, *sop
}

func TestSOPsLockedUntilHandbookComplete(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})

	_, err := e.sop.ListSOPs(context.Background(), emp.ID)
	assert.ErrorIs(t, err, apperr.ErrSOPsLocked)

	_, err = e.sop.ListSOPs(context.Background(), owner.ID)
	assert.NoError(t, err, "management can browse SOPs for authoring")
}

func TestSOPExecutionScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)
	s1, s2 := sop.Steps[0], sop.Steps[1]

	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionInProgress, exec.Status)
	assert.Equal(t, 1, exec.CurrentStep)
	assert.Empty(t, exec.CompletedSteps)

	exec, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: s1.ID, Notes: "done"})
	require.NoError(t, err)
	assert.Equal(t, []int64{s1.ID}, exec.CompletedSteps)
	assert.Equal(t, 2, exec.CurrentStep)

	_, err = e.sop.Complete(ctx, emp.ID, exec.ID)
	assert.ErrorIs(t, err, apperr.ErrIncompleteSteps)
	stored, err := e.sops.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionInProgress, stored.Status)
	assert.Nil(t, stored.CompletedAt)

	_, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: s2.ID})
	require.NoError(t, err)

	e.now = e.now.Add(12 * time.Minute)
	done, err := e.sop.Complete(ctx, emp.ID, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, e.now, *done.CompletedAt)
	assert.Equal(t, 12*time.Minute, e.sop.Elapsed(*done))

	e.now = e.now.Add(time.Hour)
	assert.Equal(t, 12*time.Minute, e.sop.Elapsed(*done), "completed runs stop the clock")
}

func TestStartTwiceIsAlreadyActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)

	first, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	_, err = e.sop.Start(ctx, emp.ID, sop.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)

	_, err = e.sop.Pause(ctx, emp.ID, first.ID)
	require.NoError(t, err)
	_, err = e.sop.Start(ctx, emp.ID, sop.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)

	active, err := e.sop.ActiveExecution(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestCompleteStepIdempotentAndValidated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)
	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)

	in := StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: sop.Steps[0].ID}
	_, err = e.sop.CompleteStep(ctx, in)
	require.NoError(t, err)
	again, err := e.sop.CompleteStep(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []int64{sop.Steps[0].ID}, again.CompletedSteps)

	steps, err := e.sop.Steps(ctx, emp.ID, exec.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	_, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: 77})
	assert.ErrorIs(t, err, apperr.NotFound("step"))

	_, err = e.sop.CompleteStep(ctx, StepCompletionInput{
		UserID: emp.ID, ExecutionID: exec.ID, StepID: sop.Steps[1].ID, MediaURLs: []string{"https://evil.example/x.png"},
	})
	apErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, apErr.Kind)
}

func TestPauseResumeKeepsClock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)
	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)

	e.now = e.now.Add(3 * time.Minute)
	paused, err := e.sop.Pause(ctx, emp.ID, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPaused, paused.Status)

	_, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: sop.Steps[0].ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = e.sop.Pause(ctx, emp.ID, exec.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	e.now = e.now.Add(time.Hour)
	assert.Equal(t, 3*time.Minute, e.sop.Elapsed(*paused))

	resumed, err := e.sop.Resume(ctx, emp.ID, exec.ID)
	require.NoError(t, err)
	e.now = e.now.Add(time.Minute)
	assert.Equal(t, 4*time.Minute, e.sop.Elapsed(*resumed))
}

func TestResetDiscardsRun(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)
	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	_, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: sop.Steps[0].ID})
	require.NoError(t, err)

	require.NoError(t, e.sop.Reset(ctx, emp.ID, exec.ID))
	_, err = e.sop.ActiveExecution(ctx, emp.ID, sop.ID)
	assert.ErrorIs(t, err, apperr.NotFound("execution"))

	fresh, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	assert.NotEqual(t, exec.ID, fresh.ID)
	assert.Empty(t, fresh.CompletedSteps)
	assert.Contains(t, e.activity.actions(), "sop.reset")
}

func TestResetCompletedIsInvalid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, emp, sop := sopFixture(t, e)
	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)
	for _, st := range sop.Steps {
		_, err = e.sop.CompleteStep(ctx, StepCompletionInput{UserID: emp.ID, ExecutionID: exec.ID, StepID: st.ID})
		require.NoError(t, err)
	}
	_, err = e.sop.Complete(ctx, emp.ID, exec.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.sop.Reset(ctx, emp.ID, exec.ID), apperr.ErrInvalidTransition)
}

func TestExecutionOfAnotherUserIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner, emp, sop := sopFixture(t, e)
	exec, err := e.sop.Start(ctx, emp.ID, sop.ID)
	require.NoError(t, err)

	other := e.staff(t, owner, "other@example.com", domain.RoleEmployee)
	completeAll(t, e, other.ID, e.handbook.sections[0])
	_, err = e.book.SignSection(ctx, SignInput{UserID: other.ID, SectionID: e.handbook.sections[0].ID, SignatureData: "sig"})
	require.NoError(t, err)

	_, err = e.sop.Pause(ctx, other.ID, exec.ID)
	assert.ErrorIs(t, err, apperr.NotFound("execution"))
}

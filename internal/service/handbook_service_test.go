package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
)

func createSection(t *testing.T, e *env, owner domain.User, title string, policies ...PolicyInput) domain.HandbookSection {
	t.Helper()
	s, err := e.book.CreateSection(context.Background(), owner.ID, SectionInput{
		Title:             title,
		RequiresSignature: true,
		Policies:          policies,
	})
	require.NoError(t, err)
	return *s
}

func completeAll(t *testing.T, e *env, userID int64, s domain.HandbookSection) {
	t.Helper()
	for _, p := range s.Policies {
		_, err := e.book.SetPolicyCompletion(context.Background(), userID, s.ID, p.ID, true)
		require.NoError(t, err)
	}
}

func TestHandbookLockedBeforeOnboarding(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	u := register(t, e, owner.CompanyID, "ana@example.com")

	_, err := e.book.ListSections(context.Background(), u.ID)
	assert.ErrorIs(t, err, apperr.ErrHandbookLocked)
}

func TestSectionProgressCountsRequiredPolicies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Welcome",
		PolicyInput{Title: "Mission", Required: true},
		PolicyInput{Title: "Values", Required: true},
		PolicyInput{Title: "History", Required: false},
		PolicyInput{Title: "Dress code", Required: true},
	)

	state, err := e.book.SetPolicyCompletion(ctx, emp.ID, s.ID, s.Policies[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SectionProgress{Completed: 1, Total: 3, Percentage: 33}, state.Progress)

	state, err = e.book.SetPolicyCompletion(ctx, emp.ID, s.ID, s.Policies[2].ID, true)
	require.NoError(t, err)
	assert.Equal(t, 33, state.Progress.Percentage)

	state, err = e.book.SetPolicyCompletion(ctx, emp.ID, s.ID, s.Policies[1].ID, true)
	require.NoError(t, err)
	assert.Equal(t, 67, state.Progress.Percentage)

	state, err = e.book.SetPolicyCompletion(ctx, emp.ID, s.ID, s.Policies[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, 33, state.Progress.Percentage)
	assert.Nil(t, state.Completions[s.Policies[0].ID].CompletedAt)
}

func TestPolicyMustBelongToSection(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	a := createSection(t, e, owner, "A", PolicyInput{Title: "p1", Required: true})
	b := createSection(t, e, owner, "B", PolicyInput{Title: "p2", Required: true})

	_, err := e.book.SetPolicyCompletion(context.Background(), emp.ID, a.ID, b.Policies[0].ID, true)
	assert.ErrorIs(t, err, apperr.NotFound("policy"))
	_, err = e.book.SetPolicyCompletion(context.Background(), emp.ID, 424242, a.Policies[0].ID, true)
	assert.ErrorIs(t, err, apperr.NotFound("section"))
}

func TestSignSectionScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Safety",
		PolicyInput{Title: "Fire exits", Required: true},
		PolicyInput{Title: "First aid", Required: true},
	)
	in := SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "data:image/png;base64,AAA"}

	_, err := e.book.SignSection(ctx, in)
	assert.ErrorIs(t, err, apperr.ErrSectionNotReady)

	completeAll(t, e, emp.ID, s)
	sig, err := e.book.SignSection(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, e.now, sig.SignedAt)

	e.now = e.now.Add(time.Hour)
	second := in
	second.SignatureData = "data:image/png;base64,BBB"
	_, err = e.book.SignSection(ctx, second)
	assert.ErrorIs(t, err, apperr.ErrAlreadySigned)
	assert.Equal(t, 1, e.handbook.signatureCount())
	stored, ok := e.handbook.signature(emp.ID, s.ID)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAA", stored.SignatureData)
	assert.Equal(t, sig.SignedAt, stored.SignedAt)

	res, err := e.access.Resolve(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, res.User.HandbookCompleted)
	assert.True(t, res.Gates.SOPs)
	assert.Contains(t, e.activity.actions(), "handbook.completed")
}

func TestAlreadySignedReportedBeforeReadiness(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})
	completeAll(t, e, emp.ID, s)
	_, err := e.book.SignSection(ctx, SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "sig"})
	require.NoError(t, err)

	_, err = e.book.SetPolicyCompletion(ctx, emp.ID, s.ID, s.Policies[0].ID, false)
	require.NoError(t, err)
	_, err = e.book.SignSection(ctx, SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "sig"})
	assert.ErrorIs(t, err, apperr.ErrAlreadySigned)

	res, err := e.access.Resolve(ctx, emp.ID)
	require.NoError(t, err)
	assert.False(t, res.User.HandbookCompleted, "unchecking a policy reopens the section")
}

func TestConcurrentSignaturesProduceOne(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})
	completeAll(t, e, emp.ID, s)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.book.SignSection(context.Background(), SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "sig"})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrAlreadySigned)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, e.handbook.signatureCount())
}

func TestGateIgnoresTamperedFlag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})

	e.users.set(emp.ID, func(u *domain.User) { u.HandbookCompleted = true })

	_, err := e.sop.ListExecutions(ctx, emp.ID)
	assert.ErrorIs(t, err, apperr.ErrSOPsLocked)
	stored, err := e.users.GetByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.False(t, stored.HandbookCompleted)
}

func TestEmptyHandbookIsNotComplete(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)

	p, err := e.book.Progress(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalSections)
	assert.False(t, p.HandbookCompleted)
	assert.False(t, p.Gates.SOPs)
}

func TestCreateSectionRequiresManagement(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)

	_, err := e.book.CreateSection(context.Background(), emp.ID, SectionInput{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestProgressLockedBeforeOnboarding(t *testing.T) {
	e := newEnv(t)
	owner := e.company(t, "Harbor Cafe")
	u := register(t, e, owner.CompanyID, "ana@example.com")

	_, err := e.book.Progress(context.Background(), u.ID)
	assert.ErrorIs(t, err, apperr.ErrHandbookLocked)
}

func TestNewSectionReopensCompletedHandbook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")
	emp := e.staff(t, owner, "emp@example.com", domain.RoleEmployee)
	s := createSection(t, e, owner, "Safety", PolicyInput{Title: "Fire exits", Required: true})
	completeAll(t, e, emp.ID, s)
	_, err := e.book.SignSection(ctx, SignInput{UserID: emp.ID, SectionID: s.ID, SignatureData: "sig"})
	require.NoError(t, err)
	u, err := e.users.GetByID(ctx, emp.ID)
	require.NoError(t, err)
	require.True(t, u.HandbookCompleted)

	createSection(t, e, owner, "Allergens", PolicyInput{Title: "Labels", Required: true})

	u, err = e.users.GetByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.False(t, u.HandbookCompleted)
}

func TestCreateSectionNumberRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.company(t, "Harbor Cafe")

	_, err := e.book.CreateSection(ctx, owner.ID, SectionInput{Title: "Safety", SectionNumber: -1})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Message, "must not be negative")

	_, err = e.book.CreateSection(ctx, owner.ID, SectionInput{Title: "Safety", SectionNumber: 3})
	require.NoError(t, err)
	_, err = e.book.CreateSection(ctx, owner.ID, SectionInput{Title: "Allergens", SectionNumber: 3})
	assert.ErrorIs(t, err, apperr.ErrSectionNumberTaken)
}

// Package access derives what a user may open from persisted state.
package access

import "staffbook-backend/internal/domain"

// Gates is the evaluated lock state for one user.
type Gates struct {
	Handbook bool
	SOPs     bool
}

// CanAccessHandbook requires approval and finished onboarding.
func CanAccessHandbook(u domain.User) bool {
	return u.Status == domain.StatusApproved && u.OnboardingCompleted
}

// CanAccessSOPs requires approval and a completed handbook.
func CanAccessSOPs(u domain.User) bool {
	return u.Status == domain.StatusApproved && u.HandbookCompleted
}

func Evaluate(u domain.User) Gates {
	return Gates{
		Handbook: CanAccessHandbook(u),
		SOPs:     CanAccessSOPs(u),
	}
}

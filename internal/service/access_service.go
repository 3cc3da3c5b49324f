package service

import (
	"context"
	"errors"
	"log/slog"

	"staffbook-backend/internal/access"
	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/workflow"
)

// AccessService evaluates the progressive-unlock gates from stored state.
type AccessService struct {
	Users    ports.UserStore
	Handbook ports.HandbookStore
	Logger   *slog.Logger
}

// Resolution is a user with freshly evaluated gates.
type Resolution struct {
	User     domain.User
	Gates    access.Gates
	Sections []domain.SectionState
}

// Resolve loads the user, recomputes handbook completion and persists the
// flag when it drifted.
func (s AccessService) Resolve(ctx context.Context, userID int64) (*Resolution, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperr.ErrInvalidToken
		}
		return nil, err
	}
	states, err := s.SectionStates(ctx, *u)
	if err != nil {
		return nil, err
	}
	if err := s.syncHandbookFlag(ctx, u, states); err != nil {
		return nil, err
	}
	return &Resolution{User: *u, Gates: access.Evaluate(*u), Sections: states}, nil
}

func (s AccessService) RequireHandbook(ctx context.Context, userID int64) (*Resolution, error) {
	res, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !res.Gates.Handbook {
		return nil, apperr.ErrHandbookLocked
	}
	return res, nil
}

func (s AccessService) RequireSOPs(ctx context.Context, userID int64) (*Resolution, error) {
	res, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !res.Gates.SOPs {
		return nil, apperr.ErrSOPsLocked
	}
	return res, nil
}

// SectionStates builds every company section as seen by u.
func (s AccessService) SectionStates(ctx context.Context, u domain.User) ([]domain.SectionState, error) {
	sections, err := s.Handbook.ListSections(ctx, u.CompanyID)
	if err != nil {
		return nil, err
	}
	completions, err := s.Handbook.ListPolicyCompletions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	signatures, err := s.Handbook.ListSignatures(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	bySection := make(map[int64]map[int64]domain.PolicyCompletion)
	for _, c := range completions {
		if bySection[c.SectionID] == nil {
			bySection[c.SectionID] = make(map[int64]domain.PolicyCompletion)
		}
		bySection[c.SectionID][c.PolicyID] = c
	}
	sigs := make(map[int64]domain.Signature, len(signatures))
	for _, sig := range signatures {
		sigs[sig.SectionID] = sig
	}

	states := make([]domain.SectionState, 0, len(sections))
	for _, sec := range sections {
		var sig *domain.Signature
		if v, ok := sigs[sec.ID]; ok {
			sig = &v
		}
		done := bySection[sec.ID]
		if done == nil {
			done = map[int64]domain.PolicyCompletion{}
		}
		states = append(states, workflow.BuildSectionState(sec, done, sig))
	}
	return states, nil
}

// SyncCompany recomputes the cached handbook flag of every user in the
// company. Run it when the set of sections changes.
func (s AccessService) SyncCompany(ctx context.Context, companyID int64) error {
	users, err := s.Users.ListByCompany(ctx, companyID, "")
	if err != nil {
		return err
	}
	for i := range users {
		states, err := s.SectionStates(ctx, users[i])
		if err != nil {
			return err
		}
		if err := s.syncHandbookFlag(ctx, &users[i], states); err != nil {
			return err
		}
	}
	return nil
}

func (s AccessService) syncHandbookFlag(ctx context.Context, u *domain.User, states []domain.SectionState) error {
	complete := workflow.HandbookComplete(states)
	if complete == u.HandbookCompleted {
		return nil
	}
	if err := s.Users.SetHandbookCompleted(ctx, u.ID, complete); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("handbook completion changed", "user_id", u.ID, "completed", complete)
	}
	u.HandbookCompleted = complete
	return nil
}

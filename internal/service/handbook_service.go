package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"staffbook-backend/internal/access"
	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/metrics"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/workflow"
)

type HandbookService struct {
	Users    ports.UserStore
	Handbook ports.HandbookStore
	Access   AccessService
	Activity ports.ActivityStore
	Logger   *slog.Logger
	Clock    Clock
}

type SectionInput struct {
	SectionNumber     int
	Title             string
	Description       string
	RequiresSignature bool
	Policies          []PolicyInput
}

type PolicyInput struct {
	Title    string
	Content  string
	Required bool
}

type SignInput struct {
	UserID        int64
	SectionID     int64
	SignatureData string
	IPAddress     string
	UserAgent     string
}

// HandbookProgress summarizes a user's standing across all sections.
type HandbookProgress struct {
	TotalSections     int
	CompletedSections int
	Percentage        int
	HandbookCompleted bool
	Gates             access.Gates
}

func (s HandbookService) CreateSection(ctx context.Context, actorID int64, in SectionInput) (*domain.HandbookSection, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.SectionNumber < 0 {
		return nil, apperr.Validation("sectionNumber must not be negative; use 0 to append")
	}
	section := domain.HandbookSection{
		CompanyID:         actor.CompanyID,
		SectionNumber:     in.SectionNumber,
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		RequiresSignature: in.RequiresSignature,
	}
	for i, p := range in.Policies {
		if strings.TrimSpace(p.Title) == "" {
			return nil, apperr.Validation("policy %d: title is required", i+1)
		}
		section.Policies = append(section.Policies, domain.Policy{
			Title:     strings.TrimSpace(p.Title),
			Content:   p.Content,
			Required:  p.Required,
			SortOrder: i + 1,
		})
	}
	created, err := s.Handbook.CreateSection(ctx, section)
	if err != nil {
		return nil, err
	}
	// a new section reopens the handbook for everyone who had finished it
	if err := s.Access.SyncCompany(ctx, actor.CompanyID); err != nil {
		s.log().Error("resync handbook flags", "company_id", actor.CompanyID, "err", err)
	}
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: actor.CompanyID,
		ActorID:   &actor.ID,
		Action:    "handbook.section_created",
		Entity:    "handbook_section",
		EntityID:  &created.ID,
		Message:   fmt.Sprintf("section %d: %s", created.SectionNumber, created.Title),
		LoggedAt:  s.Clock.now(),
	})
	return created, nil
}

// ListSections returns every section with the caller's progress.
func (s HandbookService) ListSections(ctx context.Context, userID int64) ([]domain.SectionState, error) {
	res, err := s.Access.RequireHandbook(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res.Sections, nil
}

func (s HandbookService) GetSection(ctx context.Context, userID, sectionID int64) (*domain.SectionState, error) {
	res, err := s.Access.RequireHandbook(ctx, userID)
	if err != nil {
		return nil, err
	}
	return findSection(res.Sections, sectionID)
}

func (s HandbookService) Progress(ctx context.Context, userID int64) (*HandbookProgress, error) {
	res, err := s.Access.RequireHandbook(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := HandbookProgress{
		TotalSections:     len(res.Sections),
		HandbookCompleted: res.User.HandbookCompleted,
		Gates:             res.Gates,
	}
	for _, st := range res.Sections {
		if st.Complete {
			p.CompletedSections++
		}
	}
	if p.TotalSections > 0 {
		p.Percentage = (p.CompletedSections*100 + p.TotalSections/2) / p.TotalSections
	}
	return &p, nil
}

// SetPolicyCompletion records a checkbox state; the latest write wins.
func (s HandbookService) SetPolicyCompletion(ctx context.Context, userID, sectionID, policyID int64, completed bool) (*domain.SectionState, error) {
	res, err := s.Access.RequireHandbook(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := findSection(res.Sections, sectionID)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(state.Section.Policies, func(p domain.Policy) bool { return p.ID == policyID }) {
		return nil, apperr.NotFound("policy")
	}
	c := domain.PolicyCompletion{
		UserID:    userID,
		SectionID: sectionID,
		PolicyID:  policyID,
		Completed: completed,
	}
	if completed {
		c.CompletedAt = ptr(s.Clock.now())
	}
	if _, err := s.Handbook.UpsertPolicyCompletion(ctx, c); err != nil {
		return nil, err
	}
	after, err := s.Access.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return findSection(after.Sections, sectionID)
}

// SignSection signs a fully read section. An existing signature is reported
// before readiness.
func (s HandbookService) SignSection(ctx context.Context, in SignInput) (*domain.Signature, error) {
	res, err := s.Access.RequireHandbook(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	state, err := findSection(res.Sections, in.SectionID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckSignable(state.Progress, state.Signature != nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SignatureData) == "" {
		return nil, apperr.Validation("signatureData is required")
	}
	sig, err := s.Handbook.CreateSignature(ctx, domain.Signature{
		UserID:        in.UserID,
		SectionID:     in.SectionID,
		SignatureData: in.SignatureData,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		SignedAt:      s.Clock.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition("handbook_section", "signed")

	after, err := s.Access.Resolve(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: after.User.CompanyID,
		ActorID:   &in.UserID,
		Action:    "handbook.section_signed",
		Entity:    "handbook_section",
		EntityID:  &in.SectionID,
		Message:   fmt.Sprintf("%s signed section %d", after.User.Name, state.Section.SectionNumber),
		LoggedAt:  sig.SignedAt,
	})
	if after.User.HandbookCompleted && !res.User.HandbookCompleted {
		metrics.Transition("handbook", "completed")
		audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
			CompanyID: after.User.CompanyID,
			ActorID:   &in.UserID,
			Action:    "handbook.completed",
			Entity:    "user",
			EntityID:  &in.UserID,
			LoggedAt:  sig.SignedAt,
		})
	}
	return sig, nil
}

func (s HandbookService) ComplianceReport(ctx context.Context, actorID int64) ([]domain.ComplianceRow, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	return s.Handbook.ComplianceReport(ctx, actor.CompanyID)
}

func findSection(states []domain.SectionState, sectionID int64) (*domain.SectionState, error) {
	for i := range states {
		if states[i].Section.ID == sectionID {
			return &states[i], nil
		}
	}
	return nil, apperr.NotFound("section")
}

func (s HandbookService) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

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

type IncidentService struct {
	Users     ports.UserStore
	Incidents ports.IncidentStore
	Notifier  Notifier
	Activity  ports.ActivityStore
	Logger    *slog.Logger
	Clock     Clock
}

type IncidentInput struct {
	Title       string
	Description string
	Location    string
	Severity    domain.IncidentSeverity
	OccurredAt  *time.Time
	Witnesses   []domain.Witness
	MediaURLs   []string
}

type IncidentQuery struct {
	Status domain.IncidentStatus
	From   *time.Time
	To     *time.Time
}

// CreateIncident stores a report from any role and alerts every manager
// and owner of the company.
func (s IncidentService) CreateIncident(ctx context.Context, reporterID int64, in IncidentInput) (*domain.Incident, error) {
	reporter, err := loadActor(ctx, s.Users, reporterID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if !in.Severity.Valid() {
		return nil, apperr.Validation("severity must be low, medium, high or critical")
	}
	for i, w := range in.Witnesses {
		if strings.TrimSpace(w.Name) == "" {
			return nil, apperr.Validation("witness %d: name is required", i+1)
		}
	}
	for _, m := range in.MediaURLs {
		if !storage.IsObjectPath(m) {
			return nil, apperr.Validation("media %q is not an uploaded object", m)
		}
	}
	if in.OccurredAt != nil && in.OccurredAt.After(s.Clock.now().Add(5*time.Minute)) {
		return nil, apperr.Validation("occurredAt is in the future")
	}
	incident, err := s.Incidents.Create(ctx, domain.Incident{
		CompanyID:   reporter.CompanyID,
		ReportedBy:  reporter.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		Severity:    in.Severity,
		OccurredAt:  in.OccurredAt,
		Witnesses:   in.Witnesses,
		MediaURLs:   in.MediaURLs,
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition("incident", string(domain.IncidentOpen))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: incident.CompanyID,
		ActorID:   &reporter.ID,
		Action:    "incident.reported",
		Entity:    "incident",
		EntityID:  &incident.ID,
		Message:   fmt.Sprintf("%s severity: %s", incident.Severity, incident.Title),
		LoggedAt:  s.Clock.now(),
	})
	s.notifyManagers(ctx, reporter, incident)
	return incident, nil
}

func (s IncidentService) notifyManagers(ctx context.Context, reporter *domain.User, in *domain.Incident) {
	if s.Notifier == nil {
		return
	}
	managers, err := s.Users.ListManagement(ctx, in.CompanyID)
	if err != nil {
		s.log().Error("load managers for incident notice failed", "incident_id", in.ID, "err", err)
		return
	}
	ids := make([]int64, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	typ := domain.NotificationWarning
	if in.Severity == domain.SeverityHigh || in.Severity == domain.SeverityCritical {
		typ = domain.NotificationError
	}
	s.Notifier.Notify(ctx, in.CompanyID, ids, Message{
		Title:   "Incident reported",
		Message: fmt.Sprintf("%s reported %q (%s)", reporter.Name, in.Title, in.Severity),
		Type:    typ,
		Action:  domain.OpenIncidentAction{IncidentID: in.ID, Severity: in.Severity},
	})
}

// ListIncidents shows management every report and staff their own.
func (s IncidentService) ListIncidents(ctx context.Context, actorID int64, q IncidentQuery) ([]domain.Incident, error) {
	actor, err := loadActor(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	f := ports.IncidentFilter{CompanyID: actor.CompanyID, Status: q.Status, From: q.From, To: q.To}
	if !actor.Role.IsManagement() {
		f.ReportedBy = actor.ID
	}
	return s.Incidents.List(ctx, f)
}

func (s IncidentService) GetIncident(ctx context.Context, actorID, id int64) (*domain.Incident, error) {
	actor, err := loadActor(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	in, err := s.Incidents.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFound(err, "incident")
	}
	if !actor.Role.IsManagement() && in.ReportedBy != actor.ID {
		return nil, apperr.NotFound("incident")
	}
	return in, nil
}

// UpdateStatus is restricted to management.
func (s IncidentService) UpdateStatus(ctx context.Context, actorID, id int64, to domain.IncidentStatus, resolution string) (*domain.Incident, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	in, err := s.Incidents.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFound(err, "incident")
	}
	if err := workflow.IncidentTransition(in.Status, to); err != nil {
		return nil, err
	}
	updated, err := s.Incidents.UpdateStatus(ctx, in.ID, in.Status, to, strings.TrimSpace(resolution))
	if err != nil {
		return nil, stale(err, string(in.Status), string(to))
	}
	metrics.Transition("incident", string(to))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: actor.CompanyID,
		ActorID:   &actor.ID,
		Action:    "incident." + string(to),
		Entity:    "incident",
		EntityID:  &updated.ID,
		Message:   updated.Title,
		LoggedAt:  s.Clock.now(),
	})
	return updated, nil
}

func (s IncidentService) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

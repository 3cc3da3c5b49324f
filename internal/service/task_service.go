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
	"staffbook-backend/internal/workflow"
)

type TaskService struct {
	Users    ports.UserStore
	Tasks    ports.TaskStore
	Notifier Notifier
	Activity ports.ActivityStore
	Logger   *slog.Logger
	Clock    Clock
}

type TaskInput struct {
	Title       string
	Description string
	AssignedTo  int64
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// CreateTask assigns work and notifies the assignee once the task is stored.
func (s TaskService) CreateTask(ctx context.Context, assignerID int64, in TaskInput) (*domain.Task, error) {
	assigner, err := requireManager(ctx, s.Users, assignerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("priority must be low, medium, high or urgent")
	}
	assignee, err := sameCompanyUser(ctx, s.Users, assigner.CompanyID, in.AssignedTo)
	if err != nil {
		return nil, err
	}
	if disabled(assignee) {
		return nil, apperr.Validation("assignee account is not active")
	}
	task, err := s.Tasks.Create(ctx, domain.Task{
		CompanyID:   assigner.CompanyID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		AssignedBy:  assigner.ID,
		AssignedTo:  assignee.ID,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition("task", string(domain.TaskPending))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: task.CompanyID,
		ActorID:   &assigner.ID,
		Action:    "task.created",
		Entity:    "task",
		EntityID:  &task.ID,
		Message:   fmt.Sprintf("%s assigned %q to %s", assigner.Name, task.Title, assignee.Name),
		LoggedAt:  s.Clock.now(),
	})
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, task.CompanyID, []int64{assignee.ID}, Message{
			Title:   "New task assigned",
			Message: task.Title,
			Type:    taskNotificationType(task.Priority),
			Action:  domain.OpenTaskAction{TaskID: task.ID, Priority: task.Priority},
		})
	}
	return task, nil
}

func taskNotificationType(p domain.TaskPriority) domain.NotificationType {
	if p == domain.PriorityHigh || p == domain.PriorityUrgent {
		return domain.NotificationWarning
	}
	return domain.NotificationInfo
}

// ListTasks shows management every company task and staff their own.
func (s TaskService) ListTasks(ctx context.Context, actorID int64, status domain.TaskStatus) ([]domain.Task, error) {
	actor, err := loadActor(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	f := ports.TaskFilter{CompanyID: actor.CompanyID, Status: status}
	if !actor.Role.IsManagement() {
		f.AssignedTo = actor.ID
	}
	return s.Tasks.List(ctx, f)
}

// UpdateStatus moves a task. The assignee may start or complete it; only
// management may cancel or act on tasks of others.
func (s TaskService) UpdateStatus(ctx context.Context, actorID, taskID int64, to domain.TaskStatus) (*domain.Task, error) {
	actor, err := loadActor(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.Tasks.Get(ctx, actor.CompanyID, taskID)
	if err != nil {
		return nil, notFound(err, "task")
	}
	manager := actor.Role.IsManagement() && actor.Status != domain.StatusPending
	if !manager {
		if task.AssignedTo != actor.ID {
			return nil, apperr.NotFound("task")
		}
		if to == domain.TaskCancelled {
			return nil, apperr.ErrForbidden
		}
	}
	if err := workflow.TaskTransition(task.Status, to); err != nil {
		return nil, err
	}
	var completedAt *time.Time
	if to == domain.TaskCompleted {
		completedAt = ptr(s.Clock.now())
	}
	updated, err := s.Tasks.UpdateStatus(ctx, task.ID, task.Status, to, completedAt)
	if err != nil {
		return nil, stale(err, string(task.Status), string(to))
	}
	metrics.Transition("task", string(to))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: actor.CompanyID,
		ActorID:   &actor.ID,
		Action:    "task." + string(to),
		Entity:    "task",
		EntityID:  &updated.ID,
		Message:   updated.Title,
		LoggedAt:  s.Clock.now(),
	})
	return updated, nil
}

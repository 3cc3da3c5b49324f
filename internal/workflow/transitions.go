package workflow

import (
	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
)

var userTransitions = map[domain.UserStatus][]domain.UserStatus{
	domain.StatusPending:  {domain.StatusApproved, domain.StatusRejected},
	domain.StatusApproved: {domain.StatusInactive},
	domain.StatusActive:   {domain.StatusInactive},
	domain.StatusInactive: {domain.StatusApproved},
}

var taskTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskPending:    {domain.TaskInProgress, domain.TaskCompleted, domain.TaskCancelled},
	domain.TaskInProgress: {domain.TaskCompleted, domain.TaskCancelled},
}

var incidentTransitions = map[domain.IncidentStatus][]domain.IncidentStatus{
	domain.IncidentOpen:        {domain.IncidentUnderReview, domain.IncidentResolved, domain.IncidentClosed},
	domain.IncidentUnderReview: {domain.IncidentResolved, domain.IncidentClosed},
	domain.IncidentResolved:    {domain.IncidentClosed, domain.IncidentUnderReview},
}

func allowed[S ~string](table map[S][]S, from, to S) error {
	for _, s := range table[from] {
		if s == to {
			return nil
		}
	}
	return apperr.Transition(string(from), string(to))
}

// UserTransition checks an approval-state move. Rejected is terminal and
// nothing leaves pending except approve or reject.
func UserTransition(from, to domain.UserStatus) error {
	return allowed(userTransitions, from, to)
}

// TaskTransition checks a task lifecycle move; completed and cancelled are terminal.
func TaskTransition(from, to domain.TaskStatus) error {
	return allowed(taskTransitions, from, to)
}

// IncidentTransition checks an incident review move; closed is terminal.
func IncidentTransition(from, to domain.IncidentStatus) error {
	return allowed(incidentTransitions, from, to)
}

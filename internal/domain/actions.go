package domain

import (
	"encoding/json"
	"fmt"
)

// ActionType tags the follow-up a notification links to.
type ActionType string

const (
	ActionReviewRegistration ActionType = "review_registration"
	ActionOpenTask           ActionType = "open_task"
	ActionOpenIncident       ActionType = "open_incident"
	ActionOpenHandbook       ActionType = "open_handbook"
)

// Action is a closed set of notification payloads. Only types in this
// package implement it.
type Action interface {
	ActionType() ActionType
	isAction()
}

type ReviewRegistrationAction struct {
	UserID int64    `json:"userId"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
}

type OpenTaskAction struct {
	TaskID   int64        `json:"taskId"`
	Priority TaskPriority `json:"priority"`
}

type OpenIncidentAction struct {
	IncidentID int64            `json:"incidentId"`
	Severity   IncidentSeverity `json:"severity"`
}

type OpenHandbookAction struct {
	Status UserStatus `json:"status"`
}

func (ReviewRegistrationAction) ActionType() ActionType { return ActionReviewRegistration }
func (OpenTaskAction) ActionType() ActionType           { return ActionOpenTask }
func (OpenIncidentAction) ActionType() ActionType       { return ActionOpenIncident }
func (OpenHandbookAction) ActionType() ActionType       { return ActionOpenHandbook }

func (ReviewRegistrationAction) isAction() {}
func (OpenTaskAction) isAction()           {}
func (OpenIncidentAction) isAction()       {}
func (OpenHandbookAction) isAction()       {}

// EncodeAction splits an action into its tag and JSON payload. A nil action
// encodes to an empty tag.
func EncodeAction(a Action) (ActionType, []byte, error) {
	if a == nil {
		return "", nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s action: %w", a.ActionType(), err)
	}
	return a.ActionType(), data, nil
}

// DecodeAction rebuilds the typed payload for a stored tag.
func DecodeAction(t ActionType, data []byte) (Action, error) {
	if t == "" {
		return nil, nil
	}
	switch t {
	case ActionReviewRegistration:
		var a ReviewRegistrationAction
		if err := decodeInto(t, data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionOpenTask:
		var a OpenTaskAction
		if err := decodeInto(t, data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionOpenIncident:
		var a OpenIncidentAction
		if err := decodeInto(t, data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionOpenHandbook:
		var a OpenHandbookAction
		if err := decodeInto(t, data, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
}

func decodeInto(t ActionType, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s action: %w", t, err)
	}
	return nil
}

package handler

import (
	"time"

	"staffbook-backend/internal/access"
	"staffbook-backend/internal/domain"
)

func userPayload(u domain.User) map[string]any {
	var startDate any
	if u.StartDate != nil {
		startDate = u.StartDate.Format(dateLayout)
	}
	return map[string]any{
		"id":                    u.ID,
		"companyId":             u.CompanyID,
		"name":                  u.Name,
		"email":                 u.Email,
		"role":                  string(u.Role),
		"status":                string(u.Status),
		"phone":                 u.Phone,
		"address":               u.Address,
		"position":              u.Position,
		"emergencyContactName":  u.EmergencyContactName,
		"emergencyContactPhone": u.EmergencyContactPhone,
		"startDate":             startDate,
		"onboardingCompleted":   u.OnboardingCompleted,
		"handbookCompleted":     u.HandbookCompleted,
		"approvedBy":            u.ApprovedBy,
		"approvedAt":            formatTime(u.ApprovedAt),
		"rejectionReason":       u.RejectionReason,
		"createdAt":             u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func gatesPayload(g access.Gates) map[string]bool {
	return map[string]bool{
		"handbook": g.Handbook,
		"sops":     g.SOPs,
	}
}

func sectionPayload(s domain.HandbookSection) map[string]any {
	policies := make([]map[string]any, 0, len(s.Policies))
	for _, p := range s.Policies {
		policies = append(policies, map[string]any{
			"id":        p.ID,
			"title":     p.Title,
			"content":   p.Content,
			"required":  p.Required,
			"sortOrder": p.SortOrder,
		})
	}
	return map[string]any{
		"id":                s.ID,
		"sectionNumber":     s.SectionNumber,
		"title":             s.Title,
		"description":       s.Description,
		"requiresSignature": s.RequiresSignature,
		"policies":          policies,
	}
}

func sectionStatePayload(st domain.SectionState) map[string]any {
	out := sectionPayload(st.Section)
	completed := make([]int64, 0, len(st.Completions))
	for _, p := range st.Section.Policies {
		if c, ok := st.Completions[p.ID]; ok && c.Completed {
			completed = append(completed, p.ID)
		}
	}
	out["completedPolicies"] = completed
	out["progress"] = map[string]int{
		"completed":  st.Progress.Completed,
		"total":      st.Progress.Total,
		"percentage": st.Progress.Percentage,
	}
	out["complete"] = st.Complete
	out["signed"] = st.Signature != nil
	if st.Signature != nil {
		out["signedAt"] = st.Signature.SignedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func sopPayload(s domain.SOP) map[string]any {
	steps := make([]map[string]any, 0, len(s.Steps))
	for _, st := range s.Steps {
		steps = append(steps, map[string]any{
			"id":               st.ID,
			"stepNumber":       st.StepNumber,
			"title":            st.Title,
			"description":      st.Description,
			"required":         st.Required,
			"estimatedMinutes": st.EstimatedMinutes,
		})
	}
	return map[string]any{
		"id":          s.ID,
		"title":       s.Title,
		"description": s.Description,
		"category":    s.Category,
		"createdBy":   s.CreatedBy,
		"steps":       steps,
		"createdAt":   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func executionPayload(e domain.SOPExecution, elapsed time.Duration) map[string]any {
	completed := e.CompletedSteps
	if completed == nil {
		completed = []int64{}
	}
	return map[string]any{
		"id":             e.ID,
		"sopId":          e.SOPID,
		"userId":         e.UserID,
		"status":         string(e.Status),
		"currentStep":    e.CurrentStep,
		"completedSteps": completed,
		"startedAt":      e.StartedAt.UTC().Format(time.RFC3339),
		"completedAt":    formatTime(e.CompletedAt),
		"elapsedSeconds": int64(elapsed / time.Second),
	}
}

func taskPayload(t domain.Task) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"assignedBy":  t.AssignedBy,
		"assignedTo":  t.AssignedTo,
		"priority":    string(t.Priority),
		"status":      string(t.Status),
		"dueDate":     formatTime(t.DueDate),
		"completedAt": formatTime(t.CompletedAt),
		"createdAt":   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func incidentPayload(in domain.Incident) map[string]any {
	witnesses := in.Witnesses
	if witnesses == nil {
		witnesses = []domain.Witness{}
	}
	media := in.MediaURLs
	if media == nil {
		media = []string{}
	}
	return map[string]any{
		"id":          in.ID,
		"reportedBy":  in.ReportedBy,
		"title":       in.Title,
		"description": in.Description,
		"location":    in.Location,
		"severity":    string(in.Severity),
		"status":      string(in.Status),
		"occurredAt":  formatTime(in.OccurredAt),
		"witnesses":   witnesses,
		"mediaUrls":   media,
		"resolution":  in.Resolution,
		"createdAt":   in.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func notificationPayload(n domain.Notification) map[string]any {
	out := map[string]any{
		"id":        n.ID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      string(n.Type),
		"read":      n.ReadAt != nil,
		"timestamp": n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.Action != nil {
		out["actionType"] = string(n.Action.ActionType())
		out["actionData"] = n.Action
	}
	return out
}

func activityPayload(l domain.ActivityLog) map[string]any {
	return map[string]any{
		"id":        l.ID,
		"actorId":   l.ActorID,
		"action":    l.Action,
		"entity":    l.Entity,
		"entityId":  l.EntityID,
		"message":   l.Message,
		"timestamp": l.LoggedAt.UTC().Format(time.RFC3339),
	}
}

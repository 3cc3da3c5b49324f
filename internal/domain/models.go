package domain

import "time"

// Enumerations
const (
	RoleEmployee UserRole = "employee"
	RoleManager  UserRole = "manager"
	RoleOwner    UserRole = "owner"

	StatusPending  UserStatus = "pending"
	StatusApproved UserStatus = "approved"
	StatusRejected UserStatus = "rejected"
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"

	ExecutionNotStarted ExecutionStatus = "not_started"
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionPaused     ExecutionStatus = "paused"
	ExecutionCompleted  ExecutionStatus = "completed"

	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"

	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"

	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"

	IncidentOpen        IncidentStatus = "open"
	IncidentUnderReview IncidentStatus = "under_review"
	IncidentResolved    IncidentStatus = "resolved"
	IncidentClosed      IncidentStatus = "closed"

	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type UserRole string
type UserStatus string
type ExecutionStatus string
type TaskStatus string
type TaskPriority string
type IncidentSeverity string
type IncidentStatus string
type NotificationType string

// IsManagement reports whether the role may approve users and assign work.
func (r UserRole) IsManagement() bool {
	return r == RoleManager || r == RoleOwner
}

func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleOwner:
		return true
	}
	return false
}

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (s IncidentSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Company struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID                    int64
	CompanyID             int64
	Name                  string
	Email                 string
	PasswordHash          *string
	Role                  UserRole
	Status                UserStatus
	Phone                 string
	Address               string
	Position              string
	EmergencyContactName  string
	EmergencyContactPhone string
	StartDate             *time.Time
	OnboardingCompleted   bool
	HandbookCompleted     bool
	ApprovedBy            *int64
	ApprovedAt            *time.Time
	RejectionReason       string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// OnboardingProfile is the information collected by the onboarding form.
type OnboardingProfile struct {
	Phone                 string
	Address               string
	Position              string
	EmergencyContactName  string
	EmergencyContactPhone string
	StartDate             *time.Time
}

type HandbookSection struct {
	ID                int64
	CompanyID         int64
	SectionNumber     int
	Title             string
	Description       string
	RequiresSignature bool
	Policies          []Policy
	CreatedAt         time.Time
}

type Policy struct {
	ID        int64
	SectionID int64
	Title     string
	Content   string
	Required  bool
	SortOrder int
}

type PolicyCompletion struct {
	ID          int64
	UserID      int64
	SectionID   int64
	PolicyID    int64
	Completed   bool
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

type Signature struct {
	ID            int64
	UserID        int64
	SectionID     int64
	SignatureData string
	IPAddress     string
	UserAgent     string
	SignedAt      time.Time
}

// SectionProgress aggregates required-policy completion for one user.
type SectionProgress struct {
	Completed  int
	Total      int
	Percentage int
}

// SectionState is a section as seen by one user.
type SectionState struct {
	Section     HandbookSection
	Progress    SectionProgress
	Completions map[int64]PolicyCompletion
	Signature   *Signature
	Complete    bool
}

type SOP struct {
	ID          int64
	CompanyID   int64
	Title       string
	Description string
	Category    string
	CreatedBy   *int64
	Steps       []SOPStep
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SOPStep struct {
	ID               int64
	SOPID            int64
	StepNumber       int
	Title            string
	Description      string
	Required         bool
	EstimatedMinutes int
}

type SOPExecution struct {
	ID                int64
	UserID            int64
	SOPID             int64
	Status            ExecutionStatus
	CurrentStep       int
	CompletedSteps    []int64
	StartedAt         time.Time
	ResumedAt         *time.Time
	AccumulatedMillis int64
	CompletedAt       *time.Time
	UpdatedAt         time.Time
}

type SOPStepCompletion struct {
	ID          int64
	ExecutionID int64
	StepID      int64
	Notes       string
	MediaURLs   []string
	CompletedAt time.Time
}

type Task struct {
	ID          int64
	CompanyID   int64
	Title       string
	Description string
	AssignedBy  int64
	AssignedTo  int64
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Witness struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Statement string `json:"statement"`
}

type Incident struct {
	ID          int64
	CompanyID   int64
	ReportedBy  int64
	Title       string
	Description string
	Location    string
	Severity    IncidentSeverity
	Status      IncidentStatus
	OccurredAt  *time.Time
	Witnesses   []Witness
	MediaURLs   []string
	Resolution  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Notification struct {
	ID        int64
	CompanyID int64
	UserID    int64
	Title     string
	Message   string
	Type      NotificationType
	Action    Action
	CreatedAt time.Time
	ReadAt    *time.Time
}

type DeviceToken struct {
	ID        int64
	UserID    int64
	Token     string
	Platform  string
	CreatedAt time.Time
}

type ActivityLog struct {
	ID        int64
	CompanyID int64
	ActorID   *int64
	Action    string
	Entity    string
	EntityID  *int64
	Message   string
	LoggedAt  time.Time
}

// Stats is the management dashboard summary.
type Stats struct {
	TotalEmployees      int
	PendingApprovals    int
	ActiveTasks         int
	OverdueTasks        int
	OpenIncidents       int
	CompletedExecutions int
	ComplianceRate      int
	TrainingProgress    int
}

// ComplianceRow is one user's handbook standing for reports.
type ComplianceRow struct {
	UserID            int64
	Name              string
	Email             string
	Role              UserRole
	HandbookCompleted bool
	SectionsSigned    int
	SectionsRequired  int
	LastSignedAt      *time.Time
}

// MediaObject is an upload slot owned by the user and company that reserved
// it. StoredAt is set once the bytes are written; objects are write-once.
type MediaObject struct {
	ID         string
	CompanyID  int64
	UploaderID int64
	Size       int64
	CreatedAt  time.Time
	StoredAt   *time.Time
}

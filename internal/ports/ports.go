// Package ports declares the storage and delivery contracts the services
// depend on. internal/repository implements them on Postgres.
package ports

import (
	"context"
	"errors"
	"time"

	"staffbook-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a conditional write finds the row no longer
	// in the expected state.
	ErrStale = errors.New("record changed concurrently")
)

// HealthChecker checks that dependencies are reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type NewUser struct {
	CompanyID           int64
	Name                string
	Email               string
	PasswordHash        string
	Role                domain.UserRole
	Status              domain.UserStatus
	Phone               string
	Position            string
	OnboardingCompleted bool
}

// StatusChange moves a user from one approval state to another. The write
// only applies while the stored status still equals From.
type StatusChange struct {
	UserID     int64
	CompanyID  int64
	From       domain.UserStatus
	To         domain.UserStatus
	ApprovedBy *int64
	ApprovedAt *time.Time
	Reason     string
}

type CompanyStore interface {
	CreateWithOwner(ctx context.Context, name string, owner NewUser) (*domain.Company, *domain.User, error)
	Get(ctx context.Context, id int64) (*domain.Company, error)
}

type UserStore interface {
	Create(ctx context.Context, u NewUser) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByCompany(ctx context.Context, companyID int64, status domain.UserStatus) ([]domain.User, error)
	ListManagement(ctx context.Context, companyID int64) ([]domain.User, error)
	UpdateStatus(ctx context.Context, ch StatusChange) (*domain.User, error)
	SaveOnboarding(ctx context.Context, userID int64, p domain.OnboardingProfile) (*domain.User, error)
	SetHandbookCompleted(ctx context.Context, userID int64, completed bool) error
}

type HandbookStore interface {
	CreateSection(ctx context.Context, s domain.HandbookSection) (*domain.HandbookSection, error)
	ListSections(ctx context.Context, companyID int64) ([]domain.HandbookSection, error)
	GetSection(ctx context.Context, companyID, sectionID int64) (*domain.HandbookSection, error)
	UpsertPolicyCompletion(ctx context.Context, c domain.PolicyCompletion) (*domain.PolicyCompletion, error)
	ListPolicyCompletions(ctx context.Context, userID int64) ([]domain.PolicyCompletion, error)
	ListSignatures(ctx context.Context, userID int64) ([]domain.Signature, error)
	CreateSignature(ctx context.Context, sig domain.Signature) (*domain.Signature, error)
	ComplianceReport(ctx context.Context, companyID int64) ([]domain.ComplianceRow, error)
}

type SOPStore interface {
	CreateSOP(ctx context.Context, sop domain.SOP) (*domain.SOP, error)
	ListSOPs(ctx context.Context, companyID int64) ([]domain.SOP, error)
	GetSOP(ctx context.Context, companyID, sopID int64) (*domain.SOP, error)
}

type ExecutionStore interface {
	CreateExecution(ctx context.Context, e domain.SOPExecution) (*domain.SOPExecution, error)
	GetExecution(ctx context.Context, id int64) (*domain.SOPExecution, error)
	ActiveExecution(ctx context.Context, userID, sopID int64) (*domain.SOPExecution, error)
	ListExecutions(ctx context.Context, userID int64) ([]domain.SOPExecution, error)
	ListStepCompletions(ctx context.Context, executionID int64) ([]domain.SOPStepCompletion, error)
	// RecordStep stores a step completion and raises current_step. It reports
	// false when the step was already recorded.
	RecordStep(ctx context.Context, c domain.SOPStepCompletion, currentStep int) (bool, error)
	UpdateExecution(ctx context.Context, e domain.SOPExecution, from ...domain.ExecutionStatus) (*domain.SOPExecution, error)
	DeleteExecution(ctx context.Context, id int64, from ...domain.ExecutionStatus) error
}

type TaskFilter struct {
	CompanyID  int64
	AssignedTo int64
	Status     domain.TaskStatus
	Limit      int
}

type TaskStore interface {
	Create(ctx context.Context, t domain.Task) (*domain.Task, error)
	Get(ctx context.Context, companyID, id int64) (*domain.Task, error)
	List(ctx context.Context, f TaskFilter) ([]domain.Task, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.TaskStatus, completedAt *time.Time) (*domain.Task, error)
}

type IncidentFilter struct {
	CompanyID  int64
	ReportedBy int64
	Status     domain.IncidentStatus
	From       *time.Time
	To         *time.Time
	Limit      int
}

type IncidentStore interface {
	Create(ctx context.Context, in domain.Incident) (*domain.Incident, error)
	Get(ctx context.Context, companyID, id int64) (*domain.Incident, error)
	List(ctx context.Context, f IncidentFilter) ([]domain.Incident, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.IncidentStatus, resolution string) (*domain.Incident, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	List(ctx context.Context, userID int64, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

type DeviceTokenStore interface {
	Register(ctx context.Context, userID int64, token, platform string) error
	TokensForUser(ctx context.Context, userID int64) ([]string, error)
	Remove(ctx context.Context, token string) error
}

type ActivityStore interface {
	Record(ctx context.Context, l domain.ActivityLog) error
	List(ctx context.Context, companyID int64, limit int) ([]domain.ActivityLog, error)
}

type StatsStore interface {
	Summary(ctx context.Context, companyID int64, now time.Time) (*domain.Stats, error)
}

// MediaStore records who reserved each upload slot.
type MediaStore interface {
	CreateObject(ctx context.Context, o domain.MediaObject) error
	GetObject(ctx context.Context, id string) (*domain.MediaObject, error)
	// MarkStored stamps the object as written. It returns ErrStale when the
	// object was already stored.
	MarkStored(ctx context.Context, id string, size int64, at time.Time) error
}

// Pusher delivers a notification to a user's devices.
type Pusher interface {
	Push(ctx context.Context, userID int64, title, body string, data map[string]string) error
}

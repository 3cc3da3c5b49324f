package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/config"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
)

type memUsers struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	companies map[int64]domain.Company
	next      int64
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[int64]*domain.User{}, companies: map[int64]domain.Company{}}
}

func (m *memUsers) CreateWithOwner(ctx context.Context, name string, owner ports.NewUser) (*domain.Company, *domain.User, error) {
	m.mu.Lock()
	m.next++
	c := domain.Company{ID: m.next, Name: name}
	m.companies[c.ID] = c
	m.mu.Unlock()
	owner.CompanyID = c.ID
	u, err := m.Create(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	return &c, u, nil
}

func (m *memUsers) Get(_ context.Context, id int64) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &c, nil
}

func (m *memUsers) Create(_ context.Context, p ports.NewUser) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, p.Email) {
			return nil, apperr.ErrDuplicateEmail
		}
	}
	m.next++
	hash := p.PasswordHash
	u := &domain.User{
		ID:                  m.next,
		CompanyID:           p.CompanyID,
		Name:                p.Name,
		Email:               p.Email,
		PasswordHash:        &hash,
		Role:                p.Role,
		Status:              p.Status,
		Phone:               p.Phone,
		Position:            p.Position,
		OnboardingCompleted: p.OnboardingCompleted,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memUsers) ListByCompany(_ context.Context, companyID int64, status domain.UserStatus) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.CompanyID == companyID && (status == "" || u.Status == status) {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b domain.User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memUsers) ListManagement(_ context.Context, companyID int64) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.CompanyID == companyID && u.Role.IsManagement() && (u.Status == domain.StatusApproved || u.Status == domain.StatusActive) {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b domain.User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memUsers) UpdateStatus(_ context.Context, ch ports.StatusChange) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[ch.UserID]
	if !ok || u.CompanyID != ch.CompanyID || u.Status != ch.From {
		return nil, ports.ErrStale
	}
	u.Status = ch.To
	if ch.ApprovedBy != nil {
		u.ApprovedBy = ch.ApprovedBy
		u.ApprovedAt = ch.ApprovedAt
	}
	if ch.To == domain.StatusRejected {
		u.RejectionReason = ch.Reason
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) SaveOnboarding(_ context.Context, userID int64, p domain.OnboardingProfile) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	u.Phone, u.Address, u.Position = p.Phone, p.Address, p.Position
	u.EmergencyContactName, u.EmergencyContactPhone = p.EmergencyContactName, p.EmergencyContactPhone
	u.StartDate = p.StartDate
	u.OnboardingCompleted = true
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetHandbookCompleted(_ context.Context, userID int64, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ports.ErrNotFound
	}
	u.HandbookCompleted = completed
	return nil
}

// set mutates a stored user directly, standing in for a client that
// tampers with flags.
func (m *memUsers) set(id int64, fn func(*domain.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.users[id])
}

type memHandbook struct {
	mu          sync.Mutex
	sections    []domain.HandbookSection
	completions map[[2]int64]domain.PolicyCompletion
	signatures  map[[2]int64]domain.Signature
	next        int64
}

func newMemHandbook() *memHandbook {
	return &memHandbook{
		completions: map[[2]int64]domain.PolicyCompletion{},
		signatures:  map[[2]int64]domain.Signature{},
		next:        1000,
	}
}

func (m *memHandbook) CreateSection(_ context.Context, s domain.HandbookSection) (*domain.HandbookSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	s.ID = m.next
	if s.SectionNumber == 0 {
		for _, ex := range m.sections {
			if ex.CompanyID == s.CompanyID && ex.SectionNumber >= s.SectionNumber {
				s.SectionNumber = ex.SectionNumber
			}
		}
		s.SectionNumber++
	}
	for _, ex := range m.sections {
		if ex.CompanyID == s.CompanyID && ex.SectionNumber == s.SectionNumber {
			return nil, apperr.ErrSectionNumberTaken
		}
	}
	for i := range s.Policies {
		m.next++
		s.Policies[i].ID = m.next
		s.Policies[i].SectionID = s.ID
	}
	m.sections = append(m.sections, s)
	return &s, nil
}

func (m *memHandbook) ListSections(_ context.Context, companyID int64) ([]domain.HandbookSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HandbookSection
	for _, s := range m.sections {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b domain.HandbookSection) int { return a.SectionNumber - b.SectionNumber })
	return out, nil
}

func (m *memHandbook) GetSection(_ context.Context, companyID, sectionID int64) (*domain.HandbookSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sections {
		if s.ID == sectionID && s.CompanyID == companyID {
			return &s, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memHandbook) UpsertPolicyCompletion(_ context.Context, c domain.PolicyCompletion) (*domain.PolicyCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{c.UserID, c.PolicyID}
	if prev, ok := m.completions[key]; ok {
		c.ID = prev.ID
	} else {
		m.next++
		c.ID = m.next
	}
	m.completions[key] = c
	return &c, nil
}

func (m *memHandbook) ListPolicyCompletions(_ context.Context, userID int64) ([]domain.PolicyCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PolicyCompletion
	for k, c := range m.completions {
		if k[0] == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memHandbook) signature(userID, sectionID int64) (domain.Signature, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signatures[[2]int64{userID, sectionID}]
	return s, ok
}

func (m *memHandbook) ListSignatures(_ context.Context, userID int64) ([]domain.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Signature
	for k, s := range m.signatures {
		if k[0] == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memHandbook) CreateSignature(_ context.Context, sig domain.Signature) (*domain.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{sig.UserID, sig.SectionID}
	if _, ok := m.signatures[key]; ok {
		return nil, apperr.ErrAlreadySigned
	}
	m.next++
	sig.ID = m.next
	m.signatures[key] = sig
	return &sig, nil
}

func (m *memHandbook) ComplianceReport(context.Context, int64) ([]domain.ComplianceRow, error) {
	return nil, nil
}

func (m *memHandbook) signatureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signatures)
}

type memSOPs struct {
	mu          sync.Mutex
	sops        map[int64]domain.SOP
	executions  map[int64]*domain.SOPExecution
	completions map[int64][]domain.SOPStepCompletion
	next        int64
}

func newMemSOPs() *memSOPs {
	return &memSOPs{
		sops:        map[int64]domain.SOP{},
		executions:  map[int64]*domain.SOPExecution{},
		completions: map[int64][]domain.SOPStepCompletion{},
		next:        5000,
	}
}

func (m *memSOPs) CreateSOP(_ context.Context, sop domain.SOP) (*domain.SOP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	sop.ID = m.next
	for i := range sop.Steps {
		m.next++
		sop.Steps[i].ID = m.next
		sop.Steps[i].SOPID = sop.ID
	}
	m.sops[sop.ID] = sop
	return &sop, nil
}

func (m *memSOPs) ListSOPs(_ context.Context, companyID int64) ([]domain.SOP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SOP
	for _, s := range m.sops {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSOPs) GetSOP(_ context.Context, companyID, sopID int64) (*domain.SOP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sops[sopID]
	if !ok || s.CompanyID != companyID {
		return nil, ports.ErrNotFound
	}
	return &s, nil
}

func (m *memSOPs) snapshot(e *domain.SOPExecution) *domain.SOPExecution {
	cp := *e
	cp.CompletedSteps = []int64{}
	for _, c := range m.completions[e.ID] {
		cp.CompletedSteps = append(cp.CompletedSteps, c.StepID)
	}
	return &cp
}

func (m *memSOPs) CreateExecution(_ context.Context, e domain.SOPExecution) (*domain.SOPExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.executions {
		if ex.UserID == e.UserID && ex.SOPID == e.SOPID &&
			(ex.Status == domain.ExecutionInProgress || ex.Status == domain.ExecutionPaused) {
			return nil, apperr.ErrAlreadyActive
		}
	}
	m.next++
	e.ID = m.next
	m.executions[e.ID] = &e
	return m.snapshot(&e), nil
}

func (m *memSOPs) GetExecution(_ context.Context, id int64) (*domain.SOPExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return m.snapshot(e), nil
}

func (m *memSOPs) ActiveExecution(_ context.Context, userID, sopID int64) (*domain.SOPExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.executions {
		if e.UserID == userID && e.SOPID == sopID &&
			(e.Status == domain.ExecutionInProgress || e.Status == domain.ExecutionPaused) {
			return m.snapshot(e), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memSOPs) ListExecutions(_ context.Context, userID int64) ([]domain.SOPExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SOPExecution
	for _, e := range m.executions {
		if e.UserID == userID {
			out = append(out, *m.snapshot(e))
		}
	}
	return out, nil
}

func (m *memSOPs) ListStepCompletions(_ context.Context, executionID int64) ([]domain.SOPStepCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.completions[executionID]), nil
}

func (m *memSOPs) RecordStep(_ context.Context, c domain.SOPStepCompletion, currentStep int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[c.ExecutionID]
	if !ok {
		return false, ports.ErrNotFound
	}
	if e.Status != domain.ExecutionInProgress {
		return false, ports.ErrStale
	}
	for _, ex := range m.completions[e.ID] {
		if ex.StepID == c.StepID {
			return false, nil
		}
	}
	m.completions[e.ID] = append(m.completions[e.ID], c)
	if currentStep > e.CurrentStep {
		e.CurrentStep = currentStep
	}
	return true, nil
}

func (m *memSOPs) UpdateExecution(_ context.Context, e domain.SOPExecution, from ...domain.ExecutionStatus) (*domain.SOPExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.executions[e.ID]
	if !ok || !slices.Contains(from, cur.Status) {
		return nil, ports.ErrStale
	}
	cur.Status = e.Status
	cur.ResumedAt = e.ResumedAt
	cur.AccumulatedMillis = e.AccumulatedMillis
	cur.CompletedAt = e.CompletedAt
	return m.snapshot(cur), nil
}

func (m *memSOPs) DeleteExecution(_ context.Context, id int64, from ...domain.ExecutionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.executions[id]
	if !ok || !slices.Contains(from, cur.Status) {
		return ports.ErrStale
	}
	delete(m.executions, id)
	delete(m.completions, id)
	return nil
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[int64]*domain.Task
	next  int64
}

func (m *memTasks) Create(_ context.Context, t domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = map[int64]*domain.Task{}
	}
	m.next++
	t.ID = m.next
	t.Status = domain.TaskPending
	m.tasks[t.ID] = &t
	cp := t
	return &cp, nil
}

func (m *memTasks) Get(_ context.Context, companyID, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.CompanyID != companyID {
		return nil, ports.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) List(_ context.Context, f ports.TaskFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.CompanyID == f.CompanyID && (f.AssignedTo == 0 || t.AssignedTo == f.AssignedTo) && (f.Status == "" || t.Status == f.Status) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTasks) UpdateStatus(_ context.Context, id int64, from, to domain.TaskStatus, completedAt *time.Time) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != from {
		return nil, ports.ErrStale
	}
	t.Status = to
	t.CompletedAt = completedAt
	cp := *t
	return &cp, nil
}

type memIncidents struct {
	mu        sync.Mutex
	incidents map[int64]*domain.Incident
	next      int64
}

func (m *memIncidents) Create(_ context.Context, in domain.Incident) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incidents == nil {
		m.incidents = map[int64]*domain.Incident{}
	}
	m.next++
	in.ID = m.next
	in.Status = domain.IncidentOpen
	m.incidents[in.ID] = &in
	cp := in
	return &cp, nil
}

func (m *memIncidents) Get(_ context.Context, companyID, id int64) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.incidents[id]
	if !ok || in.CompanyID != companyID {
		return nil, ports.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *memIncidents) List(_ context.Context, f ports.IncidentFilter) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Incident
	for _, in := range m.incidents {
		if in.CompanyID == f.CompanyID && (f.ReportedBy == 0 || in.ReportedBy == f.ReportedBy) {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *memIncidents) UpdateStatus(_ context.Context, id int64, from, to domain.IncidentStatus, resolution string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.incidents[id]
	if !ok || in.Status != from {
		return nil, ports.ErrStale
	}
	in.Status = to
	if resolution != "" {
		in.Resolution = resolution
	}
	cp := *in
	return &cp, nil
}

type memNotifications struct {
	mu     sync.Mutex
	items  []domain.Notification
	failed map[int64]bool
}

func (m *memNotifications) Create(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed[n.UserID] {
		return nil, errors.New("notifications table unavailable")
	}
	n.ID = int64(len(m.items) + 1)
	m.items = append(m.items, n)
	return &n, nil
}

func (m *memNotifications) List(_ context.Context, userID int64, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			now := time.Now()
			m.items[i].ReadAt = &now
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *memNotifications) forUser(userID int64) []domain.Notification {
	out, _ := m.List(context.Background(), userID, 0)
	return out
}

func (m *memNotifications) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memActivity struct {
	mu   sync.Mutex
	logs []domain.ActivityLog
}

func (m *memActivity) Record(_ context.Context, l domain.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memActivity) List(_ context.Context, companyID int64, limit int) ([]domain.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActivityLog
	for _, l := range m.logs {
		if l.CompanyID == companyID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memActivity) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

// env wires every service to shared in-memory stores.
type env struct {
	now      time.Time
	users    *memUsers
	handbook *memHandbook
	sops     *memSOPs
	tasks    *memTasks
	inc      *memIncidents
	notes    *memNotifications
	activity *memActivity

	auth      AuthService
	approvals UserService
	access    AccessService
	book      HandbookService
	sop       SOPService
	task      TaskService
	incident  IncidentService
	notifier  NotificationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		users:    newMemUsers(),
		handbook: newMemHandbook(),
		sops:     newMemSOPs(),
		tasks:    &memTasks{},
		inc:      &memIncidents{},
		notes:    &memNotifications{failed: map[int64]bool{}},
		activity: &memActivity{},
	}
	clock := Clock(func() time.Time { return e.now })
	e.notifier = NotificationService{Store: e.notes, Clock: clock}
	e.auth = AuthService{
		Config:    config.Config{JWTSecret: "test-secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour},
		Users:     e.users,
		Companies: e.users,
		Notifier:  e.notifier,
		Activity:  e.activity,
		Clock:     clock,
	}
	e.approvals = UserService{Users: e.users, Notifier: e.notifier, Activity: e.activity, Clock: clock}
	e.access = AccessService{Users: e.users, Handbook: e.handbook}
	e.book = HandbookService{Users: e.users, Handbook: e.handbook, Access: e.access, Activity: e.activity, Clock: clock}
	e.sop = SOPService{Users: e.users, SOPs: e.sops, Executions: e.sops, Access: e.access, Activity: e.activity, Clock: clock}
	e.task = TaskService{Users: e.users, Tasks: e.tasks, Notifier: e.notifier, Activity: e.activity, Clock: clock}
	e.incident = IncidentService{Users: e.users, Incidents: e.inc, Notifier: e.notifier, Activity: e.activity, Clock: clock}
	return e
}

// company bootstraps a tenant and returns its owner.
func (e *env) company(t *testing.T, name string) domain.User {
	t.Helper()
	res, err := e.auth.CreateCompany(context.Background(), CreateCompanyInput{
		CompanyName: name,
		OwnerName:   name + " Owner",
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", "")) + "-owner@example.com",
		Password:    "owner-pass-1",
	})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	return res.User
}

// staff registers and approves a user, then finishes onboarding.
func (e *env) staff(t *testing.T, owner domain.User, email string, role domain.UserRole) domain.User {
	t.Helper()
	ctx := context.Background()
	res, err := e.auth.Register(ctx, RegisterInput{
		CompanyID: owner.CompanyID, Name: email, Email: email, Password: "password-1", Role: role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if _, err := e.approvals.Approve(ctx, owner.ID, res.User.ID); err != nil {
		t.Fatalf("approve %s: %v", email, err)
	}
	u, err := e.approvals.CompleteOnboarding(ctx, res.User.ID, domain.OnboardingProfile{
		Phone: "555-0100", EmergencyContactName: "Kin", EmergencyContactPhone: "555-0101",
	})
	if err != nil {
		t.Fatalf("onboard %s: %v", email, err)
	}
	return *u
}

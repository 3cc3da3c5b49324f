package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/server/authctx"
	"staffbook-backend/internal/service"
	"staffbook-backend/internal/storage"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func TestHealthReportsDegradedDatabase(t *testing.T) {
	for name, tc := range map[string]struct {
		err    error
		status int
		body   string
	}{
		"ok":       {nil, http.StatusOK, "ok"},
		"degraded": {errors.New("down"), http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			HealthHandler{DB: fakeHealth{err: tc.err}}.RegisterRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.body, body["status"])
		})
	}
}

func authed(req *http.Request) *http.Request {
	return authedAs(req, 7, 1)
}

func authedAs(req *http.Request, userID, companyID int64) *http.Request {
	return req.WithContext(authctx.WithCurrentUser(req.Context(), authctx.CurrentUser{
		ID: userID, CompanyID: companyID, Role: domain.RoleEmployee,
	}))
}

// staticUsers serves GetByID from a fixed set; other methods are unused.
type staticUsers struct {
	ports.UserStore
	byID map[int64]domain.User
}

func (s staticUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &u, nil
}

type memMedia struct {
	mu      sync.Mutex
	objects map[string]domain.MediaObject
}

func (m *memMedia) CreateObject(_ context.Context, o domain.MediaObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[o.ID] = o
	return nil
}

func (m *memMedia) GetObject(_ context.Context, id string) (*domain.MediaObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &o, nil
}

func (m *memMedia) MarkStored(_ context.Context, id string, size int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[id]
	if !ok || o.StoredAt != nil {
		return ports.ErrStale
	}
	o.Size, o.StoredAt = size, &at
	m.objects[id] = o
	return nil
}

func uploadRouter(t *testing.T, maxBytes int64) http.Handler {
	t.Helper()
	svc := &service.MediaService{
		Users: staticUsers{byID: map[int64]domain.User{
			7:  {ID: 7, CompanyID: 1, Role: domain.RoleEmployee, Status: domain.StatusApproved},
			8:  {ID: 8, CompanyID: 1, Role: domain.RoleManager, Status: domain.StatusApproved},
			99: {ID: 99, CompanyID: 2, Role: domain.RoleOwner, Status: domain.StatusApproved},
		}},
		Objects: &memMedia{objects: map[string]domain.MediaObject{}},
		Files:   storage.LocalStore{Dir: t.TempDir(), BaseURL: "https://api.example.com", MaxBytes: maxBytes},
	}
	r := chi.NewRouter()
	UploadHandler{Service: svc}.RegisterRoutes(r)
	return r
}

func reserveSlot(t *testing.T, r http.Handler) storage.Upload {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/uploads", nil)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var slot storage.Upload
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &slot))
	return slot
}

func TestUploadRoundTrip(t *testing.T) {
	r := uploadRouter(t, 1<<10)
	slot := reserveSlot(t, r)
	assert.True(t, storage.IsObjectPath(slot.ObjectPath))
	assert.Equal(t, "https://api.example.com"+slot.ObjectPath, slot.UploadURL)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, slot.ObjectPath, nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code, "reserved but not yet written")

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPut, slot.ObjectPath, bytes.NewReader(png))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, slot.ObjectPath, nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestUploadOwnershipAndTenancy(t *testing.T) {
	r := uploadRouter(t, 1<<10)
	slot := reserveSlot(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPut, slot.ObjectPath, strings.NewReader("evidence"))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cases := []struct {
		name      string
		method    string
		userID    int64
		companyID int64
		status    int
	}{
		{"other company cannot overwrite", http.MethodPut, 99, 2, http.StatusNotFound},
		{"other company cannot read", http.MethodGet, 99, 2, http.StatusNotFound},
		{"colleague cannot overwrite", http.MethodPut, 8, 1, http.StatusForbidden},
		{"uploader cannot overwrite", http.MethodPut, 7, 1, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, slot.ObjectPath, strings.NewReader("tampered"))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, authedAs(req, tc.userID, tc.companyID))
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authedAs(httptest.NewRequest(http.MethodGet, slot.ObjectPath, nil), 8, 1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evidence", rec.Body.String())
}

func TestUploadErrors(t *testing.T) {
	r := uploadRouter(t, 8)
	slot := reserveSlot(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPut, slot.ObjectPath, strings.NewReader("way more than eight bytes"))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPut, storage.ObjectPath(uuid.NewString()), strings.NewReader("x"))))
	assert.Equal(t, http.StatusNotFound, rec.Code, "never reserved")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/objects/uploads/..%2Fetc", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/uploads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func complianceFixture() []domain.ComplianceRow {
	signed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []domain.ComplianceRow{
		{UserID: 2, Name: "Ana Lopez", Email: "ana@example.com", Role: domain.RoleEmployee, HandbookCompleted: true, SectionsSigned: 3, SectionsRequired: 3, LastSignedAt: &signed},
		{UserID: 3, Name: "Ben Cho", Email: "ben@example.com", Role: domain.RoleManager, SectionsSigned: 1, SectionsRequired: 3},
	}
}

func TestExportComplianceCSV(t *testing.T) {
	data, err := exportComplianceCSV(complianceFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "User ID,Name,Email,Role,Handbook Completed,Sections Signed,Sections Required,Last Signed At", lines[0])
	assert.Equal(t, "2,Ana Lopez,ana@example.com,employee,true,3,3,2026-03-02T09:30:00Z", lines[1])
	assert.Equal(t, "3,Ben Cho,ben@example.com,manager,false,1,3,", lines[2])
}

func TestExportComplianceXLSX(t *testing.T) {
	data, err := exportComplianceXLSX(complianceFixture())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Compliance"}, f.GetSheetList())
	rows, err := f.GetRows("Compliance")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Email", rows[0][2])
	assert.Equal(t, "Ana Lopez", rows[1][1])
	assert.Equal(t, "manager", rows[2][3])
}

func TestNotificationPayloadCarriesTypedAction(t *testing.T) {
	n := domain.Notification{
		ID:     4,
		Title:  "New task assigned",
		Type:   domain.NotificationWarning,
		Action: domain.OpenTaskAction{TaskID: 9, Priority: domain.PriorityHigh},
	}
	out, err := json.Marshal(notificationPayload(n))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": 4, "title": "New task assigned", "message": "", "type": "warning",
		"read": false, "timestamp": "0001-01-01T00:00:00Z",
		"actionType": "open_task", "actionData": {"taskId": 9, "priority": "high"}
	}`, string(out))
}

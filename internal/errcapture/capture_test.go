package errcapture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/models"
)

type fakeErrorRecorder struct {
	entries []*models.ErrorLog
	err     error
}

func (f *fakeErrorRecorder) CreateErrorLog(_ context.Context, entry *models.ErrorLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestCapturer_PanicPersistedAndConvertedTo500(t *testing.T) {
	recorder := &fakeErrorRecorder{}
	c := New(recorder, zerolog.Nop())

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom with password=hunter2")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.ErrorKindPanic, entry.Kind)
	assert.Equal(t, "/api/v1/projects", entry.Path)
	assert.Contains(t, entry.Message, "[REDACTED]")
	assert.NotContains(t, entry.Message, "hunter2")
	assert.Contains(t, entry.Details, "stack")
}

func TestCapturer_HealthyRequestUntouched(t *testing.T) {
	recorder := &fakeErrorRecorder{}
	c := New(recorder, zerolog.Nop())

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, recorder.entries)
}

func TestCapturer_AbortHandlerRepanics(t *testing.T) {
	c := New(&fakeErrorRecorder{}, zerolog.Nop())

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCapturer_CaptureAttachesPrincipal(t *testing.T) {
	recorder := &fakeErrorRecorder{}
	c := New(recorder, zerolog.Nop())

	tenantID := uuid.New()
	principal := &auth.Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenantID}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), principal))

	c.Capture(req, models.ErrorKindServer, errors.New("insert failed"))

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.ErrorKindServer, entry.Kind)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, principal.UserID, *entry.UserID)
	require.NotNil(t, entry.TenantID)
	assert.Equal(t, tenantID, *entry.TenantID)
}

func TestCapturer_NilErrorIgnored(t *testing.T) {
	recorder := &fakeErrorRecorder{}
	c := New(recorder, zerolog.Nop())

	c.Capture(httptest.NewRequest(http.MethodGet, "/", nil), models.ErrorKindServer, nil)
	assert.Empty(t, recorder.entries)
}

func TestCapturer_PersistFailureDoesNotPanic(t *testing.T) {
	recorder := &fakeErrorRecorder{err: errors.New("error_logs table missing")}
	c := New(recorder, zerolog.Nop())

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

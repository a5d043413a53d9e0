package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck-server/internal/audit"
	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// fakeServerStore is a minimal in-memory storage.Store for routing tests.
// Lookups resolve against the single seeded tenant and user; everything else
// answers empty.
type fakeServerStore struct {
	tenant *models.Tenant
	user   *models.User

	errorLogs []*models.ErrorLog

	panicOnAgreement bool
}

func (f *fakeServerStore) BeginTx(_ context.Context) (storage.Store, error) { return f, nil }
func (f *fakeServerStore) Commit() error                                    { return nil }
func (f *fakeServerStore) Rollback() error                                  { return nil }
func (f *fakeServerStore) Close() error                                     { return nil }

func (f *fakeServerStore) CreateUser(_ context.Context, user *models.User) error {
	user.ID = uuid.New()
	return nil
}

func (f *fakeServerStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user != nil && f.user.ID == id {
		return f.user, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) UpdateUser(_ context.Context, _ *models.User) error { return nil }

func (f *fakeServerStore) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	tenant.ID = uuid.New()
	return nil
}

func (f *fakeServerStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if f.tenant != nil && f.tenant.ID == id {
		return f.tenant, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) GetTenantBySlug(_ context.Context, _ string) (*models.Tenant, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) UpdateTenantStatus(_ context.Context, _ uuid.UUID, _ models.TenantStatus) error {
	return nil
}

func (f *fakeServerStore) ListTenants(_ context.Context, _, _ int) ([]*models.Tenant, int64, error) {
	return nil, 0, nil
}

func (f *fakeServerStore) CreateAgreement(_ context.Context, _ *models.Agreement) error { return nil }

func (f *fakeServerStore) GetAgreement(_ context.Context, _ uuid.UUID) (*models.Agreement, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) GetActiveAgreement(_ context.Context, _ uuid.UUID) (*models.Agreement, error) {
	if f.panicOnAgreement {
		panic("agreement table corrupted")
	}
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) GetActiveGlobalAgreement(_ context.Context) (*models.Agreement, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) ActivateAgreement(_ context.Context, _ uuid.UUID) (*models.Agreement, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeServerStore) CreateAcceptance(_ context.Context, _ *models.AgreementAcceptance) error {
	return nil
}

func (f *fakeServerStore) HasAcceptance(_ context.Context, _, _, _ uuid.UUID, _ int) (bool, error) {
	return false, nil
}

func (f *fakeServerStore) CountOrphans(_ context.Context, _ string) (int64, error) { return 0, nil }

func (f *fakeServerStore) SampleOrphans(_ context.Context, _ string, _ int) ([]storage.OrphanSample, error) {
	return nil, nil
}

func (f *fakeServerStore) AdoptOrphans(_ context.Context, _ string, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeServerStore) PurgeTable(_ context.Context, _ string) (int64, error) { return 0, nil }

func (f *fakeServerStore) TableExists(_ context.Context, _ string) (bool, error) { return true, nil }

func (f *fakeServerStore) ColumnExists(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

func (f *fakeServerStore) CreateAuditLog(_ context.Context, _ *models.AuditLog) error { return nil }

func (f *fakeServerStore) CreateErrorLog(_ context.Context, entry *models.ErrorLog) error {
	f.errorLogs = append(f.errorLogs, entry)
	return nil
}

func (f *fakeServerStore) ListErrorLogs(_ context.Context, _, _ int) ([]*models.ErrorLog, int64, error) {
	return f.errorLogs, int64(len(f.errorLogs)), nil
}

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Name: "workdeck", Version: "test"},
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
		Enforcement: config.EnforcementConfig{
			Mode:              config.EnforcementStrict,
			TenantCacheTTL:    time.Minute,
			AgreementCacheTTL: time.Minute,
		},
	}
}

func newTestServer(store *fakeServerStore) *RESTServer {
	return NewRESTServer(testServerConfig(), store, audit.NewPublisher(nil))
}

func seedMember(store *fakeServerStore) *models.User {
	tenantID := uuid.New()
	store.tenant = &models.Tenant{ID: tenantID, Slug: "acme", Status: models.TenantStatusActive}
	store.user = &models.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Role:     models.RoleMember,
		IsActive: true,
		TenantID: &tenantID,
	}
	return store.user
}

func bearerToken(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := auth.NewJWTManager(&testServerConfig().JWT).GenerateTokenPair(user)
	require.NoError(t, err)
	return "Bearer " + access
}

func serve(s *RESTServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPanicEntriesCarryPrincipalContext(t *testing.T) {
	store := &fakeServerStore{panicOnAgreement: true}
	user := seedMember(store)
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agreements/current", nil)
	req.Header.Set("Authorization", bearerToken(t, user))

	rec := serve(s, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The persisted entry must identify who hit the panic
	require.Len(t, store.errorLogs, 1)
	entry := store.errorLogs[0]
	assert.Equal(t, models.ErrorKindPanic, entry.Kind)
	assert.NotEmpty(t, entry.RequestID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, user.ID, *entry.UserID)
	require.NotNil(t, entry.TenantID)
	assert.Equal(t, *user.TenantID, *entry.TenantID)
}

func TestOnboardIsPublicAndTenantAdminIsGated(t *testing.T) {
	store := &fakeServerStore{}
	user := seedMember(store)
	s := newTestServer(store)

	body := []byte(`{"name":"Acme","slug":"acme-new","admin_email":"admin@acme.test","admin_password":"hunter2hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/onboard", bytes.NewReader(body))
	assert.Equal(t, http.StatusCreated, serve(s, req).Code)

	// The operator listing next to it stays gated
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	req.Header.Set("Authorization", bearerToken(t, user))
	assert.Equal(t, http.StatusForbidden, serve(s, req).Code)
}

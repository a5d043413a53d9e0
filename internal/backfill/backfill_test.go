package backfill

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

type fakeStore struct {
	orphans       map[string]int64
	missingTables map[string]bool
	tenantsByID   map[uuid.UUID]*models.Tenant
	tenantsBySlug map[string]*models.Tenant
	auditLogs     []*models.AuditLog

	adoptOrder  []string
	createCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orphans:       make(map[string]int64),
		missingTables: make(map[string]bool),
		tenantsByID:   make(map[uuid.UUID]*models.Tenant),
		tenantsBySlug: make(map[string]*models.Tenant),
	}
}

func (f *fakeStore) addTenant(slug string, status models.TenantStatus) *models.Tenant {
	tenant := &models.Tenant{ID: uuid.New(), Slug: slug, Status: status}
	f.tenantsByID[tenant.ID] = tenant
	f.tenantsBySlug[slug] = tenant
	return tenant
}

func (f *fakeStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if tenant, ok := f.tenantsByID[id]; ok {
		return tenant, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) GetTenantBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	if tenant, ok := f.tenantsBySlug[slug]; ok {
		return tenant, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	f.createCalls++
	if _, ok := f.tenantsBySlug[tenant.Slug]; ok {
		return storage.ErrDuplicateKey
	}
	tenant.ID = uuid.New()
	f.tenantsByID[tenant.ID] = tenant
	f.tenantsBySlug[tenant.Slug] = tenant
	return nil
}

func (f *fakeStore) CountOrphans(_ context.Context, table string) (int64, error) {
	return f.orphans[table], nil
}

func (f *fakeStore) AdoptOrphans(_ context.Context, table string, tenantID uuid.UUID) (int64, error) {
	count := f.orphans[table]
	f.orphans[table] = 0
	f.adoptOrder = append(f.adoptOrder, table)
	return count, nil
}

func (f *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	return !f.missingTables[table], nil
}

func (f *fakeStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, entry)
	return nil
}

type fakePublisher struct {
	published []*models.AuditLog
}

func (f *fakePublisher) Publish(entry *models.AuditLog) {
	f.published = append(f.published, entry)
}

func newTestRunner(store *fakeStore) (*Runner, *fakePublisher) {
	pub := &fakePublisher{}
	return NewRunner(store, pub, zerolog.Nop()), pub
}

func TestRun_AssignsToDefaultTenantInDependencyOrder(t *testing.T) {
	store := newFakeStore()
	store.orphans["users"] = 2
	store.orphans["tasks"] = 5
	store.orphans["documents"] = 1
	runner, pub := newTestRunner(store)

	report, err := runner.Run(context.Background(), Options{Actor: "ops@example.com"})
	require.NoError(t, err)

	assert.Equal(t, int64(8), report.TotalAssigned)
	assert.Zero(t, report.RemainingOrphans)

	// Default tenant created on demand, active
	defaultTenant := store.tenantsBySlug[models.DefaultTenantSlug]
	require.NotNil(t, defaultTenant)
	assert.Equal(t, models.TenantStatusActive, defaultTenant.Status)
	require.NotNil(t, report.TargetTenantID)
	assert.Equal(t, defaultTenant.ID, *report.TargetTenantID)

	// Parents before referencing tables
	assert.Equal(t, []string{"users", "tasks", "documents"}, store.adoptOrder)

	require.Len(t, store.auditLogs, 1)
	assert.Equal(t, models.AuditActionBackfill, store.auditLogs[0].Action)
	require.Len(t, pub.published, 1)
}

func TestRun_DryRunCreatesAndChangesNothing(t *testing.T) {
	store := newFakeStore()
	store.orphans["users"] = 2
	runner, pub := newTestRunner(store)

	report, err := runner.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Nil(t, report.TargetTenantID)
	assert.Zero(t, report.TotalAssigned)
	assert.Equal(t, int64(2), report.RemainingOrphans)

	assert.Zero(t, store.createCalls)
	assert.Empty(t, store.adoptOrder)
	assert.Empty(t, store.auditLogs)
	assert.Empty(t, pub.published)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.orphans["projects"] = 4
	runner, _ := newTestRunner(store)

	first, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), first.TotalAssigned)

	second, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, second.TotalAssigned)
	assert.Zero(t, second.RemainingOrphans)

	// Default tenant is reused
	assert.Equal(t, 1, store.createCalls)
}

func TestRun_TargetBySlug(t *testing.T) {
	store := newFakeStore()
	acme := store.addTenant("acme", models.TenantStatusActive)
	store.orphans["invoices"] = 3
	runner, _ := newTestRunner(store)

	report, err := runner.Run(context.Background(), Options{TargetTenant: "acme"})
	require.NoError(t, err)

	require.NotNil(t, report.TargetTenantID)
	assert.Equal(t, acme.ID, *report.TargetTenantID)
	assert.Equal(t, int64(3), report.TotalAssigned)
	// No default tenant was created
	assert.Nil(t, store.tenantsBySlug[models.DefaultTenantSlug])
}

func TestRun_TargetByID(t *testing.T) {
	store := newFakeStore()
	acme := store.addTenant("acme", models.TenantStatusActive)
	runner, _ := newTestRunner(store)

	report, err := runner.Run(context.Background(), Options{TargetTenant: acme.ID.String()})
	require.NoError(t, err)

	require.NotNil(t, report.TargetTenantID)
	assert.Equal(t, acme.ID, *report.TargetTenantID)
}

func TestRun_UnknownTargetFails(t *testing.T) {
	runner, _ := newTestRunner(newFakeStore())

	_, err := runner.Run(context.Background(), Options{TargetTenant: "nope"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_MissingTableReportedNotFatal(t *testing.T) {
	store := newFakeStore()
	store.missingTables["chat_messages"] = true
	store.orphans["users"] = 1
	runner, _ := newTestRunner(store)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	var found bool
	for _, res := range report.Tables {
		if res.Table == "chat_messages" {
			found = true
			assert.NotEmpty(t, res.Error)
		}
	}
	assert.True(t, found)
	assert.Equal(t, int64(1), report.TotalAssigned)
}

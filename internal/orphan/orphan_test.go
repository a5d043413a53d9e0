package orphan

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// fakeStore keeps orphan counts per table in memory. AdoptOrphans moves the
// whole count to zero, mirroring the SQL UPDATE.
type fakeStore struct {
	orphans       map[string]int64
	missingTables map[string]bool
	tenants       map[string]*models.Tenant
	auditLogs     []*models.AuditLog

	countErr     error
	adoptErr     error
	adoptShort   bool
	createCalls  int
	adoptTargets map[string]uuid.UUID
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		orphans:       make(map[string]int64),
		missingTables: make(map[string]bool),
		tenants:       make(map[string]*models.Tenant),
		adoptTargets:  make(map[string]uuid.UUID),
	}
	return s
}

func (f *fakeStore) CountOrphans(_ context.Context, table string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.orphans[table], nil
}

func (f *fakeStore) SampleOrphans(_ context.Context, table string, limit int) ([]storage.OrphanSample, error) {
	n := f.orphans[table]
	if n > int64(limit) {
		n = int64(limit)
	}
	samples := make([]storage.OrphanSample, n)
	for i := range samples {
		samples[i] = storage.OrphanSample{ID: uuid.NewString(), Display: "row"}
	}
	return samples, nil
}

func (f *fakeStore) AdoptOrphans(_ context.Context, table string, tenantID uuid.UUID) (int64, error) {
	if f.adoptErr != nil {
		return 0, f.adoptErr
	}
	count := f.orphans[table]
	if f.adoptShort && count > 0 {
		count--
	}
	f.orphans[table] -= count
	f.adoptTargets[table] = tenantID
	return count, nil
}

func (f *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	return !f.missingTables[table], nil
}

func (f *fakeStore) GetTenantBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	if tenant, ok := f.tenants[slug]; ok {
		return tenant, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	f.createCalls++
	if _, ok := f.tenants[tenant.Slug]; ok {
		return storage.ErrDuplicateKey
	}
	tenant.ID = uuid.New()
	f.tenants[tenant.Slug] = tenant
	return nil
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

func newTestFixer(store *fakeStore) (*Fixer, *fakePublisher) {
	pub := &fakePublisher{}
	return NewFixer(store, pub, zerolog.Nop()), pub
}

func tableResult(t *testing.T, result *FixResult, table string) TableResult {
	t.Helper()
	for _, res := range result.Tables {
		if res.Table == table {
			return res
		}
	}
	t.Fatalf("table %s missing from result", table)
	return TableResult{}
}

func TestDetect_ReportsCountsAndSamples(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 7
	store.orphans["users"] = 2
	fixer, _ := newTestFixer(store)

	report, err := fixer.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(9), report.TotalOrphans)
	assert.False(t, report.QuarantineTenantExists)

	for _, entry := range report.Tables {
		switch entry.Table {
		case "tasks":
			assert.Equal(t, int64(7), entry.Count)
			assert.Len(t, entry.Samples, SampleLimit)
		case "users":
			assert.Equal(t, int64(2), entry.Count)
			assert.Len(t, entry.Samples, 2)
		default:
			assert.Zero(t, entry.Count)
			assert.Empty(t, entry.Samples)
		}
	}
}

func TestDetect_IsReadOnly(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	fixer, _ := newTestFixer(store)

	_, err := fixer.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), store.orphans["tasks"])
	assert.Zero(t, store.createCalls)
	assert.Empty(t, store.auditLogs)
}

func TestFix_RequiresExactConfirmation(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	fixer, pub := newTestFixer(store)

	for _, confirm := range []string{"", "fix_orphans", "FIX ORPHANS", "yes"} {
		_, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: confirm})
		assert.ErrorIs(t, err, ErrConfirmationMismatch)
	}

	// Rejected before any data access
	assert.Equal(t, int64(3), store.orphans["tasks"])
	assert.Zero(t, store.createCalls)
	assert.Empty(t, store.auditLogs)
	assert.Empty(t, pub.published)
}

func TestFix_DryRunChangesNothing(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	store.orphans["invoices"] = 1
	fixer, pub := newTestFixer(store)

	result, err := fixer.Fix(context.Background(), FixRequest{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Nil(t, result.QuarantineTenantID)
	assert.Zero(t, result.TotalFixed)
	assert.Equal(t, ActionWouldFix, tableResult(t, result, "tasks").Action)
	assert.Equal(t, int64(3), tableResult(t, result, "tasks").CountBefore)
	assert.Equal(t, ActionNoOrphans, tableResult(t, result, "projects").Action)

	// No quarantine tenant, no writes, no audit
	assert.Equal(t, int64(3), store.orphans["tasks"])
	assert.Zero(t, store.createCalls)
	assert.Empty(t, store.auditLogs)
	assert.Empty(t, pub.published)
}

func TestFix_ExecutionAdoptsAndAudits(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	store.orphans["invoices"] = 1
	fixer, pub := newTestFixer(store)

	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans, Actor: "ops@example.com"})
	require.NoError(t, err)

	assert.False(t, result.DryRun)
	require.NotNil(t, result.QuarantineTenantID)
	assert.Equal(t, int64(4), result.TotalFixed)

	tasks := tableResult(t, result, "tasks")
	assert.Equal(t, ActionFixed, tasks.Action)
	assert.Equal(t, tasks.CountBefore, tasks.CountFixed)

	// Quarantine tenant created suspended
	quarantine := store.tenants[models.QuarantineTenantSlug]
	require.NotNil(t, quarantine)
	assert.Equal(t, models.TenantStatusSuspended, quarantine.Status)
	assert.Equal(t, quarantine.ID, *result.QuarantineTenantID)
	assert.Equal(t, quarantine.ID, store.adoptTargets["tasks"])

	// Durable audit row and stream event
	require.Len(t, store.auditLogs, 1)
	assert.Equal(t, models.AuditActionOrphanFix, store.auditLogs[0].Action)
	assert.Equal(t, "ops@example.com", store.auditLogs[0].Actor)
	require.Len(t, pub.published, 1)
}

func TestFix_SecondRunIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	fixer, _ := newTestFixer(store)

	_, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	assert.Zero(t, result.TotalFixed)
	assert.Equal(t, ActionNoOrphans, tableResult(t, result, "tasks").Action)

	// Quarantine tenant is reused, not duplicated
	assert.Equal(t, 1, store.createCalls)
}

func TestFix_MissingTableSkipped(t *testing.T) {
	store := newFakeStore()
	store.missingTables["chat_messages"] = true
	store.orphans["tasks"] = 1
	fixer, _ := newTestFixer(store)

	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, tableResult(t, result, "chat_messages").Action)
	assert.Equal(t, ActionFixed, tableResult(t, result, "tasks").Action)
}

func TestFix_CountMismatchFlaggedAsError(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 3
	store.adoptShort = true
	fixer, _ := newTestFixer(store)

	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	tasks := tableResult(t, result, "tasks")
	assert.Equal(t, ActionError, tasks.Action)
	assert.NotEqual(t, tasks.CountBefore, tasks.CountFixed)
	assert.Contains(t, tasks.Error, "expected to fix")
}

func TestFix_CountErrorReportedPerTable(t *testing.T) {
	store := newFakeStore()
	store.orphans["tasks"] = 2
	store.countErr = errors.New("statement timeout")
	fixer, _ := newTestFixer(store)

	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	// Counting failures surface per table; no rows are adopted
	for _, res := range result.Tables {
		assert.Equal(t, ActionError, res.Action, res.Table)
		assert.Contains(t, res.Error, "statement timeout")
	}
	assert.Zero(t, result.TotalFixed)
	assert.Equal(t, int64(2), store.orphans["tasks"])
}

func TestFix_AdoptErrorDoesNotAbortOtherTables(t *testing.T) {
	store := newFakeStore()
	store.orphans["users"] = 2
	store.orphans["tasks"] = 2
	fixer, _ := newTestFixer(store)

	store.adoptErr = errors.New("deadlock detected")
	result, err := fixer.Fix(context.Background(), FixRequest{ConfirmText: ConfirmFixOrphans})
	require.NoError(t, err)

	// Every table reports an error result rather than the run aborting
	assert.Equal(t, ActionError, tableResult(t, result, "users").Action)
	assert.Equal(t, ActionError, tableResult(t, result, "tasks").Action)
	assert.Len(t, result.Tables, len(storage.TenantScopedTables))
}

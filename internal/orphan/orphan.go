// Package orphan detects tenant-scoped rows with no tenant identifier and,
// on explicit confirmation, reassigns them to a dedicated quarantine tenant
// so they become queryable and auditable without being attributed to a real
// tenant.
package orphan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/monitoring"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// ConfirmFixOrphans must be supplied verbatim to execute a fix. There is no
// transactional undo; the literal-string gate keeps a stray API call from
// rewriting every orphaned row.
const ConfirmFixOrphans = "FIX_ORPHANS"

// SampleLimit caps sample rows per table in a detect report
const SampleLimit = 5

// ErrConfirmationMismatch is returned before any data access when the
// confirmation string is wrong
var ErrConfirmationMismatch = errors.New("confirmation text does not match")

// Action tags for per-table fix results
const (
	ActionNoOrphans = "no_orphans"
	ActionWouldFix  = "would_fix"
	ActionFixed     = "fixed"
	ActionSkipped   = "skipped"
	ActionError     = "error"
)

// Store is the slice of the record store the detector and fixer need
type Store interface {
	CountOrphans(ctx context.Context, table string) (int64, error)
	SampleOrphans(ctx context.Context, table string, limit int) ([]storage.OrphanSample, error)
	AdoptOrphans(ctx context.Context, table string, tenantID uuid.UUID) (int64, error)
	TableExists(ctx context.Context, table string) (bool, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Publisher emits audit events for executed fixes
type Publisher interface {
	Publish(entry *models.AuditLog)
}

// TableOrphans is one table's entry in a detect report
type TableOrphans struct {
	Table   string                 `json:"table"`
	Count   int64                  `json:"count"`
	Samples []storage.OrphanSample `json:"samples,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Report is the result of a read-only detect pass
type Report struct {
	GeneratedAt            time.Time      `json:"generatedAt"`
	Tables                 []TableOrphans `json:"tables"`
	TotalOrphans           int64          `json:"totalOrphans"`
	QuarantineTenantExists bool           `json:"quarantineTenantExists"`
}

// FixRequest describes a fix invocation
type FixRequest struct {
	DryRun      bool   `json:"dryRun"`
	ConfirmText string `json:"confirmText,omitempty"`
	Actor       string `json:"-"`
}

// TableResult is one table's entry in a fix result. CountBefore and
// CountFixed must match exactly on a successful execution so callers can
// detect partial failures.
type TableResult struct {
	Table       string `json:"table"`
	Action      string `json:"action"`
	CountBefore int64  `json:"countBefore"`
	CountFixed  int64  `json:"countFixed"`
	Error       string `json:"error,omitempty"`
}

// FixResult is the outcome of a fix invocation
type FixResult struct {
	DryRun             bool          `json:"dryRun"`
	QuarantineTenantID *uuid.UUID    `json:"quarantineTenantId,omitempty"`
	Tables             []TableResult `json:"tables"`
	TotalFixed         int64         `json:"totalFixed"`
}

// Fixer detects and repairs orphaned rows over the enumerated tenant-scoped
// tables
type Fixer struct {
	store Store
	pub   Publisher
	log   zerolog.Logger
}

// NewFixer creates a fixer
func NewFixer(store Store, pub Publisher, logger zerolog.Logger) *Fixer {
	return &Fixer{store: store, pub: pub, log: logger}
}

// Detect counts orphaned rows per table. Performs no writes; safe to call
// repeatedly.
func (f *Fixer) Detect(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now()}

	for _, table := range storage.TenantScopedTables {
		entry := TableOrphans{Table: table}

		exists, err := f.store.TableExists(ctx, table)
		if err != nil {
			entry.Error = err.Error()
			report.Tables = append(report.Tables, entry)
			continue
		}
		if !exists {
			entry.Error = "table missing from schema"
			report.Tables = append(report.Tables, entry)
			continue
		}

		count, err := f.store.CountOrphans(ctx, table)
		if err != nil {
			entry.Error = err.Error()
			report.Tables = append(report.Tables, entry)
			continue
		}
		entry.Count = count
		report.TotalOrphans += count

		if count > 0 {
			samples, err := f.store.SampleOrphans(ctx, table, SampleLimit)
			if err == nil {
				entry.Samples = samples
			}
		}

		report.Tables = append(report.Tables, entry)
	}

	_, err := f.store.GetTenantBySlug(ctx, models.QuarantineTenantSlug)
	switch {
	case err == nil:
		report.QuarantineTenantExists = true
	case errors.Is(err, storage.ErrNotFound):
		report.QuarantineTenantExists = false
	default:
		return nil, fmt.Errorf("check quarantine tenant: %w", err)
	}

	return report, nil
}

// Fix reassigns orphaned rows to the quarantine tenant. A dry run performs
// the same counting pass with zero rows changed. Execution requires the
// exact confirmation string and is rejected before any data access on
// mismatch.
func (f *Fixer) Fix(ctx context.Context, req FixRequest) (*FixResult, error) {
	if !req.DryRun && req.ConfirmText != ConfirmFixOrphans {
		return nil, ErrConfirmationMismatch
	}

	result := &FixResult{DryRun: req.DryRun}

	var quarantineID uuid.UUID
	if !req.DryRun {
		tenant, err := f.ensureQuarantineTenant(ctx)
		if err != nil {
			return nil, err
		}
		quarantineID = tenant.ID
		result.QuarantineTenantID = &quarantineID
	}

	for _, table := range storage.TenantScopedTables {
		result.Tables = append(result.Tables, f.fixTable(ctx, table, req.DryRun, quarantineID))
	}

	for _, t := range result.Tables {
		result.TotalFixed += t.CountFixed
	}

	if !req.DryRun {
		f.auditExecution(ctx, req.Actor, result)
	}

	return result, nil
}

func (f *Fixer) fixTable(ctx context.Context, table string, dryRun bool, quarantineID uuid.UUID) TableResult {
	res := TableResult{Table: table}

	exists, err := f.store.TableExists(ctx, table)
	if err != nil {
		res.Action = ActionError
		res.Error = err.Error()
		return res
	}
	if !exists {
		res.Action = ActionSkipped
		res.Error = "table missing from schema"
		return res
	}

	count, err := f.store.CountOrphans(ctx, table)
	if err != nil {
		res.Action = ActionError
		res.Error = err.Error()
		return res
	}
	res.CountBefore = count

	if count == 0 {
		res.Action = ActionNoOrphans
		return res
	}

	if dryRun {
		res.Action = ActionWouldFix
		return res
	}

	fixed, err := f.store.AdoptOrphans(ctx, table, quarantineID)
	if err != nil {
		res.Action = ActionError
		res.Error = err.Error()
		return res
	}
	res.CountFixed = fixed

	if fixed != count {
		res.Action = ActionError
		res.Error = fmt.Sprintf("expected to fix %d rows, fixed %d", count, fixed)
		return res
	}

	monitoring.OrphansFixed.WithLabelValues(table).Add(float64(fixed))
	res.Action = ActionFixed
	return res
}

// ensureQuarantineTenant creates the quarantine tenant on first execution.
// Idempotent: re-running detects its existence and does not duplicate it.
func (f *Fixer) ensureQuarantineTenant(ctx context.Context) (*models.Tenant, error) {
	tenant, err := f.store.GetTenantBySlug(ctx, models.QuarantineTenantSlug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup quarantine tenant: %w", err)
	}

	now := time.Now()
	tenant = &models.Tenant{
		Name:        models.QuarantineTenantName,
		Slug:        models.QuarantineTenantSlug,
		Status:      models.TenantStatusSuspended,
		SuspendedAt: &now,
	}
	if err := f.store.CreateTenant(ctx, tenant); err != nil {
		// Lost a race with a concurrent fix; re-read
		if errors.Is(err, storage.ErrDuplicateKey) {
			return f.store.GetTenantBySlug(ctx, models.QuarantineTenantSlug)
		}
		return nil, fmt.Errorf("create quarantine tenant: %w", err)
	}

	f.log.Info().Str("tenantId", tenant.ID.String()).Msg("quarantine tenant created")
	return tenant, nil
}

func (f *Fixer) auditExecution(ctx context.Context, actor string, result *FixResult) {
	details := models.Variables{
		"totalFixed": result.TotalFixed,
		"tables":     result.Tables,
	}
	if result.QuarantineTenantID != nil {
		details["quarantineTenantId"] = result.QuarantineTenantID.String()
	}

	entry := &models.AuditLog{
		Actor:   actor,
		Action:  models.AuditActionOrphanFix,
		Details: details,
	}

	if err := f.store.CreateAuditLog(ctx, entry); err != nil {
		f.log.Error().Err(err).Msg("failed to write orphan fix audit log")
	}
	if f.pub != nil {
		f.pub.Publish(entry)
	}

	f.log.Info().
		Str("actor", actor).
		Int64("totalFixed", result.TotalFixed).
		Msg("orphan fix executed")
}

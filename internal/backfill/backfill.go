// Package backfill assigns a target tenant to every historical row lacking
// a tenant identifier. Running it to zero remaining orphans is the
// prerequisite for turning on strict enforcement.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// Store is the slice of the record store the backfill needs
type Store interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	CountOrphans(ctx context.Context, table string) (int64, error)
	AdoptOrphans(ctx context.Context, table string, tenantID uuid.UUID) (int64, error)
	TableExists(ctx context.Context, table string) (bool, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Publisher emits audit events for executed backfills
type Publisher interface {
	Publish(entry *models.AuditLog)
}

// Options describes a backfill invocation
type Options struct {
	// DryRun only reports counts
	DryRun bool
	// TargetTenant is a slug or id; empty means the canonical default
	// tenant, created if absent
	TargetTenant string
	Actor        string
}

// TableResult is one table's backfill outcome
type TableResult struct {
	Table         string `json:"table"`
	CountBefore   int64  `json:"countBefore"`
	CountAssigned int64  `json:"countAssigned"`
	Error         string `json:"error,omitempty"`
}

// Report is the outcome of a backfill run. RemainingOrphans of zero after an
// execution is the signal that strict enforcement can be turned on.
type Report struct {
	DryRun           bool          `json:"dryRun"`
	TargetTenantID   *uuid.UUID    `json:"targetTenantId,omitempty"`
	Tables           []TableResult `json:"tables"`
	TotalAssigned    int64         `json:"totalAssigned"`
	RemainingOrphans int64         `json:"remainingOrphans"`
}

// Runner executes backfills
type Runner struct {
	store Store
	pub   Publisher
	log   zerolog.Logger
}

// NewRunner creates a backfill runner
func NewRunner(store Store, pub Publisher, logger zerolog.Logger) *Runner {
	return &Runner{store: store, pub: pub, log: logger}
}

// Run processes the tenant-scoped tables in fixed dependency order, parents
// before referencing tables, so non-enforced foreign keys stay coherent.
// Idempotent: a second run with nothing missing is a no-op reporting zero
// remaining orphans.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun}

	target, err := r.resolveTarget(ctx, opts)
	if err != nil {
		return nil, err
	}
	if target != nil {
		report.TargetTenantID = &target.ID
	}

	for _, table := range storage.BackfillOrder {
		res := TableResult{Table: table}

		exists, err := r.store.TableExists(ctx, table)
		if err != nil {
			res.Error = err.Error()
			report.Tables = append(report.Tables, res)
			continue
		}
		if !exists {
			res.Error = "table missing from schema"
			report.Tables = append(report.Tables, res)
			continue
		}

		count, err := r.store.CountOrphans(ctx, table)
		if err != nil {
			res.Error = err.Error()
			report.Tables = append(report.Tables, res)
			continue
		}
		res.CountBefore = count

		if !opts.DryRun && count > 0 && target != nil {
			assigned, err := r.store.AdoptOrphans(ctx, table, target.ID)
			if err != nil {
				res.Error = err.Error()
				report.Tables = append(report.Tables, res)
				continue
			}
			res.CountAssigned = assigned
			report.TotalAssigned += assigned
		}

		report.Tables = append(report.Tables, res)
	}

	// Re-count so the report states what is actually left, not what the
	// pass believes it did
	for _, table := range storage.BackfillOrder {
		count, err := r.store.CountOrphans(ctx, table)
		if err != nil {
			continue
		}
		report.RemainingOrphans += count
	}

	if !opts.DryRun {
		r.auditExecution(ctx, opts.Actor, report)
	}

	return report, nil
}

// resolveTarget resolves the target tenant by id, then slug. With no target
// given, the canonical default tenant is used and created if absent; a dry
// run never creates it.
func (r *Runner) resolveTarget(ctx context.Context, opts Options) (*models.Tenant, error) {
	if opts.TargetTenant != "" {
		if id, err := uuid.Parse(opts.TargetTenant); err == nil {
			tenant, err := r.store.GetTenant(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("resolve target tenant %s: %w", opts.TargetTenant, err)
			}
			return tenant, nil
		}

		tenant, err := r.store.GetTenantBySlug(ctx, opts.TargetTenant)
		if err != nil {
			return nil, fmt.Errorf("resolve target tenant %q: %w", opts.TargetTenant, err)
		}
		return tenant, nil
	}

	tenant, err := r.store.GetTenantBySlug(ctx, models.DefaultTenantSlug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup default tenant: %w", err)
	}

	if opts.DryRun {
		return nil, nil
	}

	tenant = &models.Tenant{
		Name:   models.DefaultTenantName,
		Slug:   models.DefaultTenantSlug,
		Status: models.TenantStatusActive,
	}
	if err := r.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return r.store.GetTenantBySlug(ctx, models.DefaultTenantSlug)
		}
		return nil, fmt.Errorf("create default tenant: %w", err)
	}

	r.log.Info().Str("tenantId", tenant.ID.String()).Msg("default tenant created")
	return tenant, nil
}

func (r *Runner) auditExecution(ctx context.Context, actor string, report *Report) {
	details := models.Variables{
		"totalAssigned":    report.TotalAssigned,
		"remainingOrphans": report.RemainingOrphans,
		"tables":           report.Tables,
	}
	if report.TargetTenantID != nil {
		details["targetTenantId"] = report.TargetTenantID.String()
	}

	entry := &models.AuditLog{
		CreatedAt: time.Now(),
		Actor:     actor,
		Action:    models.AuditActionBackfill,
		Details:   details,
	}

	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		r.log.Error().Err(err).Msg("failed to write backfill audit log")
	}
	if r.pub != nil {
		r.pub.Publish(entry)
	}

	r.log.Info().
		Str("actor", actor).
		Int64("totalAssigned", report.TotalAssigned).
		Int64("remainingOrphans", report.RemainingOrphans).
		Msg("backfill executed")
}

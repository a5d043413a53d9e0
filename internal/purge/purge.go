// Package purge deletes all application data. It exists for disposable
// environments and is gated by multiple independent environment flags plus
// an extra production-specific flag, because there is no transactional undo.
package purge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// Environment gates
const (
	AllowedEnv     = "PURGE_APP_DATA_ALLOWED"
	ConfirmEnv     = "PURGE_APP_DATA_CONFIRM"
	ConfirmValue   = "YES_PURGE_APP_DATA"
	ProdAllowedEnv = "PURGE_PROD_ALLOWED"
)

// Gate errors, all returned before any data access
var (
	ErrNotAllowed     = errors.New(AllowedEnv + " is not set to true")
	ErrNotConfirmed   = errors.New(ConfirmEnv + " does not match " + ConfirmValue)
	ErrProdNotAllowed = errors.New(ProdAllowedEnv + " is required in production")
)

// Store is the slice of the record store the purge needs
type Store interface {
	PurgeTable(ctx context.Context, table string) (int64, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Publisher emits audit events for executed purges
type Publisher interface {
	Publish(entry *models.AuditLog)
}

// CheckGates validates the environment flags. env is os.Getenv in
// production code and a map lookup in tests.
func CheckGates(env func(string) string, production bool) error {
	if env(AllowedEnv) != "true" {
		return ErrNotAllowed
	}
	if env(ConfirmEnv) != ConfirmValue {
		return ErrNotConfirmed
	}
	if production && env(ProdAllowedEnv) != "true" {
		return ErrProdNotAllowed
	}
	return nil
}

// TableResult is one table's purge outcome
type TableResult struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes a purge run
type Report struct {
	Tables       []TableResult `json:"tables"`
	TotalDeleted int64         `json:"totalDeleted"`
}

// Runner executes purges
type Runner struct {
	store Store
	pub   Publisher
	log   zerolog.Logger
}

// NewRunner creates a purge runner
func NewRunner(store Store, pub Publisher, logger zerolog.Logger) *Runner {
	return &Runner{store: store, pub: pub, log: logger}
}

// Run deletes every row of every tenant-scoped table, children before
// parents so non-enforced foreign keys never dangle mid-run. Gates must be
// checked by the caller before Run.
func (r *Runner) Run(ctx context.Context, actor string) *Report {
	report := &Report{}

	// Reverse of the backfill dependency order
	for i := len(storage.BackfillOrder) - 1; i >= 0; i-- {
		table := storage.BackfillOrder[i]
		res := TableResult{Table: table}

		deleted, err := r.store.PurgeTable(ctx, table)
		if err != nil {
			res.Error = err.Error()
			r.log.Error().Err(err).Str("table", table).Msg("purge failed for table")
		} else {
			res.Deleted = deleted
			report.TotalDeleted += deleted
		}

		report.Tables = append(report.Tables, res)
	}

	entry := &models.AuditLog{
		CreatedAt: time.Now(),
		Actor:     actor,
		Action:    models.AuditActionPurge,
		Details: models.Variables{
			"totalDeleted": report.TotalDeleted,
			"tables":       report.Tables,
		},
	}
	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		r.log.Error().Err(err).Msg("failed to write purge audit log")
	}
	if r.pub != nil {
		r.pub.Publish(entry)
	}

	r.log.Warn().
		Str("actor", actor).
		Int64("totalDeleted", report.TotalDeleted).
		Msg("application data purged")

	return report
}

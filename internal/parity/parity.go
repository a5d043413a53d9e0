// Package parity verifies that the live schema contains the tables and
// columns the guards and ops jobs depend on. Missing items are logged and
// recorded for the operations dashboard; drift never aborts startup.
package parity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// SchemaReader is the slice of the store the checker needs
type SchemaReader interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	CreateErrorLog(ctx context.Context, entry *models.ErrorLog) error
}

// Check describes one expected schema element. Column empty means the check
// is for the table itself.
type Check struct {
	Table    string
	Column   string
	Critical bool
	Guidance string
}

// Checks lists the schema elements enforcement depends on
var Checks = buildChecks()

func buildChecks() []Check {
	checks := []Check{
		{Table: "tenants", Critical: true,
			Guidance: "tenant status guard cannot resolve tenants; run migrations"},
		{Table: "tenants", Column: "status", Critical: true,
			Guidance: "tenant status guard cannot read status; run migrations"},
		{Table: "tenants", Column: "slug", Critical: true,
			Guidance: "quarantine/default tenant lookup by slug will fail"},
		{Table: "agreements", Critical: true,
			Guidance: "agreement guard cannot resolve active agreements"},
		{Table: "agreements", Column: "version", Critical: true,
			Guidance: "agreement version monotonicity cannot be checked"},
		{Table: "agreements", Column: "tenant_id", Critical: true,
			Guidance: "tenant-specific vs global agreement resolution will fail"},
		{Table: "agreement_acceptances", Critical: true,
			Guidance: "acceptance checks will fail closed for every user"},
		{Table: "agreement_acceptances", Column: "version", Critical: true,
			Guidance: "exact-version acceptance checks will fail closed"},
		{Table: "audit_logs", Critical: false,
			Guidance: "destructive operations will not be durably audited"},
		{Table: "error_logs", Critical: false,
			Guidance: "error capture will log but not persist failures"},
	}

	// Every tenant-scoped table needs its tenant column for the orphan
	// detector and backfill to operate
	for _, table := range storage.TenantScopedTables {
		checks = append(checks,
			Check{Table: table, Critical: table == "users",
				Guidance: fmt.Sprintf("orphan detection and backfill will skip %s", table)},
			Check{Table: table, Column: "tenant_id", Critical: table == "users",
				Guidance: fmt.Sprintf("%s rows cannot be tenant-partitioned", table)},
		)
	}

	return checks
}

// Result is one check's outcome
type Result struct {
	Table    string `json:"table"`
	Column   string `json:"column,omitempty"`
	Critical bool   `json:"critical"`
	OK       bool   `json:"ok"`
	Guidance string `json:"guidance,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes a parity run
type Report struct {
	CheckedAt       time.Time `json:"checkedAt"`
	Results         []Result  `json:"results"`
	MissingCritical int       `json:"missingCritical"`
	Missing         int       `json:"missing"`
}

// Checker runs schema parity checks
type Checker struct {
	schema SchemaReader
	log    zerolog.Logger
}

// NewChecker creates a parity checker
func NewChecker(schema SchemaReader, logger zerolog.Logger) *Checker {
	return &Checker{schema: schema, log: logger}
}

// Run executes every check. It returns the report and never an error:
// surfacing drift quickly must not gate availability.
func (c *Checker) Run(ctx context.Context) *Report {
	report := &Report{CheckedAt: time.Now()}

	for _, check := range Checks {
		result := Result{
			Table:    check.Table,
			Column:   check.Column,
			Critical: check.Critical,
			Guidance: check.Guidance,
		}

		var exists bool
		var err error
		if check.Column == "" {
			exists, err = c.schema.TableExists(ctx, check.Table)
		} else {
			exists, err = c.schema.ColumnExists(ctx, check.Table, check.Column)
		}

		switch {
		case err != nil:
			result.Error = err.Error()
			c.log.Error().Err(err).
				Str("table", check.Table).
				Str("column", check.Column).
				Msg("schema parity check failed to run")

		case exists:
			result.OK = true

		default:
			report.Missing++
			if check.Critical {
				report.MissingCritical++
			}
			c.record(ctx, check)
		}

		report.Results = append(report.Results, result)
	}

	if report.MissingCritical > 0 {
		c.log.Error().
			Int("missingCritical", report.MissingCritical).
			Int("missing", report.Missing).
			Msg("schema drift detected; enforcement may misbehave")
	} else if report.Missing > 0 {
		c.log.Warn().
			Int("missing", report.Missing).
			Msg("non-critical schema drift detected")
	} else {
		c.log.Info().Int("checks", len(report.Results)).Msg("schema parity verified")
	}

	return report
}

func (c *Checker) record(ctx context.Context, check Check) {
	target := check.Table
	if check.Column != "" {
		target = check.Table + "." + check.Column
	}

	level := c.log.Warn()
	if check.Critical {
		level = c.log.Error()
	}
	level.
		Str("target", target).
		Str("guidance", check.Guidance).
		Msg("schema element missing")

	entry := &models.ErrorLog{
		Kind:    models.ErrorKindDrift,
		Message: fmt.Sprintf("schema element missing: %s", target),
		Details: models.Variables{
			"critical": check.Critical,
			"guidance": check.Guidance,
		},
	}
	if err := c.schema.CreateErrorLog(ctx, entry); err != nil {
		c.log.Error().Err(err).Msg("failed to persist schema drift entry")
	}
}

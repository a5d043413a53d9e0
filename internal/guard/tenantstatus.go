package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/cache"
	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/errcapture"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/monitoring"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// TenantReader is the slice of the store the status guard needs
type TenantReader interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// TenantStatusGuard blocks requests from users of non-active tenants.
//
// This guard fails OPEN on internal errors: a stale or unavailable tenant
// status check must not take the whole platform down. The agreement guard
// makes the opposite choice; the asymmetry is deliberate, do not unify.
type TenantStatusGuard struct {
	tenants TenantReader
	cache   *cache.Cache[*models.Tenant]
	mode    config.EnforcementMode
	errors  ErrorSink
	log     zerolog.Logger
}

// NewTenantStatusGuard creates a tenant status guard with its own cache
func NewTenantStatusGuard(tenants TenantReader, c *cache.Cache[*models.Tenant], mode config.EnforcementMode, sink ErrorSink, logger zerolog.Logger) *TenantStatusGuard {
	return &TenantStatusGuard{
		tenants: tenants,
		cache:   c,
		mode:    mode,
		errors:  sink,
		log:     logger,
	}
}

// InvalidateTenant drops the cached row for a tenant. Callers that change a
// tenant's status must invoke this.
func (g *TenantStatusGuard) InvalidateTenant(id uuid.UUID) {
	g.cache.Invalidate(id.String())
}

// Middleware returns the chi-compatible middleware
func (g *TenantStatusGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.mode == config.EnforcementDisabled {
			next.ServeHTTP(w, r)
			return
		}

		if Match(StatusExempt, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Authentication is an upstream concern
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		// Operators pass regardless of tenant state, even when acting on
		// another tenant through the override header.
		if principal.IsOperator() {
			monitoring.GuardDecisions.WithLabelValues("tenant_status", "operator_bypass").Inc()
			next.ServeHTTP(w, r)
			return
		}

		tenantID := resolveTenantID(principal, r)
		if tenantID == nil {
			// Ambiguous; other layers reject this case
			next.ServeHTTP(w, r)
			return
		}

		tenant, err := g.lookupTenant(r.Context(), *tenantID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Unknown tenant id is ambiguous; other layers reject it
				next.ServeHTTP(w, r)
				return
			}
			// Fail open: an outage in this check must not make the
			// platform unusable.
			g.log.Error().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("tenantId", tenantID.String()).
				Str("userId", principal.UserID.String()).
				Str("path", r.URL.Path).
				Str("error", errcapture.Redact(err.Error())).
				Msg("tenant status lookup failed, allowing request")
			if g.errors != nil {
				g.errors.Capture(r, models.ErrorKindGuard, err)
			}
			monitoring.GuardDecisions.WithLabelValues("tenant_status", "fail_open").Inc()
			next.ServeHTTP(w, r)
			return
		}

		switch tenant.Status {
		case models.TenantStatusSuspended:
			// Suspension blocks everyone, tenant admins included
			g.logRejection(r, principal, tenant, "blocked: tenant is suspended")
			monitoring.GuardDecisions.WithLabelValues("tenant_status", "suspended").Inc()
			reject(w, r, http.StatusForbidden, CodeTenantSuspended, "tenant is suspended", "")
			return

		case models.TenantStatusInactive:
			if g.mode == config.EnforcementSoft {
				g.log.Warn().
					Str("requestId", middleware.GetReqID(r.Context())).
					Str("tenantId", tenant.ID.String()).
					Str("userId", principal.UserID.String()).
					Str("path", r.URL.Path).
					Msg("inactive tenant allowed in soft enforcement mode")
				monitoring.GuardDecisions.WithLabelValues("tenant_status", "soft_warn").Inc()
				w.Header().Set(WarningHeader, CodeTenantInactive)
				next.ServeHTTP(w, r)
				return
			}
			g.logRejection(r, principal, tenant, "blocked: tenant onboarding is incomplete")
			monitoring.GuardDecisions.WithLabelValues("tenant_status", "inactive").Inc()
			reject(w, r, http.StatusForbidden, CodeTenantInactive, "tenant onboarding is incomplete", "")
			return
		}

		monitoring.GuardDecisions.WithLabelValues("tenant_status", "allow").Inc()
		next.ServeHTTP(w, r)
	})
}

// resolveTenantID picks the override header for operators, otherwise the
// principal's own tenant. Non-operators cannot redirect enforcement at a
// different tenant via the header.
func resolveTenantID(principal *auth.Principal, r *http.Request) *uuid.UUID {
	if principal.IsOperator() {
		if raw := r.Header.Get(TenantOverrideHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				return &id
			}
		}
	}
	return principal.TenantID
}

func (g *TenantStatusGuard) logRejection(r *http.Request, principal *auth.Principal, tenant *models.Tenant, msg string) {
	g.log.Info().
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("tenantId", tenant.ID.String()).
		Str("userId", principal.UserID.String()).
		Str("path", r.URL.Path).
		Msg(msg)
}

func (g *TenantStatusGuard) lookupTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if tenant, ok := g.cache.Get(id.String()); ok {
		return tenant, nil
	}

	tenant, err := g.tenants.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	g.cache.Set(id.String(), tenant)
	return tenant, nil
}

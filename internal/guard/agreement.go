package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/cache"
	"github.com/workdeck/workdeck-server/internal/errcapture"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/monitoring"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// AgreementRedirect is the hint clients use to route a blocked user to the
// acceptance screen
const AgreementRedirect = "/agreement"

// AgreementReader is the slice of the store the agreement guard needs
type AgreementReader interface {
	GetActiveAgreement(ctx context.Context, tenantID uuid.UUID) (*models.Agreement, error)
	GetActiveGlobalAgreement(ctx context.Context) (*models.Agreement, error)
	HasAcceptance(ctx context.Context, tenantID, userID, agreementID uuid.UUID, version int) (bool, error)
}

// AgreementGuard blocks a tenant-scoped, non-operator user from any
// non-exempt action until they accept the tenant's currently active
// agreement.
//
// Unlike the tenant status guard, this guard fails CLOSED on internal
// errors: silently waiving a legal requirement cannot be undone after the
// fact. The asymmetry is deliberate, do not unify.
type AgreementGuard struct {
	store AgreementReader
	// agreements caches the resolved active agreement per tenant; a stored
	// nil means "no enforcement for this tenant"
	agreements *cache.Cache[*models.Agreement]
	// accepted caches positive acceptance checks only; an acceptance row is
	// never deleted, so true never goes stale
	accepted *cache.Cache[bool]
	errors   ErrorSink
	log      zerolog.Logger
}

// NewAgreementGuard creates an agreement guard with its own caches
func NewAgreementGuard(store AgreementReader, agreements *cache.Cache[*models.Agreement], accepted *cache.Cache[bool], sink ErrorSink, logger zerolog.Logger) *AgreementGuard {
	return &AgreementGuard{
		store:      store,
		agreements: agreements,
		accepted:   accepted,
		errors:     sink,
		log:        logger,
	}
}

// InvalidateTenant drops the cached active agreement for a tenant. Every
// write that changes which agreement is active must invoke this; global
// agreement activation invalidates all tenants via Purge.
func (g *AgreementGuard) InvalidateTenant(id uuid.UUID) {
	g.agreements.Invalidate(id.String())
}

// InvalidateAll drops every cached agreement, used when the global default
// agreement changes
func (g *AgreementGuard) InvalidateAll() {
	g.agreements.Purge()
}

// Middleware returns the chi-compatible middleware
func (g *AgreementGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Match(AgreementExempt, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		// Operators bypass, including while impersonating a tenant
		if principal.IsOperator() {
			monitoring.GuardDecisions.WithLabelValues("agreement", "operator_bypass").Inc()
			next.ServeHTTP(w, r)
			return
		}

		// A non-operator with no tenant is an orphaned account: its tenant
		// was deleted or misconfigured. Fail closed.
		if principal.TenantID == nil {
			g.logDecision(r, principal, nil, "blocked: principal has no tenant")
			monitoring.GuardDecisions.WithLabelValues("agreement", "tenant_required").Inc()
			reject(w, r, http.StatusUnavailableForLegalReasons, CodeTenantRequired,
				"account is not associated with a tenant", AgreementRedirect)
			return
		}

		tenantID := *principal.TenantID

		agreement, err := g.activeAgreement(r.Context(), tenantID)
		if err != nil {
			g.failClosed(w, r, principal, err)
			return
		}

		// No active agreement anywhere means no enforcement: until an
		// administrator activates one, there is nothing to accept.
		if agreement == nil {
			monitoring.GuardDecisions.WithLabelValues("agreement", "no_agreement").Inc()
			next.ServeHTTP(w, r)
			return
		}

		accepted, err := g.hasAccepted(r.Context(), tenantID, principal.UserID, agreement)
		if err != nil {
			g.failClosed(w, r, principal, err)
			return
		}

		if !accepted {
			g.logDecision(r, principal, agreement, "blocked: agreement not accepted")
			monitoring.GuardDecisions.WithLabelValues("agreement", "required").Inc()
			reject(w, r, http.StatusUnavailableForLegalReasons, CodeAgreementRequired,
				fmt.Sprintf("version %d of the terms of service must be accepted", agreement.Version),
				AgreementRedirect)
			return
		}

		monitoring.GuardDecisions.WithLabelValues("agreement", "allow").Inc()
		next.ServeHTTP(w, r)
	})
}

// activeAgreement resolves the enforced agreement for a tenant:
// tenant-specific active agreement first, then the global default. A nil
// result (cached) means neither exists.
func (g *AgreementGuard) activeAgreement(ctx context.Context, tenantID uuid.UUID) (*models.Agreement, error) {
	if agreement, ok := g.agreements.Get(tenantID.String()); ok {
		return agreement, nil
	}

	agreement, err := g.store.GetActiveAgreement(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		agreement, err = g.store.GetActiveGlobalAgreement(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			agreement, err = nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	g.agreements.Set(tenantID.String(), agreement)
	return agreement, nil
}

func (g *AgreementGuard) hasAccepted(ctx context.Context, tenantID, userID uuid.UUID, agreement *models.Agreement) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s:%d", tenantID, userID, agreement.ID, agreement.Version)
	if ok, hit := g.accepted.Get(key); hit && ok {
		return true, nil
	}

	accepted, err := g.store.HasAcceptance(ctx, tenantID, userID, agreement.ID, agreement.Version)
	if err != nil {
		return false, err
	}

	if accepted {
		g.accepted.Set(key, true)
	}
	return accepted, nil
}

// failClosed converts an internal error into a generic rejection. The error
// is logged with request context; the client only sees "unable to verify".
func (g *AgreementGuard) failClosed(w http.ResponseWriter, r *http.Request, principal *auth.Principal, err error) {
	event := g.log.Error().
		Str("error", errcapture.Redact(err.Error())).
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("userId", principal.UserID.String()).
		Str("path", r.URL.Path)
	if principal.TenantID != nil {
		event = event.Str("tenantId", principal.TenantID.String())
	}
	event.Msg("agreement check failed, blocking request")

	if g.errors != nil {
		g.errors.Capture(r, models.ErrorKindGuard, err)
	}
	monitoring.GuardDecisions.WithLabelValues("agreement", "fail_closed").Inc()
	reject(w, r, http.StatusUnavailableForLegalReasons, CodeInternalError,
		"unable to verify agreement status", "")
}

func (g *AgreementGuard) logDecision(r *http.Request, principal *auth.Principal, agreement *models.Agreement, msg string) {
	event := g.log.Info().
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("userId", principal.UserID.String()).
		Str("path", r.URL.Path)
	if principal.TenantID != nil {
		event = event.Str("tenantId", principal.TenantID.String())
	}
	if agreement != nil {
		event = event.Int("agreementVersion", agreement.Version)
	}
	event.Msg(msg)
}

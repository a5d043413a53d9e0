package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/storage"
	"github.com/workdeck/workdeck-server/pkg/crypto"
)

// ========== Health ==========

// HandleHealth reports liveness
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// ========== Auth handlers ==========

// HandleLogin handles user login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Str("userId", user.ID.String()).Msg("failed to record last login")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := s.auth.ParseRefreshSubject(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil || !user.IsActive {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// ========== Tenant handlers ==========

// HandleOnboardTenant handles tenant self-service onboarding. The tenant
// starts inactive; an operator activates it once onboarding completes.
func (s *RESTServer) HandleOnboardTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Slug          string `json:"slug"`
		AdminEmail    string `json:"admin_email"`
		AdminPassword string `json:"admin_password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Slug == "" || req.AdminEmail == "" || req.AdminPassword == "" {
		s.respondError(w, http.StatusBadRequest, "name, slug, admin_email and admin_password are required")
		return
	}

	tenant := &models.Tenant{
		Name:   req.Name,
		Slug:   req.Slug,
		Status: models.TenantStatusInactive,
	}

	if err := s.store.CreateTenant(r.Context(), tenant); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "tenant already exists")
			return
		}
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	hash, err := crypto.HashPassword(req.AdminPassword)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to create admin user")
		return
	}

	admin := &models.User{
		Email:        req.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		TenantID:     &tenant.ID,
	}
	if err := s.store.CreateUser(r.Context(), admin); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "user already exists")
			return
		}
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to create admin user")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant": tenant,
		"admin":  admin,
	})
}

// HandleListTenants lists tenants
func (s *RESTServer) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)

	tenants, total, err := s.store.ListTenants(r.Context(), limit, offset)
	if err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"total":   total,
	})
}

// HandleUpdateTenantStatus transitions a tenant's status and invalidates
// the status guard's cache entry for it
func (s *RESTServer) HandleUpdateTenantStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tenant ID")
		return
	}

	var req struct {
		Status models.TenantStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case models.TenantStatusActive, models.TenantStatusInactive, models.TenantStatusSuspended:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := s.store.UpdateTenantStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to update tenant")
		return
	}

	s.statusGuard.InvalidateTenant(id)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": req.Status,
	})
}

// ========== Agreement handlers ==========

// HandleCurrentAgreement reports the agreement the caller must accept, if
// any, and whether they already accepted it. This is the endpoint the
// blocking screen renders from, so it is exempt from the agreement guard.
func (s *RESTServer) HandleCurrentAgreement(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if principal.TenantID == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"agreement": nil,
			"accepted":  false,
			"reason":    "no tenant",
		})
		return
	}

	agreement, err := s.resolveActiveAgreement(r, *principal.TenantID)
	if err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to resolve agreement")
		return
	}

	if agreement == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"agreement": nil,
			"accepted":  true,
		})
		return
	}

	accepted, err := s.store.HasAcceptance(r.Context(), *principal.TenantID, principal.UserID, agreement.ID, agreement.Version)
	if err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to check acceptance")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"agreement": agreement,
		"accepted":  accepted,
	})
}

// HandleAcceptAgreement records the caller's acceptance of the currently
// active agreement version
func (s *RESTServer) HandleAcceptAgreement(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if principal.TenantID == nil {
		s.respondError(w, http.StatusBadRequest, "account is not associated with a tenant")
		return
	}

	agreement, err := s.resolveActiveAgreement(r, *principal.TenantID)
	if err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to resolve agreement")
		return
	}
	if agreement == nil {
		s.respondError(w, http.StatusConflict, "no active agreement to accept")
		return
	}

	acceptance := &models.AgreementAcceptance{
		TenantID:    *principal.TenantID,
		UserID:      principal.UserID,
		AgreementID: agreement.ID,
		Version:     agreement.Version,
	}
	if err := s.store.CreateAcceptance(r.Context(), acceptance); err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to record acceptance")
		return
	}

	s.respondJSON(w, http.StatusCreated, acceptance)
}

// HandleCreateAgreement creates a draft agreement, tenant-specific or
// global when tenant_id is omitted
func (s *RESTServer) HandleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID *uuid.UUID `json:"tenant_id"`
		Title    string     `json:"title"`
		Body     string     `json:"body"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	agreement := &models.Agreement{
		TenantID: req.TenantID,
		Title:    req.Title,
		Body:     req.Body,
	}

	if err := s.store.CreateAgreement(r.Context(), agreement); err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to create agreement")
		return
	}

	s.respondJSON(w, http.StatusCreated, agreement)
}

// HandleActivateAgreement activates an agreement and invalidates the
// agreement guard's cache so enforcement picks up the new version
// immediately rather than after the TTL
func (s *RESTServer) HandleActivateAgreement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid agreement ID")
		return
	}

	agreement, err := s.store.ActivateAgreement(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "agreement not found")
			return
		}
		if errors.Is(err, storage.ErrInvalidData) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to activate agreement")
		return
	}

	if agreement.TenantID != nil {
		s.agreementGuard.InvalidateTenant(*agreement.TenantID)
	} else {
		// The global default changed; every tenant's resolution may change
		s.agreementGuard.InvalidateAll()
	}

	s.respondJSON(w, http.StatusOK, agreement)
}

// resolveActiveAgreement mirrors the guard's resolution order:
// tenant-specific active agreement first, then the global default
func (s *RESTServer) resolveActiveAgreement(r *http.Request, tenantID uuid.UUID) (*models.Agreement, error) {
	agreement, err := s.store.GetActiveAgreement(r.Context(), tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		agreement, err = s.store.GetActiveGlobalAgreement(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
	}
	return agreement, err
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/orphan"
)

// HandleOrphanReport runs a read-only orphan detection pass
func (s *RESTServer) HandleOrphanReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.fixer.Detect(r.Context())
	if err != nil {
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to detect orphans")
		return
	}

	s.respondJSON(w, http.StatusOK, report)
}

// HandleOrphanFix executes (or dry-runs) an orphan fix. Execution requires
// the exact confirmation string in the request body.
func (s *RESTServer) HandleOrphanFix(w http.ResponseWriter, r *http.Request) {
	var req orphan.FixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		req.Actor = principal.Email
	}

	result, err := s.fixer.Fix(r.Context(), req)
	if err != nil {
		if errors.Is(err, orphan.ErrConfirmationMismatch) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.capturer.Capture(r, models.ErrorKindServer, err)
		s.respondError(w, http.StatusInternalServerError, "failed to fix orphans")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// HandleParityCheck runs the schema parity check on demand
func (s *RESTServer) HandleParityCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.parity.Run(r.Context()))
}

// HandleListErrorLogs lists captured errors, newest first
func (s *RESTServer) HandleListErrorLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50)

	entries, total, err := s.store.ListErrorLogs(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list error logs")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"errors": entries,
		"total":  total,
	})
}

package guard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/workdeck/workdeck-server/internal/models"
)

// ErrorSink persists guard-internal failures so they show up on the
// operations dashboard alongside panics and handler errors.
// *errcapture.Capturer satisfies it; a nil sink degrades to log-only.
type ErrorSink interface {
	Capture(r *http.Request, kind models.ErrorKind, err error)
}

// Guard rejection codes
const (
	CodeTenantSuspended   = "TENANT_SUSPENDED"
	CodeTenantInactive    = "TENANT_INACTIVE"
	CodeAgreementRequired = "AGREEMENT_REQUIRED"
	CodeTenantRequired    = "TENANT_REQUIRED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Headers set by the guards
const (
	// TenantOverrideHeader lets platform operators act on another tenant
	TenantOverrideHeader = "X-Tenant-ID"
	// WarningHeader is set instead of blocking when enforcement is soft
	WarningHeader = "X-Tenant-Status-Warning"
)

type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	RequestID string            `json:"requestId,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// reject writes the shared guard rejection envelope. Agreement rejections use
// status 451 so legal blocks stay machine-distinguishable from plain 403s.
func reject(w http.ResponseWriter, r *http.Request, status int, code, message, redirectTo string) {
	body := errorBody{
		Code:      code,
		Message:   message,
		Status:    status,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if redirectTo != "" {
		body.Details = map[string]string{"redirectTo": redirectTo}
	}

	response, _ := json.Marshal(errorEnvelope{Error: body})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

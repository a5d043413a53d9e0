// Package errcapture classifies and persists request failures with secret
// redaction. It sits outside the guards but consumes the same request
// context (correlation id, principal).
package errcapture

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/monitoring"
)

// ErrorRecorder is the slice of the store the capturer needs
type ErrorRecorder interface {
	CreateErrorLog(ctx context.Context, entry *models.ErrorLog) error
}

// Capturer converts panics and reported errors into persisted, redacted
// error-log entries
type Capturer struct {
	store ErrorRecorder
	log   zerolog.Logger
}

// New creates a capturer
func New(store ErrorRecorder, logger zerolog.Logger) *Capturer {
	return &Capturer{store: store, log: logger}
}

// Middleware recovers panics, persists them and responds 500. It replaces
// the stock recoverer so every unhandled failure lands in the error log.
func (c *Capturer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				c.persist(r, models.ErrorKindPanic, fmt.Sprintf("%v", rec), models.Variables{
					"stack": string(debug.Stack()),
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error","status":500,"requestId":%q}}`,
					middleware.GetReqID(r.Context()))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Capture persists a handler-reported failure with request context
func (c *Capturer) Capture(r *http.Request, kind models.ErrorKind, err error) {
	if err == nil {
		return
	}
	c.persist(r, kind, err.Error(), nil)
}

func (c *Capturer) persist(r *http.Request, kind models.ErrorKind, message string, details models.Variables) {
	entry := &models.ErrorLog{
		RequestID: middleware.GetReqID(r.Context()),
		Path:      r.URL.Path,
		Kind:      kind,
		Message:   Redact(message),
		Details:   models.Variables(RedactVariables(details)),
	}

	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		entry.UserID = &principal.UserID
		entry.TenantID = principal.TenantID
	}

	monitoring.ErrorsCaptured.WithLabelValues(string(kind)).Inc()

	c.log.Error().
		Str("requestId", entry.RequestID).
		Str("path", entry.Path).
		Str("kind", string(kind)).
		Msg(entry.Message)

	// Persisting must not take the request down with it
	if err := c.store.CreateErrorLog(r.Context(), entry); err != nil {
		c.log.Error().Err(err).Msg("failed to persist error log entry")
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies a destructive ops operation
type AuditAction string

const (
	AuditActionOrphanFix AuditAction = "ORPHAN_FIX"
	AuditActionBackfill  AuditAction = "BACKFILL"
	AuditActionPurge     AuditAction = "PURGE"
)

// AuditLog records who executed a destructive operation and what changed.
// Dry runs are never audited.
type AuditLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Actor   string      `json:"actor" db:"actor"`
	Action  AuditAction `json:"action" db:"action"`
	Details Variables   `json:"details,omitempty" db:"details"`
}

// ErrorKind classifies a captured failure
type ErrorKind string

const (
	ErrorKindPanic  ErrorKind = "PANIC"
	ErrorKindGuard  ErrorKind = "GUARD"
	ErrorKindDrift  ErrorKind = "SCHEMA_DRIFT"
	ErrorKindServer ErrorKind = "INTERNAL"
)

// ErrorLog represents a captured failure with redacted context
type ErrorLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	RequestID string     `json:"requestId,omitempty" db:"request_id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`
	UserID    *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	Path      string     `json:"path,omitempty" db:"path"`

	Kind    ErrorKind `json:"kind" db:"kind"`
	Message string    `json:"message" db:"message"`
	Details Variables `json:"details,omitempty" db:"details"`
}

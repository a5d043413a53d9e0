// Package audit fans destructive-operation audit events out to NATS so an
// operations dashboard can follow fixes and backfills in real time. The
// database audit_logs row is the durable record; this stream is best-effort.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/workdeck/workdeck-server/internal/models"
)

// SubjectPrefix for all audit events
const SubjectPrefix = "ops.audit"

// Publisher publishes audit events. A nil connection degrades to log-only,
// matching how the server runs without NATS configured.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a publisher; nc may be nil
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Publish emits an audit event on ops.audit.<action>
func (p *Publisher) Publish(entry *models.AuditLog) {
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, entry.Action)

	if p.nc == nil {
		log.Info().Str("subject", subject).Str("actor", entry.Actor).Msg("audit event (NATS not configured)")
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to marshal audit event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish audit event")
	}
}

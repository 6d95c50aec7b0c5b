package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// auditLog records audit events. A failed write is logged and never fails
// the operation being audited.
type auditLog struct {
	repo repository.AuditRepository
	log  zerolog.Logger
}

func newAuditLog(repo repository.AuditRepository, log zerolog.Logger) *auditLog {
	return &auditLog{
		repo: repo,
		log:  log.With().Str("service", "audit").Logger(),
	}
}

func (a *auditLog) record(ctx context.Context, actorID, action, target string, details map[string]string) {
	event := &models.AuditEvent{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Target:    target,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.repo.Record(ctx, event); err != nil {
		a.log.Error().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Msg("Failed to record audit event")
	}
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// AuditRepository records domain events in audit_logs.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Publish(ctx context.Context, event domain.Event) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, action, actor_id, entity_kind, entity_id, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, uuid.NewString(), string(event.Type), event.ActorID, event.EntityKind, event.EntityID, detailsJSON, occurredAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

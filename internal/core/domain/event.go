package domain

import "time"

type EventType string

const (
	EventDocumentCreated   EventType = "document.created"
	EventDocumentUpdated   EventType = "document.updated"
	EventDocumentDeleted   EventType = "document.deleted"
	EventDocumentProcessed EventType = "document.processed"
	EventTaskProgress      EventType = "task.progress"
	EventTaskEscalated     EventType = "task.escalated"
	EventTaskReassigned    EventType = "task.reassigned"
)

// Event is emitted after the owning transaction commits.
type Event struct {
	Type       EventType      `json:"type"`
	ActorID    string         `json:"actor_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

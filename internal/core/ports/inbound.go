package ports

import (
	"context"
	"io"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, actor domain.Actor, title, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the processing pipeline for a stored document.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string, actor domain.Actor) (*domain.ProcessingOutcome, error)
	EnqueueDocument(ctx context.Context, documentID string, actor domain.Actor) error
}

// DocumentReader is the inbound read model for documents and summaries.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*domain.DocumentDetail, error)
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentList, error)
	GetSummary(ctx context.Context, documentID string) (*domain.Summary, error)
	ListSummaries(ctx context.Context, page domain.Page) (*domain.SummaryList, error)
	UpdateDocument(ctx context.Context, id string, actor domain.Actor, patch domain.DocumentPatch) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string, actor domain.Actor) error
}

// TaskLifecycle is the inbound contract for task mutations and reads.
type TaskLifecycle interface {
	RecordProgress(ctx context.Context, taskID string, actor domain.Actor, notes string, newStatus *domain.TaskStatus) (*domain.TaskUpdate, error)
	Escalate(ctx context.Context, taskID string, actor domain.Actor, notes string) (*domain.TaskUpdate, error)
	Reassign(ctx context.Context, taskID string, actor domain.Actor, role domain.Role, userID *string) (*domain.Task, error)
	ListTasks(ctx context.Context, actor domain.Actor, filter domain.TaskFilter) (*domain.TaskList, error)
	ListUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error)
}

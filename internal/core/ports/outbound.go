package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// DocumentRepository persists and reads documents and their summaries.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)
	Update(ctx context.Context, id string, patch domain.DocumentPatch) error
	Delete(ctx context.Context, id string) error
	GetSummary(ctx context.Context, documentID string) (*domain.Summary, error)
	ListSummaries(ctx context.Context, page domain.Page) ([]domain.SummaryPreview, int, error)
}

// ProcessingStore writes a processing result as one atomic unit.
type ProcessingStore interface {
	SaveProcessingResult(ctx context.Context, documentID string, result domain.ProcessingResult) (*domain.Summary, []domain.Task, error)
}

// TaskStore reads tasks and applies lifecycle changes atomically.
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, int, error)
	ListTasksByDocument(ctx context.Context, documentID string) ([]domain.Task, error)
	ApplyChange(ctx context.Context, change domain.TaskChange) error
	UpdateAssignment(ctx context.Context, taskID string, role domain.Role, userID *string) error
	ListUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor extracts plain text from a stored file.
type TextExtractor interface {
	Extract(ctx context.Context, key, mimeType string) (string, error)
}

// ProcessingQueue carries asynchronous processing requests to the worker.
type ProcessingQueue interface {
	PublishProcessRequest(ctx context.Context, req domain.ProcessRequest) error
	SubscribeProcessRequests(ctx context.Context, handler func(context.Context, domain.ProcessRequest) error) error
}

// EventPublisher receives post-commit domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Enricher is the remote text-processing capability set. Every error it
// returns is an upstream failure the caller is expected to absorb.
type Enricher interface {
	Available() bool
	Summarize(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	AssignRoles(ctx context.Context, documentText string, tasks []domain.GeneratedTask) ([]domain.Role, error)
}

// ProcessingMetrics observes pipeline runs.
type ProcessingMetrics interface {
	StartDocument()
	FinishDocument(source domain.ProcessingSource, duration time.Duration, err error)
	ObserveStageFailure(stage string)
}

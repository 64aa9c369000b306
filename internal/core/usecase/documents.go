package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/core/ports"
)

type DocumentQueryUseCase struct {
	docs    ports.DocumentRepository
	tasks   ports.TaskStore
	storage ports.ObjectStorage
	events  ports.EventPublisher
}

func NewDocumentQueryUseCase(
	docs ports.DocumentRepository,
	tasks ports.TaskStore,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{docs: docs, tasks: tasks, storage: storage, events: events}
}

// GetDocument returns the document with its current summary, if processed,
// and its tasks in creation order.
func (uc *DocumentQueryUseCase) GetDocument(ctx context.Context, id string) (*domain.DocumentDetail, error) {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	detail := &domain.DocumentDetail{Document: *doc, Tasks: []domain.Task{}}
	summary, err := uc.docs.GetSummary(ctx, id)
	switch {
	case err == nil:
		detail.Summary = summary
	case domain.IsKind(err, domain.ErrSummaryNotFound):
	default:
		return nil, fmt.Errorf("fetch summary: %w", err)
	}

	tasks, err := uc.tasks.ListTasksByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document tasks: %w", err)
	}
	detail.Tasks = tasks
	return detail, nil
}

func (uc *DocumentQueryUseCase) ListDocuments(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentList, error) {
	if err := validatePage(filter.Page); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list documents", err)
	}
	docs, total, err := uc.docs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return &domain.DocumentList{Documents: docs, Pagination: domain.NewPageInfo(filter.Page, total)}, nil
}

func (uc *DocumentQueryUseCase) GetSummary(ctx context.Context, documentID string) (*domain.Summary, error) {
	if _, err := uc.docs.GetByID(ctx, documentID); err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	summary, err := uc.docs.GetSummary(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	return summary, nil
}

// ListSummaries returns one page of summary previews across all documents.
func (uc *DocumentQueryUseCase) ListSummaries(ctx context.Context, page domain.Page) (*domain.SummaryList, error) {
	if err := validatePage(page); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list summaries", err)
	}
	previews, total, err := uc.docs.ListSummaries(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return &domain.SummaryList{Summaries: previews, Pagination: domain.NewPageInfo(page, total)}, nil
}

// UpdateDocument applies a partial update of title, text and file_url. Only
// the creator or an administrator may update, and at least one field must be
// given.
func (uc *DocumentQueryUseCase) UpdateDocument(ctx context.Context, id string, actor domain.Actor, patch domain.DocumentPatch) (*domain.Document, error) {
	if patch.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update document", errors.New("no fields to update"))
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update document", errors.New("title must not be empty"))
		}
		patch.Title = &title
	}

	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if !actor.IsAdmin() && doc.CreatedBy != actor.ID {
		return nil, domain.WrapError(domain.ErrForbidden, "update document", errors.New("only the creator or an administrator may update"))
	}
	if err := uc.docs.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	updated, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventDocumentUpdated,
		ActorID:    actor.ID,
		EntityKind: "document",
		EntityID:   id,
		Details:    map[string]any{"fields": patchFields(patch)},
	})
	return updated, nil
}

func patchFields(p domain.DocumentPatch) []string {
	fields := make([]string, 0, 3)
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Text != nil {
		fields = append(fields, "text")
	}
	if p.FileURL != nil {
		fields = append(fields, "file_url")
	}
	return fields
}

// DeleteDocument removes the document and everything derived from it. Only
// the creator or an administrator may delete.
func (uc *DocumentQueryUseCase) DeleteDocument(ctx context.Context, id string, actor domain.Actor) error {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if !actor.IsAdmin() && doc.CreatedBy != actor.ID {
		return domain.WrapError(domain.ErrForbidden, "delete document", errors.New("only the creator or an administrator may delete"))
	}
	if err := uc.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if doc.FileURL != "" && uc.storage != nil {
		if err := uc.storage.Delete(ctx, doc.FileURL); err != nil {
			slog.Warn("object_storage_cleanup_failed", "key", doc.FileURL, "error", err)
		}
	}
	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventDocumentDeleted,
		ActorID:    actor.ID,
		EntityKind: "document",
		EntityID:   id,
		Details:    map[string]any{"title": doc.Title},
	})
	return nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/core/ports"
)

type IngestConfig struct {
	// AutoProcess queues every new document for processing by the worker.
	AutoProcess bool
}

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	queue     ports.ProcessingQueue
	events    ports.EventPublisher
	cfg       IngestConfig
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	queue ports.ProcessingQueue,
	events ports.EventPublisher,
	cfg IngestConfig,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		queue:     queue,
		events:    events,
		cfg:       cfg,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	actor domain.Actor,
	title, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if !actor.IsAdmin() {
		return nil, domain.WrapError(domain.ErrForbidden, "upload document", errors.New("administrator role required"))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if title == "" || title == "." {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("title is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, storageKey, mimeType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("document contains no text"))
	}
	if err != nil {
		uc.discard(ctx, storageKey)
		return nil, fmt.Errorf("extract document text: %w", err)
	}

	doc := &domain.Document{
		ID:        id,
		Title:     title,
		FileURL:   storageKey,
		MimeType:  mimeType,
		Text:      text,
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		uc.discard(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventDocumentCreated,
		ActorID:    actor.ID,
		EntityKind: "document",
		EntityID:   doc.ID,
		Details:    map[string]any{"title": doc.Title, "mime_type": mimeType},
	})

	if uc.cfg.AutoProcess && uc.queue != nil {
		if err := uc.queue.PublishProcessRequest(ctx, domain.ProcessRequest{
			DocumentID: doc.ID,
			Actor:      actor,
			EnqueuedAt: time.Now().UTC(),
		}); err != nil {
			// The document is stored; processing can still be requested explicitly.
			slog.Warn("document_auto_process_failed", "document_id", doc.ID, "error", err)
		}
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) discard(ctx context.Context, key string) {
	if err := uc.storage.Delete(ctx, key); err != nil {
		slog.Warn("object_storage_cleanup_failed", "key", key, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}

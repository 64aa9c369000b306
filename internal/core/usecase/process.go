package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/metrodocs/internal/core/analysis"
	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/core/ports"
)

const DefaultTargetLanguage = "ml"

type ProcessConfig struct {
	TargetLanguage string
	Now            func() time.Time
}

type ProcessDocumentUseCase struct {
	docs     ports.DocumentRepository
	store    ports.ProcessingStore
	enricher ports.Enricher
	queue    ports.ProcessingQueue
	events   ports.EventPublisher
	metrics  ports.ProcessingMetrics

	targetLanguage string
	now            func() time.Time
}

func NewProcessDocumentUseCase(
	docs ports.DocumentRepository,
	store ports.ProcessingStore,
	enricher ports.Enricher,
	queue ports.ProcessingQueue,
	events ports.EventPublisher,
	metrics ports.ProcessingMetrics,
	cfg ProcessConfig,
) *ProcessDocumentUseCase {
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = DefaultTargetLanguage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ProcessDocumentUseCase{
		docs:           docs,
		store:          store,
		enricher:       enricher,
		queue:          queue,
		events:         events,
		metrics:        metrics,
		targetLanguage: cfg.TargetLanguage,
		now:            cfg.Now,
	}
}

// ProcessDocument runs the pipeline over a stored document and commits the
// summary, tasks and assignments as one unit.
func (uc *ProcessDocumentUseCase) ProcessDocument(ctx context.Context, documentID string, actor domain.Actor) (*domain.ProcessingOutcome, error) {
	if !actor.IsAdmin() {
		return nil, domain.WrapError(domain.ErrForbidden, "process document", errors.New("administrator role required"))
	}

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	uc.metrics.StartDocument()
	result, err := uc.Process(ctx, doc.Text)
	if err != nil {
		uc.metrics.FinishDocument(domain.SourceFallback, 0, err)
		return nil, fmt.Errorf("process document %s: %w", doc.ID, err)
	}

	summary, tasks, err := uc.store.SaveProcessingResult(ctx, doc.ID, result)
	uc.metrics.FinishDocument(result.Source, result.ProcessingTime, err)
	if err != nil {
		return nil, fmt.Errorf("persist processing result: %w", err)
	}

	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventDocumentProcessed,
		ActorID:    actor.ID,
		EntityKind: "document",
		EntityID:   doc.ID,
		Details: map[string]any{
			"source":             string(result.Source),
			"task_count":         len(tasks),
			"processing_time_ms": result.ProcessingTime.Milliseconds(),
		},
	})

	return &domain.ProcessingOutcome{
		DocumentID: doc.ID,
		Summary:    *summary,
		Tasks:      tasks,
		Source:     result.Source,
	}, nil
}

// EnqueueDocument hands the document to the worker instead of processing it
// in the request.
func (uc *ProcessDocumentUseCase) EnqueueDocument(ctx context.Context, documentID string, actor domain.Actor) error {
	if !actor.IsAdmin() {
		return domain.WrapError(domain.ErrForbidden, "enqueue document", errors.New("administrator role required"))
	}
	if uc.queue == nil {
		return domain.WrapError(domain.ErrTemporary, "enqueue document", errors.New("processing queue not configured"))
	}
	if _, err := uc.docs.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if err := uc.queue.PublishProcessRequest(ctx, domain.ProcessRequest{
		DocumentID: documentID,
		Actor:      actor,
		EnqueuedAt: uc.now().UTC(),
	}); err != nil {
		return fmt.Errorf("publish process request: %w", err)
	}
	return nil
}

// HandleProcessRequest is the worker entry point for queued jobs.
func (uc *ProcessDocumentUseCase) HandleProcessRequest(ctx context.Context, req domain.ProcessRequest) error {
	_, err := uc.ProcessDocument(ctx, req.DocumentID, req.Actor)
	return err
}

// Process turns document text into a summary, key points and assigned tasks.
// Remote failures are absorbed; the only error is unusable input.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, text string) (domain.ProcessingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ProcessingResult{}, domain.WrapError(domain.ErrInvalidInput, "process text", errors.New("document has no text"))
	}

	start := uc.now()
	var result domain.ProcessingResult
	switch {
	case uc.enricher == nil || !uc.enricher.Available():
		slog.Info("document_processing_fallback", "reason", "enrichment not configured")
		result = uc.fallback(text, start)
	default:
		summary, err := uc.enricher.Summarize(ctx, text)
		if err != nil {
			uc.metrics.ObserveStageFailure("summarize")
			slog.Warn("document_processing_fallback", "reason", "summarize failed", "error", err)
			result = uc.fallback(text, start)
		} else {
			result = uc.enrich(ctx, text, summary, start)
		}
	}
	result.ProcessingTime = uc.now().Sub(start)
	return result, nil
}

func (uc *ProcessDocumentUseCase) enrich(ctx context.Context, text, summary string, today time.Time) domain.ProcessingResult {
	tasks := analysis.GenerateTasks(text, today)

	var (
		translated *string
		roles      []domain.Role
		g          errgroup.Group
	)
	g.Go(func() error {
		out, err := uc.enricher.Translate(ctx, summary, uc.targetLanguage)
		if err != nil {
			uc.metrics.ObserveStageFailure("translate")
			slog.Warn("enrichment_call_failed", "stage", "translate", "error", err)
			return nil
		}
		translated = &out
		return nil
	})
	g.Go(func() error {
		out, err := uc.enricher.AssignRoles(ctx, text, tasks)
		if err != nil {
			uc.metrics.ObserveStageFailure("assign")
			slog.Warn("enrichment_call_failed", "stage", "assign", "error", err)
			out = analysis.DefaultAssignments(len(tasks))
		}
		roles = out
		return nil
	})
	_ = g.Wait()

	return domain.ProcessingResult{
		SummaryEN: summary,
		SummaryML: translated,
		KeyPoints: analysis.ExtractKeyPoints(summary),
		Tasks:     assignRoles(tasks, roles),
		Source:    domain.SourceRemote,
	}
}

func (uc *ProcessDocumentUseCase) fallback(text string, today time.Time) domain.ProcessingResult {
	summary := analysis.ExtractSummary(text)
	translated := analysis.Transliterate(summary)
	tasks := analysis.GenerateTasks(text, today)
	return domain.ProcessingResult{
		SummaryEN: summary,
		SummaryML: &translated,
		KeyPoints: analysis.ExtractKeyPoints(summary),
		Tasks:     assignRoles(tasks, analysis.DefaultAssignments(len(tasks))),
		Source:    domain.SourceFallback,
	}
}

func assignRoles(tasks []domain.GeneratedTask, roles []domain.Role) []domain.GeneratedTask {
	out := make([]domain.GeneratedTask, len(tasks))
	for i, task := range tasks {
		task.AssignedRole = domain.RoleOther
		if i < len(roles) && roles[i].Assignable() {
			task.AssignedRole = roles[i]
		}
		out[i] = task
	}
	return out
}

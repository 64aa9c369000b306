package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/metrodocs/internal/config"
	"github.com/kirillkom/metrodocs/internal/core/usecase"
	"github.com/kirillkom/metrodocs/internal/infrastructure/enrichment"
	"github.com/kirillkom/metrodocs/internal/infrastructure/extractor/filetext"
	"github.com/kirillkom/metrodocs/internal/infrastructure/queue/nats"
	"github.com/kirillkom/metrodocs/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/metrodocs/internal/infrastructure/resilience"
	"github.com/kirillkom/metrodocs/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/metrodocs/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue             *nats.Queue
	ProcessingMetrics *metrics.ProcessingMetrics

	IngestUC    *usecase.IngestDocumentUseCase
	ProcessUC   *usecase.ProcessDocumentUseCase
	DocumentsUC *usecase.DocumentQueryUseCase
	TasksUC     *usecase.TaskLifecycleUseCase

	closeFn func()
}

// New wires the service graph shared by the api and worker binaries. service
// labels the processing metrics of this process.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	processing := postgres.NewProcessingRepository(db)
	tasks := postgres.NewTaskRepository(db)
	audit := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	extractor := filetext.NewExtractor(storage)

	processingMetrics := metrics.NewProcessingMetrics(service)
	policy := resilienceConfig(cfg.Resilience)
	slog.Info("resilience_policy", "policy", policy.Effective())
	executor := resilience.NewExecutor(policy).
		WithStateObserver(processingMetrics.ObserveBreakerState)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSProcessSubject, nats.Options{
		ResilienceExecutor: executor,
		EventsSubject:      cfg.NATSEventsSubject,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	enricher := enrichment.New(enrichment.Config{
		Token:        cfg.AIInternalToken,
		SummarizeURL: cfg.AISummarizationURL,
		TranslateURL: cfg.AITranslationURL,
		AssignURL:    cfg.AIRoleFilterURL,
		Timeout:      cfg.AITimeout,
	}, executor)
	if !enricher.Available() {
		slog.Warn("enrichment_disabled", "reason", "AI_INTERNAL_TOKEN or AI_SUMMARIZATION_URL not set")
	}

	events := usecase.FanOutPublisher{audit, queue}

	return &App{
		Config:            cfg,
		Queue:             queue,
		ProcessingMetrics: processingMetrics,

		IngestUC: usecase.NewIngestDocumentUseCase(docs, storage, extractor, queue, events, usecase.IngestConfig{
			AutoProcess: cfg.AutoProcess,
		}),
		ProcessUC: usecase.NewProcessDocumentUseCase(docs, processing, enricher, queue, events, processingMetrics, usecase.ProcessConfig{
			TargetLanguage: cfg.AITargetLanguage,
		}),
		DocumentsUC: usecase.NewDocumentQueryUseCase(docs, tasks, storage, events),
		TasksUC:     usecase.NewTaskLifecycleUseCase(tasks, events),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(c config.Resilience) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    c.RetryMaxAttempts,
		RetryInitialBackoff: c.RetryInitialBackoff,
		RetryMaxBackoff:     c.RetryMaxBackoff,
		RetryMultiplier:     c.RetryMultiplier,

		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      uint32(max(c.BreakerMinRequests, 0)),
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerOpenTimeout:      c.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(c.BreakerHalfOpenMaxCalls, 0)),
	}
}

package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/metrodocs/internal/core/analysis"
	"github.com/kirillkom/metrodocs/internal/core/domain"
)

var processNow = time.Date(2026, time.May, 4, 8, 0, 0, 0, time.UTC)

const sampleText = "Inspect the track urgently. Safety maintenance is required. Staff should verify the signalling relays before Friday."

type docsFake struct {
	doc    *domain.Document
	getErr error
}

func (f *docsFake) Create(context.Context, *domain.Document) error { return nil }

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *docsFake) List(context.Context, domain.DocumentFilter) ([]domain.Document, int, error) {
	return nil, 0, nil
}

func (f *docsFake) Update(context.Context, string, domain.DocumentPatch) error { return nil }

func (f *docsFake) Delete(context.Context, string) error { return nil }

func (f *docsFake) GetSummary(context.Context, string) (*domain.Summary, error) {
	return nil, domain.ErrSummaryNotFound
}

func (f *docsFake) ListSummaries(context.Context, domain.Page) ([]domain.SummaryPreview, int, error) {
	return nil, 0, nil
}

type processingStoreFake struct {
	err        error
	documentID string
	saved      *domain.ProcessingResult
}

func (f *processingStoreFake) SaveProcessingResult(_ context.Context, documentID string, result domain.ProcessingResult) (*domain.Summary, []domain.Task, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.documentID = documentID
	f.saved = &result
	tasks := make([]domain.Task, len(result.Tasks))
	for i, gt := range result.Tasks {
		tasks[i] = domain.Task{
			ID:            "task-" + string(rune('a'+i)),
			DocumentID:    documentID,
			Title:         gt.Title,
			DescriptionEN: gt.DescriptionEN,
			DueDate:       gt.DueDate,
			Status:        domain.TaskStatusPending,
			Assignment:    domain.TaskAssignment{AssigneeRole: gt.AssignedRole},
		}
	}
	return &domain.Summary{ID: "sum-1", DocumentID: documentID, SummaryEN: result.SummaryEN, KeyPoints: result.KeyPoints}, tasks, nil
}

type enricherFake struct {
	available    bool
	summary      string
	summarizeErr error
	translated   string
	translateErr error
	roles        []domain.Role
	assignErr    error

	summarizeCalls int
	translateCalls int
	assignCalls    int
	translateLang  string
}

func (f *enricherFake) Available() bool { return f.available }

func (f *enricherFake) Summarize(context.Context, string) (string, error) {
	f.summarizeCalls++
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return f.summary, nil
}

func (f *enricherFake) Translate(_ context.Context, _ string, lang string) (string, error) {
	f.translateCalls++
	f.translateLang = lang
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return f.translated, nil
}

func (f *enricherFake) AssignRoles(context.Context, string, []domain.GeneratedTask) ([]domain.Role, error) {
	f.assignCalls++
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return f.roles, nil
}

type queueFake struct {
	published []domain.ProcessRequest
	err       error
}

func (f *queueFake) PublishProcessRequest(_ context.Context, req domain.ProcessRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *queueFake) SubscribeProcessRequests(context.Context, func(context.Context, domain.ProcessRequest) error) error {
	return errors.New("not implemented")
}

type eventsFake struct {
	events []domain.Event
	err    error
}

func (f *eventsFake) Publish(_ context.Context, event domain.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func newProcessUC(enricher *enricherFake, store *processingStoreFake, events *eventsFake, queue *queueFake) *ProcessDocumentUseCase {
	docs := &docsFake{doc: &domain.Document{ID: "doc-1", Title: "Track circular", Text: sampleText}}
	if queue == nil {
		queue = &queueFake{}
	}
	return NewProcessDocumentUseCase(docs, store, enricher, queue, events, nil, ProcessConfig{
		Now: func() time.Time { return processNow },
	})
}

func expectedFallbackTasks(text string) []domain.GeneratedTask {
	tasks := analysis.GenerateTasks(text, processNow)
	roles := analysis.DefaultAssignments(len(tasks))
	for i := range tasks {
		tasks[i].AssignedRole = roles[i]
	}
	return tasks
}

func TestProcessUsesFallbackWhenEnrichmentUnavailable(t *testing.T) {
	enricher := &enricherFake{available: false}
	uc := newProcessUC(enricher, &processingStoreFake{}, &eventsFake{}, nil)

	result, err := uc.Process(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if enricher.summarizeCalls != 0 {
		t.Fatalf("remote calls must be skipped when unavailable")
	}
	if result.Source != domain.SourceFallback {
		t.Fatalf("expected fallback source, got %s", result.Source)
	}
	if result.SummaryEN != analysis.ExtractSummary(sampleText) {
		t.Fatalf("unexpected summary %q", result.SummaryEN)
	}
	if result.SummaryML == nil || *result.SummaryML != analysis.Transliterate(result.SummaryEN) {
		t.Fatalf("expected transliterated summary, got %v", result.SummaryML)
	}
	if !reflect.DeepEqual(result.Tasks, expectedFallbackTasks(sampleText)) {
		t.Fatalf("unexpected tasks: %+v", result.Tasks)
	}
}

func TestProcessSummarizeTimeoutFallsBackEntirely(t *testing.T) {
	enricher := &enricherFake{
		available:    true,
		summarizeErr: domain.WrapError(domain.ErrTemporary, "enrichment summarize", context.DeadlineExceeded),
		roles:        []domain.Role{domain.RoleOther, domain.RoleOther, domain.RoleOther},
	}
	uc := newProcessUC(enricher, &processingStoreFake{}, &eventsFake{}, nil)

	result, err := uc.Process(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if enricher.translateCalls != 0 || enricher.assignCalls != 0 {
		t.Fatalf("no remote stage may run after summarize failure: translate=%d assign=%d", enricher.translateCalls, enricher.assignCalls)
	}
	if result.SummaryEN != analysis.ExtractSummary(sampleText) {
		t.Fatalf("expected local summary, got %q", result.SummaryEN)
	}
	if !reflect.DeepEqual(result.Tasks, expectedFallbackTasks(sampleText)) {
		t.Fatalf("expected local tasks with default roles, got %+v", result.Tasks)
	}
}

func TestProcessRemoteSummaryWithLocalTasksAndRemoteRoles(t *testing.T) {
	enricher := &enricherFake{
		available:  true,
		summary:    "Track inspection is urgent. Relays need verification soon.",
		translated: "സംഗ്രഹം",
		roles:      []domain.Role{domain.RoleDepotManager, domain.RoleDepotManager, domain.RoleEngineer},
	}
	uc := newProcessUC(enricher, &processingStoreFake{}, &eventsFake{}, nil)

	result, err := uc.Process(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Source != domain.SourceRemote {
		t.Fatalf("expected remote source, got %s", result.Source)
	}
	if result.SummaryEN != enricher.summary {
		t.Fatalf("expected remote summary, got %q", result.SummaryEN)
	}
	if result.SummaryML == nil || *result.SummaryML != "സംഗ്രഹം" {
		t.Fatalf("expected translated summary, got %v", result.SummaryML)
	}
	if enricher.translateLang != DefaultTargetLanguage {
		t.Fatalf("expected target language %q, got %q", DefaultTargetLanguage, enricher.translateLang)
	}
	if !reflect.DeepEqual(result.KeyPoints, analysis.ExtractKeyPoints(enricher.summary)) {
		t.Fatalf("key points must derive from the remote summary: %v", result.KeyPoints)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("expected 3 locally generated tasks, got %d", len(result.Tasks))
	}
	for i, role := range enricher.roles {
		if result.Tasks[i].AssignedRole != role {
			t.Fatalf("task %d role = %s, want %s", i, result.Tasks[i].AssignedRole, role)
		}
	}
}

func TestProcessTranslateFailureOnlyDropsTranslation(t *testing.T) {
	enricher := &enricherFake{
		available:    true,
		summary:      "Remote summary sentence one.",
		translateErr: errors.New("translate down"),
		roles:        []domain.Role{domain.RoleEngineer, domain.RoleEngineer, domain.RoleEngineer},
	}
	uc := newProcessUC(enricher, &processingStoreFake{}, &eventsFake{}, nil)

	result, err := uc.Process(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.SummaryML != nil {
		t.Fatalf("expected absent translation, got %q", *result.SummaryML)
	}
	if result.SummaryEN != enricher.summary || result.Source != domain.SourceRemote {
		t.Fatalf("pipeline must continue with remote summary: %+v", result)
	}
}

func TestProcessAssignFailureUsesRoundRobin(t *testing.T) {
	enricher := &enricherFake{
		available:  true,
		summary:    "Remote summary sentence one.",
		translated: "x",
		assignErr:  errors.New("assign down"),
	}
	uc := newProcessUC(enricher, &processingStoreFake{}, &eventsFake{}, nil)

	result, err := uc.Process(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := analysis.DefaultAssignments(len(result.Tasks))
	for i := range result.Tasks {
		if result.Tasks[i].AssignedRole != want[i] {
			t.Fatalf("task %d role = %s, want %s", i, result.Tasks[i].AssignedRole, want[i])
		}
	}
}

func TestProcessRejectsEmptyText(t *testing.T) {
	uc := newProcessUC(&enricherFake{}, &processingStoreFake{}, &eventsFake{}, nil)
	_, err := uc.Process(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessAlwaysYieldsSummaryAndTasks(t *testing.T) {
	uc := newProcessUC(&enricherFake{}, &processingStoreFake{}, &eventsFake{}, nil)
	inputs := []string{"x", "Short.", "!!!", "No keywords here at all in this long sentence.", sampleText}
	for _, text := range inputs {
		result, err := uc.Process(context.Background(), text)
		if err != nil {
			t.Fatalf("Process(%q) error = %v", text, err)
		}
		if result.SummaryEN == "" {
			t.Fatalf("Process(%q) returned empty summary", text)
		}
		if len(result.Tasks) == 0 {
			t.Fatalf("Process(%q) returned no tasks", text)
		}
		if result.KeyPoints == nil {
			t.Fatalf("Process(%q) returned nil key points", text)
		}
	}
}

func TestProcessDocumentPersistsAndPublishesEvent(t *testing.T) {
	store := &processingStoreFake{}
	events := &eventsFake{}
	uc := newProcessUC(&enricherFake{}, store, events, nil)

	outcome, err := uc.ProcessDocument(context.Background(), "doc-1", domain.Actor{ID: "admin-1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if store.documentID != "doc-1" {
		t.Fatalf("expected result saved for doc-1, got %q", store.documentID)
	}
	if len(outcome.Tasks) != len(store.saved.Tasks) {
		t.Fatalf("outcome tasks mismatch")
	}
	if len(events.events) != 1 || events.events[0].Type != domain.EventDocumentProcessed {
		t.Fatalf("expected one processed event, got %+v", events.events)
	}
}

func TestProcessDocumentRequiresAdmin(t *testing.T) {
	store := &processingStoreFake{}
	uc := newProcessUC(&enricherFake{}, store, &eventsFake{}, nil)

	_, err := uc.ProcessDocument(context.Background(), "doc-1", domain.Actor{ID: "u-1", Role: domain.RoleEngineer})
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if store.saved != nil {
		t.Fatalf("nothing may be persisted for a forbidden request")
	}
}

func TestProcessDocumentNotFound(t *testing.T) {
	uc := newProcessUC(&enricherFake{}, &processingStoreFake{}, &eventsFake{}, nil)
	_, err := uc.ProcessDocument(context.Background(), "missing", domain.Actor{ID: "a", Role: domain.RoleAdmin})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestProcessDocumentStoreFailureSkipsEvent(t *testing.T) {
	events := &eventsFake{}
	uc := newProcessUC(&enricherFake{}, &processingStoreFake{err: errors.New("insert task failed")}, events, nil)

	_, err := uc.ProcessDocument(context.Background(), "doc-1", domain.Actor{ID: "a", Role: domain.RoleAdmin})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(events.events) != 0 {
		t.Fatalf("no event may be emitted when the transaction fails")
	}
}

func TestEnqueueDocumentPublishesRequest(t *testing.T) {
	queue := &queueFake{}
	uc := newProcessUC(&enricherFake{}, &processingStoreFake{}, &eventsFake{}, queue)

	actor := domain.Actor{ID: "a", Role: domain.RoleAdmin}
	if err := uc.EnqueueDocument(context.Background(), "doc-1", actor); err != nil {
		t.Fatalf("EnqueueDocument() error = %v", err)
	}
	if len(queue.published) != 1 || queue.published[0].DocumentID != "doc-1" || queue.published[0].Actor != actor {
		t.Fatalf("unexpected published requests: %+v", queue.published)
	}
}

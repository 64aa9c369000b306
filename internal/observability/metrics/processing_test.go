package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

func scrape(t *testing.T, m *ProcessingMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestProcessingMetricsCountsBySource(t *testing.T) {
	m := NewProcessingMetrics("worker")

	m.StartDocument()
	m.FinishDocument(domain.SourceFallback, 20*time.Millisecond, nil)
	m.StartDocument()
	m.FinishDocument(domain.SourceRemote, time.Second, errors.New("tx failed"))

	body := scrape(t, m)
	for _, want := range []string{
		`metrodocs_processing_documents_total{service="worker",source="fallback",status="success"} 1`,
		`metrodocs_processing_documents_total{service="worker",source="remote",status="error"} 1`,
		`metrodocs_processing_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestProcessingMetricsBreakerStateAndStageFailures(t *testing.T) {
	m := NewProcessingMetrics("api")
	m.ObserveStageFailure("translate")
	m.ObserveBreakerState("enrichment.summarize", gobreaker.StateClosed, gobreaker.StateOpen)
	m.ObserveQueueLag(-time.Second)

	body := scrape(t, m)
	if !strings.Contains(body, `metrodocs_processing_stage_failures_total{service="api",stage="translate"} 1`) {
		t.Fatalf("stage failure not exported:\n%s", body)
	}
	if !strings.Contains(body, `metrodocs_resilience_circuit_breaker_state{operation="enrichment.summarize",service="api"} 2`) {
		t.Fatalf("breaker state not exported:\n%s", body)
	}
	if strings.Contains(body, "metrodocs_worker_queue_lag_seconds_count") {
		t.Fatalf("negative lag must be ignored")
	}
}

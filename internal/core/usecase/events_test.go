package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

func TestFanOutPublisherDeliversToAllAndJoinsErrors(t *testing.T) {
	audit := &eventsFake{err: errors.New("audit down")}
	bus := &eventsFake{}
	publisher := FanOutPublisher{audit, nil, bus}

	err := publisher.Publish(context.Background(), domain.Event{Type: domain.EventTaskEscalated, EntityID: "t-1"})
	if err == nil || err.Error() != "audit down" {
		t.Fatalf("expected joined audit error, got %v", err)
	}
	if len(audit.events) != 1 || len(bus.events) != 1 {
		t.Fatalf("every publisher must receive the event, got audit=%d bus=%d", len(audit.events), len(bus.events))
	}
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/infrastructure/resilience"
)

const workerQueueGroup = "metrodocs-workers"

// Queue carries processing requests to workers and fans domain events out on
// a separate subject.
type Queue struct {
	conn           *nats.Conn
	processSubject string
	eventsSubject  string
	executor       *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// EventsSubject enables Publish; empty disables event fan-out.
	EventsSubject string
}

func New(url, processSubject string) (*Queue, error) {
	return NewWithOptions(url, processSubject, Options{})
}

func NewWithOptions(url, processSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("metrodocs"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		processSubject: processSubject,
		eventsSubject:  options.EventsSubject,
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishProcessRequest(ctx context.Context, req domain.ProcessRequest) error {
	payload, err := encodeProcessRequest(req)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish_process", q.processSubject, payload)
}

// Publish sends a post-commit domain event to the events subject.
func (q *Queue) Publish(ctx context.Context, event domain.Event) error {
	if q.eventsSubject == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return q.publish(ctx, "nats.publish_event", q.eventsSubject, payload)
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(operation, err)
	}
	return nil
}

// SubscribeProcessRequests delivers each request to one worker in the queue
// group and blocks until ctx is done, then drains.
func (q *Queue) SubscribeProcessRequests(ctx context.Context, handler func(context.Context, domain.ProcessRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.processSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := decodeProcessRequest(msg.Data)
		if err != nil {
			slog.Error("process_request_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req); err != nil {
			slog.Error("process_request_failed", "document_id", req.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeProcessRequest(req domain.ProcessRequest) ([]byte, error) {
	if req.DocumentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode process request", errors.New("document id is required"))
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}
	return payload, nil
}

func decodeProcessRequest(data []byte) (domain.ProcessRequest, error) {
	var req domain.ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ProcessRequest{}, fmt.Errorf("unmarshal process request: %w", err)
	}
	if req.DocumentID == "" {
		return domain.ProcessRequest{}, errors.New("process request without document id")
	}
	return req, nil
}

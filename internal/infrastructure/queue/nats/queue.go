package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/infrastructure/resilience"
)

// Queue carries two fire-and-forget subjects: document processing jobs
// (payload is the bare document ID) and summary generation requests
// (payload is a JSON SummaryRequest). Both use queue groups so a pool of
// workers shares the load without duplicate delivery inside the group.
type Queue struct {
	conn         *nats.Conn
	documentSubj string
	summarySubj  string
	executor     *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, documentSubject, summarySubject string) (*Queue, error) {
	return NewWithOptions(url, documentSubject, summarySubject, Options{})
}

func NewWithOptions(url, documentSubject, summarySubject string, options Options) (*Queue, error) {
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
		nats.Name("patient-summarizer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		documentSubj: documentSubject,
		summarySubj:  summarySubject,
		executor:     options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentUploaded(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.documentSubj, []byte(documentID))
}

func (q *Queue) PublishSummaryRequested(ctx context.Context, req domain.SummaryRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal summary request: %w", err)
	}
	return q.publish(ctx, q.summarySubj, payload)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "queue.publish."+subject, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.documentSubj, func(handlerCtx context.Context, data []byte) error {
		return handler(handlerCtx, string(data))
	})
}

func (q *Queue) SubscribeSummaryRequested(ctx context.Context, handler func(context.Context, domain.SummaryRequest) error) error {
	return q.subscribe(ctx, q.summarySubj, func(handlerCtx context.Context, data []byte) error {
		var req domain.SummaryRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decode summary request: %w", err)
		}
		return handler(handlerCtx, req)
	})
}

func (q *Queue) subscribe(ctx context.Context, subject string, handle func(context.Context, []byte) error) error {
	sub, err := q.conn.QueueSubscribe(subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handle(handlerCtx, msg.Data); err != nil {
			log.Printf("worker handler error on %s: %v", subject, err)
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

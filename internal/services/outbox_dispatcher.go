package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/config"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/outbox"
	"relaychat/internal/events"
	"relaychat/internal/gateway"
	"relaychat/internal/repository"
	"relaychat/pkg/logger"
)

// OutboxDispatcher polls the outbox table and drives the notification
// gateway. It is the only writer of processed_at/retry_count; a gateway
// failure leaves the record pending for a later pass. Delivery is
// at-least-once and best-effort FIFO by occurrence time: a later record may
// complete before an earlier one is retried.
type OutboxDispatcher struct {
	outboxRepo repository.OutboxRepository
	gateway    gateway.NotificationGateway
	cfg        config.OutboxConfig
	log        *logger.Logger
	clock      func() time.Time
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewOutboxDispatcher(outboxRepo repository.OutboxRepository, gw gateway.NotificationGateway, cfg config.OutboxConfig, log *logger.Logger) *OutboxDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DispatchLease <= 0 {
		cfg.DispatchLease = time.Minute
	}
	return &OutboxDispatcher{
		outboxRepo: outboxRepo,
		gateway:    gw,
		cfg:        cfg,
		log:        log,
		clock:      time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *OutboxDispatcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop gracefully shuts down.
func (w *OutboxDispatcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *OutboxDispatcher) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.ProcessBatch(context.Background())
		}
	}
}

// ProcessBatch drains one batch of undelivered records through a small worker
// pool, reclaiming DISPATCHING claims whose lease ran out along the way.
// Exported so tests and alternate schedulers can drive it directly.
func (w *OutboxDispatcher) ProcessBatch(ctx context.Context) {
	staleBefore := w.clock().Add(-w.cfg.DispatchLease)
	pending, err := w.outboxRepo.GetPending(ctx, w.cfg.BatchSize, staleBefore)
	if err != nil {
		w.log.Errorf("outbox poll failed: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	jobs := make(chan outbox.OutboxEvent)
	var workers sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for ev := range jobs {
				w.dispatchEvent(ctx, ev)
			}
		}()
	}
	for _, ev := range pending {
		jobs <- ev
	}
	close(jobs)
	workers.Wait()
}

func (w *OutboxDispatcher) dispatchEvent(ctx context.Context, ev outbox.OutboxEvent) {
	if w.cfg.MaxRetries > 0 && ev.RetryCount >= w.cfg.MaxRetries {
		_ = w.outboxRepo.MarkFailed(ctx, ev.ID, "max retries exceeded")
		return
	}

	if err := w.outboxRepo.MarkDispatching(ctx, ev.ID); err != nil {
		return
	}

	calls, err := w.routeCalls(ev)
	if err != nil {
		// Undecodable records never become deliverable; park them.
		_ = w.outboxRepo.MarkFailed(ctx, ev.ID, err.Error())
		return
	}

	dctx := ctx
	if w.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, w.cfg.DispatchTimeout)
		defer cancel()
	}
	for _, call := range calls {
		if err := call(dctx); err != nil {
			w.log.Warnf("outbox dispatch failed for %s: %v", ev.ID, err)
			_ = w.outboxRepo.RecordFailure(ctx, ev.ID, err.Error())
			return
		}
	}

	_ = w.outboxRepo.MarkProcessed(ctx, ev.ID)
}

type gatewayCall func(ctx context.Context) error

// routeCalls decodes the event payload and maps it to the gateway pushes it
// requires. All pushes of one record must succeed for the record to be
// marked processed; duplicates on retry are tolerated downstream.
func (w *OutboxDispatcher) routeCalls(ev outbox.OutboxEvent) ([]gatewayCall, error) {
	switch ev.EventType {
	case events.EventTypeMessageSent:
		var e events.MessageSentEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", ev.EventType, err)
		}
		return []gatewayCall{
			w.scopeCall(e.RecipientType, e.RecipientID.String(), events.MethodMessageSent, ev.Payload),
			func(ctx context.Context) error {
				return w.gateway.SendToUser(ctx, e.SenderID, events.MethodMessageSentConfirmation, ev.Payload)
			},
		}, nil
	case events.EventTypeMessageEdited:
		var e events.MessageEditedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", ev.EventType, err)
		}
		return []gatewayCall{
			w.scopeCall(e.RecipientType, e.RecipientID.String(), events.MethodMessageEdited, ev.Payload),
		}, nil
	case events.EventTypeMessageRecalled:
		var e events.MessageRecalledEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", ev.EventType, err)
		}
		return []gatewayCall{
			w.scopeCall(e.RecipientType, e.RecipientID.String(), events.MethodMessageRecalled, ev.Payload),
		}, nil
	case events.EventTypeMessageRead:
		var e events.MessageReadEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", ev.EventType, err)
		}
		return []gatewayCall{
			func(ctx context.Context) error {
				return w.gateway.SendToUser(ctx, e.SenderID, events.MethodMessageRead, ev.Payload)
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", ev.EventType)
}

func (w *OutboxDispatcher) scopeCall(recipientType, recipientID, method string, payload []byte) gatewayCall {
	return func(ctx context.Context) error {
		id, err := parseID(recipientID)
		if err != nil {
			return err
		}
		if recipientType == string(message.RecipientGroup) {
			return w.gateway.SendToGroup(ctx, id, method, payload)
		}
		return w.gateway.SendToUser(ctx, id, method, payload)
	}
}

func parseID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

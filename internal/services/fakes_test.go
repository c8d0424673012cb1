package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"relaychat/internal/config"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/outbox"
	"relaychat/internal/domain/receipt"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
)

// In-memory repository fakes mirroring the store semantics the services rely
// on: sequence assignment on create, version-guarded updates, receipt
// uniqueness per (message, reader).

type fakeTxRunner struct {
	beginErr error
	calls    int
}

func (f *fakeTxRunner) WithinTx(ctx context.Context, fn func(q repository.Querier) error) error {
	f.calls++
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(nil)
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]message.Message
	nextSeq  int64
	receipts *fakeReceiptRepo

	// clock, when set, stamps created_at deterministically on insert.
	clock func() time.Time
	// conflicts makes the next n Update calls fail with ErrStorageConflict.
	conflicts int
}

func newFakeMessageRepo(receipts *fakeReceiptRepo) *fakeMessageRepo {
	return &fakeMessageRepo{byID: map[uuid.UUID]message.Message{}, receipts: receipts}
}

func (f *fakeMessageRepo) Create(ctx context.Context, q repository.Querier, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	m.SequenceNumber = f.nextSeq
	if f.clock != nil {
		m.CreatedAt = f.clock()
	}
	f.byID[m.ID] = *m
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, q repository.Querier, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return relay_errors.ErrStorageConflict
	}
	stored, ok := f.byID[m.ID]
	if !ok || stored.Version != m.Version {
		return relay_errors.ErrStorageConflict
	}
	m.Version++
	cp := *m
	cp.ClearEvents()
	f.byID[m.ID] = cp
	return nil
}

func (f *fakeMessageRepo) inScope(m message.Message, scope message.Recipient, viewerID uuid.UUID) bool {
	if scope.IsGroup() {
		return m.Recipient.IsGroup() && m.Recipient.ID == scope.ID
	}
	if m.Recipient.IsGroup() {
		return false
	}
	return (m.Recipient.ID == scope.ID && m.SenderID == viewerID) ||
		(m.Recipient.ID == viewerID && m.SenderID == scope.ID)
}

func (f *fakeMessageRepo) sorted(filter func(message.Message) bool) []message.Message {
	var out []message.Message
	for _, m := range f.byID {
		if filter(m) {
			out = append(out, m)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].SequenceNumber < out[i].SequenceNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func (f *fakeMessageRepo) ListHistory(ctx context.Context, q repository.Querier, scope message.Recipient, viewerID uuid.UUID, page, pageSize int) ([]message.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asc := f.sorted(func(m message.Message) bool { return f.inScope(m, scope, viewerID) })
	total := int64(len(asc))
	// newest first
	desc := make([]message.Message, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		desc = append(desc, asc[i])
	}
	start := (page - 1) * pageSize
	if start >= len(desc) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(desc) {
		end = len(desc)
	}
	return desc[start:end], total, nil
}

func (f *fakeMessageRepo) ListAfterSequence(ctx context.Context, q repository.Querier, scope message.Recipient, viewerID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(m message.Message) bool {
		return f.inScope(m, scope, viewerID) && m.SequenceNumber > afterSeq
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) unread(scope message.Recipient, readerID uuid.UUID) []message.Message {
	return f.sorted(func(m message.Message) bool {
		if f.receipts != nil && f.receipts.has(m.ID, readerID) {
			return false
		}
		if scope.IsGroup() {
			return m.Recipient.IsGroup() && m.Recipient.ID == scope.ID && m.SenderID != readerID
		}
		return !m.Recipient.IsGroup() && m.Recipient.ID == readerID && m.SenderID == scope.ID
	})
}

func (f *fakeMessageRepo) ListUnread(ctx context.Context, q repository.Querier, scope message.Recipient, readerID uuid.UUID, until time.Time) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.unread(scope, readerID) {
		if !m.CreatedAt.After(until) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) CountUnread(ctx context.Context, q repository.Querier, scope message.Recipient, readerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.unread(scope, readerID))), nil
}

func (f *fakeMessageRepo) GetByClientMessageID(ctx context.Context, q repository.Querier, senderID uuid.UUID, clientMsgID string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if m.SenderID == senderID && m.ClientMessageID.Valid && m.ClientMessageID.String == clientMsgID {
			return m, nil
		}
	}
	return message.Message{}, relay_errors.ErrNotFound
}

type receiptKey struct {
	messageID uuid.UUID
	readerID  uuid.UUID
}

type fakeReceiptRepo struct {
	mu   sync.Mutex
	seen map[receiptKey]receipt.ReadReceipt
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{seen: map[receiptKey]receipt.ReadReceipt{}}
}

func (f *fakeReceiptRepo) has(messageID, readerID uuid.UUID) bool {
	_, ok := f.seen[receiptKey{messageID, readerID}]
	return ok
}

func (f *fakeReceiptRepo) Insert(ctx context.Context, q repository.Querier, r *receipt.ReadReceipt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := receiptKey{r.MessageID, r.ReaderID}
	if _, ok := f.seen[key]; ok {
		return false, nil
	}
	f.seen[key] = *r
	return true, nil
}

func (f *fakeReceiptRepo) Exists(ctx context.Context, q repository.Querier, messageID, readerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.has(messageID, readerID), nil
}

func (f *fakeReceiptRepo) CountByMessageIDs(ctx context.Context, q repository.Querier, messageIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[uuid.UUID]int64{}
	for _, id := range messageIDs {
		for key := range f.seen {
			if key.messageID == id {
				counts[id]++
			}
		}
	}
	return counts, nil
}

// fakeOutboxRepo mirrors the store contract the dispatcher depends on:
// polling sees PENDING records plus DISPATCHING claims whose lease predates
// staleBefore, and the state-transition methods mutate the stored record.
type fakeOutboxRepo struct {
	mu       sync.Mutex
	appended []outbox.OutboxEvent

	records       []outbox.OutboxEvent
	dispatching   []uuid.UUID
	processed     []uuid.UUID
	failures      map[uuid.UUID]string
	failed        map[uuid.UUID]string
	getPendingErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{
		failures: map[uuid.UUID]string{},
		failed:   map[uuid.UUID]string{},
	}
}

func (f *fakeOutboxRepo) Append(ctx context.Context, q repository.Querier, ev *outbox.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, *ev)
	return nil
}

func (f *fakeOutboxRepo) GetPending(ctx context.Context, limit int, staleBefore time.Time) ([]outbox.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getPendingErr != nil {
		return nil, f.getPendingErr
	}
	var out []outbox.OutboxEvent
	for _, ev := range f.records {
		if ev.ProcessedAt != nil {
			continue
		}
		eligible := ev.Status == outbox.StatusPending ||
			(ev.Status == outbox.StatusDispatching && ev.DispatchedAt != nil && ev.DispatchedAt.Before(staleBefore))
		if !eligible {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) record(id uuid.UUID) *outbox.OutboxEvent {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i]
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MarkDispatching(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatching = append(f.dispatching, id)
	if rec := f.record(id); rec != nil && rec.ProcessedAt == nil {
		now := time.Now().UTC()
		rec.Status = outbox.StatusDispatching
		rec.DispatchedAt = &now
	}
	return nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	if rec := f.record(id); rec != nil {
		now := time.Now().UTC()
		rec.Status = outbox.StatusProcessed
		if rec.ProcessedAt == nil {
			rec.ProcessedAt = &now
		}
	}
	return nil
}

func (f *fakeOutboxRepo) RecordFailure(ctx context.Context, id uuid.UUID, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = errorMsg
	if rec := f.record(id); rec != nil && rec.ProcessedAt == nil {
		rec.Status = outbox.StatusPending
		rec.RetryCount++
		rec.Error.String = errorMsg
		rec.Error.Valid = true
	}
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorMsg
	if rec := f.record(id); rec != nil && rec.ProcessedAt == nil {
		rec.Status = outbox.StatusFailed
		rec.Error.String = errorMsg
		rec.Error.Valid = true
	}
	return nil
}

func (f *fakeOutboxRepo) appendedOfType(eventType string) []outbox.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbox.OutboxEvent
	for _, ev := range f.appended {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fakeAccess struct {
	userErr  error
	groupErr error
}

func (f *fakeAccess) CanMessageUser(ctx context.Context, senderID, recipientID uuid.UUID) error {
	return f.userErr
}

func (f *fakeAccess) RequireGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	return f.groupErr
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendToUser(ctx context.Context, userID uuid.UUID, method string, payload []byte) error {
	args := m.Called(ctx, userID, method, payload)
	return args.Error(0)
}

func (m *mockGateway) SendToGroup(ctx context.Context, groupID uuid.UUID, method string, payload []byte) error {
	args := m.Called(ctx, groupID, method, payload)
	return args.Error(0)
}

func testMessagingConfig() config.MessagingConfig {
	return config.MessagingConfig{
		EditWindow:      15 * time.Minute,
		RecallWindow:    2 * time.Minute,
		MaxContentBytes: 256,
		HistoryPageMax:  100,
		CatchUpLimitMax: 200,
	}
}

type serviceHarness struct {
	svc      *MessageService
	history  *HistoryService
	tx       *fakeTxRunner
	messages *fakeMessageRepo
	receipts *fakeReceiptRepo
	outbox   *fakeOutboxRepo
	access   *fakeAccess
	now      time.Time
}

func newServiceHarness() *serviceHarness {
	receipts := newFakeReceiptRepo()
	h := &serviceHarness{
		tx:       &fakeTxRunner{},
		messages: newFakeMessageRepo(receipts),
		receipts: receipts,
		outbox:   newFakeOutboxRepo(),
		access:   &fakeAccess{},
		now:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	cfg := testMessagingConfig()
	h.messages.clock = func() time.Time { return h.now }
	h.svc = NewMessageService(h.tx, h.messages, h.receipts, h.outbox, h.access, cfg, nil)
	h.svc.clock = func() time.Time { return h.now }
	h.history = NewHistoryService(h.messages, h.receipts, h.access, cfg)
	return h
}

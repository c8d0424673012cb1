package message

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

func newTestMessage(t *testing.T, msgType string) *Message {
	t.Helper()
	m, err := New(uuid.New(), UserRecipient(uuid.New()), msgType, "hello")
	require.NoError(t, err)
	return m
}

func TestNewValidation(t *testing.T) {
	_, err := New(uuid.Nil, UserRecipient(uuid.New()), TypeText, "hi")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, err = New(uuid.New(), Recipient{}, TypeText, "hi")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, err = New(uuid.New(), UserRecipient(uuid.New()), "VIDEO_CALL", "hi")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	m, err := New(uuid.New(), GroupRecipient(uuid.New()), TypeText, "hi")
	require.NoError(t, err)
	assert.True(t, m.Recipient.IsGroup())
	assert.EqualValues(t, 1, m.Version)
	assert.Empty(t, m.PendingEvents())
}

func TestRecordSentCarriesSequence(t *testing.T) {
	m := newTestMessage(t, TypeText)
	m.SequenceNumber = 42

	require.NoError(t, m.RecordSent())

	pending := m.PendingEvents()
	require.Len(t, pending, 1)
	assert.Equal(t, events.EventTypeMessageSent, pending[0].EventType)
	assert.Contains(t, string(pending[0].Payload), `"sequence_number":42`)
}

func TestEditBySender(t *testing.T) {
	m := newTestMessage(t, TypeText)
	now := m.CreatedAt.Add(time.Minute)

	require.NoError(t, m.Edit(m.SenderID, "edited", now, 15*time.Minute))

	assert.Equal(t, "edited", m.Content)
	require.True(t, m.LastModifiedAt.Valid)
	assert.Equal(t, now, m.LastModifiedAt.Time)
	require.Len(t, m.PendingEvents(), 1)
	assert.Equal(t, events.EventTypeMessageEdited, m.PendingEvents()[0].EventType)
}

func TestEditRejectsNonSender(t *testing.T) {
	m := newTestMessage(t, TypeText)
	err := m.Edit(uuid.New(), "edited", m.CreatedAt, 15*time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)
	assert.Equal(t, "hello", m.Content)
}

func TestEditWindowBoundaryInclusive(t *testing.T) {
	m := newTestMessage(t, TypeText)
	window := 15 * time.Minute

	atEdge := m.CreatedAt.Add(window)
	assert.NoError(t, m.Edit(m.SenderID, "on time", atEdge, window))

	pastEdge := m.CreatedAt.Add(window + time.Nanosecond)
	err := m.Edit(m.SenderID, "too late", pastEdge, window)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidState)
	assert.ErrorIs(t, err, relay_errors.ErrEditWindowExpired)
}

func TestEditRecalledMessage(t *testing.T) {
	m := newTestMessage(t, TypeText)
	require.NoError(t, m.Recall(m.SenderID, m.CreatedAt, time.Minute))

	err := m.Edit(m.SenderID, "edited", m.CreatedAt, 15*time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrMessageRecalled)
}

func TestSystemMessageImmutable(t *testing.T) {
	m := newTestMessage(t, TypeSystem)

	err := m.Edit(m.SenderID, "edited", m.CreatedAt, 15*time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrSystemMessageImmutable)

	err = m.Recall(m.SenderID, m.CreatedAt, time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrSystemMessageImmutable)
}

func TestRecall(t *testing.T) {
	m := newTestMessage(t, TypeText)
	now := m.CreatedAt.Add(30 * time.Second)

	require.NoError(t, m.Recall(m.SenderID, now, 2*time.Minute))

	assert.True(t, m.IsRecalled)
	require.True(t, m.RecalledAt.Valid)
	assert.Equal(t, now, m.RecalledAt.Time)
	require.Len(t, m.PendingEvents(), 1)
	assert.Equal(t, events.EventTypeMessageRecalled, m.PendingEvents()[0].EventType)

	err := m.Recall(m.SenderID, now, 2*time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrAlreadyRecalled)
	assert.Len(t, m.PendingEvents(), 1)
}

func TestRecallWindowBoundaryInclusive(t *testing.T) {
	m := newTestMessage(t, TypeText)
	window := 2 * time.Minute

	err := m.Recall(m.SenderID, m.CreatedAt.Add(window+time.Second), window)
	assert.ErrorIs(t, err, relay_errors.ErrRecallWindowExpired)
	assert.False(t, m.IsRecalled)

	require.NoError(t, m.Recall(m.SenderID, m.CreatedAt.Add(window), window))
	assert.True(t, m.IsRecalled)
}

func TestRecallRejectsNonSender(t *testing.T) {
	m := newTestMessage(t, TypeText)
	err := m.Recall(uuid.New(), m.CreatedAt, 2*time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)
	assert.False(t, m.IsRecalled)
}

func TestClearEvents(t *testing.T) {
	m := newTestMessage(t, TypeText)
	require.NoError(t, m.RecordSent())
	require.Len(t, m.PendingEvents(), 1)

	m.ClearEvents()
	assert.Empty(t, m.PendingEvents())
}

func TestRecipientValidate(t *testing.T) {
	assert.ErrorIs(t, Recipient{}.Validate(), relay_errors.ErrInvalidInput)
	assert.ErrorIs(t, Recipient{Type: RecipientUser}.Validate(), relay_errors.ErrInvalidInput)
	assert.ErrorIs(t, Recipient{Type: "channel", ID: uuid.New()}.Validate(), relay_errors.ErrInvalidInput)
	assert.NoError(t, UserRecipient(uuid.New()).Validate())
	assert.NoError(t, GroupRecipient(uuid.New()).Validate())
}

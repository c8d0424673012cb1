package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain/receipt"
)

func TestReadReceiptInsertCreated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := receipt.New(uuid.New(), uuid.New(), time.Now().UTC())
	mock.ExpectExec("INSERT INTO read_receipts").
		WithArgs(rec.ID, rec.MessageID, rec.ReaderID, rec.ReadAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewReadReceiptRepository(mock)
	created, err := repo.Insert(context.Background(), nil, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReceiptInsertDuplicateIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := receipt.New(uuid.New(), uuid.New(), time.Now().UTC())
	mock.ExpectExec("INSERT INTO read_receipts").
		WithArgs(rec.ID, rec.MessageID, rec.ReaderID, rec.ReadAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewReadReceiptRepository(mock)
	created, err := repo.Insert(context.Background(), nil, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReceiptExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	messageID := uuid.New()
	readerID := uuid.New()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(messageID, readerID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewReadReceiptRepository(mock)
	exists, err := repo.Exists(context.Background(), nil, messageID, readerID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReceiptCountByMessageIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := uuid.New()
	second := uuid.New()
	ids := []uuid.UUID{first, second}
	mock.ExpectQuery("SELECT message_id, COUNT").
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"message_id", "count"}).
			AddRow(first, int64(3)))

	repo := NewReadReceiptRepository(mock)
	counts, err := repo.CountByMessageIDs(context.Background(), nil, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[first])
	assert.EqualValues(t, 0, counts[second])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReceiptCountEmptyInputSkipsQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReadReceiptRepository(mock)
	counts, err := repo.CountByMessageIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

var taskRowColumns = []string{
	"id", "type", "payload", "status", "attempts", "max_attempts", "error", "result",
	"created_at", "updated_at", "started_at", "completed_at", "scheduled_for",
}

func setupTestQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueue(db), mock
}

func pendingRow(id string, attempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(taskRowColumns).AddRow(
		id, "ingest_syllabus", []byte(`{"requested_by":"admin"}`), "pending", attempts, 3, "", nil,
		now, now, nil, nil, now,
	)
}

func TestQueue_Enqueue(t *testing.T) {
	q, mock := setupTestQueue(t)
	task := domain.NewIngestTask("admin")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs(task.ID, "ingest_syllabus", []byte(`{"requested_by":"admin"}`), "pending", 0, 3, "",
			task.CreatedAt, task.UpdatedAt, task.ScheduledFor).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, q.Enqueue(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Dequeue(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("pending").
		WillReturnRows(pendingRow("t1", 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs("processing", sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	task, err := q.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, domain.TaskTypeIngestSyllabus, task.Type)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.NotNil(t, task.StartedAt)
	assert.Equal(t, "admin", task.Payload["requested_by"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))
	mock.ExpectRollback()

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_DequeueCancelledWhileWaiting(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	task, err := q.DequeueWithTimeout(ctx, 30)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, task)
}

func TestQueue_Ack(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, completed_at = $2")).
		WithArgs("completed", sqlmock.AnyArg(), []byte(`{"chunks":42}`), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, completed_at = $2")).
		WithArgs("completed", sqlmock.AnyArg(), []byte("null"), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, q.Ack(context.Background(), "t1", map[string]int{"chunks": 42}))
	assert.ErrorIs(t, q.Ack(context.Background(), "missing", nil), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_NackRetries(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(pendingRow("t1", 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, error = $2")).
		WithArgs("pending", "embedding failed", sqlmock.AnyArg(), sqlmock.AnyArg(), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Nack(context.Background(), "t1", "embedding failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_NackExhausted(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(pendingRow("t1", 3))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, error = $2")).
		WithArgs("failed", "boom", sqlmock.AnyArg(), sqlmock.AnyArg(), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Nack(context.Background(), "t1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_GetTask(t *testing.T) {
	q, mock := setupTestQueue(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(taskRowColumns).AddRow(
			"t1", "ingest_syllabus", []byte(`{}`), "completed", 1, 3, "", []byte(`{"chunks":7}`),
			now, now, now, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(taskRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("broken").
		WillReturnError(errors.New("connection refused"))

	task, err := q.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 7, task.Result["chunks"])
	assert.NotNil(t, task.CompletedAt)

	task, err = q.GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, task)

	_, err = q.GetTask(context.Background(), "broken")
	assert.Error(t, err)
}

func TestQueue_Stats(t *testing.T) {
	q, mock := setupTestQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("processing", 1).
			AddRow("completed", 9))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PendingCount)
	assert.Equal(t, int64(1), stats.ProcessingCount)
}

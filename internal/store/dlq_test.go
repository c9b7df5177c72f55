package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebid/match-cli/internal/resilience"
)

// testDLQEntry returns an entry that is immediately eligible for retry.
func testDLQEntry(id string) resilience.DLQEntry {
	now := time.Now().UTC()
	return resilience.DLQEntry{
		ID:           id,
		InvitationID: "inv-" + id,
		BidCardID:    "bc-1",
		Channel:      "sms",
		Error:        "503 Service Unavailable",
		ErrorType:    "transient",
		MaxRetries:   3,
		NextRetryAt:  now.Add(-1 * time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

func TestSQLite_DLQ_EnqueueAndDequeue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, testDLQEntry("dlq-1")))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-1", entries[0].ID)
	assert.Equal(t, "inv-dlq-1", entries[0].InvitationID)
	assert.Equal(t, "bc-1", entries[0].BidCardID)
	assert.Equal(t, "sms", entries[0].Channel)
	assert.Equal(t, "transient", entries[0].ErrorType)
	assert.Equal(t, 0, entries[0].RetryCount)
}

func TestSQLite_DLQ_DequeueFiltersErrorType(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	transient := testDLQEntry("dlq-t")
	permanent := testDLQEntry("dlq-p")
	permanent.Error = "404 Not Found"
	permanent.ErrorType = "permanent"
	require.NoError(t, st.EnqueueDLQ(ctx, transient))
	require.NoError(t, st.EnqueueDLQ(ctx, permanent))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-t", entries[0].ID)
}

func TestSQLite_DLQ_DequeueFiltersChannel(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sms := testDLQEntry("dlq-sms")
	email := testDLQEntry("dlq-email")
	email.Channel = "email"
	require.NoError(t, st.EnqueueDLQ(ctx, sms))
	require.NoError(t, st.EnqueueDLQ(ctx, email))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Channel: "email"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-email", entries[0].ID)
}

func TestSQLite_DLQ_DequeueRespectsNextRetryAt(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// An entry whose next_retry_at is in the future must not be dequeued.
	entry := testDLQEntry("dlq-future")
	entry.NextRetryAt = time.Now().UTC().Add(1 * time.Hour)
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLite_DLQ_DequeueRespectsMaxRetries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Entry that has exhausted retries.
	entry := testDLQEntry("dlq-exhausted")
	entry.RetryCount = 3
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLite_DLQ_IncrementRetry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := testDLQEntry("dlq-inc")
	entry.MaxRetries = 5
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	nextRetry := time.Now().UTC().Add(5 * time.Minute)
	require.NoError(t, st.IncrementDLQRetry(ctx, "dlq-inc", nextRetry, "second error"))

	// Not eligible again until next_retry_at passes.
	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries, "entry should not be eligible yet")
}

func TestSQLite_DLQ_IncrementRetry_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.IncrementDLQRetry(ctx, "nonexistent", time.Now().UTC(), "error")
	assert.Error(t, err)
}

func TestSQLite_DLQ_Remove(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, testDLQEntry("dlq-rm")))

	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, st.RemoveDLQ(ctx, "dlq-rm"))

	count, err = st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLite_DLQ_Count(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for _, id := range []string{"dlq-a", "dlq-b", "dlq-c"} {
		require.NoError(t, st.EnqueueDLQ(ctx, testDLQEntry(id)))
	}

	count, err = st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLite_DLQ_EnqueueReplace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := testDLQEntry("dlq-replace")
	entry.Error = "first error"
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	// Re-enqueue with same ID but updated error.
	entry.Error = "second error"
	entry.RetryCount = 1
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second error", entries[0].Error)
	assert.Equal(t, 1, entries[0].RetryCount)
}

func TestSQLite_DLQ_DequeueOrdersByNextRetry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, id := range []string{"dlq-c", "dlq-a", "dlq-b"} {
		entry := testDLQEntry(id)
		entry.NextRetryAt = now.Add(time.Duration(-3+i) * time.Minute)
		require.NoError(t, st.EnqueueDLQ(ctx, entry))
	}

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Ordered by next_retry_at ascending.
	assert.Equal(t, "dlq-c", entries[0].ID)
	assert.Equal(t, "dlq-a", entries[1].ID)
	assert.Equal(t, "dlq-b", entries[2].ID)
}

package outbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kitea/hunt-backend/pkg/db/dbtest"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
)

func deadLetter(failedAt time.Time, reason enums.OutboxDLQErrorReason) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventMintRequested,
		AggregateType: enums.AggregateScan,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		ErrorReason:   reason,
		AttemptCount:  3,
		FailedAt:      failedAt,
	}
}

func TestDLQRepositoryReportsRecentEntries(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	old := deadLetter(now.Add(-48*time.Hour), enums.OutboxDLQReasonMaxAttempts)
	older := deadLetter(now.Add(-2*time.Hour), enums.OutboxDLQReasonNonRetryable)
	newest := deadLetter(now.Add(-time.Minute), enums.OutboxDLQReasonMaxAttempts)
	for _, entry := range []models.OutboxDLQ{old, older, newest} {
		require.NoError(t, repo.InsertTx(conn, entry))
	}

	since := now.Add(-24 * time.Hour)
	count, err := repo.CountSince(ctx, since)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	rows, err := repo.ListSince(ctx, since, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, newest.EventID, rows[0].EventID)

	rows, err = repo.ListSince(ctx, since, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, older.EventID, rows[1].EventID)
}

func TestDLQRepositoryInsertRequiresTx(t *testing.T) {
	repo := NewDLQRepository(dbtest.Open(t))
	require.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
}

func TestTruncateDLQErrorKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", truncateDLQError("short"))

	msg := strings.Repeat("a", maxDLQErrorLen-1) + "é tail"
	got := truncateDLQError(msg)
	require.Len(t, got, maxDLQErrorLen-1)
	require.True(t, strings.HasSuffix(got, "a"))
}

package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
)

type fakeDLQReader struct {
	count     int64
	rows      []models.OutboxDLQ
	countErr  error
	since     time.Time
	limit     int
	listCalls int
}

func (f *fakeDLQReader) CountSince(_ context.Context, since time.Time) (int64, error) {
	f.since = since
	return f.count, f.countErr
}

func (f *fakeDLQReader) ListSince(_ context.Context, _ time.Time, limit int) ([]models.OutboxDLQ, error) {
	f.listCalls++
	f.limit = limit
	return f.rows, nil
}

func newDLQReportJob(t *testing.T, reader *fakeDLQReader, reg *prometheus.Registry, now time.Time) *outboxDLQReportJob {
	t.Helper()
	job, err := NewOutboxDLQReportJob(OutboxDLQReportJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: reader,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Lookback:   6 * time.Hour,
	})
	require.NoError(t, err)
	report := job.(*outboxDLQReportJob)
	report.now = func() time.Time { return now }
	return report
}

func TestOutboxDLQReportSetsBacklogAndListsSample(t *testing.T) {
	msg := "max publish attempts reached"
	reader := &fakeDLQReader{
		count: 4,
		rows: []models.OutboxDLQ{{
			EventID:      uuid.New(),
			EventType:    enums.EventMintRequested,
			AggregateID:  uuid.New(),
			ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage: &msg,
		}},
	}
	reg := prometheus.NewRegistry()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := newDLQReportJob(t, reader, reg, now)

	require.Equal(t, "outbox-dlq-report", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-6*time.Hour), reader.since)
	require.Equal(t, defaultDLQSample, reader.limit)
	require.Equal(t, float64(4), backlogValue(t, reg, "outbox-dlq-report"))
}

func TestOutboxDLQReportQuietWhenEmpty(t *testing.T) {
	reader := &fakeDLQReader{}
	reg := prometheus.NewRegistry()
	job := newDLQReportJob(t, reader, reg, time.Now())

	require.NoError(t, job.Run(context.Background()))
	require.Zero(t, reader.listCalls)
	require.Zero(t, backlogValue(t, reg, "outbox-dlq-report"))
}

func TestOutboxDLQReportFailsOnCountError(t *testing.T) {
	reader := &fakeDLQReader{countErr: errors.New("db gone")}
	job := newDLQReportJob(t, reader, prometheus.NewRegistry(), time.Now())
	require.ErrorContains(t, job.Run(context.Background()), "db gone")
	require.Zero(t, reader.listCalls)
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
)

const (
	dlqReportJobName   = "outbox-dlq-report"
	defaultDLQLookback = 24 * time.Hour
	defaultDLQSample   = 20
)

type dlqReader interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.OutboxDLQ, error)
}

type OutboxDLQReportJobParams struct {
	Logger     *logger.Logger
	Repository dlqReader
	Metrics    *metrics.CronJobMetrics
	Lookback   time.Duration
	Sample     int
}

// NewOutboxDLQReportJob surfaces dead-lettered events. Nothing replays them;
// each one is logged with its reason and the window total becomes the backlog gauge.
func NewOutboxDLQReportJob(params OutboxDLQReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultDLQLookback
	}
	sample := params.Sample
	if sample <= 0 {
		sample = defaultDLQSample
	}
	return &outboxDLQReportJob{
		logg:     params.Logger,
		repo:     params.Repository,
		metrics:  params.Metrics,
		lookback: lookback,
		sample:   sample,
		now:      time.Now,
	}, nil
}

type outboxDLQReportJob struct {
	logg     *logger.Logger
	repo     dlqReader
	metrics  *metrics.CronJobMetrics
	lookback time.Duration
	sample   int
	now      func() time.Time
}

func (j *outboxDLQReportJob) Name() string { return dlqReportJobName }

func (j *outboxDLQReportJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	total, err := j.repo.CountSince(ctx, since)
	if err != nil {
		return fmt.Errorf("count dead letters: %w", err)
	}
	j.metrics.SetBacklog(dlqReportJobName, int(total))
	if total == 0 {
		j.logg.Debug(ctx, "no dead-lettered events")
		return nil
	}

	rows, err := j.repo.ListSince(ctx, since, j.sample)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	for _, row := range rows {
		fields := map[string]any{
			"outbox_id":     row.EventID.String(),
			"event_type":    string(row.EventType),
			"aggregate_id":  row.AggregateID.String(),
			"error_reason":  string(row.ErrorReason),
			"attempt_count": row.AttemptCount,
			"failed_at":     row.FailedAt,
		}
		if row.ErrorMessage != nil {
			fields["error"] = *row.ErrorMessage
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "dead-lettered outbox event")
	}
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"dead_lettered": total,
		"listed":        len(rows),
		"since":         since,
	}), "outbox dead letters need attention")
	return nil
}

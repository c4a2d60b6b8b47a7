package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
)

const (
	staleMintJobName    = "stale-mint-reconcile"
	defaultStaleBatch   = 50
	defaultStaleAge     = 10 * time.Minute
	staleAgeOverReceipt = 5 * time.Minute
)

type staleMintReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (mints.ReconcileSummary, error)
}

type StaleMintReconcileJobParams struct {
	Logger  *logger.Logger
	Mints   staleMintReconciler
	Metrics *metrics.CronJobMetrics
	// ReceiptTimeout is how long a request may wait on a receipt. Claims
	// younger than that plus a margin still belong to a live request.
	ReceiptTimeout time.Duration
	Batch          int
}

// NewStaleMintReconcileJob settles mints stuck in minting after a crash or a
// lost receipt. Submitted transactions are followed by hash and never resent.
func NewStaleMintReconcileJob(params StaleMintReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Mints == nil {
		return nil, fmt.Errorf("mint reconciler required")
	}
	olderThan := defaultStaleAge
	if params.ReceiptTimeout > 0 {
		olderThan = params.ReceiptTimeout + staleAgeOverReceipt
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultStaleBatch
	}
	return &staleMintReconcileJob{
		logg:      params.Logger,
		mints:     params.Mints,
		metrics:   params.Metrics,
		olderThan: olderThan,
		batch:     batch,
	}, nil
}

type staleMintReconcileJob struct {
	logg      *logger.Logger
	mints     staleMintReconciler
	metrics   *metrics.CronJobMetrics
	olderThan time.Duration
	batch     int
}

func (j *staleMintReconcileJob) Name() string { return staleMintJobName }

func (j *staleMintReconcileJob) Run(ctx context.Context) error {
	summary, err := j.mints.ReconcileStale(ctx, j.olderThan, j.batch)
	j.metrics.SetBacklog(staleMintJobName, summary.Unconfirmed)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"checked":     summary.Checked,
		"minted":      summary.Minted,
		"released":    summary.Released,
		"unconfirmed": summary.Unconfirmed,
		"older_than":  j.olderThan.String(),
	}), "stale mint reconcile complete")
	if err != nil {
		return fmt.Errorf("reconcile stale mints: %w", err)
	}
	return nil
}

package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
)

type fakeReconciler struct {
	summary   mints.ReconcileSummary
	err       error
	olderThan time.Duration
	limit     int
}

func (f *fakeReconciler) ReconcileStale(_ context.Context, olderThan time.Duration, limit int) (mints.ReconcileSummary, error) {
	f.olderThan = olderThan
	f.limit = limit
	return f.summary, f.err
}

func backlogValue(t *testing.T, reg *prometheus.Registry, job string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "cron_job_backlog" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no backlog gauge for %s", job)
	return 0
}

func TestStaleMintReconcileWaitsPastReceiptTimeout(t *testing.T) {
	reconciler := &fakeReconciler{summary: mints.ReconcileSummary{Checked: 3, Minted: 1, Released: 1, Unconfirmed: 1}}
	reg := prometheus.NewRegistry()
	job, err := NewStaleMintReconcileJob(StaleMintReconcileJobParams{
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Mints:          reconciler,
		Metrics:        metrics.NewCronJobMetrics(reg),
		ReceiptTimeout: 2 * time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "stale-mint-reconcile", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 2*time.Minute+staleAgeOverReceipt, reconciler.olderThan)
	require.Equal(t, defaultStaleBatch, reconciler.limit)
	require.Equal(t, float64(1), backlogValue(t, reg, "stale-mint-reconcile"))
}

func TestStaleMintReconcileReportsFailures(t *testing.T) {
	reconciler := &fakeReconciler{
		summary: mints.ReconcileSummary{Checked: 1},
		err:     errors.New("rpc down"),
	}
	job, err := NewStaleMintReconcileJob(StaleMintReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Mints:  reconciler,
		Batch:  7,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.ErrorContains(t, err, "rpc down")
	require.Equal(t, defaultStaleAge, reconciler.olderThan)
	require.Equal(t, 7, reconciler.limit)
}

func TestNewStaleMintReconcileJobValidates(t *testing.T) {
	_, err := NewStaleMintReconcileJob(StaleMintReconcileJobParams{Mints: &fakeReconciler{}})
	require.Error(t, err)
	_, err = NewStaleMintReconcileJob(StaleMintReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.Error(t, err)
}

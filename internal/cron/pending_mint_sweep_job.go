package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/logger"
)

const defaultSweepBatch = 100

type pendingProfileLister interface {
	ListWithPendingMints(ctx context.Context, limit int) ([]models.Profile, error)
}

type walletDrainer interface {
	Drain(ctx context.Context, userID uuid.UUID, wallet string) (int, error)
}

type PendingMintSweepJobParams struct {
	Logger   *logger.Logger
	Profiles pendingProfileLister
	Wallets  walletDrainer
	Batch    int
}

// NewPendingMintSweepJob retries parked mints for users that already hold a wallet.
// It catches records left pending after a failed drain or a lost queue message.
func NewPendingMintSweepJob(params PendingMintSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile lister required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet drainer required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &pendingMintSweepJob{
		logg:     params.Logger,
		profiles: params.Profiles,
		wallets:  params.Wallets,
		batch:    batch,
	}, nil
}

type pendingMintSweepJob struct {
	logg     *logger.Logger
	profiles pendingProfileLister
	wallets  walletDrainer
	batch    int
}

func (j *pendingMintSweepJob) Name() string { return "pending-mint-sweep" }

func (j *pendingMintSweepJob) Run(ctx context.Context) error {
	candidates, err := j.profiles.ListWithPendingMints(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list profiles with pending mints: %w", err)
	}

	var (
		errs   error
		minted int
	)
	for _, profile := range candidates {
		if !profile.HasWallet() {
			continue
		}
		n, err := j.wallets.Drain(j.logg.WithUserID(ctx, profile.ID.String()), profile.ID, *profile.WalletAddress)
		minted += n
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", profile.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"profiles": len(candidates),
		"minted":   minted,
		"failed":   len(multierr.Errors(errs)),
	}), "pending mint sweep complete")
	return errs
}

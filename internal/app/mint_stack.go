// Package app assembles the service graph shared by the kitea binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitea/hunt-backend/internal/locations"
	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/internal/profiles"
	"github.com/kitea/hunt-backend/internal/wallets"
	"github.com/kitea/hunt-backend/pkg/chain"
	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/redis"
)

type MintStackParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	// RequireChain fails construction when chain settings are missing.
	RequireChain bool
}

// MintStack holds the mint orchestrator, the wallet reconciler and their repositories.
type MintStack struct {
	Locations locations.Repository
	Profiles  profiles.Repository
	Mints     mints.Service
	MintRepo  mints.Repository
	Wallets   wallets.Service
	Outbox    *outbox.Service
	Metrics   *metrics.MintMetrics

	rpc *ethclient.Client
}

func NewMintStack(ctx context.Context, params MintStackParams) (*MintStack, error) {
	if params.Config == nil || params.Logger == nil || params.DB == nil || params.Redis == nil {
		return nil, errors.New("config, logger, db and redis are required")
	}
	cfg := params.Config
	logg := params.Logger
	redisClient := params.Redis

	reg := params.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	stack := &MintStack{
		Locations: locations.NewRepository(params.DB.DB()),
		Profiles:  profiles.NewRepository(params.DB.DB()),
		MintRepo:  mints.NewRepository(params.DB.DB()),
		Outbox:    outbox.NewService(outbox.NewRepository(params.DB.DB()), logg),
		Metrics:   metrics.NewMintMetrics(reg),
	}

	minter, err := stack.buildMinter(ctx, params)
	if err != nil {
		return nil, err
	}

	stack.Mints, err = mints.NewService(mints.ServiceParams{
		Repo:      stack.MintRepo,
		Locations: stack.Locations,
		Profiles:  stack.Profiles,
		Minter:    minter,
		Chain:     cfg.Chain,
		Metrics:   stack.Metrics,
		Logger:    logg,
	})
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("mint service: %w", err)
	}

	stack.Wallets, err = wallets.NewService(wallets.ServiceParams{
		Profiles: stack.Profiles,
		Pending:  stack.MintRepo,
		Minter:   stack.Mints,
		Outbox:   stack.Outbox,
		Tx:       params.DB,
		LockFactory: func(key string) (wallets.Locker, error) {
			lock, err := redis.NewLock(redisClient, redisClient.LockKey("drain", key), 0)
			if err != nil {
				return nil, err
			}
			return lock, nil
		},
		Salt:    cfg.Wallet.Salt,
		Metrics: stack.Metrics,
		Logger:  logg,
	})
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("wallet service: %w", err)
	}
	return stack, nil
}

func (s *MintStack) buildMinter(ctx context.Context, params MintStackParams) (chain.Minter, error) {
	cfg := params.Config
	redisClient := params.Redis

	rpc, err := chain.Dial(ctx, cfg.Chain)
	if err != nil {
		return s.unconfigured(ctx, params, err)
	}

	minter, err := chain.NewEditionMinter(chain.EditionMinterParams{
		Backend: rpc,
		Config:  cfg.Chain,
		Logger:  params.Logger,
		LockFactory: func(key string) (chain.SignerLock, error) {
			lock, err := redis.NewLock(redisClient, redisClient.LockKey("signer", key), cfg.Chain.SignerLockTTL)
			if err != nil {
				return nil, err
			}
			return lock, nil
		},
	})
	if err != nil {
		rpc.Close()
		return s.unconfigured(ctx, params, err)
	}
	s.rpc = rpc

	params.Logger.Info(params.Logger.WithFields(ctx, map[string]any{
		"signer":   minter.Signer(),
		"contract": minter.ContractAddress(),
		"chain":    cfg.Chain.Name,
	}), "edition minter ready")
	return minter, nil
}

func (s *MintStack) unconfigured(ctx context.Context, params MintStackParams, err error) (chain.Minter, error) {
	if params.RequireChain || !chain.IsConfigError(err) {
		return nil, fmt.Errorf("edition minter: %w", err)
	}
	params.Logger.Warn(ctx, "chain settings incomplete; mint requests will be rejected")
	return chain.Unconfigured(err), nil
}

// Close releases the RPC connection.
func (s *MintStack) Close() {
	if s == nil || s.rpc == nil {
		return
	}
	s.rpc.Close()
	s.rpc = nil
}

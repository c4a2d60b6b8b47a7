package wallets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/internal/profiles"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/outbox/payloads"
)

const (
	msgMissingSalt     = "Server misconfiguration: WALLET_SALT not set"
	defaultDrainWait   = 30 * time.Second
	msgWalletConflict  = "A different wallet is already connected to this account"
	msgWalletTakenByID = "This wallet is already connected to another account"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingMinter interface {
	MintPending(ctx context.Context, record models.NFTToken, wallet string) (*mints.MintResult, error)
}

type pendingLister interface {
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]models.NFTToken, error)
}

// Locker serializes drains for one user across processes.
type Locker interface {
	AcquireWait(ctx context.Context, maxWait time.Duration) error
	Release(ctx context.Context) error
}

// LockFactory builds a Locker for the given user key.
type LockFactory func(key string) (Locker, error)

type GenerateResult struct {
	WalletAddress string `json:"wallet_address"`
	Created       bool   `json:"created"`
	Minted        int    `json:"minted"`
}

type ConnectResult struct {
	Success bool `json:"success"`
	Minted  int  `json:"minted"`
}

type Service interface {
	Generate(ctx context.Context, userID uuid.UUID, email string) (*GenerateResult, error)
	Connect(ctx context.Context, userID uuid.UUID, address string) (*ConnectResult, error)
	Drain(ctx context.Context, userID uuid.UUID, wallet string) (int, error)
	DrainUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type ServiceParams struct {
	Profiles    profiles.Repository
	Pending     pendingLister
	Minter      pendingMinter
	Outbox      outboxPublisher
	Tx          txRunner
	LockFactory LockFactory
	DrainWait   time.Duration
	Salt        string
	Metrics     *metrics.MintMetrics
	Logger      *logger.Logger
}

type service struct {
	profiles  profiles.Repository
	pending   pendingLister
	minter    pendingMinter
	outbox    outboxPublisher
	tx        txRunner
	locks     LockFactory
	drainWait time.Duration
	salt      string
	metrics   *metrics.MintMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending mint lister required")
	}
	if params.Minter == nil {
		return nil, fmt.Errorf("mint service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.LockFactory == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DrainWait <= 0 {
		params.DrainWait = defaultDrainWait
	}
	return &service{
		profiles:  params.Profiles,
		pending:   params.Pending,
		minter:    params.Minter,
		outbox:    params.Outbox,
		tx:        params.Tx,
		locks:     params.LockFactory,
		drainWait: params.DrainWait,
		salt:      params.Salt,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Generate derives the custodial wallet for the user, attaches it and mints
// everything that was waiting for it.
func (s *service) Generate(ctx context.Context, userID uuid.UUID, email string) (*GenerateResult, error) {
	ctx = s.logg.WithUserID(ctx, userID.String())

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.HasWallet() {
		return &GenerateResult{WalletAddress: *profile.WalletAddress}, nil
	}
	if s.salt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMisconfigured, msgMissingSalt)
	}

	if strings.TrimSpace(email) == "" && profile.Email != nil {
		email = *profile.Email
	}
	derived, err := Derive(email, s.salt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "email is required")
	}

	attached, current, err := s.attach(ctx, userID, derived.Address, true)
	if err != nil {
		return nil, err
	}
	if !attached {
		return &GenerateResult{WalletAddress: current}, nil
	}

	minted := s.drainAfterAttach(ctx, userID, derived.Address)
	return &GenerateResult{WalletAddress: derived.Address, Created: true, Minted: minted}, nil
}

// Connect attaches a user-supplied wallet. Re-sending the attached address is
// a no-op apart from draining again.
func (s *service) Connect(ctx context.Context, userID uuid.UUID, address string) (*ConnectResult, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet address")
	}
	address = common.HexToAddress(address).Hex()
	ctx = s.logg.WithUserID(ctx, userID.String())

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.HasWallet() {
		if !strings.EqualFold(*profile.WalletAddress, address) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, msgWalletConflict)
		}
		return &ConnectResult{Success: true, Minted: s.drainAfterAttach(ctx, userID, *profile.WalletAddress)}, nil
	}

	attached, current, err := s.attach(ctx, userID, address, false)
	if err != nil {
		return nil, err
	}
	if !attached && !strings.EqualFold(current, address) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgWalletConflict)
	}
	return &ConnectResult{Success: true, Minted: s.drainAfterAttach(ctx, userID, address)}, nil
}

// attach sets the wallet while it is empty and emits wallet_attached. When the
// profile gained a wallet concurrently it returns false with that address.
func (s *service) attach(ctx context.Context, userID uuid.UUID, address string, generated bool) (bool, string, error) {
	var attached bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		attached, err = s.profiles.WithTx(tx).AttachWallet(ctx, userID, address)
		if err != nil || !attached {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletAttached,
			AggregateType: enums.AggregateProfile,
			AggregateID:   userID,
			Actor:         &outbox.ActorRef{UserID: userID, Source: "wallet"},
			Data: payloads.WalletAttachedEvent{
				UserID:        userID,
				WalletAddress: address,
				Generated:     generated,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, "", pkgerrors.New(pkgerrors.CodeConflict, msgWalletTakenByID)
		}
		return false, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach wallet")
	}
	if attached {
		s.logg.Info(s.logg.WithField(ctx, "wallet", address), "wallet attached")
		return true, address, nil
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if !profile.HasWallet() {
		return false, "", pkgerrors.New(pkgerrors.CodeInternal, "wallet attach did not apply")
	}
	return false, *profile.WalletAddress, nil
}

// drainAfterAttach runs a drain for the request path. Failures leave records
// pending for the worker and the sweep, so they are logged and not returned.
func (s *service) drainAfterAttach(ctx context.Context, userID uuid.UUID, wallet string) int {
	minted, err := s.Drain(ctx, userID, wallet)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "minted", minted), "wallet drain incomplete", err)
	}
	return minted
}

// Drain mints every pending record of the user to wallet. A failing record is
// released and the loop moves on; the failures come back combined.
func (s *service) Drain(ctx context.Context, userID uuid.UUID, wallet string) (int, error) {
	if wallet == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet address is required")
	}

	lock, err := s.locks(userID.String())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build drain lock")
	}
	if err := lock.AcquireWait(ctx, s.drainWait); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drain already in progress")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to release drain lock")
		}
	}()

	records, err := s.pending.ListPendingByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending mints")
	}

	var (
		minted int
		errs   error
	)
	for _, record := range records {
		res, err := s.minter.MintPending(ctx, record, wallet)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mint %s: %w", record.ID, err))
			continue
		}
		if res.NewlyMinted {
			minted++
		}
	}

	s.metrics.AddDrained(minted)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"pending": len(records),
		"minted":  minted,
		"failed":  len(multierr.Errors(errs)),
	}), "wallet drain finished")

	if errs != nil {
		return minted, pkgerrors.Wrap(pkgerrors.CodeChain, errs, "some pending mints failed")
	}
	return minted, nil
}

// DrainUser drains using the wallet stored on the profile.
func (s *service) DrainUser(ctx context.Context, userID uuid.UUID) (int, error) {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !profile.HasWallet() {
		return 0, nil
	}
	return s.Drain(ctx, userID, *profile.WalletAddress)
}

func (s *service) loadProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	return profile, nil
}

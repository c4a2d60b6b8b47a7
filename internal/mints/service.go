package mints

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/chain"
	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
)

const (
	kindFounder  = "founder"
	kindLocation = "location"

	msgMintFailed      = "mint transaction failed"
	msgMintReverted    = "mint transaction reverted"
	msgMintUnconfirmed = "mint transaction unconfirmed"
)

var errClaimExpired = errors.New("mint claim expired before a transaction was recorded")

type locationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.HuntLocation, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.HuntLocation, error)
}

type profileReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// MintRequest identifies one collectible. HuntLocationID is nil for founders.
type MintRequest struct {
	UserID         uuid.UUID  `json:"user_id"`
	HuntLocationID *uuid.UUID `json:"hunt_location_id"`
	ScanID         *uuid.UUID `json:"scan_id"`
	ScanNumber     int        `json:"scan_number"`
	IsFounder      bool       `json:"is_founder"`
}

// MintResult reports the state of the record after the call. NewlyMinted is
// set only when this call submitted the chain transaction.
type MintResult struct {
	Status          enums.MintStatus `json:"status"`
	TokenID         string           `json:"token_id"`
	TransactionHash *string          `json:"transaction_hash,omitempty"`
	EditionNumber   int              `json:"edition_number"`
	NewlyMinted     bool             `json:"-"`
}

// Collectible is a mint record as shown in the user's collection.
type Collectible struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	IsFounder       bool             `json:"is_founder"`
	HuntLocationID  *uuid.UUID       `json:"hunt_location_id"`
	LocationName    *string          `json:"location_name,omitempty"`
	TokenID         string           `json:"token_id"`
	EditionNumber   int              `json:"edition_number"`
	Status          enums.MintStatus `json:"status"`
	TransactionHash *string          `json:"transaction_hash,omitempty"`
	ContractAddress string           `json:"contract_address"`
	Chain           string           `json:"chain"`
	MintedAt        *time.Time       `json:"minted_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ReconcileSummary counts what one pass over stale minting records did.
type ReconcileSummary struct {
	Checked     int
	Minted      int
	Released    int
	Unconfirmed int
}

type Service interface {
	Mint(ctx context.Context, req MintRequest) (*MintResult, error)
	MintPending(ctx context.Context, record models.NFTToken, wallet string) (*MintResult, error)
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error)
	ListCollection(ctx context.Context, userID uuid.UUID) ([]Collectible, error)
}

type ServiceParams struct {
	Repo      Repository
	Locations locationReader
	Profiles  profileReader
	Minter    chain.Minter
	Chain     config.ChainConfig
	Metrics   *metrics.MintMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	locations locationReader
	profiles  profileReader
	minter    chain.Minter
	chain     config.ChainConfig
	metrics   *metrics.MintMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("mints repository required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("locations reader required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles reader required")
	}
	if params.Minter == nil {
		return nil, fmt.Errorf("chain minter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Chain.FounderTokenID == "" {
		params.Chain.FounderTokenID = "0"
	}
	return &service{
		repo:      params.Repo,
		locations: params.Locations,
		profiles:  params.Profiles,
		minter:    params.Minter,
		chain:     params.Chain,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Mint drives one (user, location-or-founder) record towards minted. Without a
// wallet the record is parked as pending and no chain call is made.
func (s *service) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	if req.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if !req.IsFounder && req.HuntLocationID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hunt_location_id is required")
	}
	if req.IsFounder {
		req.HuntLocationID = nil
	}

	ctx = s.logg.WithUserID(ctx, req.UserID.String())
	tokenID, err := s.tokenIDFor(ctx, req)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	wallet := ""
	if profile.HasWallet() {
		wallet = *profile.WalletAddress
	}

	existing, err := s.repo.FindByKey(ctx, req.UserID, req.HuntLocationID)
	switch {
	case err == nil:
		return s.advance(ctx, *existing, wallet)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup mint record")
	}

	record := models.NFTToken{
		UserID:          req.UserID,
		HuntLocationID:  req.HuntLocationID,
		ScanID:          req.ScanID,
		IsFounder:       req.IsFounder,
		TokenID:         tokenID,
		EditionNumber:   req.ScanNumber,
		Status:          enums.MintStatusPending,
		ContractAddress: s.chain.ContractAddress,
		Chain:           s.chain.Name,
	}
	if wallet != "" {
		now := time.Now().UTC()
		record.Status = enums.MintStatusMinting
		record.ClaimedAt = &now
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		if db.IsUniqueViolation(err, "") {
			current, lookupErr := s.repo.FindByKey(ctx, req.UserID, req.HuntLocationID)
			if lookupErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "reload mint record")
			}
			return s.advance(ctx, *current, wallet)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create mint record")
	}

	if wallet == "" {
		s.metrics.IncOutcome(metrics.MintOutcomePending, kindOf(record))
		s.logg.Info(ctx, "mint parked until a wallet is attached")
		return resultOf(record), nil
	}
	return s.execute(ctx, record, wallet)
}

// MintPending advances an existing record for a known wallet.
func (s *service) MintPending(ctx context.Context, record models.NFTToken, wallet string) (*MintResult, error) {
	if wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet address is required")
	}
	return s.advance(ctx, record, wallet)
}

func (s *service) advance(ctx context.Context, record models.NFTToken, wallet string) (*MintResult, error) {
	switch record.Status {
	case enums.MintStatusMinted:
		return resultOf(record), nil
	case enums.MintStatusMinting:
		s.metrics.IncOutcome(metrics.MintOutcomeSkipped, kindOf(record))
		return resultOf(record), nil
	}
	if wallet == "" {
		return resultOf(record), nil
	}

	claimed, err := s.repo.Claim(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim mint record")
	}
	if !claimed {
		current, err := s.repo.FindByID(ctx, record.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload mint record")
		}
		s.metrics.IncOutcome(metrics.MintOutcomeSkipped, kindOf(*current))
		return resultOf(*current), nil
	}
	record.Status = enums.MintStatusMinting
	return s.execute(ctx, record, wallet)
}

// execute runs the chain call for a record this caller has claimed. The claim
// is released only while no transaction can land; after broadcast the record
// stays minting with its hash until a receipt settles it.
func (s *service) execute(ctx context.Context, record models.NFTToken, wallet string) (*MintResult, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"mint_id":  record.ID.String(),
		"token_id": record.TokenID,
		"wallet":   wallet,
	})
	persistCtx := context.WithoutCancel(ctx)

	txHash, err := s.minter.Submit(ctx, wallet, record.TokenID, 1)
	if err != nil {
		s.release(logCtx, record, err)
		s.metrics.IncOutcome(metrics.MintOutcomeFailed, kindOf(record))
		s.logg.Error(logCtx, "mint transaction not submitted", err)
		if pkgerrors.IsCode(err, pkgerrors.CodeMisconfigured) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeChain, err, msgMintFailed)
	}

	logCtx = s.logg.WithField(logCtx, "tx_hash", txHash)
	if err := s.repo.RecordSubmission(persistCtx, record.ID, txHash); err != nil {
		s.metrics.IncBookkeepingFailure()
		s.logg.Error(logCtx, "failed to record mint submission", err)
	}

	if err := s.minter.WaitMined(ctx, txHash); err != nil {
		if errors.Is(err, chain.ErrReverted) {
			s.release(logCtx, record, err)
			s.metrics.IncOutcome(metrics.MintOutcomeFailed, kindOf(record))
			s.logg.Error(logCtx, "mint transaction reverted", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeChain, err, msgMintReverted)
		}
		s.metrics.IncOutcome(metrics.MintOutcomeUnconfirmed, kindOf(record))
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "mint transaction unconfirmed, left for reconciliation")
		return nil, pkgerrors.Wrap(pkgerrors.CodeChain, err, msgMintUnconfirmed).
			WithDetails(map[string]any{"transaction_hash": txHash})
	}

	if err := s.repo.MarkMinted(persistCtx, record.ID, txHash); err != nil {
		s.metrics.IncBookkeepingFailure()
		s.logg.Error(logCtx, "minted on chain but record update failed", err)
	}
	s.metrics.IncOutcome(metrics.MintOutcomeMinted, kindOf(record))
	s.logg.Info(logCtx, "collectible minted")

	record.Status = enums.MintStatusMinted
	record.TransactionHash = &txHash
	result := resultOf(record)
	result.NewlyMinted = true
	return result, nil
}

func (s *service) release(logCtx context.Context, record models.NFTToken, cause error) {
	if err := s.repo.Release(context.WithoutCancel(logCtx), record.ID, cause); err != nil {
		s.logg.Error(logCtx, "failed to release mint claim", err)
	}
}

// ReconcileStale settles minting records claimed more than olderThan ago. A
// record with a hash follows its receipt and is never submitted again; one
// without a hash never reached the chain and goes back to pending.
func (s *service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error) {
	var summary ReconcileSummary
	records, err := s.repo.ListStaleMinting(ctx, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale mints")
	}

	var errs error
	for _, record := range records {
		summary.Checked++
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"mint_id": record.ID.String(),
			"user_id": record.UserID.String(),
		})

		if record.TransactionHash == nil || *record.TransactionHash == "" {
			if err := s.repo.Release(ctx, record.ID, errClaimExpired); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("release %s: %w", record.ID, err))
				continue
			}
			summary.Released++
			s.logg.Warn(logCtx, "expired mint claim released")
			continue
		}

		txHash := *record.TransactionHash
		logCtx = s.logg.WithField(logCtx, "tx_hash", txHash)
		state, err := s.minter.ReceiptStatus(ctx, txHash)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("receipt %s: %w", record.ID, err))
			continue
		}
		switch state {
		case chain.ReceiptSucceeded:
			if err := s.repo.MarkMinted(ctx, record.ID, txHash); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark minted %s: %w", record.ID, err))
				continue
			}
			summary.Minted++
			s.metrics.IncOutcome(metrics.MintOutcomeMinted, kindOf(record))
			s.logg.Info(logCtx, "unconfirmed mint settled as minted")
		case chain.ReceiptReverted:
			if err := s.repo.Release(ctx, record.ID, fmt.Errorf("%w: %s", chain.ErrReverted, txHash)); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("release %s: %w", record.ID, err))
				continue
			}
			summary.Released++
			s.metrics.IncOutcome(metrics.MintOutcomeFailed, kindOf(record))
			s.logg.Warn(logCtx, "unconfirmed mint reverted, record released")
		default:
			summary.Unconfirmed++
			s.logg.Warn(logCtx, "mint transaction still has no receipt")
		}
	}

	if errs != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeChain, errs, "some stale mints could not be reconciled")
	}
	return summary, nil
}

func (s *service) tokenIDFor(ctx context.Context, req MintRequest) (string, error) {
	if req.IsFounder {
		return s.chain.FounderTokenID, nil
	}
	location, err := s.locations.FindByID(ctx, *req.HuntLocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "location not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load location")
	}
	if location.TokenID == nil || *location.TokenID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "location has no token configured")
	}
	return *location.TokenID, nil
}

func (s *service) ListCollection(ctx context.Context, userID uuid.UUID) ([]Collectible, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list collection")
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		if record.HuntLocationID != nil {
			ids = append(ids, *record.HuntLocationID)
		}
	}
	names := map[uuid.UUID]models.HuntLocation{}
	if len(ids) > 0 {
		names, err = s.locations.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load collection locations")
		}
	}

	out := make([]Collectible, 0, len(records))
	for _, record := range records {
		item := Collectible{
			ID:              record.ID,
			IsFounder:       record.IsFounder,
			HuntLocationID:  record.HuntLocationID,
			TokenID:         record.TokenID,
			EditionNumber:   record.EditionNumber,
			Status:          record.Status,
			TransactionHash: record.TransactionHash,
			ContractAddress: record.ContractAddress,
			Chain:           record.Chain,
			MintedAt:        record.MintedAt,
			CreatedAt:       record.CreatedAt,
		}
		if record.HuntLocationID != nil {
			if location, ok := names[*record.HuntLocationID]; ok {
				name := location.Name
				item.LocationName = &name
			}
		}
		item.Name = DisplayName(record.IsFounder, item.LocationName, record.EditionNumber)
		out = append(out, item)
	}
	return out, nil
}

// DisplayName renders the collectible title shown in the collection.
func DisplayName(founder bool, locationName *string, edition int) string {
	switch {
	case founder:
		return fmt.Sprintf("Kitea Founder #%d", edition)
	case locationName != nil:
		return fmt.Sprintf("Kitea — %s #%d", *locationName, edition)
	default:
		return fmt.Sprintf("Kitea #%d", edition)
	}
}

func resultOf(record models.NFTToken) *MintResult {
	return &MintResult{
		Status:          record.Status,
		TokenID:         record.TokenID,
		TransactionHash: record.TransactionHash,
		EditionNumber:   record.EditionNumber,
	}
}

func kindOf(record models.NFTToken) string {
	if record.IsFounder {
		return kindFounder
	}
	return kindLocation
}

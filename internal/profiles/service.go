package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EnsureResult reports the caller's profile and whether this call created it.
type EnsureResult struct {
	Profile       *models.Profile `json:"profile"`
	Created       bool            `json:"created"`
	FounderNumber *int            `json:"founder_number"`
}

type Service interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*EnsureResult, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// EnsureProfile creates the profile on first sign-in. A new profile gets the
// next founder number and a founder mint request in the same transaction.
// Later sign-ins request the founder mint again until its record exists.
func (s *service) EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*EnsureResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var (
		profile   *models.Profile
		created   bool
		requested bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		candidate := &models.Profile{ID: userID}
		if trimmed := strings.TrimSpace(email); trimmed != "" {
			candidate.Email = &trimmed
		}

		var err error
		created, err = repo.CreateIfMissing(ctx, candidate)
		if err != nil {
			return err
		}
		if created {
			profile = candidate
		} else {
			profile, err = repo.FindByID(ctx, userID)
			if err != nil {
				return err
			}
			hasFounder, err := repo.HasFounderMint(ctx, userID)
			if err != nil || hasFounder {
				return err
			}
		}

		if profile.FounderNumber == nil {
			count, err := repo.Count(ctx)
			if err != nil {
				return err
			}
			number := int(count)
			if err := repo.SetFounderNumber(ctx, userID, number); err != nil {
				return err
			}
			profile.FounderNumber = &number
		}

		requested = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMintRequested,
			AggregateType: enums.AggregateProfile,
			AggregateID:   userID,
			Actor:         &outbox.ActorRef{UserID: userID, Source: "signup"},
			Data: payloads.MintRequestedEvent{
				UserID:     userID,
				ScanNumber: *profile.FounderNumber,
				IsFounder:  true,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure profile")
	}

	logCtx := s.logg.WithUserID(ctx, userID.String())
	switch {
	case created:
		s.logg.Info(logCtx, fmt.Sprintf("profile created as founder #%d", *profile.FounderNumber))
	case requested:
		s.logg.Info(logCtx, "founder mint requested again")
	}
	return &EnsureResult{
		Profile:       profile,
		Created:       created,
		FounderNumber: profile.FounderNumber,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	return profile, nil
}

package scans

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/internal/locations"
	"github.com/kitea/hunt-backend/internal/tags"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/outbox/payloads"
)

const msgAlreadyScanned = "You have already scanned this location."

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type tagResolver interface {
	Resolve(ctx context.Context, rawUID string) (*tags.Resolution, error)
}

// ProductUnlocker records unlocks for products gated on a location.
type ProductUnlocker interface {
	UnlockForLocation(ctx context.Context, tx *gorm.DB, userID, locationID uuid.UUID) (int, error)
}

// LocationSummary is the location echoed back to the scanner.
type LocationSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	PagePath    *string   `json:"page_path,omitempty"`
	TotalScans  int       `json:"total_scans"`
}

// ScanResult is returned for both first and repeat scans.
type ScanResult struct {
	Success        bool            `json:"success"`
	AlreadyScanned bool            `json:"already_scanned"`
	ScanNumber     int             `json:"scan_number"`
	Location       LocationSummary `json:"location"`
	Message        string          `json:"message,omitempty"`
}

type Service interface {
	Record(ctx context.Context, userID uuid.UUID, tagUID string) (*ScanResult, error)
}

type ServiceParams struct {
	Repo      Repository
	Locations locations.Repository
	Tags      tagResolver
	Unlocker  ProductUnlocker
	Outbox    outboxPublisher
	Tx        txRunner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	locations locations.Repository
	tags      tagResolver
	unlocker  ProductUnlocker
	outbox    outboxPublisher
	tx        txRunner
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("scans repository required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("locations repository required")
	}
	if params.Tags == nil {
		return nil, fmt.Errorf("tag resolver required")
	}
	if params.Unlocker == nil {
		return nil, fmt.Errorf("product unlocker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		locations: params.Locations,
		tags:      params.Tags,
		unlocker:  params.Unlocker,
		outbox:    params.Outbox,
		tx:        params.Tx,
		logg:      params.Logger,
	}, nil
}

// Record registers the first scan of a location by a user. Repeat scans,
// including the loser of a concurrent race, get the already-scanned result.
func (s *service) Record(ctx context.Context, userID uuid.UUID, tagUID string) (*ScanResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	resolution, err := s.tags.Resolve(ctx, tagUID)
	if err != nil {
		return nil, err
	}
	location := resolution.Location
	ctx = s.logg.WithLocationID(ctx, location.ID.String())

	existing, err := s.repo.FindByUserLocation(ctx, userID, location.ID)
	switch {
	case err == nil:
		return alreadyScanned(existing.ScanNumber, location), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup scan")
	}

	var scan models.Scan
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.locations.WithTx(tx).IncrementTotalScans(ctx, location.ID)
		if err != nil {
			return fmt.Errorf("increment scan counter: %w", err)
		}

		scan = models.Scan{
			UserID:     userID,
			LocationID: location.ID,
			TagUID:     resolution.TagUID,
			ScanNumber: number,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &scan); err != nil {
			return err
		}

		unlocked, err := s.unlocker.UnlockForLocation(ctx, tx, userID, location.ID)
		if err != nil {
			return fmt.Errorf("unlock products: %w", err)
		}
		if unlocked > 0 {
			s.logg.Info(s.logg.WithField(ctx, "unlocked", unlocked), "products unlocked by scan")
		}

		locationID := location.ID
		scanID := scan.ID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMintRequested,
			AggregateType: enums.AggregateScan,
			AggregateID:   scan.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Source: "scan"},
			Data: payloads.MintRequestedEvent{
				UserID:         userID,
				HuntLocationID: &locationID,
				ScanID:         &scanID,
				ScanNumber:     number,
				IsFounder:      false,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			winner, lookupErr := s.repo.FindByUserLocation(ctx, userID, location.ID)
			if lookupErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "reload concurrent scan")
			}
			s.logg.Info(ctx, "concurrent scan lost the race")
			return alreadyScanned(winner.ScanNumber, location), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record scan")
	}

	location.TotalScans = scan.ScanNumber
	s.logg.Info(s.logg.WithField(ctx, "scan_number", scan.ScanNumber), "scan recorded")

	return &ScanResult{
		Success:        true,
		AlreadyScanned: false,
		ScanNumber:     scan.ScanNumber,
		Location:       summarize(location),
		Message:        fmt.Sprintf("You are number %d to scan %s!", scan.ScanNumber, location.Name),
	}, nil
}

func alreadyScanned(number int, location models.HuntLocation) *ScanResult {
	return &ScanResult{
		Success:        false,
		AlreadyScanned: true,
		ScanNumber:     number,
		Location:       summarize(location),
		Message:        msgAlreadyScanned,
	}
}

func summarize(l models.HuntLocation) LocationSummary {
	return LocationSummary{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Lat:         l.Lat,
		Lng:         l.Lng,
		PagePath:    l.PagePath,
		TotalScans:  l.TotalScans,
	}
}

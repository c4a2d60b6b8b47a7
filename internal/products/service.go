package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitea/hunt-backend/pkg/db/models"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

type scanLookup interface {
	ListLocationIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Listing is a shop product with the caller's lock state.
type Listing struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Description        *string         `json:"description,omitempty"`
	ImageURL           *string         `json:"image_url,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	RequiresScan       bool            `json:"requires_scan"`
	RequiredLocationID *uuid.UUID      `json:"required_location_id,omitempty"`
	Locked             bool            `json:"locked"`
}

type Service interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]Listing, error)
}

type service struct {
	repo  Repository
	scans scanLookup
}

func NewService(repo Repository, scans scanLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if scans == nil {
		return nil, fmt.Errorf("scan lookup required")
	}
	return &service{repo: repo, scans: scans}, nil
}

func (s *service) ListActive(ctx context.Context, userID uuid.UUID) ([]Listing, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	unlocked := map[uuid.UUID]bool{}
	scanned := map[uuid.UUID]bool{}
	if userID != uuid.Nil {
		ids, err := s.repo.ListUnlockedProductIDs(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unlocks")
		}
		for _, id := range ids {
			unlocked[id] = true
		}
		locationIDs, err := s.scans.ListLocationIDsByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list scans")
		}
		for _, id := range locationIDs {
			scanned[id] = true
		}
	}

	out := make([]Listing, 0, len(rows))
	for _, p := range rows {
		out = append(out, Listing{
			ID:                 p.ID,
			Name:               p.Name,
			Description:        p.Description,
			ImageURL:           p.ImageURL,
			Price:              p.Price,
			Currency:           p.Currency,
			RequiresScan:       p.RequiresScan,
			RequiredLocationID: p.RequiredLocationID,
			Locked:             IsLocked(p, unlocked[p.ID], scanned),
		})
	}
	return out, nil
}

// IsLocked reports whether a gated product is still unavailable to the user.
func IsLocked(p models.Product, hasUnlock bool, scannedLocations map[uuid.UUID]bool) bool {
	if !p.RequiresScan || hasUnlock {
		return false
	}
	if p.RequiredLocationID != nil && scannedLocations[*p.RequiredLocationID] {
		return false
	}
	return true
}

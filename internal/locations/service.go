package locations

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/pkg/db/models"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

// Pin is the map view of a hunt location.
type Pin struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	PagePath    *string   `json:"page_path,omitempty"`
	TotalScans  int       `json:"total_scans"`
}

type Service interface {
	ListActive(ctx context.Context) ([]Pin, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("locations repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context) ([]Pin, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list locations")
	}
	pins := make([]Pin, 0, len(rows))
	for _, row := range rows {
		pins = append(pins, toPin(row))
	}
	return pins, nil
}

func toPin(l models.HuntLocation) Pin {
	return Pin{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Lat:         l.Lat,
		Lng:         l.Lng,
		PagePath:    l.PagePath,
		TotalScans:  l.TotalScans,
	}
}

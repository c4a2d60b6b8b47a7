package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

const (
	msgNoTag        = "No tag ID provided"
	msgUnrecognised = "Tag not recognised. Make sure you are scanning an official Kitea tag."
)

type locationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.HuntLocation, error)
}

// Resolution is a recognised tag and the active location that owns it.
type Resolution struct {
	TagID    uuid.UUID
	TagUID   string
	Location models.HuntLocation
}

type Service interface {
	Resolve(ctx context.Context, rawUID string) (*Resolution, error)
}

type service struct {
	repo      Repository
	locations locationReader
}

func NewService(repo Repository, locations locationReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tags repository required")
	}
	if locations == nil {
		return nil, fmt.Errorf("locations repository required")
	}
	return &service{repo: repo, locations: locations}, nil
}

func (s *service) Resolve(ctx context.Context, rawUID string) (*Resolution, error) {
	uid := strings.TrimSpace(rawUID)
	if uid == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgNoTag)
	}

	tag, err := s.repo.FindActiveByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUnrecognised)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve tag")
	}
	if tag.HuntLocationID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUnrecognised)
	}

	location, err := s.locations.FindByID(ctx, *tag.HuntLocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUnrecognised)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load tag location")
	}
	if !location.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUnrecognised)
	}

	return &Resolution{
		TagID:    tag.ID,
		TagUID:   uid,
		Location: *location,
	}, nil
}

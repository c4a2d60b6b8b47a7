package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/api/responses"
	"github.com/kitea/hunt-backend/api/validators"
	"github.com/kitea/hunt-backend/internal/mints"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type minter interface {
	Mint(ctx context.Context, req mints.MintRequest) (*mints.MintResult, error)
}

type mintRequest struct {
	UserID         string  `json:"user_id" validate:"required,uuid"`
	HuntLocationID *string `json:"hunt_location_id"`
	ScanID         *string `json:"scan_id"`
	ScanNumber     int     `json:"scan_number" validate:"min=0"`
	IsFounder      bool    `json:"is_founder"`
}

// Mint is the internal trigger for one collectible. Chain failures answer 500 with the chain message.
func Mint(svc minter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req mintRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id"))
			return
		}
		locationID, err := parseOptionalUUID(req.HuntLocationID, "hunt_location_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		scanID, err := parseOptionalUUID(req.ScanID, "scan_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithUserID(ctx, userID.String())
		}
		result, err := svc.Mint(ctx, mints.MintRequest{
			UserID:         userID,
			HuntLocationID: locationID,
			ScanID:         scanID,
			ScanNumber:     req.ScanNumber,
			IsFounder:      req.IsFounder || locationID == nil,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

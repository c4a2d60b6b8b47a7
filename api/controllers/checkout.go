package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/api/responses"
	"github.com/kitea/hunt-backend/api/validators"
	checkoutsvc "github.com/kitea/hunt-backend/internal/checkout"
	"github.com/kitea/hunt-backend/pkg/checkout"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type checkoutCreator interface {
	CreateSession(ctx context.Context, userID uuid.UUID, items []checkout.LineInput) (*checkoutsvc.SessionResult, error)
}

type checkoutItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Items  []checkoutItem `json:"items" validate:"dive"`
	UserID *string        `json:"user_id"`
}

// Checkout opens a payment session for the caller's cart.
func Checkout(svc checkoutCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.UserID != nil && *req.UserID != "" && *req.UserID != userID.String() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "Forbidden"))
			return
		}

		items := make([]checkout.LineInput, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found"))
				return
			}
			items = append(items, checkout.LineInput{ProductID: productID, Quantity: item.Quantity})
		}

		result, err := svc.CreateSession(ctx, userID, items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

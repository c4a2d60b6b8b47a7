package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/api/middleware"
	"github.com/kitea/hunt-backend/api/responses"
	"github.com/kitea/hunt-backend/api/validators"
	"github.com/kitea/hunt-backend/internal/locations"
	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/internal/profiles"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type locationLister interface {
	ListActive(ctx context.Context) ([]locations.Pin, error)
}

type productLister interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]products.Listing, error)
}

type collectionLister interface {
	ListCollection(ctx context.Context, userID uuid.UUID) ([]mints.Collectible, error)
}

type profileEnsurer interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*profiles.EnsureResult, error)
}

type profileRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

func Locations(svc locationLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pins, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pins)
	}
}

// Products lists the shop with a locked flag for the caller.
func Products(svc productLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.ListActive(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func Collection(svc collectionLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListCollection(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// Profile creates the caller's profile on first sign-in. The first call
// assigns the founder number and queues the founder collectible.
func Profile(svc profileEnsurer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req profileRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		email := req.Email
		if email == "" {
			email = middleware.EmailFromContext(ctx)
		}

		result, err := svc.EnsureProfile(ctx, userID, email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

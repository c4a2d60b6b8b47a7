package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/api/middleware"
	"github.com/kitea/hunt-backend/api/responses"
	"github.com/kitea/hunt-backend/api/validators"
	"github.com/kitea/hunt-backend/internal/wallets"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type walletService interface {
	Generate(ctx context.Context, userID uuid.UUID, email string) (*wallets.GenerateResult, error)
	Connect(ctx context.Context, userID uuid.UUID, address string) (*wallets.ConnectResult, error)
}

type walletGenerateRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type walletConnectRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required"`
}

// WalletGenerate derives the caller's custodial wallet and drains parked mints into it.
func WalletGenerate(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req walletGenerateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		email := req.Email
		if strings.TrimSpace(email) == "" {
			email = middleware.EmailFromContext(ctx)
		}

		result, err := svc.Generate(ctx, userID, email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WalletConnect attaches a self-custody address supplied by the caller.
func WalletConnect(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req walletConnectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Connect(ctx, userID, strings.TrimSpace(req.WalletAddress))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

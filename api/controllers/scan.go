package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/api/responses"
	"github.com/kitea/hunt-backend/api/validators"
	"github.com/kitea/hunt-backend/internal/scans"
	"github.com/kitea/hunt-backend/pkg/logger"
)

const maxTagUIDLen = 128

type scanRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, tagUID string) (*scans.ScanResult, error)
}

type scanRequest struct {
	TagUID string `json:"tag_uid"`
}

// Scan records an NFC tag scan for the caller. A repeat scan answers 200 with already_scanned.
func Scan(svc scanRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req scanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Record(ctx, userID, validators.SanitizeString(req.TagUID, maxTagUIDLen))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

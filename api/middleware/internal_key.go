package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kitea/hunt-backend/api/responses"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
)

const internalKeyHeader = "X-Internal-Key"

// InternalKey guards service-to-service endpoints with a shared key.
// An unset key rejects every call.
func InternalKey(expected string, logg *logger.Logger) func(http.Handler) http.Handler {
	want := []byte(strings.TrimSpace(expected))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "Server misconfiguration: internal API key not set"))
				return
			}
			got := []byte(strings.TrimSpace(r.Header.Get(internalKeyHeader)))
			if len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

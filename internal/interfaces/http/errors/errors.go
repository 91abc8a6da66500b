package errors

import (
	"encoding/json"
	"net/http"

	"github.com/funnelhq/oauth-service/internal/domain"
)

// statusFor maps canonical OAuth2 error codes to HTTP statuses. The
// core never decides transport concerns itself; this is the HTTP
// layer's translation.
func statusFor(code string) int {
	switch code {
	case domain.ErrCodeInvalidClient:
		return http.StatusUnauthorized
	case domain.ErrCodeConsentRequired:
		return http.StatusForbidden
	case domain.ErrCodeServerError:
		return http.StatusInternalServerError
	case domain.ErrCodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// RespondWithOAuthError serializes err as the standard OAuth2 error
// object. Non-OAuth errors are normalized to server_error so internal
// detail never leaks.
func RespondWithOAuthError(w http.ResponseWriter, err error) {
	oauthErr := domain.AsOAuthError(err)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if oauthErr.Code == domain.ErrCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	w.WriteHeader(statusFor(oauthErr.Code))
	json.NewEncoder(w).Encode(oauthErr)
}

// RespondWithJSON writes a JSON response body with the given status
func RespondWithJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

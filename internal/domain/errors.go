package domain

import (
	"errors"
	"fmt"
)

// Canonical OAuth2 error codes (RFC 6749 §4.1.2.1, §5.2) plus the
// consent_required provider extension
const (
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeInvalidClient           = "invalid_client"
	ErrCodeInvalidGrant            = "invalid_grant"
	ErrCodeUnauthorizedClient      = "unauthorized_client"
	ErrCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrCodeInvalidScope            = "invalid_scope"
	ErrCodeAccessDenied            = "access_denied"
	ErrCodeUnsupportedResponseType = "unsupported_response_type"
	ErrCodeServerError             = "server_error"
	ErrCodeTemporarilyUnavailable  = "temporarily_unavailable"
	ErrCodeConsentRequired         = "consent_required"
)

// ErrNotFound is the sentinel returned by repositories when a record
// does not exist. It is never exposed on the wire directly.
var ErrNotFound = errors.New("record not found")

// OAuthError is the structured error carried through the core and
// serialized as the standard OAuth2 error object.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`

	// ConsentURI is set only on consent_required errors so the caller
	// can redirect the user to a consent screen and retry.
	ConsentURI string `json:"consent_uri,omitempty"`
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates an error with a canonical code and description
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description}
}

// NewInvalidRequestError creates an invalid_request error
func NewInvalidRequestError(description string) *OAuthError {
	return NewOAuthError(ErrCodeInvalidRequest, description)
}

// NewInvalidClientError creates an invalid_client error. The description
// is deliberately uniform so callers cannot tell which credential field
// failed.
func NewInvalidClientError() *OAuthError {
	return NewOAuthError(ErrCodeInvalidClient, "client authentication failed")
}

// NewInvalidGrantError creates an invalid_grant error
func NewInvalidGrantError(description string) *OAuthError {
	return NewOAuthError(ErrCodeInvalidGrant, description)
}

// NewInvalidScopeError creates an invalid_scope error
func NewInvalidScopeError(description string) *OAuthError {
	return NewOAuthError(ErrCodeInvalidScope, description)
}

// NewServerError creates a server_error without internal detail
func NewServerError() *OAuthError {
	return NewOAuthError(ErrCodeServerError, "internal server error")
}

// NewConsentRequiredError creates the consent_required extension error
// carrying the URI of the consent screen.
func NewConsentRequiredError(consentURI string) *OAuthError {
	return &OAuthError{
		Code:        ErrCodeConsentRequired,
		Description: "user consent required",
		ConsentURI:  consentURI,
	}
}

// AsOAuthError extracts an OAuthError from err, or wraps err as a
// server_error. Storage and consent failures pass through here so
// internal detail never reaches the wire.
func AsOAuthError(err error) *OAuthError {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return NewServerError()
}

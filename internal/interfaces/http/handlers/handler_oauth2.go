package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/funnelhq/oauth-service/internal/application"
	"github.com/funnelhq/oauth-service/internal/domain"
	httperrors "github.com/funnelhq/oauth-service/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// OAuth2Handler translates the provider façade to the HTTP wire
type OAuth2Handler struct {
	provider *application.Provider
	logger   *zap.Logger
}

// NewOAuth2Handler creates a new OAuth2Handler
func NewOAuth2Handler(provider *application.Provider, logger *zap.Logger) *OAuth2Handler {
	return &OAuth2Handler{
		provider: provider,
		logger:   logger,
	}
}

// AuthorizeHandler handles GET /oauth2/authorize. The authenticated
// subject is expected in the request context, placed there by the
// upstream session layer.
func (h *OAuth2Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &domain.AuthorizationRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}

	userID, _ := domain.GetSubject(r.Context())

	result, err := h.provider.Authorize(r.Context(), req, userID)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err)
		return
	}

	redirect, err := url.Parse(result.RedirectURI)
	if err != nil {
		httperrors.RespondWithOAuthError(w, domain.NewServerError())
		return
	}
	values := redirect.Query()
	values.Set("code", result.Code)
	if result.State != "" {
		values.Set("state", result.State)
	}
	redirect.RawQuery = values.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// TokenHandler handles POST /oauth2/token. Client credentials are
// accepted as form parameters or HTTP basic auth.
func (h *OAuth2Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondWithOAuthError(w, domain.NewInvalidRequestError("malformed request body"))
		return
	}

	req := &domain.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Scope:        r.PostFormValue("scope"),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	resp, err := h.provider.Token(r.Context(), req)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err)
		return
	}

	httperrors.RespondWithJSON(w, http.StatusOK, resp)
}

// RevokeHandler handles POST /oauth2/revoke per RFC 7009
func (h *OAuth2Handler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondWithOAuthError(w, domain.NewInvalidRequestError("malformed request body"))
		return
	}

	token := r.PostFormValue("token")
	clientID := r.PostFormValue("client_id")
	if id, _, ok := r.BasicAuth(); ok {
		clientID = id
	}
	if token == "" {
		httperrors.RespondWithOAuthError(w, domain.NewInvalidRequestError("token is required"))
		return
	}

	if err := h.provider.RevokeToken(r.Context(), token, clientID); err != nil {
		httperrors.RespondWithOAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// introspectionResponse is the RFC 7662 wire format
type introspectionResponse struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Subject  string `json:"sub,omitempty"`
	Expiry   int64  `json:"exp,omitempty"`
}

// IntrospectHandler handles POST /oauth2/introspect. Invalid or expired
// tokens answer active=false rather than an error so callers cannot
// distinguish the failure reason.
func (h *OAuth2Handler) IntrospectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondWithOAuthError(w, domain.NewInvalidRequestError("malformed request body"))
		return
	}

	claims, err := h.provider.VerifyAccessToken(r.Context(), r.PostFormValue("token"))
	if err != nil {
		oauthErr := domain.AsOAuthError(err)
		if oauthErr.Code == domain.ErrCodeServerError {
			httperrors.RespondWithOAuthError(w, oauthErr)
			return
		}
		httperrors.RespondWithJSON(w, http.StatusOK, introspectionResponse{Active: false})
		return
	}

	httperrors.RespondWithJSON(w, http.StatusOK, introspectionResponse{
		Active:   true,
		Scope:    domain.JoinScopes(claims.Scopes),
		ClientID: claims.ClientID,
		Subject:  claims.UserID,
		Expiry:   claims.ExpiresAt.Unix(),
	})
}

// RegisterClientHandler handles POST /oauth2/clients
func (h *OAuth2Handler) RegisterClientHandler(w http.ResponseWriter, r *http.Request) {
	var req application.ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request body", zap.Error(err))
		httperrors.RespondWithOAuthError(w, domain.NewInvalidRequestError("invalid request body"))
		return
	}

	resp, err := h.provider.RegisterClient(r.Context(), &req)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err)
		return
	}

	httperrors.RespondWithJSON(w, http.StatusCreated, resp)
}

// MetadataHandler handles GET /.well-known/oauth-authorization-server
func (h *OAuth2Handler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	httperrors.RespondWithJSON(w, http.StatusOK, h.provider.Metadata())
}

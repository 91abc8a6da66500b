package application

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

const authorizationCodeBytes = 32

// AuthorizationHandler validates authorization requests, consults the
// consent port and mints authorization codes
type AuthorizationHandler struct {
	oauthRepo   domain.OAuth2Repository
	consentRepo domain.ConsentRepository
	cfg         *config.Config
	logger      *zap.Logger
}

// NewAuthorizationHandler creates a new AuthorizationHandler
func NewAuthorizationHandler(
	oauthRepo domain.OAuth2Repository,
	consentRepo domain.ConsentRepository,
	cfg *config.Config,
	logger *zap.Logger,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		oauthRepo:   oauthRepo,
		consentRepo: consentRepo,
		cfg:         cfg,
		logger:      logger,
	}
}

// HandleAuthorizationRequest runs the full validation chain over the
// request, first failure wins, and mints an authorization code only
// once every check and the consent lookup have passed. No side effects
// occur before all validations succeed.
func (h *AuthorizationHandler) HandleAuthorizationRequest(ctx context.Context, req *domain.AuthorizationRequest, userID string) (*domain.AuthorizationResult, error) {
	if userID == "" {
		return nil, domain.NewOAuthError(domain.ErrCodeAccessDenied, "no authenticated user")
	}

	if req.ResponseType == "" {
		return nil, domain.NewInvalidRequestError("response_type is required")
	}
	if req.ResponseType != domain.ResponseTypeCode {
		return nil, domain.NewOAuthError(domain.ErrCodeUnsupportedResponseType, "unsupported response type: "+req.ResponseType)
	}

	client, err := h.oauthRepo.FindClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.Debug("Unknown client in authorization request", zap.String("client_id", req.ClientID))
			return nil, domain.NewInvalidClientError()
		}
		h.logger.Error("Failed to find client", zap.Error(err))
		return nil, domain.NewServerError()
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		h.logger.Debug("Redirect URI not registered",
			zap.String("client_id", client.ID),
			zap.String("redirect_uri", req.RedirectURI))
		return nil, domain.NewInvalidRequestError("redirect_uri is not registered for this client")
	}

	scopes := client.Scopes
	if req.Scope != "" {
		scopes = domain.SplitScopes(req.Scope)
		if !client.AllowsScopes(scopes) || !domain.ScopeSubset(scopes, h.cfg.SupportedScopes) {
			return nil, domain.NewInvalidScopeError("requested scope is not permitted")
		}
	}

	// Public clients must bind the code to a PKCE challenge when the
	// server requires it
	if h.cfg.RequirePKCE && client.Public() && req.CodeChallenge == "" {
		return nil, domain.NewInvalidRequestError("code_challenge is required for public clients")
	}

	consented, err := h.consentRepo.HasUserConsented(ctx, userID, client.ID, scopes)
	if err != nil {
		h.logger.Error("Consent lookup failed", zap.Error(err))
		return nil, domain.NewServerError()
	}
	if !consented {
		return nil, domain.NewConsentRequiredError(h.buildConsentURI(client.ID, scopes, req.State))
	}

	codeValue, err := GenerateOpaqueToken(authorizationCodeBytes)
	if err != nil {
		h.logger.Error("Failed to generate authorization code", zap.Error(err))
		return nil, domain.NewServerError()
	}

	now := time.Now()
	authCode := &domain.AuthorizationCode{
		Code:                codeValue,
		ClientID:            client.ID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		State:               req.State,
		ExpiresAt:           now.Add(h.cfg.CodeTTL),
		CreatedAt:           now,
	}

	if err := h.oauthRepo.CreateAuthorizationCode(ctx, authCode); err != nil {
		h.logger.Error("Failed to store authorization code", zap.Error(err))
		return nil, domain.NewServerError()
	}

	h.logger.Info("Authorization code issued",
		zap.String("client_id", client.ID),
		zap.String("user_id", userID),
		zap.Strings("scopes", scopes))

	return &domain.AuthorizationResult{
		Code:        codeValue,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// buildConsentURI constructs the URI of the consent screen the caller
// should redirect to before retrying the authorization request
func (h *AuthorizationHandler) buildConsentURI(clientID string, scopes []string, state string) string {
	consentURL, err := url.Parse(h.cfg.ConsentURL)
	if err != nil {
		return h.cfg.ConsentURL
	}
	query := consentURL.Query()
	query.Set("client_id", clientID)
	query.Set("scope", domain.JoinScopes(scopes))
	if state != "" {
		query.Set("state", state)
	}
	consentURL.RawQuery = query.Encode()
	return consentURL.String()
}

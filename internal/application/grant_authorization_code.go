package application

import (
	"context"
	"errors"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"go.uber.org/zap"
)

// AuthorizationCodeGrant exchanges a single-use authorization code for
// tokens
type AuthorizationCodeGrant struct {
	clients      *ClientValidator
	tokens       *TokenManager
	oauthRepo    domain.OAuth2Repository
	issueRefresh bool
	logger       *zap.Logger
}

// NewAuthorizationCodeGrant creates the authorization_code grant handler
func NewAuthorizationCodeGrant(
	clients *ClientValidator,
	tokens *TokenManager,
	oauthRepo domain.OAuth2Repository,
	issueRefresh bool,
	logger *zap.Logger,
) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{
		clients:      clients,
		tokens:       tokens,
		oauthRepo:    oauthRepo,
		issueRefresh: issueRefresh,
		logger:       logger,
	}
}

// GrantType reports the grant_type value this handler serves
func (g *AuthorizationCodeGrant) GrantType() string {
	return domain.GrantTypeAuthorizationCode
}

// Handle validates and spends the authorization code, then mints tokens
// scoped to the code's scope set. The code is deleted before any token
// is returned; if deletion reports the code already gone, a concurrent
// exchange won and this one fails invalid_grant.
func (g *AuthorizationCodeGrant) Handle(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	client, err := g.clients.ValidateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	if req.Code == "" {
		return nil, domain.NewInvalidRequestError("code is required")
	}

	authCode, err := g.oauthRepo.GetAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewInvalidGrantError("invalid authorization code")
		}
		g.logger.Error("Failed to load authorization code", zap.Error(err))
		return nil, domain.NewServerError()
	}

	// Expiry is checked before any other fact about the code is trusted
	if authCode.Expired(time.Now()) {
		if _, err := g.oauthRepo.DeleteAuthorizationCode(ctx, req.Code); err != nil {
			g.logger.Error("Failed to delete expired authorization code", zap.Error(err))
		}
		return nil, domain.NewInvalidGrantError("authorization code expired")
	}

	// Ownership failures are reported identically to a missing code so
	// true ownership is never revealed
	if authCode.ClientID != client.ID {
		g.logger.Debug("Authorization code client mismatch",
			zap.String("client_id", client.ID))
		return nil, domain.NewInvalidGrantError("invalid authorization code")
	}

	if authCode.RedirectURI != req.RedirectURI {
		g.logger.Debug("Authorization code redirect URI mismatch",
			zap.String("client_id", client.ID))
		return nil, domain.NewInvalidGrantError("redirect URI does not match authorization request")
	}

	if authCode.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, domain.NewInvalidRequestError("code_verifier is required")
		}
		if err := VerifyCodeChallenge(req.CodeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod); err != nil {
			g.logger.Debug("PKCE verification failed", zap.String("client_id", client.ID))
			return nil, err
		}
	} else if req.CodeVerifier != "" {
		// The code was issued without PKCE; a verifier here is out of protocol
		return nil, domain.NewInvalidRequestError("code_verifier supplied for a code issued without a challenge")
	}

	// Single use: the delete must land before tokens are issued. A
	// failed delete fails the exchange closed rather than risking a
	// double spend.
	deleted, err := g.oauthRepo.DeleteAuthorizationCode(ctx, req.Code)
	if err != nil {
		g.logger.Error("Failed to delete authorization code", zap.Error(err))
		return nil, domain.NewServerError()
	}
	if !deleted {
		// A concurrent exchange spent the code first
		return nil, domain.NewInvalidGrantError("invalid authorization code")
	}

	accessToken, refreshToken, err := g.tokens.GenerateTokens(ctx, client.ID, authCode.UserID, authCode.Scopes, g.issueRefresh)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Authorization code exchanged",
		zap.String("client_id", client.ID),
		zap.String("user_id", authCode.UserID),
		zap.Strings("scopes", authCode.Scopes))

	return g.tokens.CreateTokenResponse(accessToken, refreshToken), nil
}

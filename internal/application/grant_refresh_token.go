package application

import (
	"context"
	"errors"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"go.uber.org/zap"
)

// RefreshTokenGrant exchanges a refresh token for a fresh access token,
// optionally rotating the refresh token itself
type RefreshTokenGrant struct {
	clients   *ClientValidator
	tokens    *TokenManager
	oauthRepo domain.OAuth2Repository
	rotate    bool
	logger    *zap.Logger
}

// NewRefreshTokenGrant creates the refresh_token grant handler
func NewRefreshTokenGrant(
	clients *ClientValidator,
	tokens *TokenManager,
	oauthRepo domain.OAuth2Repository,
	rotate bool,
	logger *zap.Logger,
) *RefreshTokenGrant {
	return &RefreshTokenGrant{
		clients:   clients,
		tokens:    tokens,
		oauthRepo: oauthRepo,
		rotate:    rotate,
		logger:    logger,
	}
}

// GrantType reports the grant_type value this handler serves
func (g *RefreshTokenGrant) GrantType() string {
	return domain.GrantTypeRefreshToken
}

// Handle validates the refresh token, resolves the granted scopes
// (narrowing only) and mints a new access token. With rotation enabled
// the presented refresh token is replaced and the new value returned;
// otherwise the original stays valid and is omitted from the response.
func (g *RefreshTokenGrant) Handle(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	client, err := g.clients.ValidateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	if req.RefreshToken == "" {
		return nil, domain.NewInvalidRequestError("refresh_token is required")
	}

	stored, err := g.oauthRepo.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewInvalidGrantError("invalid refresh token")
		}
		g.logger.Error("Failed to load refresh token", zap.Error(err))
		return nil, domain.NewServerError()
	}

	if stored.Expired(time.Now()) {
		if _, err := g.oauthRepo.DeleteRefreshToken(ctx, req.RefreshToken); err != nil {
			g.logger.Error("Failed to delete expired refresh token", zap.Error(err))
		}
		return nil, domain.NewInvalidGrantError("refresh token expired")
	}

	if stored.ClientID != client.ID {
		g.logger.Debug("Refresh token client mismatch", zap.String("client_id", client.ID))
		return nil, domain.NewInvalidGrantError("invalid refresh token")
	}

	scopes, err := resolveRefreshScopes(req.Scope, stored.Scopes)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := g.tokens.GenerateTokens(ctx, client.ID, stored.UserID, scopes, false)
	if err != nil {
		return nil, err
	}

	if !g.rotate {
		return g.tokens.CreateTokenResponse(accessToken, nil), nil
	}

	replacement, err := g.tokens.GenerateRefreshToken(ctx, client.ID, stored.UserID, scopes)
	if err != nil {
		g.rollbackAccessToken(ctx, accessToken.Token)
		return nil, err
	}

	deleted, err := g.oauthRepo.DeleteRefreshToken(ctx, stored.Token)
	if err != nil {
		g.logger.Error("Failed to delete rotated refresh token", zap.Error(err))
		g.rollbackRefreshToken(ctx, replacement.Token)
		g.rollbackAccessToken(ctx, accessToken.Token)
		return nil, domain.NewServerError()
	}
	if !deleted {
		// A concurrent refresh already rotated this token
		g.rollbackRefreshToken(ctx, replacement.Token)
		g.rollbackAccessToken(ctx, accessToken.Token)
		return nil, domain.NewInvalidGrantError("invalid refresh token")
	}

	g.logger.Info("Refresh token rotated",
		zap.String("client_id", client.ID),
		zap.String("user_id", stored.UserID),
		zap.Strings("scopes", scopes))

	return g.tokens.CreateTokenResponse(accessToken, replacement), nil
}

func (g *RefreshTokenGrant) rollbackAccessToken(ctx context.Context, token string) {
	if _, err := g.oauthRepo.DeleteAccessToken(ctx, token); err != nil {
		g.logger.Error("Failed to roll back access token", zap.Error(err))
	}
}

func (g *RefreshTokenGrant) rollbackRefreshToken(ctx context.Context, token string) {
	if _, err := g.oauthRepo.DeleteRefreshToken(ctx, token); err != nil {
		g.logger.Error("Failed to roll back refresh token", zap.Error(err))
	}
}

// resolveRefreshScopes applies the narrowing-only rule: a requested
// scope set must already be contained in the stored grant. An empty
// request reuses the stored scopes unchanged.
func resolveRefreshScopes(requested string, stored []string) ([]string, error) {
	if requested == "" {
		return stored, nil
	}
	scopes := domain.SplitScopes(requested)
	if !domain.ScopeSubset(scopes, stored) {
		return nil, domain.NewInvalidScopeError("requested scope exceeds the original grant")
	}
	return scopes, nil
}

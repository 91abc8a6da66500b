package application

import (
	"context"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

const opaqueTokenBytes = 32

// TokenManager mints access and refresh token records and serializes
// the wire-level token response
type TokenManager struct {
	oauthRepo domain.OAuth2Repository
	cfg       *config.Config
	logger    *zap.Logger
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(oauthRepo domain.OAuth2Repository, cfg *config.Config, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		oauthRepo: oauthRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// GenerateTokens mints an access token and, if requested, a refresh
// token, both bound to the client and user and persisted before they
// are returned. Issuance is all-or-nothing: if the refresh token cannot
// be persisted the access token is rolled back.
func (m *TokenManager) GenerateTokens(ctx context.Context, clientID, userID string, scopes []string, issueRefresh bool) (*domain.AccessToken, *domain.RefreshToken, error) {
	now := time.Now()

	accessValue, err := GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		m.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, nil, domain.NewServerError()
	}

	accessToken := &domain.AccessToken{
		Token:     accessValue,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		TokenType: domain.TokenTypeBearer,
		ExpiresAt: now.Add(m.cfg.AccessTokenTTL),
		CreatedAt: now,
	}

	if err := m.oauthRepo.CreateAccessToken(ctx, accessToken); err != nil {
		m.logger.Error("Failed to store access token", zap.Error(err))
		return nil, nil, domain.NewServerError()
	}

	if !issueRefresh {
		return accessToken, nil, nil
	}

	refreshToken, err := m.generateRefreshToken(ctx, clientID, userID, scopes, now)
	if err != nil {
		if _, delErr := m.oauthRepo.DeleteAccessToken(ctx, accessValue); delErr != nil {
			m.logger.Error("Failed to roll back access token", zap.Error(delErr))
		}
		return nil, nil, err
	}

	return accessToken, refreshToken, nil
}

// GenerateRefreshToken mints and persists a standalone refresh token.
// Used by the refresh grant when rotation replaces the presented token.
func (m *TokenManager) GenerateRefreshToken(ctx context.Context, clientID, userID string, scopes []string) (*domain.RefreshToken, error) {
	return m.generateRefreshToken(ctx, clientID, userID, scopes, time.Now())
}

func (m *TokenManager) generateRefreshToken(ctx context.Context, clientID, userID string, scopes []string, now time.Time) (*domain.RefreshToken, error) {
	refreshValue, err := GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		m.logger.Error("Failed to generate refresh token", zap.Error(err))
		return nil, domain.NewServerError()
	}

	refreshToken := &domain.RefreshToken{
		Token:     refreshValue,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		CreatedAt: now,
	}
	// RefreshTokenTTL of zero leaves ExpiresAt zero, which disables expiry
	if m.cfg.RefreshTokenTTL > 0 {
		refreshToken.ExpiresAt = now.Add(m.cfg.RefreshTokenTTL)
	}

	if err := m.oauthRepo.CreateRefreshToken(ctx, refreshToken); err != nil {
		m.logger.Error("Failed to store refresh token", zap.Error(err))
		return nil, domain.NewServerError()
	}

	return refreshToken, nil
}

// CreateTokenResponse serializes tokens to the wire format. ExpiresIn is
// recomputed against the clock at response time so an absolute expiry
// timestamp is never exposed.
func (m *TokenManager) CreateTokenResponse(accessToken *domain.AccessToken, refreshToken *domain.RefreshToken) *domain.TokenResponse {
	resp := &domain.TokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   accessToken.TokenType,
		ExpiresIn:   int64(time.Until(accessToken.ExpiresAt).Seconds()),
		Scope:       domain.JoinScopes(accessToken.Scopes),
	}
	if refreshToken != nil {
		resp.RefreshToken = refreshToken.Token
	}
	return resp
}

package application

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const clientSecretBytes = 32

// ClientRegistrationRequest carries the metadata for registering a client
type ClientRegistrationRequest struct {
	Name          string   `json:"client_name"`
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types,omitempty"`
	ResponseTypes []string `json:"response_types,omitempty"`
	Scope         string   `json:"scope,omitempty"`
	Public        bool     `json:"public,omitempty"`
}

// ClientRegistrationResponse returns the stored registration together
// with the plaintext secret, which is shown exactly once
type ClientRegistrationResponse struct {
	*domain.ClientRegistration
	ClientSecret string `json:"client_secret,omitempty"`
}

// Provider is the façade orchestrating client registration,
// authorization, token exchange, verification and revocation
type Provider struct {
	oauthRepo   domain.OAuth2Repository
	consentRepo domain.ConsentRepository
	authz       *AuthorizationHandler
	grants      *GrantRegistry
	cfg         *config.Config
	logger      *zap.Logger
}

// NewProvider wires the provider and its grant handlers
func NewProvider(
	oauthRepo domain.OAuth2Repository,
	consentRepo domain.ConsentRepository,
	cfg *config.Config,
	logger *zap.Logger,
) *Provider {
	clients := NewClientValidator(oauthRepo, logger)
	tokens := NewTokenManager(oauthRepo, cfg, logger)
	grants := NewGrantRegistry(logger,
		NewAuthorizationCodeGrant(clients, tokens, oauthRepo, cfg.IssueRefreshTokens, logger),
		NewRefreshTokenGrant(clients, tokens, oauthRepo, cfg.RotateRefreshTokens, logger),
	)

	return &Provider{
		oauthRepo:   oauthRepo,
		consentRepo: consentRepo,
		authz:       NewAuthorizationHandler(oauthRepo, consentRepo, cfg, logger),
		grants:      grants,
		cfg:         cfg,
		logger:      logger,
	}
}

// RegisterClient registers a new client. The client_id is generated; a
// secret is generated and returned unless the caller explicitly asks
// for a public client.
func (p *Provider) RegisterClient(ctx context.Context, req *ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, domain.NewInvalidRequestError("at least one redirect_uri is required")
	}
	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, err
		}
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{domain.GrantTypeAuthorizationCode}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{domain.ResponseTypeCode}
	}

	scopes := p.cfg.SupportedScopes
	if req.Scope != "" {
		scopes = domain.SplitScopes(req.Scope)
		if !domain.ScopeSubset(scopes, p.cfg.SupportedScopes) {
			return nil, domain.NewInvalidScopeError("requested scope is not supported by this server")
		}
	}

	now := time.Now()
	client := &domain.ClientRegistration{
		ID:            domain.NewID(),
		Name:          req.Name,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    grantTypes,
		ResponseTypes: responseTypes,
		Scopes:        scopes,
		IssuedAt:      now,
	}

	var plaintextSecret string
	if !req.Public {
		secret, err := GenerateOpaqueToken(clientSecretBytes)
		if err != nil {
			p.logger.Error("Failed to generate client secret", zap.Error(err))
			return nil, domain.NewServerError()
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			p.logger.Error("Failed to hash client secret", zap.Error(err))
			return nil, domain.NewServerError()
		}
		plaintextSecret = secret
		client.SecretHash = string(hash)
		if p.cfg.ClientSecretTTL > 0 {
			client.SecretExpiresAt = now.Add(p.cfg.ClientSecretTTL)
		}
	}

	if err := p.oauthRepo.CreateClient(ctx, client); err != nil {
		p.logger.Error("Failed to store client registration", zap.Error(err))
		return nil, domain.NewServerError()
	}

	p.logger.Info("Client registered",
		zap.String("client_id", client.ID),
		zap.String("client_name", client.Name),
		zap.Bool("public", client.Public()))

	return &ClientRegistrationResponse{
		ClientRegistration: client,
		ClientSecret:       plaintextSecret,
	}, nil
}

// Authorize handles an authorization request on behalf of the
// authenticated user
func (p *Provider) Authorize(ctx context.Context, req *domain.AuthorizationRequest, userID string) (*domain.AuthorizationResult, error) {
	return p.authz.HandleAuthorizationRequest(ctx, req, userID)
}

// Token dispatches a token request to the handler for its grant type
func (p *Provider) Token(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	return p.grants.Handle(ctx, req)
}

// VerifyAccessToken looks an access token up by value and returns its
// claims as a capability assertion
func (p *Provider) VerifyAccessToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.NewInvalidGrantError("token not found")
	}

	accessToken, err := p.oauthRepo.GetAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewInvalidGrantError("token not found")
		}
		p.logger.Error("Failed to load access token", zap.Error(err))
		return nil, domain.NewServerError()
	}

	if accessToken.Expired(time.Now()) {
		return nil, domain.NewInvalidGrantError("token expired")
	}

	return &domain.TokenClaims{
		ClientID:  accessToken.ClientID,
		UserID:    accessToken.UserID,
		Scopes:    accessToken.Scopes,
		ExpiresAt: accessToken.ExpiresAt,
	}, nil
}

// RevokeToken revokes a token per RFC 7009: the value is tried as an
// access token, then as a refresh token. Revoking a token owned by a
// different client fails without touching it; revoking an unknown token
// succeeds so callers cannot probe for existence.
func (p *Provider) RevokeToken(ctx context.Context, token, clientID string) error {
	accessToken, err := p.oauthRepo.GetAccessToken(ctx, token)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.Error("Failed to load access token", zap.Error(err))
		return domain.NewServerError()
	}
	if accessToken != nil {
		if accessToken.ClientID != clientID {
			p.logger.Debug("Revocation refused for foreign access token",
				zap.String("client_id", clientID))
			return domain.NewInvalidClientError()
		}
		if _, err := p.oauthRepo.DeleteAccessToken(ctx, token); err != nil {
			p.logger.Error("Failed to delete access token", zap.Error(err))
			return domain.NewServerError()
		}
		p.logger.Info("Access token revoked", zap.String("client_id", clientID))
		return nil
	}

	refreshToken, err := p.oauthRepo.GetRefreshToken(ctx, token)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.Error("Failed to load refresh token", zap.Error(err))
		return domain.NewServerError()
	}
	if refreshToken != nil {
		if refreshToken.ClientID != clientID {
			p.logger.Debug("Revocation refused for foreign refresh token",
				zap.String("client_id", clientID))
			return domain.NewInvalidClientError()
		}
		if _, err := p.oauthRepo.DeleteRefreshToken(ctx, token); err != nil {
			p.logger.Error("Failed to delete refresh token", zap.Error(err))
			return domain.NewServerError()
		}
		p.logger.Info("Refresh token revoked", zap.String("client_id", clientID))
		return nil
	}

	// Revoking something absent is a success, not an error
	return nil
}

// RecordConsent records the user's approval for a client and scope set
func (p *Provider) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	if err := p.consentRepo.RecordConsent(ctx, userID, clientID, scopes); err != nil {
		p.logger.Error("Failed to record consent", zap.Error(err))
		return domain.NewServerError()
	}
	return nil
}

// RevokeConsent revokes all consent the user granted a client
func (p *Provider) RevokeConsent(ctx context.Context, userID, clientID string) error {
	if err := p.consentRepo.RevokeConsent(ctx, userID, clientID); err != nil {
		p.logger.Error("Failed to revoke consent", zap.Error(err))
		return domain.NewServerError()
	}
	return nil
}

// Metadata returns the static discovery document derived from
// configuration. It has no side effects.
func (p *Provider) Metadata() *domain.ServerMetadata {
	return &domain.ServerMetadata{
		Issuer:                        p.cfg.Issuer,
		AuthorizationEndpoint:         p.cfg.Issuer + "/oauth2/authorize",
		TokenEndpoint:                 p.cfg.Issuer + "/oauth2/token",
		RegistrationEndpoint:          p.cfg.Issuer + "/oauth2/clients",
		RevocationEndpoint:            p.cfg.Issuer + "/oauth2/revoke",
		IntrospectionEndpoint:         p.cfg.Issuer + "/oauth2/introspect",
		ScopesSupported:               p.cfg.SupportedScopes,
		ResponseTypesSupported:        []string{domain.ResponseTypeCode},
		GrantTypesSupported:           []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported: []string{CodeChallengePlain, CodeChallengeS256},
	}
}

// CleanupExpired removes expired codes and tokens. Correctness never
// depends on it; expiry is also checked at access time.
func (p *Provider) CleanupExpired(ctx context.Context) error {
	return p.oauthRepo.DeleteExpired(ctx, time.Now())
}

// validateRedirectURI requires an absolute URI without a fragment.
// Registered URIs are matched exactly at authorization time.
func validateRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return domain.NewInvalidRequestError("redirect_uri must be an absolute URI")
	}
	if parsed.Fragment != "" {
		return domain.NewInvalidRequestError("redirect_uri must not contain a fragment")
	}
	return nil
}

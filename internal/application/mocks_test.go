package application

import (
	"context"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"github.com/stretchr/testify/mock"
)

// MockOAuth2Repository is a mock implementation of domain.OAuth2Repository
type MockOAuth2Repository struct {
	mock.Mock
}

func (m *MockOAuth2Repository) CreateClient(ctx context.Context, client *domain.ClientRegistration) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockOAuth2Repository) FindClientByID(ctx context.Context, id string) (*domain.ClientRegistration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClientRegistration), args.Error(1)
}

func (m *MockOAuth2Repository) UpdateClient(ctx context.Context, client *domain.ClientRegistration) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockOAuth2Repository) DeleteClient(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOAuth2Repository) ListClients(ctx context.Context) ([]*domain.ClientRegistration, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.ClientRegistration), args.Error(1)
}

func (m *MockOAuth2Repository) CreateAuthorizationCode(ctx context.Context, code *domain.AuthorizationCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockOAuth2Repository) GetAuthorizationCode(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationCode), args.Error(1)
}

func (m *MockOAuth2Repository) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockOAuth2Repository) CreateAccessToken(ctx context.Context, token *domain.AccessToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockOAuth2Repository) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessToken), args.Error(1)
}

func (m *MockOAuth2Repository) DeleteAccessToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockOAuth2Repository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockOAuth2Repository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *MockOAuth2Repository) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockOAuth2Repository) DeleteExpired(ctx context.Context, now time.Time) error {
	args := m.Called(ctx, now)
	return args.Error(0)
}

// MockConsentRepository is a mock implementation of domain.ConsentRepository
type MockConsentRepository struct {
	mock.Mock
}

func (m *MockConsentRepository) HasUserConsented(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	args := m.Called(ctx, userID, clientID, scopes)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsentRepository) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	args := m.Called(ctx, userID, clientID, scopes)
	return args.Error(0)
}

func (m *MockConsentRepository) RevokeConsent(ctx context.Context, userID, clientID string) error {
	args := m.Called(ctx, userID, clientID)
	return args.Error(0)
}

// testConfig returns a configuration with short, deterministic settings
// shared by the application tests
func testConfig() *config.Config {
	return &config.Config{
		Issuer:              "http://localhost:8080",
		ConsentURL:          "http://localhost:8080/consent",
		CodeTTL:             10 * time.Minute,
		AccessTokenTTL:      time.Hour,
		RefreshTokenTTL:     720 * time.Hour,
		ClientSecretTTL:     8760 * time.Hour,
		SupportedScopes:     []string{"openid", "profile", "email", "read", "write"},
		RequirePKCE:         true,
		IssueRefreshTokens:  true,
		RotateRefreshTokens: true,
	}
}

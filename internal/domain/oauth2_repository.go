package domain

import (
	"context"
	"time"
)

// OAuth2Repository defines the storage port for clients, authorization
// codes and tokens. Delete operations report whether a record was
// removed; single-use guarantees rely on that atomicity, so a caller
// observing false must treat the record as spent.
type OAuth2Repository interface {
	// CreateClient creates a new client registration
	CreateClient(ctx context.Context, client *ClientRegistration) error

	// FindClientByID finds a client registration by its client_id
	FindClientByID(ctx context.Context, id string) (*ClientRegistration, error)

	// UpdateClient updates an existing client registration
	UpdateClient(ctx context.Context, client *ClientRegistration) error

	// DeleteClient removes a client registration
	DeleteClient(ctx context.Context, id string) error

	// ListClients lists all client registrations
	ListClients(ctx context.Context) ([]*ClientRegistration, error)

	// CreateAuthorizationCode persists a freshly minted authorization code
	CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode gets an authorization code by its value
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes an authorization code and reports
	// whether it was present
	DeleteAuthorizationCode(ctx context.Context, code string) (bool, error)

	// CreateAccessToken persists an access token
	CreateAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken gets an access token by its value
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteAccessToken removes an access token and reports whether it
	// was present
	DeleteAccessToken(ctx context.Context, token string) (bool, error)

	// CreateRefreshToken persists a refresh token
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken gets a refresh token by its value
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken removes a refresh token and reports whether it
	// was present
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)

	// DeleteExpired removes codes and tokens whose expiry is before now.
	// Housekeeping only; expiry is always also checked at access time.
	DeleteExpired(ctx context.Context, now time.Time) error
}

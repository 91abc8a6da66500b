package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/database"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PostgresOAuth2Repository implements domain.OAuth2Repository using PostgreSQL
type PostgresOAuth2Repository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewOAuth2Repository creates a new PostgresOAuth2Repository
func NewOAuth2Repository(db *database.Postgres, logger *zap.Logger) domain.OAuth2Repository {
	return &PostgresOAuth2Repository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresOAuth2Repository) CreateClient(ctx context.Context, client *domain.ClientRegistration) error {
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return err
	}

	grantTypes, err := json.Marshal(client.GrantTypes)
	if err != nil {
		return err
	}

	responseTypes, err := json.Marshal(client.ResponseTypes)
	if err != nil {
		return err
	}

	scopes, err := json.Marshal(client.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO oauth2_clients (id, secret_hash, name, redirect_uris, grant_types, response_types, scopes, issued_at, secret_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, client.ID, client.SecretHash, client.Name, redirectURIs, grantTypes, responseTypes, scopes, client.IssuedAt, nullableTime(client.SecretExpiresAt))
}

func (r *PostgresOAuth2Repository) FindClientByID(ctx context.Context, id string) (*domain.ClientRegistration, error) {
	client := &domain.ClientRegistration{}
	var redirectURIs, grantTypes, responseTypes, scopes []byte
	var secretExpiresAt *time.Time

	err := r.db.QueryRow(ctx, `
		SELECT id, secret_hash, name, redirect_uris, grant_types, response_types, scopes, issued_at, secret_expires_at
		FROM oauth2_clients WHERE id = $1
	`, id).Scan(&client.ID, &client.SecretHash, &client.Name, &redirectURIs, &grantTypes, &responseTypes, &scopes, &client.IssuedAt, &secretExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(redirectURIs, &client.RedirectURIs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(grantTypes, &client.GrantTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responseTypes, &client.ResponseTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopes, &client.Scopes); err != nil {
		return nil, err
	}
	if secretExpiresAt != nil {
		client.SecretExpiresAt = *secretExpiresAt
	}

	return client, nil
}

func (r *PostgresOAuth2Repository) UpdateClient(ctx context.Context, client *domain.ClientRegistration) error {
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return err
	}

	grantTypes, err := json.Marshal(client.GrantTypes)
	if err != nil {
		return err
	}

	responseTypes, err := json.Marshal(client.ResponseTypes)
	if err != nil {
		return err
	}

	scopes, err := json.Marshal(client.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		UPDATE oauth2_clients
		SET secret_hash = $1, name = $2, redirect_uris = $3, grant_types = $4, response_types = $5, scopes = $6, secret_expires_at = $7
		WHERE id = $8
	`, client.SecretHash, client.Name, redirectURIs, grantTypes, responseTypes, scopes, nullableTime(client.SecretExpiresAt), client.ID)
}

func (r *PostgresOAuth2Repository) DeleteClient(ctx context.Context, id string) error {
	return r.db.Exec(ctx, "DELETE FROM oauth2_clients WHERE id = $1", id)
}

func (r *PostgresOAuth2Repository) ListClients(ctx context.Context) ([]*domain.ClientRegistration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, secret_hash, name, redirect_uris, grant_types, response_types, scopes, issued_at, secret_expires_at
		FROM oauth2_clients
		ORDER BY issued_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*domain.ClientRegistration
	for rows.Next() {
		client := &domain.ClientRegistration{}
		var redirectURIs, grantTypes, responseTypes, scopes []byte
		var secretExpiresAt *time.Time

		err := rows.Scan(&client.ID, &client.SecretHash, &client.Name, &redirectURIs, &grantTypes, &responseTypes, &scopes, &client.IssuedAt, &secretExpiresAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(redirectURIs, &client.RedirectURIs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(grantTypes, &client.GrantTypes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(responseTypes, &client.ResponseTypes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scopes, &client.Scopes); err != nil {
			return nil, err
		}
		if secretExpiresAt != nil {
			client.SecretExpiresAt = *secretExpiresAt
		}

		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *PostgresOAuth2Repository) CreateAuthorizationCode(ctx context.Context, code *domain.AuthorizationCode) error {
	scopes, err := json.Marshal(code.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO authorization_codes (code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, state, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, code.Code, code.ClientID, code.UserID, code.RedirectURI, scopes, code.CodeChallenge, code.CodeChallengeMethod, code.State, code.ExpiresAt, code.CreatedAt)
}

func (r *PostgresOAuth2Repository) GetAuthorizationCode(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	authCode := &domain.AuthorizationCode{}
	var scopes []byte

	err := r.db.QueryRow(ctx, `
		SELECT code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, state, expires_at, created_at
		FROM authorization_codes WHERE code = $1
	`, code).Scan(&authCode.Code, &authCode.ClientID, &authCode.UserID, &authCode.RedirectURI, &scopes, &authCode.CodeChallenge, &authCode.CodeChallengeMethod, &authCode.State, &authCode.ExpiresAt, &authCode.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(scopes, &authCode.Scopes); err != nil {
		return nil, err
	}

	return authCode, nil
}

// DeleteAuthorizationCode removes a code and reports whether a row was
// deleted. The row count is the single-use exclusivity guarantee for
// concurrent exchanges.
func (r *PostgresOAuth2Repository) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	count, err := r.db.ExecCount(ctx, "DELETE FROM authorization_codes WHERE code = $1", code)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresOAuth2Repository) CreateAccessToken(ctx context.Context, token *domain.AccessToken) error {
	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO access_tokens (token, client_id, user_id, scopes, token_type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.Token, token.ClientID, token.UserID, scopes, token.TokenType, token.ExpiresAt, token.CreatedAt)
}

func (r *PostgresOAuth2Repository) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	accessToken := &domain.AccessToken{}
	var scopes []byte

	err := r.db.QueryRow(ctx, `
		SELECT token, client_id, user_id, scopes, token_type, expires_at, created_at
		FROM access_tokens WHERE token = $1
	`, token).Scan(&accessToken.Token, &accessToken.ClientID, &accessToken.UserID, &scopes, &accessToken.TokenType, &accessToken.ExpiresAt, &accessToken.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(scopes, &accessToken.Scopes); err != nil {
		return nil, err
	}

	return accessToken, nil
}

func (r *PostgresOAuth2Repository) DeleteAccessToken(ctx context.Context, token string) (bool, error) {
	count, err := r.db.ExecCount(ctx, "DELETE FROM access_tokens WHERE token = $1", token)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresOAuth2Repository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (token, client_id, user_id, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.Token, token.ClientID, token.UserID, scopes, nullableTime(token.ExpiresAt), token.CreatedAt)
}

func (r *PostgresOAuth2Repository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken := &domain.RefreshToken{}
	var scopes []byte
	var expiresAt *time.Time

	err := r.db.QueryRow(ctx, `
		SELECT token, client_id, user_id, scopes, expires_at, created_at
		FROM refresh_tokens WHERE token = $1
	`, token).Scan(&refreshToken.Token, &refreshToken.ClientID, &refreshToken.UserID, &scopes, &expiresAt, &refreshToken.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(scopes, &refreshToken.Scopes); err != nil {
		return nil, err
	}
	if expiresAt != nil {
		refreshToken.ExpiresAt = *expiresAt
	}

	return refreshToken, nil
}

func (r *PostgresOAuth2Repository) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	count, err := r.db.ExecCount(ctx, "DELETE FROM refresh_tokens WHERE token = $1", token)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteExpired removes expired codes and tokens. Refresh tokens with a
// NULL expiry never expire and are left alone.
func (r *PostgresOAuth2Repository) DeleteExpired(ctx context.Context, now time.Time) error {
	if err := r.db.Exec(ctx, "DELETE FROM authorization_codes WHERE expires_at < $1", now); err != nil {
		return err
	}
	if err := r.db.Exec(ctx, "DELETE FROM access_tokens WHERE expires_at < $1", now); err != nil {
		return err
	}
	return r.db.Exec(ctx, "DELETE FROM refresh_tokens WHERE expires_at IS NOT NULL AND expires_at < $1", now)
}

// nullableTime maps a zero time to NULL so "never expires" is stored
// explicitly
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

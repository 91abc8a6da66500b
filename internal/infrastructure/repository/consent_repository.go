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

// PostgresConsentRepository implements domain.ConsentRepository using PostgreSQL
type PostgresConsentRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewConsentRepository creates a new PostgresConsentRepository
func NewConsentRepository(db *database.Postgres, logger *zap.Logger) domain.ConsentRepository {
	return &PostgresConsentRepository{
		db:     db,
		logger: logger,
	}
}

// HasUserConsented reports whether an unrevoked consent row grants the
// client at least the requested scope set
func (r *PostgresConsentRepository) HasUserConsented(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	var granted []byte

	err := r.db.QueryRow(ctx, `
		SELECT scopes FROM user_consents
		WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL
	`, userID, clientID).Scan(&granted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	var grantedScopes []string
	if err := json.Unmarshal(granted, &grantedScopes); err != nil {
		return false, err
	}

	return domain.ScopeSubset(scopes, grantedScopes), nil
}

// RecordConsent records the user's approval. An existing grant is
// widened to the union of old and new scopes and unrevoked.
func (r *PostgresConsentRepository) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	existing := r.db.QueryRow(ctx, `
		SELECT scopes FROM user_consents
		WHERE user_id = $1 AND client_id = $2
	`, userID, clientID)

	var granted []byte
	err := existing.Scan(&granted)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		encoded, err := json.Marshal(scopes)
		if err != nil {
			return err
		}
		return r.db.Exec(ctx, `
			INSERT INTO user_consents (id, user_id, client_id, scopes, granted_at)
			VALUES ($1, $2, $3, $4, $5)
		`, domain.NewID(), userID, clientID, encoded, time.Now())
	}

	var grantedScopes []string
	if err := json.Unmarshal(granted, &grantedScopes); err != nil {
		return err
	}

	encoded, err := json.Marshal(mergeScopes(grantedScopes, scopes))
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		UPDATE user_consents
		SET scopes = $1, granted_at = $2, revoked_at = NULL
		WHERE user_id = $3 AND client_id = $4
	`, encoded, time.Now(), userID, clientID)
}

// RevokeConsent tombstones the user's consent for a client
func (r *PostgresConsentRepository) RevokeConsent(ctx context.Context, userID, clientID string) error {
	return r.db.Exec(ctx, `
		UPDATE user_consents SET revoked_at = $1
		WHERE user_id = $2 AND client_id = $3 AND revoked_at IS NULL
	`, time.Now(), userID, clientID)
}

// mergeScopes unions two scope sets preserving first-seen order
func mergeScopes(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, scope := range append(append([]string{}, a...), b...) {
		if !seen[scope] {
			seen[scope] = true
			merged = append(merged, scope)
		}
	}
	return merged
}

package domain

import (
	"context"
	"time"
)

// UserConsent records an end user's approval for a client to act with a
// scope set on their behalf
type UserConsent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	GrantedAt time.Time `json:"granted_at"`
}

// ConsentRepository defines the consent port consumed by the
// authorization request handler
type ConsentRepository interface {
	// HasUserConsented reports whether the user has granted the client
	// at least the given scope set
	HasUserConsented(ctx context.Context, userID, clientID string, scopes []string) (bool, error)

	// RecordConsent records (or widens) the user's consent for a client
	RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error

	// RevokeConsent revokes all consent the user granted the client
	RevokeConsent(ctx context.Context, userID, clientID string) error
}

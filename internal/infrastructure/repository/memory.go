package repository

import (
	"context"
	"sync"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
)

// MemoryOAuth2Repository is an in-memory implementation of
// domain.OAuth2Repository backed by maps. Deletes are exclusive under
// the mutex, which gives the delete-if-present semantics the grant
// handlers rely on. Intended for tests and local development.
type MemoryOAuth2Repository struct {
	mu            sync.RWMutex
	clients       map[string]*domain.ClientRegistration
	codes         map[string]*domain.AuthorizationCode
	accessTokens  map[string]*domain.AccessToken
	refreshTokens map[string]*domain.RefreshToken
}

// NewMemoryOAuth2Repository creates an empty in-memory repository
func NewMemoryOAuth2Repository() *MemoryOAuth2Repository {
	return &MemoryOAuth2Repository{
		clients:       make(map[string]*domain.ClientRegistration),
		codes:         make(map[string]*domain.AuthorizationCode),
		accessTokens:  make(map[string]*domain.AccessToken),
		refreshTokens: make(map[string]*domain.RefreshToken),
	}
}

func (r *MemoryOAuth2Repository) CreateClient(ctx context.Context, client *domain.ClientRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *client
	r.clients[client.ID] = &copied
	return nil
}

func (r *MemoryOAuth2Repository) FindClientByID(ctx context.Context, id string) (*domain.ClientRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *MemoryOAuth2Repository) UpdateClient(ctx context.Context, client *domain.ClientRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *client
	r.clients[client.ID] = &copied
	return nil
}

func (r *MemoryOAuth2Repository) DeleteClient(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	return nil
}

func (r *MemoryOAuth2Repository) ListClients(ctx context.Context) ([]*domain.ClientRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*domain.ClientRegistration, 0, len(r.clients))
	for _, client := range r.clients {
		copied := *client
		clients = append(clients, &copied)
	}
	return clients, nil
}

func (r *MemoryOAuth2Repository) CreateAuthorizationCode(ctx context.Context, code *domain.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *code
	r.codes[code.Code] = &copied
	return nil
}

func (r *MemoryOAuth2Repository) GetAuthorizationCode(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authCode, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *authCode
	return &copied, nil
}

func (r *MemoryOAuth2Repository) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[code]
	delete(r.codes, code)
	return ok, nil
}

func (r *MemoryOAuth2Repository) CreateAccessToken(ctx context.Context, token *domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.accessTokens[token.Token] = &copied
	return nil
}

func (r *MemoryOAuth2Repository) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accessToken, ok := r.accessTokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *accessToken
	return &copied, nil
}

func (r *MemoryOAuth2Repository) DeleteAccessToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accessTokens[token]
	delete(r.accessTokens, token)
	return ok, nil
}

func (r *MemoryOAuth2Repository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.refreshTokens[token.Token] = &copied
	return nil
}

func (r *MemoryOAuth2Repository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refreshToken, ok := r.refreshTokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *refreshToken
	return &copied, nil
}

func (r *MemoryOAuth2Repository) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refreshTokens[token]
	delete(r.refreshTokens, token)
	return ok, nil
}

func (r *MemoryOAuth2Repository) DeleteExpired(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, authCode := range r.codes {
		if authCode.Expired(now) {
			delete(r.codes, code)
		}
	}
	for token, accessToken := range r.accessTokens {
		if accessToken.Expired(now) {
			delete(r.accessTokens, token)
		}
	}
	for token, refreshToken := range r.refreshTokens {
		if refreshToken.Expired(now) {
			delete(r.refreshTokens, token)
		}
	}
	return nil
}

// MemoryConsentRepository is an in-memory implementation of
// domain.ConsentRepository
type MemoryConsentRepository struct {
	mu       sync.RWMutex
	consents map[string]*domain.UserConsent
}

// NewMemoryConsentRepository creates an empty in-memory consent store
func NewMemoryConsentRepository() *MemoryConsentRepository {
	return &MemoryConsentRepository{
		consents: make(map[string]*domain.UserConsent),
	}
}

func consentKey(userID, clientID string) string {
	return userID + "\x00" + clientID
}

func (r *MemoryConsentRepository) HasUserConsented(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	consent, ok := r.consents[consentKey(userID, clientID)]
	if !ok {
		return false, nil
	}
	return domain.ScopeSubset(scopes, consent.Scopes), nil
}

func (r *MemoryConsentRepository) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := consentKey(userID, clientID)
	if existing, ok := r.consents[key]; ok {
		existing.Scopes = mergeScopes(existing.Scopes, scopes)
		existing.GrantedAt = time.Now()
		return nil
	}
	r.consents[key] = &domain.UserConsent{
		ID:        domain.NewID(),
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    append([]string{}, scopes...),
		GrantedAt: time.Now(),
	}
	return nil
}

func (r *MemoryConsentRepository) RevokeConsent(ctx context.Context, userID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consents, consentKey(userID, clientID))
	return nil
}

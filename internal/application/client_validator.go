package application

import (
	"context"
	"errors"
	"time"

	"github.com/funnelhq/oauth-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientValidator authenticates client_id/client_secret pairs against
// the stored registrations
type ClientValidator struct {
	oauthRepo domain.OAuth2Repository
	logger    *zap.Logger
}

// NewClientValidator creates a new ClientValidator
func NewClientValidator(oauthRepo domain.OAuth2Repository, logger *zap.Logger) *ClientValidator {
	return &ClientValidator{
		oauthRepo: oauthRepo,
		logger:    logger,
	}
}

// ValidateClient validates the client credentials and returns the
// registration. All credential failures return the same invalid_client
// error so a caller cannot tell which field was wrong. Public clients
// (no stored secret) authenticate with the id alone; their backstop is
// PKCE, enforced by the grant handlers.
func (v *ClientValidator) ValidateClient(ctx context.Context, clientID, clientSecret string) (*domain.ClientRegistration, error) {
	if clientID == "" {
		return nil, domain.NewInvalidClientError()
	}

	client, err := v.oauthRepo.FindClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.logger.Debug("Client not found", zap.String("client_id", clientID))
			return nil, domain.NewInvalidClientError()
		}
		v.logger.Error("Failed to find client",
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, domain.NewServerError()
	}

	if client.Public() {
		if clientSecret != "" {
			v.logger.Debug("Secret supplied for public client", zap.String("client_id", clientID))
			return nil, domain.NewInvalidClientError()
		}
		return client, nil
	}

	if client.SecretExpired(time.Now()) {
		v.logger.Debug("Client secret expired", zap.String("client_id", clientID))
		return nil, domain.NewInvalidClientError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)); err != nil {
		v.logger.Debug("Client secret mismatch", zap.String("client_id", clientID))
		return nil, domain.NewInvalidClientError()
	}

	return client, nil
}

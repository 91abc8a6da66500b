package application

import (
	"context"

	"github.com/funnelhq/oauth-service/internal/domain"
	"go.uber.org/zap"
)

// GrantHandler knows how to satisfy one grant type at the token endpoint
type GrantHandler interface {
	// GrantType reports the grant_type value this handler serves
	GrantType() string

	// Handle exchanges the request's credential for a token response
	Handle(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error)
}

// GrantRegistry dispatches token requests to the handler registered for
// the request's grant type
type GrantRegistry struct {
	handlers map[string]GrantHandler
	logger   *zap.Logger
}

// NewGrantRegistry creates a registry over the given handlers
func NewGrantRegistry(logger *zap.Logger, handlers ...GrantHandler) *GrantRegistry {
	registry := &GrantRegistry{
		handlers: make(map[string]GrantHandler, len(handlers)),
		logger:   logger,
	}
	for _, h := range handlers {
		registry.handlers[h.GrantType()] = h
	}
	return registry
}

// GrantTypes lists the registered grant types
func (r *GrantRegistry) GrantTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		types = append(types, name)
	}
	return types
}

// Handle resolves the grant type and dispatches the request
func (r *GrantRegistry) Handle(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	if req.GrantType == "" {
		return nil, domain.NewInvalidRequestError("grant_type is required")
	}

	handler, ok := r.handlers[req.GrantType]
	if !ok {
		r.logger.Debug("Unsupported grant type", zap.String("grant_type", req.GrantType))
		return nil, domain.NewOAuthError(domain.ErrCodeUnsupportedGrantType, "unsupported grant type: "+req.GrantType)
	}

	return handler.Handle(ctx, req)
}

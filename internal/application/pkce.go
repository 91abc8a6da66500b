package application

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/funnelhq/oauth-service/internal/domain"
)

// PKCE code challenge methods (RFC 7636)
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// VerifyCodeChallenge checks a PKCE code verifier against the challenge
// stored with the authorization code. Unknown methods fail closed.
func VerifyCodeChallenge(verifier, challenge, method string) error {
	switch method {
	case CodeChallengePlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return domain.NewInvalidGrantError("code verifier does not match challenge")
		}
		return nil
	case CodeChallengeS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
			return domain.NewInvalidGrantError("code verifier does not match challenge")
		}
		return nil
	default:
		return domain.NewInvalidGrantError("unsupported code challenge method")
	}
}

// GenerateOpaqueToken generates a cryptographically random value for
// authorization codes, client secrets and bearer tokens. The result is
// base64url without padding and carries no information about the
// identity it will be bound to.
func GenerateOpaqueToken(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

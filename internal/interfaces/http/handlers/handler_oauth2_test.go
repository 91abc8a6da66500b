package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/funnelhq/oauth-service/internal/application"
	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"github.com/funnelhq/oauth-service/internal/infrastructure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

type testEnv struct {
	handler  *OAuth2Handler
	provider *application.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Issuer:              "http://localhost:8080",
		ConsentURL:          "http://localhost:8080/consent",
		CodeTTL:             10 * time.Minute,
		AccessTokenTTL:      time.Hour,
		RefreshTokenTTL:     720 * time.Hour,
		SupportedScopes:     []string{"openid", "profile", "email", "read", "write"},
		RequirePKCE:         true,
		IssueRefreshTokens:  true,
		RotateRefreshTokens: true,
	}

	provider := application.NewProvider(
		repository.NewMemoryOAuth2Repository(),
		repository.NewMemoryConsentRepository(),
		cfg,
		zap.NewNop(),
	)

	return &testEnv{
		handler:  NewOAuth2Handler(provider, zap.NewNop()),
		provider: provider,
	}
}

// registerTestClient registers a public client with consent already
// recorded for user-1
func registerTestClient(t *testing.T, env *testEnv) string {
	t.Helper()

	resp, err := env.provider.RegisterClient(context.Background(), &application.ClientRegistrationRequest{
		Name:         "Test App",
		RedirectURIs: []string{"http://localhost:8080/callback"},
		Scope:        "read",
		Public:       true,
	})
	require.NoError(t, err)
	require.NoError(t, env.provider.RecordConsent(context.Background(), "user-1", resp.ID, []string{"read"}))
	return resp.ID
}

func TestRegisterClientHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		env := newTestEnv(t)

		body := `{"client_name":"My App","redirect_uris":["http://localhost:8080/callback"]}`
		req := httptest.NewRequest(http.MethodPost, "/oauth2/clients", strings.NewReader(body))
		rec := httptest.NewRecorder()

		env.handler.RegisterClientHandler(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["client_id"])
		assert.NotEmpty(t, resp["client_secret"])
		assert.Equal(t, "My App", resp["client_name"])
	})

	t.Run("invalid body", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/oauth2/clients", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		env.handler.RegisterClientHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing redirect_uris", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/oauth2/clients", strings.NewReader(`{"client_name":"App"}`))
		rec := httptest.NewRecorder()

		env.handler.RegisterClientHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrCodeInvalidRequest, resp["error"])
	})
}

func TestAuthorizeHandler(t *testing.T) {
	t.Run("redirects with code and state", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)

		query := url.Values{
			"response_type":         {"code"},
			"client_id":             {clientID},
			"redirect_uri":          {"http://localhost:8080/callback"},
			"scope":                 {"read"},
			"state":                 {"xyz"},
			"code_challenge":        {testChallenge},
			"code_challenge_method": {"S256"},
		}
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+query.Encode(), nil)
		req = req.WithContext(domain.WithSubject(req.Context(), "user-1"))
		rec := httptest.NewRecorder()

		env.handler.AuthorizeHandler(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		assert.NoError(t, err)
		assert.Equal(t, "/callback", location.Path)
		assert.NotEmpty(t, location.Query().Get("code"))
		assert.Equal(t, "xyz", location.Query().Get("state"))
	})

	t.Run("no authenticated subject", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)

		query := url.Values{
			"response_type": {"code"},
			"client_id":     {clientID},
			"redirect_uri":  {"http://localhost:8080/callback"},
		}
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+query.Encode(), nil)
		rec := httptest.NewRecorder()

		env.handler.AuthorizeHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrCodeAccessDenied, resp["error"])
	})

	t.Run("consent required", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)

		query := url.Values{
			"response_type":         {"code"},
			"client_id":             {clientID},
			"redirect_uri":          {"http://localhost:8080/callback"},
			"scope":                 {"read"},
			"code_challenge":        {testChallenge},
			"code_challenge_method": {"S256"},
		}
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+query.Encode(), nil)
		// user-2 never consented
		req = req.WithContext(domain.WithSubject(req.Context(), "user-2"))
		rec := httptest.NewRecorder()

		env.handler.AuthorizeHandler(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrCodeConsentRequired, resp["error"])
		assert.Contains(t, resp["consent_uri"], "/consent")
	})
}

// obtainCode runs the authorization leg and returns the issued code
func obtainCode(t *testing.T, env *testEnv, clientID string) string {
	t.Helper()

	result, err := env.provider.Authorize(context.Background(), &domain.AuthorizationRequest{
		ResponseType:        domain.ResponseTypeCode,
		ClientID:            clientID,
		RedirectURI:         "http://localhost:8080/callback",
		Scope:               "read",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
	}, "user-1")
	require.NoError(t, err)
	return result.Code
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestTokenHandler(t *testing.T) {
	t.Run("authorization code exchange", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)
		code := obtainCode(t, env, clientID)

		rec := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {clientID},
			"code":          {code},
			"redirect_uri":  {"http://localhost:8080/callback"},
			"code_verifier": {testVerifier},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		var resp domain.TokenResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, domain.TokenTypeBearer, resp.TokenType)
		assert.Equal(t, "read", resp.Scope)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.InDelta(t, 3600, resp.ExpiresIn, 5)
	})

	t.Run("missing grant_type", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)

		rec := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"client_id": {clientID},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrCodeInvalidRequest, resp["error"])
	})

	t.Run("unsupported grant_type", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)

		rec := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"grant_type": {"client_credentials"},
			"client_id":  {clientID},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrCodeUnsupportedGrantType, resp["error"])
	})

	t.Run("unknown client is unauthorized", func(t *testing.T) {
		env := newTestEnv(t)

		rec := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"grant_type": {"authorization_code"},
			"client_id":  {"ghost"},
			"code":       {"whatever"},
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("basic auth overrides form credentials", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)
		code := obtainCode(t, env, clientID)

		form := url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"spoofed"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:8080/callback"},
			"code_verifier": {testVerifier},
		}
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(clientID, "")
		rec := httptest.NewRecorder()

		env.handler.TokenHandler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refresh token exchange", func(t *testing.T) {
		env := newTestEnv(t)
		clientID := registerTestClient(t, env)
		code := obtainCode(t, env, clientID)

		exchange := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {clientID},
			"code":          {code},
			"redirect_uri":  {"http://localhost:8080/callback"},
			"code_verifier": {testVerifier},
		})
		require.Equal(t, http.StatusOK, exchange.Code)

		var first domain.TokenResponse
		require.NoError(t, json.Unmarshal(exchange.Body.Bytes(), &first))

		rec := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {clientID},
			"refresh_token": {first.RefreshToken},
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var second domain.TokenResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
		assert.NotEqual(t, first.AccessToken, second.AccessToken)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	})
}

func TestRevokeHandler(t *testing.T) {
	env := newTestEnv(t)
	clientID := registerTestClient(t, env)
	code := obtainCode(t, env, clientID)

	exchange := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {"http://localhost:8080/callback"},
		"code_verifier": {testVerifier},
	})
	require.Equal(t, http.StatusOK, exchange.Code)

	var tokens domain.TokenResponse
	require.NoError(t, json.Unmarshal(exchange.Body.Bytes(), &tokens))

	t.Run("missing token", func(t *testing.T) {
		rec := postForm(env.handler.RevokeHandler, "/oauth2/revoke", url.Values{
			"client_id": {clientID},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign client", func(t *testing.T) {
		rec := postForm(env.handler.RevokeHandler, "/oauth2/revoke", url.Values{
			"token":     {tokens.AccessToken},
			"client_id": {"someone-else"},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("owner revokes", func(t *testing.T) {
		rec := postForm(env.handler.RevokeHandler, "/oauth2/revoke", url.Values{
			"token":     {tokens.AccessToken},
			"client_id": {clientID},
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		_, err := env.provider.VerifyAccessToken(context.Background(), tokens.AccessToken)
		assert.Error(t, err)
	})

	t.Run("absent token succeeds", func(t *testing.T) {
		rec := postForm(env.handler.RevokeHandler, "/oauth2/revoke", url.Values{
			"token":     {"never-existed"},
			"client_id": {clientID},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIntrospectHandler(t *testing.T) {
	env := newTestEnv(t)
	clientID := registerTestClient(t, env)
	code := obtainCode(t, env, clientID)

	exchange := postForm(env.handler.TokenHandler, "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {"http://localhost:8080/callback"},
		"code_verifier": {testVerifier},
	})
	require.Equal(t, http.StatusOK, exchange.Code)

	var tokens domain.TokenResponse
	require.NoError(t, json.Unmarshal(exchange.Body.Bytes(), &tokens))

	t.Run("active token", func(t *testing.T) {
		rec := postForm(env.handler.IntrospectHandler, "/oauth2/introspect", url.Values{
			"token": {tokens.AccessToken},
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["active"])
		assert.Equal(t, clientID, resp["client_id"])
		assert.Equal(t, "user-1", resp["sub"])
		assert.Equal(t, "read", resp["scope"])
	})

	t.Run("unknown token is inactive not an error", func(t *testing.T) {
		rec := postForm(env.handler.IntrospectHandler, "/oauth2/introspect", url.Values{
			"token": {"never-existed"},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"active":false}`, rec.Body.String())
	})
}

func TestMetadataHandler(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()

	env.handler.MetadataHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var meta domain.ServerMetadata
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "http://localhost:8080", meta.Issuer)
	assert.Equal(t, "http://localhost:8080/oauth2/token", meta.TokenEndpoint)
	assert.Contains(t, meta.CodeChallengeMethodsSupported, "S256")
}

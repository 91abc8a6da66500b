package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBMigrate  bool

	// Server configuration
	ServerPort int

	// OAuth2 provider configuration
	Issuer              string
	ConsentURL          string
	CodeTTL             time.Duration
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration // 0 = refresh tokens never expire
	ClientSecretTTL     time.Duration // 0 = secrets never expire
	SupportedScopes     []string
	RequirePKCE         bool
	IssueRefreshTokens  bool
	RotateRefreshTokens bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	codeTTL, err := time.ParseDuration(getEnv("OAUTH2_CODE_TTL", "10m"))
	if err != nil {
		return nil, err
	}

	accessTTL, err := time.ParseDuration(getEnv("OAUTH2_ACCESS_TOKEN_TTL", "1h"))
	if err != nil {
		return nil, err
	}

	refreshTTL, err := time.ParseDuration(getEnv("OAUTH2_REFRESH_TOKEN_TTL", "720h"))
	if err != nil {
		return nil, err
	}

	secretTTL, err := time.ParseDuration(getEnv("OAUTH2_CLIENT_SECRET_TTL", "8760h"))
	if err != nil {
		return nil, err
	}

	issuer := getEnv("OAUTH2_ISSUER", "http://localhost:8080")

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "owner"),
		DBPassword: getEnv("DB_PASSWORD", "ownerTest"),
		DBName:     getEnv("DB_NAME", "oauth"),
		DBMigrate:  getEnvBool("DB_AUTO_MIGRATE", false),

		ServerPort: getEnvInt("PORT", 8080),

		Issuer:              issuer,
		ConsentURL:          getEnv("OAUTH2_CONSENT_URL", issuer+"/consent"),
		CodeTTL:             codeTTL,
		AccessTokenTTL:      accessTTL,
		RefreshTokenTTL:     refreshTTL,
		ClientSecretTTL:     secretTTL,
		SupportedScopes:     strings.Fields(getEnv("OAUTH2_SUPPORTED_SCOPES", "openid profile email read write")),
		RequirePKCE:         getEnvBool("OAUTH2_REQUIRE_PKCE", true),
		IssueRefreshTokens:  getEnvBool("OAUTH2_ISSUE_REFRESH_TOKENS", true),
		RotateRefreshTokens: getEnvBool("OAUTH2_ROTATE_REFRESH_TOKENS", true),
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

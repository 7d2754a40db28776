// Package config reads process configuration from the environment with
// development defaults that work against a local platformd.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Mode selects the upstream: "local" points every service at platformd,
	// "online" expects real endpoints in the environment.
	Mode string

	// Dashboard server.
	HTTPAddr   string
	CookieName string
	// CookieSecret signs the dashboard's session cookies.
	CookieSecret string
	// TokenFile persists the token store across restarts. Empty keeps tokens
	// in memory only.
	TokenFile string

	// Upstream service roots.
	SSOBaseURL    string // backend auth service origin
	RosterBaseURL string // OneRoster rostering root, .../ims/oneroster/rostering/v1p2
	QTIBaseURL    string // QTI root, .../ims/qti/v3p0

	// Identity provider.
	IDPEndpoint    string
	IDPClientID    string
	IDPDefaultName string

	// platformd.
	PlatformAddr      string
	DBDriver          string
	DBDSN             string
	BlobBasePath      string
	PublicURL         string // origin signed blob links point at
	AuthSecret        string // HMAC key for platform-issued JWTs and blob links
	SeedPassword      string
	CORSOrigins       []string
	AccessTokenTTLSec int
}

// FromEnv builds a Config from environment variables, falling back to local
// development defaults.
func FromEnv() Config {
	platform := envOr("PLATFORM_URL", "http://localhost:8080")
	return Config{
		Mode:         envOr("APP_MODE", "local"),
		HTTPAddr:     envOr("HTTP_ADDR", ":3000"),
		CookieName:   envOr("COOKIE_NAME", "rosterdash_session"),
		CookieSecret: envOr("COOKIE_SECRET", "dev-cookie-secret"),
		TokenFile:    envOr("TOKEN_FILE", ""),

		SSOBaseURL:    envOr("SSO_BASE_URL", platform),
		RosterBaseURL: envOr("ROSTER_BASE_URL", platform+"/ims/oneroster/rostering/v1p2"),
		QTIBaseURL:    envOr("QTI_BASE_URL", platform+"/ims/qti/v3p0"),

		IDPEndpoint:    envOr("IDP_ENDPOINT", platform+"/idp"),
		IDPClientID:    envOr("IDP_CLIENT_ID", "local-client"),
		IDPDefaultName: envOr("IDP_DEFAULT_NAME", "Test User"),

		PlatformAddr:      envOr("PLATFORM_ADDR", ":8080"),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		BlobBasePath:      envOr("BLOB_BASE_PATH", "./data/blobs"),
		PublicURL:         envOr("PUBLIC_URL", platform),
		AuthSecret:        envOr("AUTH_SECRET", "dev-auth-secret"),
		SeedPassword:      envOr("SEED_PASSWORD", "TestPassword123!"),
		CORSOrigins:       csvOr("CORS_ORIGINS", []string{"http://localhost:3000"}),
		AccessTokenTTLSec: envInt("ACCESS_TOKEN_TTL_SEC", 3600),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func csvOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

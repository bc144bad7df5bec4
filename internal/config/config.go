// Package config loads service settings from the environment, after an
// optional .env file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config errors
var (
	ErrMissingJWTSecret = errors.New("EYEQ_JWT_SECRET is required in production")
	ErrMissingCSRFKey   = errors.New("EYEQ_CSRF_KEY is required in production")
	ErrInvalidCSRFKey   = errors.New("EYEQ_CSRF_KEY must be 64 hex characters (32 bytes)")
)

// Config holds every setting of the server.
type Config struct {
	Addr             string
	Env              string
	DBPath           string
	FirestoreProject string // non-empty selects Firestore as the document store
	JWTSecret        []byte
	JWTIssuer        string
	SuperAdminEmail  string
	ResendKey        string
	EmailFrom        string
	ReplyTo          string
	AppURL           string
	CSRFKey          []byte
	CORSOrigins      []string
	ProbeInterval    time.Duration
	SlowQueryMs      int
	SlowRequestMs    int
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads path (when it exists) into the environment without overriding
// variables already set, then builds a Config.
// PRE: none
// POST: Returns an error when a production requirement is missing or a value is malformed
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (Config, error) {
	c := Config{
		Addr:             envOrDefault("EYEQ_ADDR", ":8080"),
		Env:              envOrDefault("EYEQ_ENV", "development"),
		DBPath:           envOrDefault("EYEQ_DB_PATH", "eyeq.db"),
		FirestoreProject: os.Getenv("EYEQ_FIRESTORE_PROJECT"),
		JWTSecret:        []byte(os.Getenv("EYEQ_JWT_SECRET")),
		JWTIssuer:        os.Getenv("EYEQ_JWT_ISSUER"),
		SuperAdminEmail:  os.Getenv("EYEQ_SUPER_ADMIN_EMAIL"),
		ResendKey:        os.Getenv("EYEQ_RESEND_KEY"),
		EmailFrom:        envOrDefault("EYEQ_EMAIL_FROM", "FootBall EyeQ <noreply@footballeyeq.test>"),
		ReplyTo:          envOrDefault("EYEQ_REPLY_TO", "support@footballeyeq.test"),
		AppURL:           envOrDefault("EYEQ_APP_URL", "http://localhost:8080"),
		CORSOrigins:      splitList(os.Getenv("EYEQ_CORS_ORIGINS")),
	}

	var err error
	if c.ProbeInterval, err = durationOrDefault("EYEQ_PROBE_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if c.SlowQueryMs, err = intOrDefault("EYEQ_SLOW_QUERY_MS", 50); err != nil {
		return Config{}, err
	}
	if c.SlowRequestMs, err = intOrDefault("EYEQ_SLOW_REQUEST_MS", 200); err != nil {
		return Config{}, err
	}

	if len(c.JWTSecret) == 0 {
		if c.IsProduction() {
			return Config{}, ErrMissingJWTSecret
		}
		c.JWTSecret = []byte("development-only-secret")
		slog.Warn("config_event", "event", "dev_jwt_secret", "hint", "set EYEQ_JWT_SECRET for production")
	}

	if c.CSRFKey, err = loadCSRFKey(c.IsProduction()); err != nil {
		return Config{}, err
	}
	return c, nil
}

// loadCSRFKey reads the CSRF secret from EYEQ_CSRF_KEY (hex-encoded, 32 bytes).
// Outside production a random key is generated per startup.
func loadCSRFKey(production bool) ([]byte, error) {
	if keyHex := os.Getenv("EYEQ_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, ErrInvalidCSRFKey
		}
		return key, nil
	}
	if production {
		return nil, ErrMissingCSRFKey
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}
	slog.Warn("config_event", "event", "random_csrf_key", "hint", "set EYEQ_CSRF_KEY for production")
	return key, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

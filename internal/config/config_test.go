package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "EYEQ_") {
			t.Setenv(key, "")
		}
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Addr != ":8080" || c.DBPath != "eyeq.db" || c.Env != "development" {
		t.Errorf("defaults = %+v", c)
	}
	if c.ProbeInterval != 10*time.Second || c.SlowQueryMs != 50 || c.SlowRequestMs != 200 {
		t.Errorf("timings = %v %d %d", c.ProbeInterval, c.SlowQueryMs, c.SlowRequestMs)
	}
	if len(c.CSRFKey) != 32 || len(c.JWTSecret) == 0 {
		t.Error("development should generate secrets")
	}
	if c.CORSOrigins != nil {
		t.Errorf("CORSOrigins = %v, want none", c.CORSOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EYEQ_ADDR", ":9090")
	t.Setenv("EYEQ_CORS_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("EYEQ_PROBE_INTERVAL", "2s")
	t.Setenv("EYEQ_SLOW_QUERY_MS", "5")
	t.Setenv("EYEQ_CSRF_KEY", strings.Repeat("ab", 32))
	t.Setenv("EYEQ_FIRESTORE_PROJECT", "eyeq-prod")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Addr != ":9090" || c.ProbeInterval != 2*time.Second || c.SlowQueryMs != 5 || c.FirestoreProject != "eyeq-prod" {
		t.Errorf("config = %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.test" {
		t.Errorf("CORSOrigins = %v", c.CORSOrigins)
	}
	if c.CSRFKey[0] != 0xab {
		t.Errorf("CSRFKey not decoded")
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"production without jwt secret", map[string]string{"EYEQ_ENV": "production", "EYEQ_CSRF_KEY": strings.Repeat("00", 32)}, ErrMissingJWTSecret},
		{"production without csrf key", map[string]string{"EYEQ_ENV": "production", "EYEQ_JWT_SECRET": "s"}, ErrMissingCSRFKey},
		{"short csrf key", map[string]string{"EYEQ_CSRF_KEY": "abcd"}, ErrInvalidCSRFKey},
		{"bad duration", map[string]string{"EYEQ_PROBE_INTERVAL": "soon"}, nil},
		{"negative slow ms", map[string]string{"EYEQ_SLOW_REQUEST_MS": "-1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EYEQ_DB_PATH=from-file.db\nEYEQ_ADDR=:7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EYEQ_ADDR", ":6000")
	t.Cleanup(func() { os.Unsetenv("EYEQ_DB_PATH") })

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DBPath != "from-file.db" {
		t.Errorf("DBPath = %q, want value from .env", c.DBPath)
	}
	if c.Addr != ":6000" {
		t.Errorf("Addr = %q, environment should win", c.Addr)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Load: %v", err)
	}
}

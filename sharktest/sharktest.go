// Package sharktest provides .env-driven test fixtures for the integration
// scenarios that need a live PostgreSQL or MySQL/MariaDB server: it loads
// connection settings with godotenv and skips the calling test cleanly when
// no server is configured, instead of failing a CI run that has none.
package sharktest

import (
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/scorpion-framework/shark"
)

var loadOnce sync.Once

func loadEnv() {
	loadOnce.Do(func() {
		_ = godotenv.Load() // .env is optional; real environments set these directly
	})
}

// RequirePostgres returns a PostgresConfig built from SHARK_PG_* environment
// variables, or calls t.Skip when SHARK_PG_HOST is unset.
func RequirePostgres(t *testing.T) shark.PostgresConfig {
	t.Helper()
	loadEnv()

	host := os.Getenv("SHARK_PG_HOST")
	if host == "" {
		t.Skip("SHARK_PG_HOST not set, skipping PostgreSQL integration test")
	}

	return shark.PostgresConfig{
		Host:     host,
		Port:     envInt("SHARK_PG_PORT", 5432),
		Database: envOr("SHARK_PG_DATABASE", "shark_test"),
		Username: envOr("SHARK_PG_USERNAME", "postgres"),
		Password: os.Getenv("SHARK_PG_PASSWORD"),
	}
}

// RequireMySQL returns a MySQLConfig built from SHARK_MYSQL_* environment
// variables, or calls t.Skip when SHARK_MYSQL_HOST is unset.
func RequireMySQL(t *testing.T) shark.MySQLConfig {
	t.Helper()
	loadEnv()

	host := os.Getenv("SHARK_MYSQL_HOST")
	if host == "" {
		t.Skip("SHARK_MYSQL_HOST not set, skipping MySQL integration test")
	}

	return shark.MySQLConfig{
		Host:     host,
		Port:     envInt("SHARK_MYSQL_PORT", 3306),
		Database: envOr("SHARK_MYSQL_DATABASE", "shark_test"),
		Username: envOr("SHARK_MYSQL_USERNAME", "root"),
		Password: os.Getenv("SHARK_MYSQL_PASSWORD"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

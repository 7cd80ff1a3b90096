// Package config loads server configuration from the environment, with a
// YAML profile for the generator backend fleet.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port             string
	LogLevel         string
	DatabaseURL      string
	AuditDBPath      string
	RegistryPath     string
	BackendsPath     string
	GeneratorTimeout time.Duration
	OTLPEndpoint     string

	// RolesAllowMemory lets the server fall back to an in-memory role store
	// when Postgres is unreachable. Development only: memory roles vanish on
	// restart.
	RolesAllowMemory bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Local development default; pair with ROLES_ALLOW_MEMORY when no
		// Postgres is running.
		dbURL = "postgres://sovereign@localhost:5432/sovereign?sslmode=disable"
	}

	auditPath := os.Getenv("AUDIT_DB_PATH")
	if auditPath == "" {
		auditPath = "sovereign_audit.db"
	}

	registryPath := os.Getenv("REGISTRY_PATH")
	backendsPath := os.Getenv("BACKENDS_PATH")

	timeout := 30 * time.Second
	if raw := os.Getenv("GENERATOR_TIMEOUT_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	allowMemory, _ := strconv.ParseBool(os.Getenv("ROLES_ALLOW_MEMORY"))

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		DatabaseURL:      dbURL,
		AuditDBPath:      auditPath,
		RegistryPath:     registryPath,
		BackendsPath:     backendsPath,
		GeneratorTimeout: timeout,
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RolesAllowMemory: allowMemory,
	}
}

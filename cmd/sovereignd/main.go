// sovereignd is the pipeline server: it loads the schema registry, wires the
// generator fleet, and serves the submission API. Startup is fail-closed; a
// missing or defective registry snapshot stops the process.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/api"
	"github.com/odyssey-one/sovereign-core/pkg/config"
	"github.com/odyssey-one/sovereign-core/pkg/consensus"
	"github.com/odyssey-one/sovereign-core/pkg/generator"
	"github.com/odyssey-one/sovereign-core/pkg/observability"
	"github.com/odyssey-one/sovereign-core/pkg/pipeline"
	"github.com/odyssey-one/sovereign-core/pkg/planner"
	"github.com/odyssey-one/sovereign-core/pkg/policy"
	"github.com/odyssey-one/sovereign-core/pkg/prompt"
	"github.com/odyssey-one/sovereign-core/pkg/schema"
	"github.com/odyssey-one/sovereign-core/pkg/store"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshot, err := loadRegistry(cfg)
	if err != nil {
		log.Fatalf("registry load failed, refusing to serve: %v", err)
	}
	logger.Info("registry snapshot loaded",
		slog.String("version", snapshot.Version().String()),
		slog.Int("entries", len(snapshot.Entries())))

	backends, err := loadBackends(cfg)
	if err != nil {
		log.Fatalf("backend fleet load failed: %v", err)
	}
	engine, err := consensus.New(backends, cfg.GeneratorTimeout, logger)
	if err != nil {
		log.Fatalf("consensus engine: %v", err)
	}

	roles, err := openRoleStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("role store: %v", err)
	}
	if closer, ok := roles.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	rules, err := policy.NewRuleSet(policy.DefaultRules())
	if err != nil {
		log.Fatalf("business rules: %v", err)
	}
	pol, err := policy.NewEngine(policy.DefaultMatrix(), rules, roles, logger)
	if err != nil {
		log.Fatalf("policy engine: %v", err)
	}

	audit, err := store.OpenSQLiteAuditStore(cfg.AuditDBPath)
	if err != nil {
		log.Fatalf("audit store: %v", err)
	}
	defer func() { _ = audit.Close() }()

	orch, err := pipeline.New(snapshot, prompt.New(snapshot), engine, pol, planner.New(), audit, logger)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	telemetry, err := observability.New(ctx, &observability.Config{
		ServiceName:    "sovereign-core",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
		BatchTimeout:   5 * time.Second,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shCtx)
	}()

	server := api.NewServer(orch, audit, telemetry, logger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(api.NewRateLimiter(10, 20)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shCtx); err != nil {
		logger.Error("shutdown", slog.String("error", err.Error()))
	}
}

// openRoleStore connects to Postgres for role lookups. With
// ROLES_ALLOW_MEMORY set, an unreachable Postgres degrades to an empty
// in-memory store instead of stopping the process; every lookup against it
// denies until roles are assigned.
func openRoleStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (policy.RoleStore, error) {
	roles, err := store.OpenPostgresRoleStore(ctx, cfg.DatabaseURL)
	if err == nil {
		return roles, nil
	}
	if !cfg.RolesAllowMemory {
		return nil, err
	}
	logger.Warn("postgres unreachable, using in-memory role store",
		slog.String("error", err.Error()))
	return store.NewMemoryRoleStore(), nil
}

func loadRegistry(cfg *config.Config) (*schema.Snapshot, error) {
	if cfg.RegistryPath != "" {
		return schema.LoadFile(cfg.RegistryPath)
	}
	return schema.Default()
}

func loadBackends(cfg *config.Config) ([]generator.Backend, error) {
	if cfg.BackendsPath == "" {
		// Single local default, same endpoint shape LM Studio exposes.
		return []generator.Backend{
			generator.NewHTTPBackend("local", "http://localhost:1234/v1/chat/completions", "", "local-model"),
		}, nil
	}
	profiles, err := config.LoadBackends(cfg.BackendsPath)
	if err != nil {
		return nil, err
	}
	backends := make([]generator.Backend, 0, len(profiles))
	for _, p := range profiles {
		backends = append(backends, generator.NewHTTPBackend(p.Name, p.Endpoint, p.APIKey(), p.Model))
	}
	return backends, nil
}

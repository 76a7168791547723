package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sqlward/sqlward/internal/adapter/clickhouse"
	"github.com/sqlward/sqlward/internal/adapter/postgres"
	"github.com/sqlward/sqlward/internal/api"
	"github.com/sqlward/sqlward/internal/audit"
	"github.com/sqlward/sqlward/internal/config"
	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
	"github.com/sqlward/sqlward/internal/core/service"
	"github.com/sqlward/sqlward/internal/policy"
	"github.com/sqlward/sqlward/internal/telemetry"
	"go.opentelemetry.io/otel"
)

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query gateway HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(overridesFromFlags(cmd, &flags))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	flags.register(cmd)
	return cmd
}

// overridesFromFlags maps only the flags the user actually set, so unset
// flags never clobber environment configuration.
func overridesFromFlags(cmd *cobra.Command, f *serveFlags) config.Overrides {
	var o config.Overrides
	if cmd.Flags().Changed("database-url") {
		o.DatabaseURL = &f.databaseURL
	}
	if cmd.Flags().Changed("http-addr") {
		o.HTTPAddr = &f.httpAddr
	}
	if cmd.Flags().Changed("max-rows") {
		o.MaxRows = &f.maxRows
	}
	if cmd.Flags().Changed("query-timeout") {
		o.QueryTimeout = &f.queryTimeout
	}
	if cmd.Flags().Changed("audit-sink") {
		o.AuditSink = &f.auditSink
	}
	if cmd.Flags().Changed("audit-log") {
		o.AuditLogPath = &f.auditLog
	}
	if cmd.Flags().Changed("policy-file") {
		o.PolicyFile = &f.policyFile
	}
	if cmd.Flags().Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	o.OTelEnabled = f.otelEnabled
	return o
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting sqlward",
		slog.String("version", version),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("audit_sink", cfg.AuditSink),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability.
	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "sqlward", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("sqlward")
		inst = telemetry.NewInstruments()
	}

	// Policy (optional).
	var extraDeny []string
	var caps port.Limits
	if cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		extraDeny = pol.DenyKeywords
		caps = port.Limits{MaxRows: pol.Limits.MaxRows, Timeout: pol.Limits.Timeout()}
		logger.Info("policy loaded",
			slog.String("file", cfg.PolicyFile),
			slog.Int("extra_deny_keywords", len(extraDeny)),
		)
	}

	// Domain.
	validator := domain.NewValidator(cfg.MaxQueryBytes, extraDeny)

	// Adapters.
	executor, err := clickhouse.NewExecutor(cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	store, err := buildAuditStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing audit store", slog.String("error", err.Error()))
		}
	}()

	recorder := audit.NewRecorder(store, logger, cfg.AuditTimeout, inst)

	// Service and HTTP surface.
	gateway := service.NewGatewayService(
		validator, executor, recorder, logger,
		port.Limits{MaxRows: cfg.MaxRows, Timeout: cfg.QueryTimeout},
		caps, tracer, inst,
	)
	handler := api.NewHandler(gateway, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	// Let in-flight audit writes drain before the store closes.
	recorder.Wait()

	logger.Info("shutdown complete")
	return nil
}

func buildAuditStore(ctx context.Context, cfg *config.Config) (port.AuditStore, error) {
	switch cfg.AuditSink {
	case config.SinkClickHouse:
		return clickhouse.NewAuditStore(cfg.DatabaseURL, cfg.AuditTable, nil)
	case config.SinkPostgres:
		pool, err := postgres.NewPool(ctx, cfg.AuditDatabaseURL, postgres.PoolSettings{
			MaxConns:        cfg.AuditPoolMaxConns,
			MinConns:        cfg.AuditPoolMinConns,
			MaxConnLifetime: cfg.AuditPoolMaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		return postgres.NewAuditStore(ctx, pool)
	case config.SinkFile:
		return audit.NewFileStore(cfg.AuditLogPath)
	default:
		return port.NoopStore{}, nil
	}
}

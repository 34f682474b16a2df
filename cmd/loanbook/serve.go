package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/api"
	audithook "github.com/xraph/loanbook/audit_hook"
	"github.com/xraph/loanbook/observability"
)

type serveCmd struct {
	addr      string
	currency  string
	jwtSecret string
	logLevel  string
	db        string
	poolSize  int
	audit     bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the loan ledger HTTP API" }
func (*serveCmd) Usage() string {
	return `loanbook serve [-addr <addr>] [-currency <code>] [-jwt-secret <secret>] [-db <dsn>]

  Serves the loan and payment API. -db selects the store:
    memory (default)           in-process, lost on exit
    sqlite://<path>, file:...  SQLite file
    postgres://...             PostgreSQL
    mongodb://...              MongoDB
  SQL schemas are migrated on startup. Prometheus metrics are exposed on
  /metrics without authentication.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", envOr("LOANBOOK_ADDR", ":8080"), "Listen address (LOANBOOK_ADDR).")
	f.StringVar(&c.currency, "currency", envOr("LOANBOOK_CURRENCY", loanbook.DefaultCurrency), "Ledger currency (LOANBOOK_CURRENCY).")
	f.StringVar(&c.jwtSecret, "jwt-secret", os.Getenv("LOANBOOK_JWT_SECRET"), "HS256 token secret (LOANBOOK_JWT_SECRET).")
	f.StringVar(&c.logLevel, "log-level", envOr("LOANBOOK_LOG_LEVEL", "info"), "Log level: debug, info, warn or error.")
	f.StringVar(&c.db, "db", envOr("LOANBOOK_DB", "memory"), "Store DSN (LOANBOOK_DB).")
	f.IntVar(&c.poolSize, "db-pool-size", 0, "Maximum open database connections; 0 keeps the driver default.")
	f.BoolVar(&c.audit, "audit", false, "Write an audit line for every ledger event.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		return subcommands.ExitUsageError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if c.jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "a JWT secret is required: pass -jwt-secret or set LOANBOOK_JWT_SECRET")
		return subcommands.ExitUsageError
	}

	if err := c.run(ctx, logger); err != nil {
		logger.Error("serve failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *serveCmd) run(ctx context.Context, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	opts := []loanbook.Option{
		loanbook.WithLogger(logger),
		loanbook.WithCurrency(c.currency),
		loanbook.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg, "loanbook"))),
	}
	if c.audit {
		opts = append(opts, loanbook.WithPlugin(audithook.New(audithook.RecorderFunc(
			func(_ context.Context, ev *audithook.AuditEvent) error {
				logger.Info("audit", "action", ev.Action, "resource_id", ev.ResourceID, "owner_id", ev.OwnerID)
				return nil
			},
		), audithook.WithLogger(logger))))
	}

	st, kind, err := openStore(ctx, c.db, c.poolSize)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "backend", string(kind))

	ledger := loanbook.New(st, opts...)
	if err := ledger.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Warn("ledger stop failed", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	handler := api.New(ledger, api.NewAuthenticator([]byte(c.jwtSecret)), api.WithLogger(logger))
	engine := handler.Engine()
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	engine.GET("/healthz", func(gc *gin.Context) {
		if err := ledger.Store().Ping(gc.Request.Context()); err != nil {
			gc.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		gc.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              c.addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", c.addr, "currency", ledger.Currency())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/config"
	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/internal/docstore/memory"
	"github.com/breadsocial/bread/internal/docstore/mongo"
	"github.com/breadsocial/bread/internal/docstore/postgres"
	"github.com/breadsocial/bread/internal/logging"
	"github.com/breadsocial/bread/internal/observability"
	"github.com/breadsocial/bread/internal/post"
	"github.com/breadsocial/bread/internal/web"
)

const shutdownTimeout = 5 * time.Second

// connectBackoffBase is the first delay between store connection attempts.
var connectBackoffBase = 500 * time.Millisecond

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the configured document store.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config) (docstore.Store, error)

	// Ready is called with the API listen address once requests are served.
	Ready func(apiAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API under /api, plus metrics and health probes on
metrics-addr. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// openStore connects the backend selected by store-backend.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.BackendPostgres:
		return postgres.Connect(ctx, cfg.DatabaseURL)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// connectStore opens the store, retrying failed connects with exponential
// backoff up to cfg.StoreConnectRetries times.
func connectStore(ctx context.Context, cfg *config.Config, factory func(context.Context, *config.Config) (docstore.Store, error)) (docstore.Store, error) {
	var store docstore.Store
	backoff := retry.WithMaxRetries(cfg.StoreConnectRetries, retry.NewExponential(connectBackoffBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := factory(ctx, cfg)
		if err != nil {
			slog.WarnContext(ctx, "store connection failed", "backend", cfg.StoreBackend, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = openStore
	}

	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := logging.SetDefault("bread", version, cfg.LogFormat, cfg.LogLevel)
	logger.Info("starting bread",
		"listen_addr", cfg.ListenAddr,
		"store_backend", cfg.StoreBackend,
		"log_format", cfg.LogFormat,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := connectStore(ctx, cfg, deps.StoreFactory)
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").With("backend", cfg.StoreBackend).Wrap(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := backend.Close(closeCtx); closeErr != nil {
			logger.Warn("error closing store", "error", closeErr)
		}
	}()

	var ready atomic.Bool
	obsServer := observability.NewServer(cfg.MetricsAddr, ready.Load)
	store := observability.InstrumentStore(backend, obsServer.Metrics())

	handler, limiter, err := buildAPI(ctx, cfg, store, obsServer.Metrics(), logger)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("API_LISTEN_FAILED").With("addr", cfg.ListenAddr).Wrap(err)
	}

	apiServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	ready.Store(true)
	cmd.Println("Bread API listening on " + listener.Addr().String())
	logger.Info("bread ready", "api_addr", listener.Addr().String(), "metrics_addr", obsServer.Addr())
	if deps.Ready != nil {
		deps.Ready(listener.Addr().String())
	}

	<-ctx.Done()
	ready.Store(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer)

	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires the services over store and returns the router and the
// login limiter, which the caller must stop.
func buildAPI(ctx context.Context, cfg *config.Config, store docstore.Store, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, *web.RateLimiter, error) {
	params, err := cfg.HashParams()
	if err != nil {
		return nil, nil, err
	}
	hasher, err := auth.NewArgon2idHasherWithParams(params)
	if err != nil {
		return nil, nil, err
	}

	users, err := auth.NewUserDirectory(store, hasher)
	if err != nil {
		return nil, nil, err
	}
	if err := users.EnsureIndexes(ctx); err != nil {
		return nil, nil, oops.Code("STORE_INDEX_FAILED").Wrap(err)
	}

	if cfg.TokenSecret == "" {
		logger.Warn("no token-secret configured, sessions will not survive a restart")
	}
	if cfg.SessionLifetime == 0 {
		logger.Warn("session-lifetime is 0, issued session tokens are already expired")
	}
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, nil, err
	}
	tokens, err := auth.NewTokenService(key, cfg.SessionLifetime)
	if err != nil {
		return nil, nil, err
	}

	authService, err := auth.NewAuthService(users, hasher, tokens, logger)
	if err != nil {
		return nil, nil, err
	}
	postService, err := post.NewService(post.NewStore(store), authService, logger)
	if err != nil {
		return nil, nil, err
	}

	limiterCfg := web.DefaultRateLimiterConfig()
	limiterCfg.Rate = rate.Limit(cfg.LoginRate)
	limiterCfg.Burst = cfg.LoginBurst
	limiter := web.NewRateLimiter(limiterCfg, metrics.RateLimited)

	handler, err := web.NewRouter(web.Deps{
		Auth:         authService,
		Posts:        postService,
		Metrics:      metrics,
		Limiter:      limiter,
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		limiter.Stop()
		return nil, nil, err
	}
	return handler, limiter, nil
}

func stopObservability(obsServer *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

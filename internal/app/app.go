package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"

	"github.com/simp-lee/rentadmin/internal/backend"
	"github.com/simp-lee/rentadmin/internal/config"
	"github.com/simp-lee/rentadmin/internal/listing"
	"github.com/simp-lee/rentadmin/internal/metrics"
	"github.com/simp-lee/rentadmin/internal/middleware"
	"github.com/simp-lee/rentadmin/internal/module/resource"
	"github.com/simp-lee/rentadmin/internal/state"
)

const (
	defaultWriteTimeout = 60 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine  *gin.Engine
	store   state.Store
	manager *listing.Manager
	logger  *logger.Logger
	cfg     *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, writeTimeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the preference store, metrics, the backend client,
// the shared snapshot cache, the session manager, middleware and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior")
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build resource catalog: %w", err)
	}

	// 2. Preference store.
	store, err := openStore(context.Background(), cfg, len(catalog.Names()), log.Logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if success {
			return
		}
		if err := store.Close(); err != nil {
			slog.Error("state store close error", slog.Any("error", err))
		}
	}()
	log.Info("pagination state store ready", slog.String("driver", cfg.State.Driver))

	// 3. Metrics, backend client, shared cache and session manager.
	m := metrics.New()

	opts := backend.Options{
		BaseURL:  cfg.Backend.BaseURL,
		Token:    cfg.Backend.Token,
		Timeout:  config.Duration(cfg.Backend.Timeout, 0),
		Observer: m,
		Logger:   log.Logger,
	}
	if cfg.Backend.RateLimit.Enabled {
		opts.RPS = cfg.Backend.RateLimit.RPS
		opts.Burst = cfg.Backend.RateLimit.Burst
	}
	client, err := backend.New(opts)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	cache, err := listing.NewCache(listing.CacheOptions{
		MaxSize: cfg.Listing.Cache.MaxSize,
		TTL:     config.Duration(cfg.Listing.Cache.TTL, 0),
	})
	if err != nil {
		return nil, err
	}

	manager, err := listing.NewManager(listing.ManagerConfig{
		Catalog:     catalog,
		Backend:     client,
		Cache:       cache,
		Store:       store,
		Observer:    m,
		Logger:      log.Logger,
		MaxSessions: cfg.Listing.MaxSessions,
		PageSize:    cfg.Listing.DefaultPageSize,
		MaxPageSize: cfg.Listing.MaxPageSize,
		InboxSize:   cfg.Listing.InboxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	// 4. Gin engine with custom middleware (not gin.Default()).
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: cfg.Server.TrustRequestID,
		}),
		middleware.Logger(log.Logger),
		middleware.Metrics(m),
		middleware.CORS(corsConfig(&cfg.Server.CORS)),
	)

	// 5. Routes.
	handler := resource.NewHandler(manager, log.Logger)
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules: []Module{resource.NewModule(handler, catalog.Names())},
		Store:   store,
		Metrics: m.Handler(),
		Session: sessionConfig(&cfg.Server),
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:  engine,
		store:   store,
		manager: manager,
		logger:  log,
		cfg:     cfg,
	}, nil
}

// Handler returns the HTTP handler serving the dashboard.
func (a *App) Handler() http.Handler {
	return a.engine
}

func corsConfig(cfg *config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	out.AllowOrigins = cfg.AllowOrigins
	out.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAge != "" {
		out.MaxAge = strconv.Itoa(int(config.Duration(cfg.MaxAge, 24*time.Hour) / time.Second))
	}
	return out
}

// sessionConfig marks the session cookie Secure in release mode unless
// configured otherwise.
func sessionConfig(cfg *config.ServerConfig) middleware.SessionConfig {
	secure := cfg.Mode == gin.ReleaseMode
	if cfg.Session.Secure != nil {
		secure = *cfg.Session.Secure
	}
	return middleware.SessionConfig{
		CookieName: cfg.Session.CookieName,
		MaxAge:     config.Duration(cfg.Session.MaxAge, middleware.DefaultSessionMaxAge),
		Secure:     secure,
	}
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout and closes the state
// store.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, config.Duration(a.cfg.Server.Timeout, defaultWriteTimeout))

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error("state store close error", slog.Any("error", err))
		} else {
			log.Info("state store closed")
		}
	}

	if a.manager != nil {
		log.Info("server stopped", slog.Int("sessions", a.manager.Sessions()))
	} else {
		log.Info("server stopped")
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}
	return runErr
}

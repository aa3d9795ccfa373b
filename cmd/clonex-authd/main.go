// Command clonex-authd runs the authentication gateway: the OAuth login
// and callback endpoints, the cookie session endpoints, and the
// authenticated proxy to the backend API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	authgateway "github.com/clonex/auth-gateway"
	"github.com/clonex/auth-gateway/backend"
	"github.com/clonex/auth-gateway/instrumentation"
	"github.com/clonex/auth-gateway/providers/twitter"
	"github.com/clonex/auth-gateway/security"
	"github.com/clonex/auth-gateway/server"
	"github.com/clonex/auth-gateway/session"
	"github.com/clonex/auth-gateway/storage"
	"github.com/clonex/auth-gateway/storage/memory"
	"github.com/clonex/auth-gateway/storage/valkey"
)

type envConfig struct {
	ListenAddr string `env:"CLONEX_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"CLONEX_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"CLONEX_LOG_FORMAT" envDefault:"text"`

	TwitterClientID     string   `env:"CLONEX_TWITTER_CLIENT_ID,required"`
	TwitterClientSecret string   `env:"CLONEX_TWITTER_CLIENT_SECRET"`
	RedirectURL         string   `env:"CLONEX_REDIRECT_URL,required"`
	Scopes              []string `env:"CLONEX_SCOPES" envSeparator:"," envDefault:"tweet.read,users.read,tweet.write,offline.access"`

	SuccessRedirectURL string        `env:"CLONEX_SUCCESS_REDIRECT_URL" envDefault:"/dashboard"`
	ErrorRedirectURL   string        `env:"CLONEX_ERROR_REDIRECT_URL" envDefault:"/"`
	VerifierTTL        time.Duration `env:"CLONEX_VERIFIER_TTL" envDefault:"10m"`
	AccessTokenTTL     time.Duration `env:"CLONEX_ACCESS_TOKEN_TTL" envDefault:"2h"`
	RefreshTokenTTL    time.Duration `env:"CLONEX_REFRESH_TOKEN_TTL" envDefault:"720h"`

	CookieSecure bool   `env:"CLONEX_COOKIE_SECURE" envDefault:"true"`
	CookieDomain string `env:"CLONEX_COOKIE_DOMAIN"`
	CookieSecret string `env:"CLONEX_COOKIE_SECRET"`

	// StoreBackend selects where pending authorization requests live:
	// memory, valkey, or cookie
	StoreBackend   string `env:"CLONEX_STORE" envDefault:"memory"`
	ValkeyAddress  string `env:"CLONEX_VALKEY_ADDRESS"`
	ValkeyPassword string `env:"CLONEX_VALKEY_PASSWORD"`
	ValkeyDB       int    `env:"CLONEX_VALKEY_DB"`

	BackendURL string `env:"CLONEX_BACKEND_URL"`

	TrustProxy     bool     `env:"CLONEX_TRUST_PROXY"`
	RateLimitRPS   int      `env:"CLONEX_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int      `env:"CLONEX_RATE_LIMIT_BURST" envDefault:"20"`
	AuditEnabled   bool     `env:"CLONEX_AUDIT_ENABLED" envDefault:"true"`
	OTelEnabled    bool     `env:"CLONEX_OTEL_ENABLED"`
	AllowedOrigins []string `env:"CLONEX_ALLOWED_ORIGINS" envSeparator:","`

	ShutdownTimeout time.Duration `env:"CLONEX_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "clonex-authd:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	var encryptor *security.Encryptor
	if cfg.CookieSecret != "" {
		var err error
		encryptor, err = security.NewEncryptorFromSecret(cfg.CookieSecret)
		if err != nil {
			return fmt.Errorf("cookie encryption: %w", err)
		}
	} else {
		logger.Warn("No cookie secret configured, session cookies are not encrypted")
	}

	sessionConfig := session.Config{
		Secure:    cfg.CookieSecure,
		Domain:    cfg.CookieDomain,
		Encryptor: encryptor,
		Logger:    logger,
	}

	store, closeStore, err := buildStore(cfg, sessionConfig, encryptor, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := twitter.NewProvider(&twitter.Config{
		ClientID:     cfg.TwitterClientID,
		ClientSecret: cfg.TwitterClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	})
	if err != nil {
		return fmt.Errorf("twitter provider: %w", err)
	}

	srv, err := server.New(provider, store, &server.Config{
		VerifierTTL:        int64(cfg.VerifierTTL.Seconds()),
		AccessTokenTTL:     int64(cfg.AccessTokenTTL.Seconds()),
		RefreshTokenTTL:    int64(cfg.RefreshTokenTTL.Seconds()),
		SuccessRedirectURL: cfg.SuccessRedirectURL,
		ErrorRedirectURL:   cfg.ErrorRedirectURL,
		TrustProxy:         cfg.TrustProxy,
	}, logger)
	if err != nil {
		return fmt.Errorf("flow server: %w", err)
	}

	srv.SetAuditor(security.NewAuditor(logger, cfg.AuditEnabled))

	rl := security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	defer rl.Stop()
	srv.SetRateLimiter(rl)

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: "clonex-authd",
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("instrumentation: %w", err)
	}
	srv.SetInstrumentation(inst)

	if mem, ok := store.(*memory.Store); ok {
		if err := inst.RegisterPendingRequestsCallback(func() int64 {
			return int64(mem.Len())
		}); err != nil {
			logger.Warn("Failed to register storage gauge", "error", err)
		}
	}

	var backendClient *backend.Client
	if cfg.BackendURL != "" {
		backendClient, err = backend.New(backend.Config{
			BaseURL:         cfg.BackendURL,
			Logger:          logger,
			Instrumentation: inst,
		})
		if err != nil {
			return fmt.Errorf("backend client: %w", err)
		}
	} else {
		logger.Info("No backend URL configured, proxy endpoints disabled")
	}

	handler := authgateway.NewHandler(srv, session.NewManager(sessionConfig), backendClient, &authgateway.Config{
		CORS: authgateway.CORSConfig{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowCredentials: true,
		},
		Scope: strings.Join(cfg.Scopes, " "),
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening",
			"addr", cfg.ListenAddr,
			"store", cfg.StoreBackend,
			"provider", provider.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := inst.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Instrumentation shutdown failed", "error", err)
	}

	return nil
}

func buildStore(cfg envConfig, sessionConfig session.Config, encryptor *security.Encryptor, logger *slog.Logger) (storage.VerifierStore, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		store := memory.New()
		store.SetLogger(logger)
		return store, store.Stop, nil

	case "valkey":
		store, err := valkey.New(valkey.Config{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			DB:       cfg.ValkeyDB,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("valkey store: %w", err)
		}
		if encryptor != nil {
			store.SetEncryptor(encryptor)
		}
		return store, store.Close, nil

	case "cookie":
		return session.NewCookieVerifierStore(sessionConfig), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/tiagosilva/ecclesia/internal/auth"
	"github.com/tiagosilva/ecclesia/internal/bible"
	"github.com/tiagosilva/ecclesia/internal/client"
	httpmiddleware "github.com/tiagosilva/ecclesia/internal/http"
	"github.com/tiagosilva/ecclesia/internal/liveroom"
	"github.com/tiagosilva/ecclesia/internal/logger"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/presence"
	"github.com/tiagosilva/ecclesia/internal/realtime"
	"github.com/tiagosilva/ecclesia/internal/server"
	"github.com/tiagosilva/ecclesia/internal/store"
	memorystore "github.com/tiagosilva/ecclesia/internal/store/memory"
	postgresstore "github.com/tiagosilva/ecclesia/internal/store/postgres"
	"github.com/tiagosilva/ecclesia/internal/tokens"
	"github.com/tiagosilva/ecclesia/internal/youtube"
	"golang.org/x/crypto/bcrypt"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"ECCLESIA_LISTEN"`

	// Token configuration
	AccessSecret  string        `help:"HMAC secret for access tokens (min 32 bytes)" required:"" env:"ECCLESIA_ACCESS_SECRET"`
	RefreshSecret string        `help:"HMAC secret for refresh tokens (min 32 bytes)" required:"" env:"ECCLESIA_REFRESH_SECRET"`
	AccessTTL     time.Duration `help:"access token lifetime" default:"15m" env:"ECCLESIA_ACCESS_TTL"`
	RefreshTTL    time.Duration `help:"refresh token lifetime" default:"168h" env:"ECCLESIA_REFRESH_TTL"`
	SecureCookies bool          `help:"mark session cookies Secure (enable behind TLS)" default:"false" env:"ECCLESIA_SECURE_COOKIES"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"ECCLESIA_CORS_ORIGINS"`

	// Bootstrap admin account (created at startup when missing)
	AdminUsername string `help:"bootstrap admin username" default:"" env:"ECCLESIA_ADMIN_USERNAME"`
	AdminPassword string `help:"bootstrap admin password" default:"" env:"ECCLESIA_ADMIN_PASSWORD"`

	// YouTube integration
	YouTubeChannelID string        `help:"YouTube channel ID for live lookups" default:"" env:"ECCLESIA_YOUTUBE_CHANNEL_ID"`
	YouTubeAPIKey    string        `help:"YouTube Data API key" default:"" env:"ECCLESIA_YOUTUBE_API_KEY"`
	ExternalCacheTTL time.Duration `help:"cache TTL for external lookups" default:"5m" env:"ECCLESIA_EXTERNAL_CACHE_TTL"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"ECCLESIA_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"ECCLESIA_POSTGRES_AUTO_MIGRATE"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Dev)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("dev", globals.Dev).Msg("Starting server")

	tokenService, err := tokens.New(
		[]byte(c.AccessSecret),
		[]byte(c.RefreshSecret),
		tokens.WithAccessTTL(c.AccessTTL),
		tokens.WithRefreshTTL(c.RefreshTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	// Create stores based on store type
	var stores store.Stores
	switch c.StoreType {
	case "postgres":
		if c.PostgresStore.ConnString == "" {
			return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		stores = postgresstore.NewStores(pool)
		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		stores = memorystore.NewStores()
		log.Info().Msg("Using in-memory stores")
	}

	if err := c.bootstrapAdmin(ctx, stores.Principals); err != nil {
		return err
	}

	// Realtime core
	registry := presence.NewRegistry(stores.Principals)
	rooms := liveroom.NewCoordinator(stores.Lives, stores.ViewerSessions, stores.Readings, stores.PrayerRequests)
	realtimeHandler := realtime.NewHandler(registry, rooms)

	// External lookups share one caching HTTP client.
	cachingClient := client.NewCachingHTTPClient(c.ExternalCacheTTL)
	var youtubeClient *youtube.Client
	if c.YouTubeAPIKey != "" {
		youtubeClient = youtube.NewClient(cachingClient, c.YouTubeAPIKey)
	}
	bibleClient := bible.NewClient(cachingClient)

	authHandlers := server.NewAuthHandlers(tokenService, stores.Principals, c.SecureCookies)
	liveHandlers := server.NewLiveHandlers(stores.Lives, rooms, youtubeClient, bibleClient, c.YouTubeChannelID)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", authHandlers.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandlers.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandlers.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandlers.Me)
	mux.HandleFunc("GET /api/lives/current", liveHandlers.Current)
	mux.HandleFunc("GET /api/bible/passage", liveHandlers.Passage)
	mux.HandleFunc("GET /healthz", server.Healthz)
	mux.Handle("/ws", realtimeHandler)
	mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir("public"))))

	gateway := auth.NewGateway(tokenService)
	protected := gateway.Middleware()(mux)

	// API routes get CORS, page routes get CSRF
	protection := csrf.New()
	corsHandler := withCORS(c.CORSOrigins, protected)
	csrfHandler := protection.Handler(protected)
	split := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			corsHandler.ServeHTTP(w, r)
			return
		}
		csrfHandler.ServeHTTP(w, r)
	})

	handler := logger.Requests(log)(
		server.Recovery(globals.Dev)(
			httpmiddleware.ClientIPMiddleware()(split)))

	srv := configureHTTPServer(c.Listen, handler)

	// Graceful shutdown on SIGINT/SIGTERM
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-signalCtx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}

// bootstrapAdmin creates the configured admin account when it does not
// exist yet. Without it a fresh deployment has nobody who can log in.
func (c *ServerCmd) bootstrapAdmin(ctx context.Context, principals store.PrincipalStore) error {
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	err = principals.Create(ctx, &models.Principal{
		Username:     c.AdminUsername,
		Name:         c.AdminUsername,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	})
	if err != nil && !errors.Is(err, store.ErrPrincipalAlreadyExists) {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

// isAPIRoute returns true if the path needs CORS instead of CSRF.
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") ||
		path == "/ws" ||
		path == "/healthz"
}

// withCORS adds CORS support with credentials for cookie-based clients.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}

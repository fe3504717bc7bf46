// Package api wires together all HTTP routes for the mod registry backend.
//
// Route grouping philosophy:
//   - The CDN routes (/cdn/) are intentionally unauthenticated. Mod managers
//     and launchers resolve download URLs straight from version metadata and
//     must be able to fetch packages without supplying credentials.
//   - Catalog reads (/api/v1/mods, /api/v1/categories, search) are public but
//     rate limited.
//   - Uploads and account endpoints always require authentication, with the
//     permission bitset enforced per route.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/beatforge/forge-registry/internal/api/mods"
	"github.com/beatforge/forge-registry/internal/api/users"
	"github.com/beatforge/forge-registry/internal/auth"
	"github.com/beatforge/forge-registry/internal/cache"
	"github.com/beatforge/forge-registry/internal/config"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/ingest"
	"github.com/beatforge/forge-registry/internal/jobs"
	"github.com/beatforge/forge-registry/internal/middleware"
	"github.com/beatforge/forge-registry/internal/search"
	"github.com/beatforge/forge-registry/internal/storage"

	// Import storage backends to register them
	_ "github.com/beatforge/forge-registry/internal/storage/local"
	_ "github.com/beatforge/forge-registry/internal/storage/s3"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) calls
// Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	searchSyncJob *jobs.SearchSyncJob
	queryCache    *cache.Cache
	rateLimiters  []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests drain first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.searchSyncJob != nil {
		bg.searchSyncJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.queryCache != nil {
		_ = bg.queryCache.Close()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB, issuer *auth.TokenIssuer) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	blobStore, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	userRepo := repositories.NewUserRepository(db)
	modRepo := repositories.NewModRepository(db)
	ingestStore := repositories.NewIngestStore(db)

	sqlxDB := sqlx.NewDb(db, "postgres")
	catalogRepo := repositories.NewCatalogRepository(sqlxDB)
	outboxRepo := repositories.NewOutboxRepository(sqlxDB)

	queryCache := cache.New(&cfg.Cache, slog.Default())
	if err := queryCache.Ping(context.Background()); err != nil {
		slog.Warn("query cache unreachable, continuing without it", "error", err)
	}

	coordinator := ingest.NewCoordinator(ingestStore, catalogRepo, blobStore, cfg.Server.BaseURL, slog.Default())

	var indexer search.Indexer
	var searchSyncJob *jobs.SearchSyncJob
	if cfg.Search.Enabled {
		client := search.NewClient(&cfg.Search)
		indexer = client
		searchSyncJob = jobs.NewSearchSyncJob(outboxRepo, modRepo, catalogRepo, client, slog.Default())
		searchSyncJob.Start(context.Background(), cfg.Search.SyncInterval)
	} else {
		slog.Info("search engine disabled, search falls back to SQL matching")
	}

	github := auth.NewGitHubClient(&cfg.Auth.GitHub)

	modHandlers := mods.NewHandler(modRepo, catalogRepo, coordinator, indexer, blobStore, queryCache, cfg.Registry.MaxPackageSize)
	userHandlers := users.NewHandler(userRepo, modRepo, github, issuer)

	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	uploadRateLimiter := middleware.NewRateLimiter(middleware.UploadRateLimitConfig())

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, blobStore))
	router.GET("/version", versionHandler())

	// CDN endpoints: public, rate limited at the general tier
	cdn := router.Group("/cdn")
	cdn.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	{
		cdn.GET("/:ref", modHandlers.Download)
		cdn.GET("/:ref/:type", modHandlers.Download)
	}

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoint (rate limited against brute force)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/github", userHandlers.Login)
		}

		// Public catalog reads. Optional auth populates the user context so
		// responses can include caller-specific fields when a token is present.
		publicGroup := apiV1.Group("")
		publicGroup.Use(middleware.OptionalAuthMiddleware(issuer, userRepo))
		publicGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			publicGroup.GET("/mods", modHandlers.ListMods)
			publicGroup.GET("/mods/search", modHandlers.SearchMods)
			publicGroup.GET("/mods/:ref", modHandlers.GetMod)
			publicGroup.GET("/mods/:ref/versions", modHandlers.ListVersions)
			publicGroup.GET("/categories", modHandlers.ListCategories)
			publicGroup.GET("/game-versions", modHandlers.ListGameVersions)
			publicGroup.GET("/users", userHandlers.ListUsers)
			publicGroup.GET("/users/:id", userHandlers.GetUser)
		}

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(issuer, userRepo))
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			authenticatedGroup.GET("/auth/me",
				middleware.RequirePermission(auth.PermViewSelf),
				userHandlers.Me)
			authenticatedGroup.PATCH("/users/me",
				middleware.RequirePermission(auth.PermEditSelf),
				userHandlers.UpdateMe)

			authenticatedGroup.POST("/mods",
				middleware.RateLimitMiddleware(uploadRateLimiter),
				middleware.RequirePermission(auth.PermCreateMod),
				modHandlers.Upload)
		}
	}

	bg := &BackgroundServices{
		searchSyncJob: searchSyncJob,
		queryCache:    queryCache,
		rateLimiters:  []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, uploadRateLimiter},
	}

	return router, bg, nil
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a Kubernetes readiness gate fails when uploads/downloads would error.
func readinessHandler(db *sql.DB, blobStore storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe the storage backend with a known-absent sentinel path.
		// Exists() exercises authentication and network connectivity without
		// creating any state.
		if _, err := blobStore.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.Any("request_id", requestID),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, compression, authentication, idempotency and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/auth"
	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/config"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/http/handlers"
	"github.com/tbourn/go-sos-backend/internal/http/middleware"
	"github.com/tbourn/go-sos-backend/internal/repo"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

// defaultBodyLimit caps JSON bodies; audio uploads get the recording limit.
const defaultBodyLimit = 1 << 20

// App carries the backing stores the routes are built on.
type App struct {
	DB       *gorm.DB
	Blobs    blob.Store
	Profiles services.ProfileStore
	Contacts services.ContactStore
	Issuer   *auth.Issuer
	Sessions *services.SessionService
}

// idempotencyShim adapts the repository free functions to
// handlers.IdempotencyStore and middleware.IdempotencyLookup.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Get proxies repo.GetIdempotency.
func (s idempotencyShim) Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
}

// Put proxies repo.CreateIdempotency. A concurrent duplicate already holds
// the outcome, so it is not an error.
func (s idempotencyShim) Put(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// exists is the middleware.IdempotencyLookup view of the store. Lookup
// errors count as a miss so the request runs normally.
func (s idempotencyShim) exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	rec, err := s.Get(ctx, userID, scope, key, now)
	if err != nil || rec == nil {
		return false, nil
	}
	return true, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//
// API group: Auth, then the idempotency validator (so replays can bypass),
// then the rate limiter.
func RegisterRoutes(r *gin.Engine, cfg config.Config, app App) {
	r.HandleMethodNotAllowed = true

	if err := validate.RegisterBindings(); err != nil {
		log.Error().Err(err).Msg("custom binding tags not registered")
	}

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	wsPath := joinPath(apiBase, "/session/ws")

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.AccessLog(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit; raw audio may be as large as a whole recording
	r.Use(limitBody(defaultBodyLimit, map[string]int64{
		joinPath(apiBase, "/session/audio"): max(cfg.Recording.MaxBytes, defaultBodyLimit),
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:        cfg.Security.EnableHSTS,
		HSTSMaxAge:        cfg.Security.HSTSMaxAge,
		NoStore:           true,
		PermissionsPolicy: middleware.DefaultPermissionsPolicy,
	}))

	// Compression; the websocket and the Prometheus scrape stay raw.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", wsPath})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Local blob backend: recordings are fetchable under the public base URL.
	if cfg.Blob.Backend == "local" && cfg.Blob.LocalDir != "" {
		r.Static("/blobs", cfg.Blob.LocalDir)
	}

	// Dependency injection: services ← stores
	idem := idempotencyShim{db: app.DB, ttl: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Sessions:    app.Sessions,
		Recordings:  &services.RecordingService{Store: app.Blobs},
		Calls:       &services.CallService{DB: app.DB},
		Profiles:    &services.ProfileService{Store: app.Profiles},
		Contacts:    &services.ContactService{Store: app.Contacts},
		Dispatch:    &services.DispatchService{Contacts: app.Contacts, Log: log.Logger},
		Idempotency: idem,
		WSOrigins:   cfg.CORS.AllowedOrigins,
	})

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, apiBase)
	api.Use(
		middleware.Auth(middleware.AuthOptions{Issuer: app.Issuer, Required: cfg.Auth.Required}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.exists),
		rl.Handler(),
	)
	{
		// Recording session
		api.GET("/session", h.GetSession)
		api.DELETE("/session", h.ResetSession)
		api.POST("/session/start", h.StartSession)
		api.PUT("/session/audio", h.AppendAudio)
		api.POST("/session/stop", h.StopSession)
		api.GET("/session/ws", h.SessionStream)

		// Recordings library
		api.GET("/recordings", h.ListRecordings)
		api.GET("/recordings/:name/url", h.RecordingURL)
		api.DELETE("/recordings/:name", h.DeleteRecording)

		// Call history
		api.GET("/calls", h.ListCalls)

		// Profile
		api.GET("/profile", h.GetProfile)
		api.POST("/profile", h.RegisterProfile)
		api.PATCH("/profile", h.UpdateProfile)

		// Emergency contacts
		api.GET("/contacts", h.ListContacts)
		api.POST("/contacts", h.AddContact)
		api.DELETE("/contacts", h.ClearContacts)
		api.DELETE("/contacts/:index", h.RemoveContact)

		// Dispatch and directory
		api.POST("/dispatch", h.DispatchLocation)
		api.GET("/emergency-numbers", h.EmergencyNumbers)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader, or to the per-route limit keyed by the
// matched route template. Requests exceeding the cap will cause downstream
// body reads to error.
func limitBody(maxBytes int64, perRoute map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := perRoute[c.FullPath()]; ok {
			limit = n
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends a route to the API base path.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}

// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware and route handlers. It centralizes cross-cutting
// concerns: tracing, correlation IDs, logging, panic recovery, metrics,
// compression, rate limiting, CORS and security headers.
//
// Middleware ordering is safety-first: RequestID before logging, logging
// before recovery, so every panic and error is logged with its correlation
// id.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sushiaki/sora-backend/internal/config"
	"github.com/sushiaki/sora-backend/internal/http/handlers"
	"github.com/sushiaki/sora-backend/internal/http/middleware"
	"github.com/sushiaki/sora-backend/internal/services"
	"github.com/sushiaki/sora-backend/internal/ws"
)

// Deps carries the already-wired application services the router mounts.
type Deps struct {
	Conversations *services.ConversationService
	Settings      *services.SettingsService
	Status        *services.StatusService
	Hub           *ws.Hub
}

// RegisterRoutes attaches all middleware and endpoints to the given engine.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs, request-scoped logger
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics and /metrics endpoint
//  7. Gzip (websocket and metrics excluded)
//  8. Rate limiter per client IP
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsPath := cfg.APIBasePath + "/ws"
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", wsPath})))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Conversations, deps.Settings, deps.Status)
	wsh := handlers.NewWSHandler(deps.Hub)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Bridge webhooks
		api.POST("/webhook/message", h.ReceiveMessage)
		api.POST("/webhook/status", h.ReceiveStatus)

		// Dashboard
		api.GET("/status", h.GetStatus)
		api.GET("/config", h.GetConfig)
		api.POST("/config", h.UpdateConfig)
		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:chat_id", h.GetConversation)
		api.DELETE("/conversations/:chat_id", h.DeleteConversation)
		api.DELETE("/conversations", h.ClearConversations)
		api.POST("/takeover/:chat_id", h.Takeover)
		api.POST("/release/:chat_id", h.Release)
		api.POST("/send-message", h.SendMessage)
		api.POST("/test-provider", h.TestProvider)

		// Realtime
		api.GET("/ws", wsh.Serve)
	}
}

// limitBody caps the request body size for all endpoints; reads beyond the
// cap error out downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
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

// Package gin exposes tipping sessions to the browser over a gin HTTP API
// and a websocket event stream.
package gin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tips "github.com/attentionrush/tips"
	"github.com/attentionrush/tips/pkg/metrics"
	signersevm "github.com/attentionrush/tips/signers/evm"
)

// WalletConnector resolves the paying account when a client does not
// name one
type WalletConnector interface {
	Connect(ctx context.Context, domain string, interactive bool) (signersevm.Account, error)
}

// Deps are the collaborators of the API
type Deps struct {
	// Ctx bounds every submission; it must outlive individual requests
	Ctx context.Context

	Registry      *tips.Registry
	Transferrer   tips.Transferrer
	SessionConfig tips.SessionConfig

	// Feed is optional; without it /api/feed answers 503
	Feed tips.FeedSource

	// Wallet and WalletDomain are optional
	Wallet       WalletConnector
	WalletDomain string

	// Metrics and Gatherer are optional
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// RateLimiter guards mutations when set
	RateLimiter *RateLimiter

	// Hub carries session events; a private hub is created when nil
	Hub *Hub

	Logger *slog.Logger
}

// API holds the handler state
type API struct {
	deps Deps
	hub  *Hub
}

// NewRouter builds the gin engine serving the API
func NewRouter(deps Deps) *gin.Engine {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Registry == nil {
		deps.Registry = tips.NewRegistry()
	}
	if deps.SessionConfig == (tips.SessionConfig{}) {
		deps.SessionConfig = tips.DefaultSessionConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Hub == nil {
		deps.Hub = NewHub()
	}

	api := &API{deps: deps, hub: deps.Hub}

	r := gin.New()
	r.Use(gin.Recovery(), api.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": deps.Registry.Len()})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	group := r.Group("/api")
	group.GET("/feed", api.getFeed)
	group.GET("/sessions/:id", api.getSession)
	group.GET("/sessions/:id/events", api.streamEvents)

	mutations := group.Group("")
	if deps.RateLimiter != nil {
		mutations.Use(deps.RateLimiter.Middleware())
	}
	mutations.POST("/sessions", api.createSession)
	mutations.DELETE("/sessions/:id", api.deleteSession)
	mutations.POST("/sessions/:id/visibility", api.reportVisibility)
	mutations.DELETE("/sessions/:id/visibility/:hash", api.releaseVisibility)
	mutations.PUT("/sessions/:id/selection", api.setSelection)
	mutations.POST("/sessions/:id/flush", api.flush)

	return r
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		a.deps.Logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
		)
	}
}

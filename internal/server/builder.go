// Package server assembles the HTTP surface: proxy routes, health probe,
// metrics, and the admin endpoints.
package server

import (
	"context"
	"net/http"

	"ai-orchestrator-go/internal/config"
	"ai-orchestrator-go/internal/lro"
	"ai-orchestrator-go/internal/middleware"
	"ai-orchestrator-go/internal/proxy"
	"ai-orchestrator-go/internal/rotator"
	"ai-orchestrator-go/internal/stats"
	"ai-orchestrator-go/internal/token"

	"github.com/gin-gonic/gin"
)

// Pinger is the health probe's view of the database. Nil when telemetry
// runs without one.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App bundles the request-path collaborators handed to every handler.
type App struct {
	Cfg     *config.Config
	Gateway *proxy.Gateway
	Gemini  *rotator.Gemini
	Vertex  *rotator.Vertex
	Tokens  *token.Cacher
	LRO     lro.Cache
	Stats   *stats.Service
	Auth    *Authenticator
	DB      Pinger
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(app *App) *gin.Engine {
	if !app.Cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(app.Cfg.Security.CORSOrigins))

	r.GET("/health", app.handleHealth)
	r.GET("/metrics", middleware.MetricsHandler)

	admin := r.Group("/admin")
	admin.POST("/login", app.handleLogin)
	authed := admin.Group("", app.requireSession)
	authed.POST("/logout", app.handleLogout)
	authed.POST("/reload", app.handleReload)
	authed.GET("/stats", app.handleStats)

	guarded := r.Group("", middleware.IPAllowList(&app.Cfg.Security))
	guarded.Any("/v1/*path", app.Gateway.Handle)
	guarded.Any("/v1beta/*path", app.Gateway.Handle)

	return r
}

// handleHealth reports database reachability and pool sizes. healthy needs
// the DB and at least one credential; degraded means DB only.
func (a *App) handleHealth(c *gin.Context) {
	dbOK := false
	if a.DB != nil {
		dbOK = a.DB.Ping(c.Request.Context()) == nil
	}
	geminiKeys := a.Gemini.Count()
	vertexCreds := a.Vertex.Count()

	status := "unhealthy"
	code := http.StatusServiceUnavailable
	switch {
	case dbOK && geminiKeys+vertexCreds > 0:
		status = "healthy"
		code = http.StatusOK
	case dbOK:
		status = "degraded"
		code = http.StatusOK
	}

	c.JSON(code, gin.H{
		"status":             status,
		"database":           dbOK,
		"gemini_keys":        geminiKeys,
		"vertex_credentials": vertexCreds,
	})
}

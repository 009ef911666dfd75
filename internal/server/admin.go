package server

import (
	"net/http"
	"strings"
	"time"

	"ai-orchestrator-go/internal/monitoring"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const sessionCookie = "session"

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *App) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	switch res := a.Auth.Login(req.Username, req.Password).(type) {
	case LoginOK:
		c.SetCookie(sessionCookie, res.Token, int(sessionTTL.Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"token": res.Token})
	case LoginInvalid:
		log.Warnf("Failed admin login for %q", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case LoginLocked:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "account locked",
			"locked_until": res.Until.UTC().Format(time.RFC3339),
		})
	case LoginNotConfigured:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin credentials not configured"})
	}
}

func (a *App) handleLogout(c *gin.Context) {
	a.Auth.Logout(sessionToken(c))
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// requireSession guards the admin surface with the session cookie or a
// bearer token.
func (a *App) requireSession(c *gin.Context) {
	if !a.Auth.ValidSession(sessionToken(c)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Next()
}

func sessionToken(c *gin.Context) string {
	if tok, err := c.Cookie(sessionCookie); err == nil && tok != "" {
		return tok
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// handleReload rebuilds both credential pools from disk and drops cached
// tokens for projects that may have disappeared.
func (a *App) handleReload(c *gin.Context) {
	monitoring.CredentialReloads.WithLabelValues("admin").Inc()

	if err := a.Gemini.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := a.Vertex.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	a.Tokens.Reset()

	c.JSON(http.StatusOK, gin.H{
		"gemini_keys":        a.Gemini.Count(),
		"vertex_credentials": a.Vertex.Count(),
	})
}

func (a *App) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.Stats.Snapshot())
}

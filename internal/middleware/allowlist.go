package middleware

import (
	"net"
	"net/http"
	"strings"

	"ai-orchestrator-go/internal/config"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const deniedBody = "Access denied: Your IP address is not whitelisted."

// ClientIPKey is the context key under which the resolved client IP is stored
// for downstream handlers and telemetry.
const ClientIPKey = "client_ip"

// IPAllowList rejects clients whose resolved IP is not in the configured
// list. The literal ["*"] disables the check but still resolves and stores
// the client IP.
func IPAllowList(cfg *config.SecurityConfig) gin.HandlerFunc {
	passthrough := len(cfg.AllowedClientIPs) == 1 && cfg.AllowedClientIPs[0] == "*"
	allowed := make(map[string]bool, len(cfg.AllowedClientIPs))
	for _, ip := range cfg.AllowedClientIPs {
		allowed[ip] = true
	}

	return func(c *gin.Context) {
		ip := resolveClientIP(c, cfg.TrustProxyHeaders)
		c.Set(ClientIPKey, ip)

		if passthrough || allowed[ip] {
			c.Next()
			return
		}

		log.Warnf("Unauthorized access attempt from IP: %s", ip)
		c.String(http.StatusForbidden, deniedBody)
		c.Abort()
	}
}

// resolveClientIP picks the client address. With trusted proxy headers the
// first X-Forwarded-For entry wins, then X-Real-IP, then the socket peer.
func resolveClientIP(c *gin.Context, trustProxy bool) string {
	if trustProxy {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if rip := strings.TrimSpace(c.GetHeader("X-Real-IP")); rip != "" {
			return rip
		}
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

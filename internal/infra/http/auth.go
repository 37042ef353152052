package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"vizpilot/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader     = "x-api-key"
	callerContextKey = "caller"
	anonymousCaller  = "anonymous"
)

// requireAPIKey checks x-api-key against the configured keys. With MOCK_AUTH the
// check is skipped and the caller is keyed by whatever header was sent.
func (s *Server) requireAPIKey(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
	if s.cfg.MockAuth {
		c.Set(callerContextKey, callerID(key))
		c.Next()
		return
	}
	if key == "" || !s.keyAllowed(key) {
		writeErrorCode(c, http.StatusUnauthorized, domain.CodeUnauthorized, "missing or invalid API key")
		c.Abort()
		return
	}
	c.Set(callerContextKey, callerID(key))
	c.Next()
}

func (s *Server) keyAllowed(key string) bool {
	allowed := false
	for k := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			allowed = true
		}
	}
	return allowed
}

// callerID hashes the key so raw keys never reach limiter storage.
func callerID(key string) string {
	if key == "" {
		return anonymousCaller
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func getCaller(c *gin.Context) string {
	if v, ok := c.Get(callerContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return anonymousCaller
}

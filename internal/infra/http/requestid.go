package http

import (
	"net/http"

	"vizpilot/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	requestIDHeader     = "X-Request-Id"
	requestIDContextKey = "request_id"
)

// assignRequestID gives every request a server-side correlation id. Client
// supplied ids are ignored because the id also keys the stored record.
func (s *Server) assignRequestID(c *gin.Context) {
	id := s.newID()
	c.Set(requestIDContextKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func requestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.log.WithField("request_id", requestIDFrom(c)).WithField("panic", recovered).Error("handler panicked")
	writeErrorCode(c, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
	c.Abort()
}

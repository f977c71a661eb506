package server

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"arbiter/internal/packet"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/contextkey"
)

const (
	ctxClaimsKey = "auth_claims"
)

// requestID stamps every request with an ID carried through logging.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), contextkey.RequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// authRequired validates the bearer token and stashes the claims.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			respondError(c, appErr.Newf(appErr.Unauthorized, "missing bearer token"))
			c.Abort()
			return
		}
		claims, err := s.auth.Verify(token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if s.isBanned(claims.Username) {
			respondError(c, appErr.Newf(appErr.Forbidden, "account is banned"))
			c.Abort()
			return
		}
		c.Set(ctxClaimsKey, claims)
		ctx := context.WithValue(c.Request.Context(), contextkey.Username, claims.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// adminRequired allows only packet-provisioned admin accounts.
func (s *Server) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := s.claims(c)
		if !ok || claims.Role != packet.RoleAdmin {
			respondError(c, appErr.Newf(appErr.Forbidden, "admin role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Browsers cannot set headers on websocket upgrades.
	return c.Query("token")
}

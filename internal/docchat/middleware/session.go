// Package middleware provides gin middleware for the document chat API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionHeader is the request header carrying the session identifier.
const SessionHeader = "x-session-id"

// sessionKey is the gin context key the session ID is stored under.
const sessionKey = "docchat-session-id"

// RequireSession rejects requests without a non-empty session header.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Missing x-session-id header",
			})
			return
		}
		c.Set(sessionKey, sessionID)
		c.Next()
	}
}

// SessionID returns the session identifier stored by RequireSession.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

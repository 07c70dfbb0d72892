package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	wsProtocolPrefix = "gaze-token."
)

// BearerMiddleware validates the Authorization: Bearer <token> header
// against token. If token is empty, authentication is disabled. /health
// is expected to be registered outside this middleware's route group.
func BearerMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := bearerFromHeader(c.GetHeader("Authorization"))
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Next()
	}
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// WSToken extracts the bearer token from a WebSocket upgrade request:
// either the Sec-WebSocket-Protocol header (gaze-token.<token>, the
// sub-protocol convention since browsers can't set arbitrary headers
// on a WS handshake) or a ?token= query parameter fallback.
func WSToken(r *http.Request) string {
	for _, proto := range strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",") {
		proto = strings.TrimSpace(proto)
		if strings.HasPrefix(proto, wsProtocolPrefix) {
			return strings.TrimPrefix(proto, wsProtocolPrefix)
		}
	}
	return r.URL.Query().Get("token")
}

// ValidWSToken reports whether provided matches token in constant
// time, or authentication is disabled (token == "").
func ValidWSToken(token, provided string) bool {
	if token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}

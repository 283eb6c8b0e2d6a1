package handler

import (
	"net/http"
	"strings"

	"civictrack/backend/internal/auth"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/followers"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// bearerToken reads the token from the Authorization header, or from the
// "token" query parameter for browser WebSocket clients.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return c.Query("token")
}

func (h *Handler) identify(c *gin.Context) (followers.Identity, bool) {
	raw := bearerToken(c)
	if raw == "" {
		return followers.Identity{}, false
	}
	claims, err := auth.ParseToken(h.JWTSecret, raw)
	if err != nil {
		return followers.Identity{}, false
	}
	return followers.Identity{UserID: claims.UserID, Role: claims.Role}, true
}

// RequireAuth rejects requests without a valid token.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := h.identify(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "authorization token missing or invalid"})
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present.
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if who, ok := h.identify(c); ok {
			c.Set(identityKey, who)
		}
		c.Next()
	}
}

// RequireStaff must run after RequireAuth.
func (h *Handler) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, _ := identityFrom(c)
		if !who.Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "staff role required"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (followers.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return followers.Identity{}, false
	}
	who, ok := v.(followers.Identity)
	return who, ok
}

// GetLinkToken issues a short-lived token for the Telegram /start command.
func (h *Handler) GetLinkToken(c *gin.Context) {
	who, _ := identityFrom(c)
	token, err := auth.IssueLinkToken(h.JWTSecret, who.UserID, config.LinkTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": int(config.LinkTokenTTL.Seconds())})
}

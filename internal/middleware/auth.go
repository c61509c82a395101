package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// gin context keys set by Auth
const (
	UserIDKey      = "uid"
	CurrentUserKey = "current_user"
)

// UserLoader resolves a token subject to its live profile record.
type UserLoader interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRevoker tears down every session of one user.
type SessionRevoker interface {
	SignOut(ctx context.Context, userID string) error
}

// Auth verifies the bearer token and loads the caller's profile fresh
// from the store, so a role change or deletion takes effect on the next
// request rather than at token expiry. A valid token whose subject has
// no record is an integrity error: the sessions are revoked on the spot
// and the request rejected.
func Auth(secret string, users UserLoader, revoker SessionRevoker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		u, err := users.UserByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Str("user_id", claims.UserID).Msg("token subject has no profile record, revoking sessions")
			if err := revoker.SignOut(c.Request.Context(), claims.UserID); err != nil {
				log.Warn().Err(err).Msg("forced revoke failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no_profile"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		c.Set(UserIDKey, u.ID)
		c.Set(CurrentUserKey, u)
		c.Next()
	}
}

// RequireRoles gates a route group on the caller's current role, as
// loaded by Auth. Pending and unknown roles never pass.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	roleSet := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		val, ok := c.Get(CurrentUserKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		u, ok := val.(*model.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, ok := roleSet[u.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CurrentUser pulls the profile Auth stored on the context.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	val, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := val.(*model.User)
	return u, ok
}

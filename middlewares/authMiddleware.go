package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"civicsync/access"
	"civicsync/models"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
)

const (
	// AuthCookie is set on login as an alternative to the Authorization header.
	AuthCookie = "auth_token"

	actorKey  = "actor"
	userIDKey = "user_id"
)

// ActorResolver turns an authenticated account id into an Actor.
type ActorResolver interface {
	Actor(ctx context.Context, accountID string) (access.Actor, error)
}

// AuthMiddleware verifies the bearer token (or auth cookie) and stores the
// resolved actor on the request.
func AuthMiddleware(secret string, accounts ActorResolver, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, models.KindAuthorization, "No authorization token provided")
			return
		}

		userID, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			logger.Debug("token validation failed", "error", err)
			abort(c, http.StatusUnauthorized, models.KindAuthorization, "Invalid authorization token")
			return
		}

		actor, err := accounts.Actor(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, models.ErrUpstream) {
				logger.Error("resolve actor", "user_id", userID, "error", err)
				abort(c, http.StatusBadGateway, models.KindUpstream, "account lookup failed")
				return
			}
			abort(c, http.StatusUnauthorized, models.KindAuthorization, models.ReasonOf(err))
			return
		}

		c.Set(userIDKey, userID)
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by AuthMiddleware.
func ActorFrom(c *gin.Context) (access.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil, false
	}
	actor, ok := v.(access.Actor)
	return actor, ok
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

func abort(c *gin.Context, status int, kind models.ErrorKind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}

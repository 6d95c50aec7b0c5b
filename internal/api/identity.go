package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

const (
	userIDKey   = "user_id"
	identityKey = "identity"
)

// identityMiddleware resolves the caller from the headers set by the auth
// proxy. Requests without a user id never reach a handler.
func identityMiddleware(users service.UserDirectory, auth config.AuthConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(auth.UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		identity, err := users.Resolve(c.Request.Context(), userID, c.GetHeader(auth.RoleHeader))
		if err != nil {
			if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve identity")
			}
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
			return
		}

		c.Set(userIDKey, identity.UserID)
		c.Set(identityKey, identity)
		c.Next()
	}
}

// caller returns the identity resolved by identityMiddleware
func caller(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Identity{}
}

// respondError writes err with the status of its taxonomy kind. Internal
// errors are logged and reported generically.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("user_id", c.GetString(userIDKey)).
			Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

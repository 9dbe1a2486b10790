package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/osa-scan/dresscode-api/internal/middleware"
	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/service"
)

// currentClaims extracts the authenticated JWT claims from the gin context.
func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// currentActor maps the authenticated claims to a service actor.
func currentActor(c *gin.Context) service.Actor {
	claims, ok := currentClaims(c)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}
}

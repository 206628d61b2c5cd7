package handlers

import (
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/geocoder89/medportal/internal/utils"
	"github.com/gin-gonic/gin"
)

// identity returns the caller or writes a 401.
func identity(ctx *gin.Context) (middlewares.Identity, bool) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return middlewares.Identity{}, false
	}
	return id, true
}

// pathID reads a UUID path parameter in canonical form or writes a 400.
func pathID(ctx *gin.Context, name string) (string, bool) {
	id, ok := utils.CanonicalUUID(ctx.Param(name))
	if !ok {
		RespondBadRequest(ctx, name+" must be a valid UUID", nil)
		return "", false
	}
	return id, true
}

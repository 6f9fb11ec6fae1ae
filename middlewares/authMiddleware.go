package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

const bearerPrefix = "Bearer "

// AuthMiddleware requires a valid bearer token for a user that still exists.
// The role is read from the database so demoted users lose admin rights
// before their token expires.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) {
			utils.RespondError(c, utils.Unauthorized("access token is required"))
			return
		}

		claims, err := utils.JwtValidate(strings.TrimSpace(auth[len(bearerPrefix):]))
		if err != nil {
			utils.RespondError(c, utils.Unauthorized("invalid or expired token"))
			return
		}

		user, err := models.GetUser(c.Request.Context(), claims.ID)
		if err != nil {
			if utils.IsKind(err, utils.KindNotFound) {
				utils.RespondError(c, utils.Unauthorized("invalid or expired token"))
				return
			}
			utils.RespondError(c, err)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth[len(bearerPrefix):])
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserEmailInContext(ctx, user.Email)
		ctx = utils.SetUserRoleInContext(ctx, int(user.Role))
		ctx = utils.SetIsAdminInContext(ctx, user.IsAdmin())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			utils.RespondError(c, utils.Unauthorized("unauthorized access"))
			return
		}
		if !IsAdmin(c) {
			utils.RespondError(c, utils.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

func IsAdmin(c *gin.Context) bool {
	admin, _ := utils.GetIsAdminFromContext(c.Request.Context())
	return admin
}

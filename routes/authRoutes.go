package routes

import (
	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(api *gin.RouterGroup, h Handlers) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/activate", h.Auth.Activate)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", h.RequireAuth, h.Auth.Me)
	}
}

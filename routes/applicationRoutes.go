package routes

import (
	"github.com/gin-gonic/gin"
)

// ApplicationRoutes sets up onboarding and the admin review routes
func ApplicationRoutes(api *gin.RouterGroup, h Handlers) {
	api.POST("/applications", h.Applications.Submit)

	admin := api.Group("/admin", h.RequireAuth)
	{
		admin.GET("/applications", h.Applications.List)
		admin.GET("/applications/:id", h.Applications.Get)
		admin.POST("/applications/:id/approve", h.Applications.Approve)
		admin.POST("/applications/:id/reject", h.Applications.Reject)
		admin.PATCH("/accounts/:id/status", h.Applications.SetAccountStatus)
	}
}

// UploadRoutes sets up media and document uploads when a blob store is configured
func UploadRoutes(api *gin.RouterGroup, h Handlers) {
	if h.Uploads == nil {
		return
	}
	uploads := api.Group("/uploads")
	{
		uploads.POST("/media", h.RequireAuth, h.Uploads.UploadMedia)
		uploads.POST("/documents", h.Uploads.UploadDocument)
	}
}

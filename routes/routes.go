package routes

import (
	"net/http"

	"civicsync/controllers"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the controllers and the middleware the routes need.
// Uploads is nil when no blob backend is configured; IssueLimit may be nil.
type Handlers struct {
	Auth         *controllers.AuthController
	Issues       *controllers.IssueController
	Triage       *controllers.TriageController
	WorkOrders   *controllers.WorkOrderController
	Applications *controllers.ApplicationController
	Uploads      *controllers.UploadController

	RequireAuth gin.HandlerFunc
	IssueLimit  gin.HandlerFunc
}

// Register mounts every route group on r.
func Register(r *gin.Engine, h Handlers) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	AuthRoutes(api, h)
	IssueRoutes(api, h)
	MLARoutes(api, h)
	WorkOrderRoutes(api, h)
	ApplicationRoutes(api, h)
	UploadRoutes(api, h)
}

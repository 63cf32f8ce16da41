package routes

import (
	"github.com/gin-gonic/gin"
)

// MLARoutes sets up the MLA triage dashboard
func MLARoutes(api *gin.RouterGroup, h Handlers) {
	mla := api.Group("/mla", h.RequireAuth)
	{
		mla.GET("/issues", h.Triage.ListIssues)
		mla.POST("/issues/:id/responses", h.Triage.Respond)
		mla.POST("/issues/:id/work-orders", h.Triage.Delegate)
		mla.GET("/work-orders", h.Triage.ListWorkOrders)
		mla.PATCH("/work-orders/:id/instructions", h.Triage.UpdateInstructions)
	}
}

// WorkOrderRoutes sets up the department official routes
func WorkOrderRoutes(api *gin.RouterGroup, h Handlers) {
	wo := api.Group("/work-orders", h.RequireAuth)
	{
		wo.GET("", h.WorkOrders.ListWorkOrders)
		wo.GET("/:id", h.WorkOrders.GetWorkOrder)
		wo.GET("/:id/history", h.WorkOrders.History)
		wo.POST("/:id/transitions", h.WorkOrders.Transition)
	}
}

package routes

import (
	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the citizen issue routes
func IssueRoutes(api *gin.RouterGroup, h Handlers) {
	issue := api.Group("/issues", h.RequireAuth)
	{
		create := []gin.HandlerFunc{h.Issues.CreateIssue}
		if h.IssueLimit != nil {
			create = append([]gin.HandlerFunc{h.IssueLimit}, create...)
		}
		issue.POST("", create...)
		issue.GET("", h.Issues.ListIssues)
		issue.GET("/mine", h.Issues.ListMyIssues)
		issue.GET("/categories", h.Issues.ListCategories)
		issue.GET("/:id", h.Issues.GetIssue)
		issue.DELETE("/:id", h.Issues.DeleteIssue)
		issue.POST("/:id/like", h.Issues.ToggleLike)
		issue.POST("/:id/resolve", h.Issues.MarkResolved)
		issue.GET("/:id/responses", h.Issues.ListResponses)
	}
}

package controllers

import (
	"net/http"

	"civicsync/models"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	Issues *services.IssueRegistry
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var input services.IssueInput
	if !bindJSON(c, &input) {
		return
	}
	issue, err := ic.Issues.Submit(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// ListIssues lists a district's issues, newest first.
func (ic *IssueController) ListIssues(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	issues, err := ic.Issues.ListByJurisdiction(c.Request.Context(), c.Query("state"), c.Query("district"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func (ic *IssueController) ListMyIssues(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	issues, err := ic.Issues.ListByReporter(c.Request.Context(), actor, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// ListCategories returns the categories allowed for ?kind=.
func (ic *IssueController) ListCategories(c *gin.Context) {
	categories, err := ic.Issues.Categories(models.IssueKind(c.Query("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": c.Query("kind"), "categories": categories})
}

func (ic *IssueController) GetIssue(c *gin.Context) {
	issue, err := ic.Issues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// ToggleLike likes the issue, or removes the caller's like.
func (ic *IssueController) ToggleLike(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	issue, err := ic.Issues.ToggleLike(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": issue.LikedByActor(actor.ActorID()), "issue": issue})
}

func (ic *IssueController) MarkResolved(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	issue, err := ic.Issues.MarkResolved(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (ic *IssueController) DeleteIssue(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := ic.Issues.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

func (ic *IssueController) ListResponses(c *gin.Context) {
	responses, err := ic.Issues.ListResponses(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

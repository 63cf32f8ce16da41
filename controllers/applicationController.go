package controllers

import (
	"net/http"

	"civicsync/models"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

// ApplicationController handles official onboarding and the admin review queue.
type ApplicationController struct {
	Applications *services.ApplicationService
	Accounts     *services.AccountService
}

// Submit is public: applicants have no account yet.
func (ac *ApplicationController) Submit(c *gin.Context) {
	var input services.ApplicationInput
	if !bindJSON(c, &input) {
		return
	}
	app, err := ac.Applications.Submit(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (ac *ApplicationController) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	status := models.ApplicationStatus(c.Query("status"))
	apps, err := ac.Applications.List(c.Request.Context(), actor, status, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (ac *ApplicationController) Get(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	app, err := ac.Applications.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Approve provisions the account. The activation token is returned once.
func (ac *ApplicationController) Approve(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var body versionBody
	if !bindJSON(c, &body) {
		return
	}
	approval, err := ac.Applications.Approve(c.Request.Context(), actor, c.Param("id"), body.Version)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

func (ac *ApplicationController) Reject(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var body struct {
		versionBody
		Notes string `json:"notes"`
	}
	if !bindJSON(c, &body) {
		return
	}
	app, err := ac.Applications.Reject(c.Request.Context(), actor, c.Param("id"), body.Version, body.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// SetAccountStatus activates or deactivates an account.
func (ac *ApplicationController) SetAccountStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var body struct {
		Status models.AccountStatus `json:"status"`
	}
	if !bindJSON(c, &body) {
		return
	}
	acc, err := ac.Accounts.SetStatus(c.Request.Context(), actor, c.Param("id"), body.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

package controllers

import (
	"net/http"

	"civicsync/access"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

// TriageController serves the MLA dashboard.
type TriageController struct {
	Triage     *services.TriageService
	WorkOrders *services.WorkOrderEngine
}

func (tc *TriageController) ListIssues(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	issues, err := tc.Triage.ListForMLA(c.Request.Context(), actor, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func (tc *TriageController) Respond(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var input services.ResponseInput
	if !bindJSON(c, &input) {
		return
	}
	resp, err := tc.Triage.Respond(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Delegate turns an issue into a work order for a department.
func (tc *TriageController) Delegate(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var input services.Assignment
	if !bindJSON(c, &input) {
		return
	}
	wo, err := tc.Triage.Delegate(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (tc *TriageController) ListWorkOrders(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	mla, err := access.RequireMLA(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	orders, err := tc.WorkOrders.ListByMLA(c.Request.Context(), mla.ID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workOrders": orders})
}

func (tc *TriageController) UpdateInstructions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var body struct {
		versionBody
		Instructions string `json:"instructions"`
	}
	if !bindJSON(c, &body) {
		return
	}
	wo, err := tc.WorkOrders.UpdateInstructions(c.Request.Context(), actor, c.Param("id"), body.Version, body.Instructions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

package controllers

import (
	"net/http"

	"civicsync/access"
	"civicsync/models"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

// WorkOrderController serves department officials.
type WorkOrderController struct {
	WorkOrders *services.WorkOrderEngine
}

type transitionRequest struct {
	Status  models.WorkOrderStatus `json:"status"`
	Version int64                  `json:"version"`
	services.TransitionPayload
}

// ListWorkOrders lists the official's department queue.
func (wc *WorkOrderController) ListWorkOrders(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	official, err := access.RequireOfficial(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	orders, err := wc.WorkOrders.ListByDepartment(c.Request.Context(), official.Department, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workOrders": orders})
}

func (wc *WorkOrderController) GetWorkOrder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	wo, err := wc.WorkOrders.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (wc *WorkOrderController) History(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	events, err := wc.WorkOrders.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Transition moves the work order to the requested status.
func (wc *WorkOrderController) Transition(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	wo, err := wc.WorkOrders.Transition(c.Request.Context(), actor, c.Param("id"), req.Version, req.Status, req.TransitionPayload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

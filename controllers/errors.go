// Package controllers holds the gin handlers. Handlers only translate between
// HTTP and the services; every rule lives in the services.
package controllers

import (
	"net/http"
	"strconv"

	"civicsync/access"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidTransition, models.KindConflict:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

// respondError writes err as {"error", "kind"}. Upstream failures are
// attached to the context so the request logger records the cause.
func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	msg := models.ReasonOf(err)
	if kind == models.KindUpstream {
		_ = c.Error(err)
		msg = "upstream service failed"
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": msg, "kind": kind})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, models.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func mustActor(c *gin.Context) (access.Actor, bool) {
	actor, ok := middlewares.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "kind": models.KindAuthorization})
		return nil, false
	}
	return actor, true
}

// pageFrom reads ?limit=&skip=. Out of range values are clamped by the services.
func pageFrom(c *gin.Context) (services.Page, bool) {
	var page services.Page
	for name, dst := range map[string]*int64{"limit": &page.Limit, "skip": &page.Skip} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, models.Validationf("%s must be an integer", name))
			return services.Page{}, false
		}
		*dst = n
	}
	return page, true
}

type versionBody struct {
	Version int64 `json:"version"`
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/apperr"
)

// writeError maps the error taxonomy to HTTP statuses: validation errors
// are the caller's to fix (400), state conflicts carry their reason code
// (409), dependency errors ask for confirmation (409 with the summary),
// and anything naming a missing record is 404.
func writeError(c *gin.Context, err error) {
	var v *apperr.ValidationError
	if errors.As(err, &v) {
		c.JSON(http.StatusBadRequest, gin.H{"error": v.Msg, "field": v.Field})
		return
	}
	var sc *apperr.StateConflictError
	if errors.As(err, &sc) {
		c.JSON(http.StatusConflict, gin.H{"error": sc.Msg, "reason": string(sc.Reason)})
		return
	}
	var d *apperr.DependencyError
	if errors.As(err, &d) {
		c.JSON(http.StatusConflict, gin.H{
			"error":                 d.Error(),
			"requires_confirmation": true,
			"would_delete":          d.Summary,
		})
		return
	}
	if strings.Contains(err.Error(), "not found") {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// writeOK responds with the payload, attaching a warning field when a
// best-effort side effect failed after the core operation committed.
func writeOK(c *gin.Context, status int, payload gin.H, sideEffect error) {
	if sideEffect != nil {
		var se *apperr.SideEffectFailure
		if errors.As(sideEffect, &se) {
			payload["warning"] = se.Error()
		}
	}
	c.JSON(status, payload)
}

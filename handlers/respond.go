package handlers

import (
	"net/http"

	"clinicore/database/txn"
	"clinicore/services/billing"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps the billing core's error taxonomy onto HTTP.
// Conflict exhaustion gets 503 so the client knows a plain retry may
// succeed; validation and not-found mean nothing changed.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case billing.IsValidation(err):
		utils.JSONError(c, http.StatusBadRequest, "validation failed", err.Error())
	case billing.IsNotFound(err):
		utils.JSONError(c, http.StatusNotFound, "not found", err.Error())
	case txn.IsConflictExhausted(err):
		utils.JSONError(c, http.StatusServiceUnavailable, "write conflict, please retry", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}

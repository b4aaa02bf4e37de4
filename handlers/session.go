package handlers

import (
	"net/http"

	"clinicore/models"
	"clinicore/services/billing"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the session lifecycle endpoints.
type SessionHandler struct {
	Service billing.Service
	Logger  *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(svc billing.Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{Service: svc, Logger: logger}
}

// CompleteSession marks a session as done and advances the package.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	if err := h.Service.CompleteSession(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session completed"})
}

type cancelSessionRequest struct {
	ConfirmedAbsence bool `json:"confirmed_absence"`
}

// CancelSession cancels a session, snapshotting its financial state.
func (h *SessionHandler) CancelSession(c *gin.Context) {
	var req cancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.Service.CancelSession(c.Request.Context(), c.Param("id"), req.ConfirmedAbsence, actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session canceled"})
}

// RestoreSession undoes a cancellation from the captured snapshot.
func (h *SessionHandler) RestoreSession(c *gin.Context) {
	if err := h.Service.RestoreSession(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session restored"})
}

type updateSessionStatusRequest struct {
	Status models.SessionStatus `json:"status" binding:"required"`
}

// UpdateSessionStatus applies a lifecycle edit to a session.
func (h *SessionHandler) UpdateSessionStatus(c *gin.Context) {
	var req updateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.Service.UpdateSessionStatus(c.Request.Context(), c.Param("id"), req.Status, actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session updated"})
}

package handlers

import (
	"net/http"

	"clinicore/services/billing"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BillingHandler exposes the package and payment-distribution endpoints.
type BillingHandler struct {
	Service billing.Service
	Logger  *zap.Logger
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(svc billing.Service, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{Service: svc, Logger: logger}
}

type distributeRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Method string  `json:"method" binding:"required"`
}

// DistributePayment records a payment and distributes it across the
// package's outstanding sessions.
func (h *BillingHandler) DistributePayment(c *gin.Context) {
	packageID := c.Param("id")

	var req distributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.Service.Distribute(c.Request.Context(), packageID, req.Amount, req.Method, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	detail, err := h.Service.GetPackage(c.Request.Context(), packageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"distribution": result,
		"package":      detail,
	})
}

// GetPackage returns a package with sessions and payments populated.
func (h *BillingHandler) GetPackage(c *gin.Context) {
	detail, err := h.Service.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreatePackage sells a therapy plan, generating its sessions and
// appointments.
func (h *BillingHandler) CreatePackage(c *gin.Context) {
	var input billing.CreatePackageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	pkg, err := h.Service.CreatePackage(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

// CancelPackage cancels a non-finished package and its open sessions.
func (h *BillingHandler) CancelPackage(c *gin.Context) {
	if err := h.Service.CancelPackage(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "package canceled"})
}

// DeletePackage removes a package, cascading to sessions, appointments and
// projection records.
func (h *BillingHandler) DeletePackage(c *gin.Context) {
	if err := h.Service.DeletePackage(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "package deleted"})
}

// actorFrom reads the authenticated staff id set by the auth middleware.
func actorFrom(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return "system"
}

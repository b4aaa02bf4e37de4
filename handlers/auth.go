package handlers

import (
	"errors"
	"net/http"

	"clinicore/services/user"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler exposes staff login and registration.
type AuthHandler struct {
	Service user.Service
	Logger  *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc user.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Service: svc, Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	token, u, err := h.Service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			utils.JSONError(c, http.StatusUnauthorized, "authentication failed", "invalid email or password")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "authentication failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

type registerRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required"`
	Specialty string `json:"specialty"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	u, err := h.Service.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role, req.Specialty)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "registration failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, u)
}

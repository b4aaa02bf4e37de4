package handlers

import (
	"errors"
	"net/http"
	"time"

	patientRepo "clinicore/database/repository/patient"
	"clinicore/models"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PatientHandler exposes patient record CRUD.
type PatientHandler struct {
	Repo   patientRepo.Repository
	Logger *zap.Logger
}

// NewPatientHandler constructs a PatientHandler.
func NewPatientHandler(repo patientRepo.Repository, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{Repo: repo, Logger: logger}
}

type patientInput struct {
	Name             string `json:"name" binding:"required"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	BirthDate        string `json:"birth_date"`
	DefaultSpecialty string `json:"default_specialty"`
	Notes            string `json:"notes"`
}

func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var in patientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	now := time.Now().UTC()
	p := &models.Patient{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Phone:            in.Phone,
		Email:            in.Email,
		BirthDate:        in.BirthDate,
		DefaultSpecialty: in.DefaultSpecialty,
		Notes:            in.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Repo.Insert(c.Request.Context(), p); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to create patient", err.Error())
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PatientHandler) GetPatient(c *gin.Context) {
	p, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, patientRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "patient not found", c.Param("id"))
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to fetch patient", err.Error())
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) ListPatients(c *gin.Context) {
	patients, err := h.Repo.List(c.Request.Context())
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list patients", err.Error())
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	existing, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, patientRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "patient not found", c.Param("id"))
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to fetch patient", err.Error())
		return
	}

	var in patientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	existing.Name = in.Name
	existing.Phone = in.Phone
	existing.Email = in.Email
	existing.BirthDate = in.BirthDate
	existing.DefaultSpecialty = in.DefaultSpecialty
	existing.Notes = in.Notes
	existing.UpdatedAt = time.Now().UTC()

	if err := h.Repo.Update(c.Request.Context(), existing); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to update patient", err.Error())
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (h *PatientHandler) DeletePatient(c *gin.Context) {
	if err := h.Repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to delete patient", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "patient deleted"})
}

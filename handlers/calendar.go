package handlers

import (
	"net/http"
	"time"

	scheduleRepo "clinicore/database/repository/schedule"
	"clinicore/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CalendarHandler serves calendar and report reads. It consumes the
// schedule-event projection exclusively; source collections are never read
// here.
type CalendarHandler struct {
	Schedule scheduleRepo.Repository
	Logger   *zap.Logger
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(schedule scheduleRepo.Repository, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{Schedule: schedule, Logger: logger}
}

// ListEvents returns projected events in a date range, optionally filtered
// by doctor.
func (h *CalendarHandler) ListEvents(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		utils.JSONError(c, http.StatusBadRequest, "invalid range", "from and to query parameters are required")
		return
	}
	if _, err := time.Parse("2006-01-02", from); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid range", "from must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid range", "to must be YYYY-MM-DD")
		return
	}

	events, err := h.Schedule.ListRange(c.Request.Context(), c.Query("doctor_id"), from, to)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list schedule events", err.Error())
		return
	}
	c.JSON(http.StatusOK, events)
}

// ListUnpaid returns projected events with outstanding payment.
func (h *CalendarHandler) ListUnpaid(c *gin.Context) {
	events, err := h.Schedule.ListUnpaid(c.Request.Context(), c.Query("doctor_id"))
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list unpaid events", err.Error())
		return
	}
	c.JSON(http.StatusOK, events)
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"

	"github.com/gin-gonic/gin"
)

type SMOHandler struct {
	service SMOAPI
}

func NewSMOHandler(service SMOAPI) *SMOHandler {
	return &SMOHandler{service: service}
}

type registerRequest struct {
	VolunteerID string `json:"volunteerId" binding:"required"`
}

type attendanceRequest struct {
	VolunteerID string `json:"volunteerId" binding:"required"`
	Source      string `json:"source" binding:"required"`
}

// POST /api/smo/cycles/:id/register
func (h *SMOHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	result, err := h.service.Register(c.Request.Context(), c.Param("id"), req.VolunteerID)
	if err != nil {
		writeSMOError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// POST /api/smo/cycles/:id/attendance
func (h *SMOHandler) ConfirmAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	err := h.service.ConfirmAttendance(c.Request.Context(), c.Param("id"), req.VolunteerID, smo.AttendanceSource(req.Source))
	if err != nil {
		writeSMOError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func writeSMOError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, idb.ErrCycleNotFound), errors.Is(err, idb.ErrVolunteerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, smo.ErrNotEligible):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, smo.ErrRegistrationShut), errors.Is(err, smo.ErrNotRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, smo.ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amireyal5/calendar/internal/middleware"
	"github.com/amireyal5/calendar/internal/store"
	"github.com/amireyal5/calendar/internal/view"
)

func monthParams(c *gin.Context) (int, time.Month, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1970 || year > 9999 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(c.Param("month"))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return year, time.Month(m), true
}

func (h *Handler) monthGrid(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad year or month"})
		return
	}

	grid, err := h.calendar.Month(c.Request.Context(), c.GetString(middleware.UserIDKey), year, month, h.now().In(h.loc))
	if err != nil {
		h.log.Error().Err(err).Msg("month grid failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (h *Handler) monthGridStream(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad year or month"})
		return
	}

	sub, err := h.calendar.WatchMonth(c.Request.Context(), c.GetString(middleware.UserIDKey), year, month, func() time.Time { return h.now().In(h.loc) })
	if err != nil {
		h.log.Error().Err(err).Msg("month stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	streamSub(c, "grid", sub)
}

func (h *Handler) listAppointments(c *gin.Context) {
	appts, err := h.store.AppointmentsByEmployee(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.log.Error().Err(err).Msg("list appointments failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

// appointmentDefaults returns the pre-filled create form: today, the
// next open quarter hour, a thirty-minute slot.
func (h *Handler) appointmentDefaults(c *gin.Context) {
	var f view.Form
	f.OpenCreate(h.now().In(h.loc))
	c.JSON(http.StatusOK, f.Input)
}

func (h *Handler) createAppointment(c *gin.Context) {
	var in view.FormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}

	a, err := view.ComposeAppointment(in, nil, c.GetString(middleware.UserIDKey), h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.ID = uuid.New().String()

	if err := h.store.AddAppointment(c.Request.Context(), &a); err != nil {
		h.log.Error().Err(err).Msg("create appointment failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) updateAppointment(c *gin.Context) {
	id := c.Param("id")
	userID := c.GetString(middleware.UserIDKey)

	existing, err := h.store.GetAppointment(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("load appointment failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	// ownership: 404 not 403, existence stays hidden
	if existing.EmployeeID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var in view.FormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}

	a, err := view.ComposeAppointment(in, existing, userID, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.UpdateAppointment(c.Request.Context(), &a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.log.Error().Err(err).Msg("update appointment failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) deleteAppointment(c *gin.Context) {
	err := h.store.DeleteAppointment(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("delete appointment failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

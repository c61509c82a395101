package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
	"github.com/amireyal5/calendar/internal/view"
)

// securityToday is the one-shot form of the desk board.
func (h *Handler) securityToday(c *gin.Context) {
	sub, err := h.board.WatchToday(c.Request.Context(), h.now().In(h.loc))
	if err != nil {
		h.log.Error().Err(err).Msg("security board failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	defer sub.Cancel()

	rows := <-sub.Updates()
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) securityStream(c *gin.Context) {
	sub, err := h.board.WatchToday(c.Request.Context(), h.now().In(h.loc))
	if err != nil {
		h.log.Error().Err(err).Msg("security stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	streamSub(c, "board", sub)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setAppointmentStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}

	err := h.board.SetStatus(c.Request.Context(), c.Param("id"), model.Status(req.Status))
	switch {
	case errors.Is(err, view.ErrBadStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be arrived or no-show"})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		h.log.Error().Err(err).Msg("status update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

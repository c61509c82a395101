package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.admin.Roster(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("roster failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) usersStream(c *gin.Context) {
	sub, err := h.admin.WatchRoster(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("roster stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	streamSub(c, "users", sub)
}

func (h *Handler) pendingCountStream(c *gin.Context) {
	sub, err := h.admin.WatchPendingCount(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("pending count stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	streamSub(c, "pending", sub)
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) changeRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role required"})
		return
	}

	err := h.admin.ChangeRole(c.Request.Context(), c.Param("id"), model.Role(req.Role))
	switch {
	case errors.Is(err, model.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		h.log.Error().Err(err).Msg("role change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

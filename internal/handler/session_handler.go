package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amireyal5/calendar/internal/middleware"
	"github.com/amireyal5/calendar/internal/session"
)

// session resolves the caller's identity to its profile and view once.
func (h *Handler) session(c *gin.Context) {
	ctrl := session.NewController(h.gateway, h.store, h.store, h.log)

	u, view, err := ctrl.Bootstrap(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if errors.Is(err, session.ErrNoProfile) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_profile"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("session bootstrap failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, session.Event{View: view, User: u})
}

// sessionStream keeps the session current over SSE: role changes flip
// the view live, deletion or sign-out elsewhere ends the stream with a
// signed-out event.
func (h *Handler) sessionStream(c *gin.Context) {
	ctrl := session.NewController(h.gateway, h.store, h.store, h.log)

	events, err := ctrl.Stream(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if errors.Is(err, session.ErrNoProfile) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_profile"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("session stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("session", ev)
			return !ev.SignedOut
		}
	})
}

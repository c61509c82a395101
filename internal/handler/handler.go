// Package handler exposes the scheduling service over HTTP: JSON
// endpoints for commands and one-shot reads, server-sent events for the
// standing queries the screens live on.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/middleware"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
	"github.com/amireyal5/calendar/internal/view"
)

type Handler struct {
	gateway  *auth.Gateway
	store    *store.Store
	calendar *view.Calendar
	board    *view.Board
	admin    *view.Admin
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func New(gateway *auth.Gateway, st *store.Store, log zerolog.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		gateway:  gateway,
		store:    st,
		calendar: view.NewCalendar(st),
		board:    view.NewBoard(st),
		admin:    view.NewAdmin(st),
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// Register mounts everything under /api/v1. The credential endpoints
// carry the rate limiter; everything else sits behind Auth with
// per-group role gates.
func (h *Handler) Register(r *gin.Engine, secret string, limiter *middleware.RateLimiter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1")

	creds := v1.Group("/auth", middleware.RateLimit(limiter))
	{
		creds.POST("/register", h.register)
		creds.POST("/login", h.login)
		creds.POST("/refresh", h.refresh)
		creds.POST("/forgot-password", h.forgotPassword)
		creds.POST("/reset-password", h.resetPassword)
	}

	authed := v1.Group("", middleware.Auth(secret, h.store, h.gateway, h.log))
	{
		authed.POST("/auth/logout", h.logout)
		authed.GET("/session", h.session)
		authed.GET("/session/stream", h.sessionStream)
	}

	employee := authed.Group("", middleware.RequireRoles(model.RoleEmployee, model.RoleAdmin))
	{
		employee.GET("/calendar/:year/:month", h.monthGrid)
		employee.GET("/calendar/:year/:month/stream", h.monthGridStream)
		employee.GET("/appointments", h.listAppointments)
		employee.GET("/appointments/new", h.appointmentDefaults)
		employee.POST("/appointments", h.createAppointment)
		employee.PUT("/appointments/:id", h.updateAppointment)
		employee.DELETE("/appointments/:id", h.deleteAppointment)
	}

	security := authed.Group("/security", middleware.RequireRoles(model.RoleSecurity, model.RoleAdmin))
	{
		security.GET("/today", h.securityToday)
		security.GET("/stream", h.securityStream)
		security.PATCH("/appointments/:id/status", h.setAppointmentStatus)
	}

	admin := authed.Group("/admin", middleware.RequireRoles(model.RoleAdmin))
	{
		admin.GET("/users", h.listUsers)
		admin.GET("/users/stream", h.usersStream)
		admin.GET("/pending-count/stream", h.pendingCountStream)
		admin.PATCH("/users/:id/role", h.changeRole)
	}
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/export"
)

// Exporter uploads the session view of a category.
type Exporter interface {
	Export(ctx context.Context, category attendance.Category, loc *time.Location) (string, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// AuthConfig configures admin login and token validation.
type AuthConfig struct {
	Admin      auth.Admin
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Handler serves the kiosk and admin API.
type Handler struct {
	svc      *attendance.Service
	exporter Exporter
	auth     AuthConfig
	health   map[string]HealthCheck
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a handler. exporter may be nil when export is not configured.
func New(svc *attendance.Service, exporter Exporter, authCfg AuthConfig, health map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, exporter: exporter, auth: authCfg, health: health, logger: logger, now: time.Now}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Kiosk ----------

func (h *Handler) ListPeople(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	people, err := h.svc.ListPeople(c.Request.Context(), category)
	if err != nil {
		h.fail(c, "list_people", err)
		return
	}
	if people == nil {
		people = []attendance.Person{}
	}
	c.JSON(http.StatusOK, gin.H{"people": people})
}

// Status reports whether a person is inside. A failed lookup answers 503 with
// state "unknown" so clients never mistake it for "outside".
func (h *Handler) Status(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}
	personID := c.Param("id")
	state, err := h.svc.Status(c.Request.Context(), category, personID, loc)
	if err != nil {
		status, msg := classify(err)
		h.logFailure(c, "status", status, err)
		c.JSON(status, gin.H{"person_id": personID, "status": state, "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"person_id": personID, "status": state})
}

type recordRequest struct {
	PersonID string `json:"person_id"`
	Action   string `json:"action" binding:"required"`
}

func (h *Handler) Record(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, err := attendance.ParseAction(req.Action)
	if err != nil {
		h.fail(c, "record", err)
		return
	}
	evt, conf, err := h.svc.Record(c.Request.Context(), category, req.PersonID, action)
	if err != nil {
		h.fail(c, "record", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": evt, "confirmation": confirmationBody(conf)})
}

// Confirmation describes the terminal view shown after an action.
func (h *Handler) Confirmation(c *gin.Context) {
	action, err := attendance.ParseAction(c.Param("action"))
	if err != nil {
		h.fail(c, "confirmation", err)
		return
	}
	c.JSON(http.StatusOK, confirmationBody(attendance.ConfirmationFor(action, h.svc.ConfirmationDelay())))
}

func confirmationBody(conf attendance.Confirmation) gin.H {
	return gin.H{
		"action":               conf.Action,
		"path":                 conf.Path,
		"return_to":            conf.ReturnTo,
		"return_after_seconds": conf.ReturnAfter.Seconds(),
	}
}

// ---------- Admin ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.Admin.Authenticate(req.Email, req.Password); err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login not configured"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	tok, err := auth.Issue(h.auth.Admin.Email, auth.RoleAdmin, h.auth.Issuer, h.auth.SigningKey, h.auth.TTL, h.now())
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
		"email":        h.auth.Admin.Email,
	})
}

func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, auth.SessionFrom(c))
}

type logQuery struct {
	View   string `form:"view"`
	Name   string `form:"name"`
	Action string `form:"action"`
}

func (h *Handler) Logs(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}
	var lq logQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := attendance.ParseView(lq.View)
	if err != nil {
		h.fail(c, "logs", err)
		return
	}
	filter, err := attendance.ParseActionFilter(lq.Action)
	if err != nil {
		h.fail(c, "logs", err)
		return
	}
	log, err := h.svc.AdminLog(c.Request.Context(), category, attendance.Query{
		View:     view,
		Name:     lq.Name,
		Action:   filter,
		Location: loc,
	})
	if err != nil {
		h.fail(c, "logs", err)
		return
	}
	if log.View == attendance.ViewSessions && log.Sessions == nil {
		log.Sessions = []attendance.DaySession{}
	}
	if log.View == attendance.ViewRows && log.Rows == nil {
		log.Rows = []attendance.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"view": log.View, "sessions": log.Sessions, "rows": log.Rows, "timezone": loc.String()})
}

type addPersonRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) AddPerson(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	var req addPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.AddPerson(c.Request.Context(), category, req.Name)
	if err != nil {
		h.fail(c, "add_person", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) DeactivatePerson(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	if err := h.svc.DeactivatePerson(c.Request.Context(), category, c.Param("id")); err != nil {
		h.fail(c, "deactivate_person", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Export(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export not configured"})
		return
	}
	key, err := h.exporter.Export(c.Request.Context(), category, loc)
	if err != nil {
		h.fail(c, "export", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"key": key})
}

// ---------- helpers ----------

func (h *Handler) category(c *gin.Context) (attendance.Category, bool) {
	category, err := attendance.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown category"})
		return "", false
	}
	return category, true
}

// location reads the optional tz query parameter; the service default applies when absent.
func (h *Handler) location(c *gin.Context) (*time.Location, bool) {
	tz := c.Query("tz")
	if tz == "" {
		return h.svc.Location(), true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time zone"})
		return nil, false
	}
	return loc, true
}

func (h *Handler) fail(c *gin.Context, operation string, err error) {
	status, msg := classify(err)
	h.logFailure(c, operation, status, err)
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) logFailure(c *gin.Context, operation string, status int, err error) {
	logger := h.logger.With("handler", "server", "operation", operation, "path", c.FullPath())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
		return
	}
	logger.Info("request rejected", "status", status, "error", err)
}

// classify maps domain errors to an HTTP status and a user-facing message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrEmptySelection):
		return http.StatusBadRequest, "please select a person first"
	case errors.Is(err, attendance.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, attendance.ErrPersonNotFound):
		return http.StatusNotFound, "person not found"
	case errors.Is(err, attendance.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "attendance records are unavailable, please try again"
	case errors.Is(err, export.ErrNotConfigured):
		return http.StatusServiceUnavailable, "export not configured"
	}
	return http.StatusInternalServerError, "internal error"
}

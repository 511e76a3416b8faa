package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"statusboard/internal/model"
	"statusboard/internal/service/dashboard"
	"statusboard/internal/session"
	"statusboard/pkg/logger"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "sb_session"
)

type ProjectHandler struct {
	svc      *dashboard.Service
	sessions session.Store
	logger   *zap.Logger
	now      func() time.Time
}

func NewProjectHandler(svc *dashboard.Service, sessions session.Store, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, sessions: sessions, logger: logger, now: time.Now}
}

type formResponse struct {
	*dashboard.FormView
	Error string `json:"error,omitempty"`
}

type addMilestoneRequest struct {
	Date string `json:"date"`
	Desc string `json:"desc"`
}

type removeMilestonesRequest struct {
	Indices []int `json:"indices"`
}

type narrativeRequest struct {
	UpdateBullets string `json:"update_bullets"`
}

// Summary handles GET /api/summary
func (h *ProjectHandler) Summary(c *gin.Context) {
	view := h.svc.Summary(c.Request.Context())
	c.JSON(http.StatusOK, view)
}

// ListProjects handles GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"projects": h.svc.Projects()})
}

// GetProject handles GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	sess := h.loadSession(c)
	view, err := h.svc.Open(c.Request.Context(), sess, c.Param("id"))
	h.respond(c, sess, view, err)
}

// AddMilestone handles POST /api/projects/:id/milestones
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	var req addMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	date := model.DateOf(h.now())
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := model.ParseDateStrict(strings.TrimSpace(req.Date))
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		date = parsed
	}

	sess := h.loadSession(c)
	view, err := h.svc.AddMilestone(c.Request.Context(), sess, c.Param("id"), date, req.Desc)
	h.respond(c, sess, view, err)
}

// RemoveMilestones handles DELETE /api/projects/:id/milestones
func (h *ProjectHandler) RemoveMilestones(c *gin.Context) {
	var req removeMilestonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.loadSession(c)
	view, err := h.svc.RemoveMilestones(c.Request.Context(), sess, c.Param("id"), req.Indices)
	h.respond(c, sess, view, err)
}

// GenerateNarrative handles POST /api/projects/:id/narrative
func (h *ProjectHandler) GenerateNarrative(c *gin.Context) {
	var req narrativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.loadSession(c)
	view, err := h.svc.GenerateNarrative(c.Request.Context(), sess, c.Param("id"), req.UpdateBullets)
	h.respond(c, sess, view, err)
}

// Save handles POST /api/projects/:id/save
func (h *ProjectHandler) Save(c *gin.Context) {
	var req dashboard.FormInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.loadSession(c)
	view, err := h.svc.Submit(c.Request.Context(), sess, c.Param("id"), req)
	h.respond(c, sess, view, err)
}

// ResetSession handles DELETE /api/session. Unsaved drafts are discarded.
func (h *ProjectHandler) ResetSession(c *gin.Context) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			id = cookie
		}
	}
	if id != "" {
		if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
			logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to delete session",
				zap.String("session_id", id),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset session"})
			return
		}
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// loadSession returns the caller's session, or a fresh one. A session store
// outage degrades to a fresh session rather than failing the request.
func (h *ProjectHandler) loadSession(c *gin.Context) *session.Session {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	id := c.GetHeader(SessionHeader)
	if id == "" {
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			id = cookie
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return session.New()
	}

	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err == nil {
		return sess
	}
	if !errors.Is(err, session.ErrNotFound) {
		log.Warn("Session store unavailable, starting a new session",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
	sess = session.New()
	sess.ID = id
	return sess
}

func (h *ProjectHandler) respond(c *gin.Context, sess *session.Session, view *dashboard.FormView, err error) {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	if err := h.sessions.Put(c.Request.Context(), sess); err != nil {
		log.Error("Failed to store session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	c.Header(SessionHeader, sess.ID)
	c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)

	if err == nil {
		c.JSON(http.StatusOK, formResponse{FormView: view})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("Project request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		log.Info("Project request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, formResponse{FormView: view, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownProject):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrNarrativeDisabled):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNarrativeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

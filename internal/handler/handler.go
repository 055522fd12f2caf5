// Package handler wires the HTTP surface to the attendance and
// account services.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ignisight/attendance-server/internal/apperr"
	"github.com/Ignisight/attendance-server/internal/attendance"
	"github.com/Ignisight/attendance-server/internal/auth"
	"github.com/Ignisight/attendance-server/internal/config"
	"github.com/Ignisight/attendance-server/internal/store"
	"github.com/Ignisight/attendance-server/internal/users"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	att   *attendance.Service
	users *users.Service
	cfg   config.App
	log   *zap.Logger
	redis *store.Redis // nil unless the redis limiter is configured
}

// New builds a handler.
func New(att *attendance.Service, accounts *users.Service, cfg config.App, log *zap.Logger, redis *store.Redis) *Handler {
	return &Handler{att: att, users: accounts, cfg: cfg, log: log, redis: redis}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	// Student-facing surface, open.
	r.GET("/s/:code", h.StudentForm)
	r.POST("/submit", h.Submit)
	r.GET("/api/status", h.Status)

	// Accounts, open.
	r.POST("/api/register", h.Register)
	r.POST("/api/login", h.Login)
	r.POST("/api/forgot-password", h.ForgotPassword)
	r.POST("/api/reset-password", h.ResetPassword)

	// Teacher management surface, behind bearer auth.
	mgmt := r.Group("/api", auth.TeacherAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	mgmt.POST("/start-session", h.StartSession)
	mgmt.POST("/stop-session", h.StopSession)
	mgmt.POST("/sessions/:id/stop", h.StopSessionByID)
	mgmt.GET("/history", h.History)
	mgmt.GET("/responses", h.Responses)
	mgmt.GET("/export", h.Export)
	mgmt.GET("/export-multi", h.ExportMulti)
	mgmt.DELETE("/sessions/:id", h.DeleteSession)
	mgmt.POST("/sessions/delete-many", h.DeleteMany)
	mgmt.POST("/sessions/clear-all", h.ClearAll)
	mgmt.POST("/change-password", h.ChangePassword)
	mgmt.POST("/update-profile", h.UpdateProfile)
}

// Healthz reports liveness plus redis reachability when configured.
func (h *Handler) Healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.redis != nil {
		resp["redis"] = h.redis.Healthy(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

// respondErr maps taxonomy codes onto HTTP statuses. Every validator
// failure is user-recoverable; only persistence failures are 500s.
func (h *Handler) respondErr(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case apperr.CodeUnauthorized:
		status = http.StatusUnauthorized
	case apperr.CodeNotFound, apperr.CodeNoActiveSession:
		status = http.StatusNotFound
	case apperr.CodeDuplicateSubmission, apperr.CodeDuplicateAccount, apperr.CodeAlreadyStopped:
		status = http.StatusConflict
	case apperr.CodeSessionEnded, apperr.CodeSessionExpired:
		status = http.StatusGone
	case apperr.CodePersistence, "":
		status = http.StatusInternalServerError
		h.log.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"success": false, "error": userMessage(err)})
}

// userMessage strips the code prefix and any wrapped cause.
func userMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Ignisight/attendance-server/internal/model"
)

func sessionJSON(s model.Session) gin.H {
	out := gin.H{
		"id":        s.ID,
		"name":      s.Name,
		"code":      s.Code,
		"createdAt": s.CreatedAt,
		"active":    s.Active,
	}
	if s.StoppedAt != nil {
		out["stoppedAt"] = *s.StoppedAt
	}
	if s.Geofenced() {
		out["lat"] = *s.Lat
		out["lon"] = *s.Lon
	}
	return out
}

// StartSession creates a session and returns the student form URL.
func (h *Handler) StartSession(c *gin.Context) {
	var req struct {
		SessionName string   `json:"sessionName"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	sess, err := h.att.StartSession(c.Request.Context(), req.SessionName, req.Lat, req.Lon)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"sessionId":   sess.ID,
		"sessionName": sess.Name,
		"formUrl":     h.cfg.PublicBaseURL + "/s/" + sess.Code,
	})
}

// StopSession stops every active session.
func (h *Handler) StopSession(c *gin.Context) {
	stopped, err := h.att.StopAll(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stopped": stopped})
}

// StopSessionByID stops one session.
func (h *Handler) StopSessionByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}
	if _, err := h.att.StopSession(c.Request.Context(), id); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status reports the currently active session, if any.
func (h *Handler) Status(c *gin.Context) {
	sess, ok, err := h.att.Status(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false, "session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "session": sessionJSON(sess)})
}

// History lists all sessions, newest first.
func (h *Handler) History(c *gin.Context) {
	entries, err := h.att.History(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	sessions := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		item := gin.H{
			"id":            e.Session.ID,
			"name":          e.Session.Name,
			"createdAt":     e.Session.CreatedAt,
			"active":        e.Session.Active,
			"responseCount": e.ResponseCount,
		}
		if e.Session.StoppedAt != nil {
			item["stoppedAt"] = *e.Session.StoppedAt
		}
		sessions = append(sessions, item)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

// Responses returns a session's records as JSON rows.
func (h *Handler) Responses(c *gin.Context) {
	name := c.Query("sessionName")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "sessionName is required"})
		return
	}
	_, recs, err := h.att.Responses(c.Request.Context(), name)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"responses": recs,
		"count":     len(recs),
		"headers":   exportColumns(),
	})
}

// DeleteSession purges one session and its attendance.
func (h *Handler) DeleteSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}
	deleted, err := h.att.DeleteSessions(c.Request.Context(), []int64{id})
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// DeleteMany purges a batch of sessions.
func (h *Handler) DeleteMany(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	deleted, err := h.att.DeleteSessions(c.Request.Context(), req.IDs)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// ClearAll purges every session and record.
func (h *Handler) ClearAll(c *gin.Context) {
	deleted, err := h.att.ClearAll(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

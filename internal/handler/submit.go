package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ignisight/attendance-server/internal/apperr"
	"github.com/Ignisight/attendance-server/internal/attendance"
)

// StudentForm renders the submission form bound to a session code, or
// an error page for unknown and ended sessions.
func (h *Handler) StudentForm(c *gin.Context) {
	sess, err := h.att.SessionByCode(c.Request.Context(), c.Param("code"))
	if apperr.Is(err, apperr.CodeNotFound) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"message": "This attendance link is not valid.",
		})
		return
	}
	if err != nil {
		h.respondErr(c, err)
		return
	}
	if sess.StoppedAt != nil {
		c.HTML(http.StatusGone, "error.html", gin.H{
			"message": "This attendance session has ended.",
		})
		return
	}
	c.HTML(http.StatusOK, "form.html", gin.H{
		"sessionName": sess.Name,
		"sessionCode": sess.Code,
		"geofenced":   sess.Geofenced(),
	})
}

// Submit is the attendance submission entry point.
func (h *Handler) Submit(c *gin.Context) {
	var req struct {
		Email       string   `json:"email"`
		Name        string   `json:"name"`
		SessionCode string   `json:"sessionCode"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	rec, err := h.att.Submit(c.Request.Context(), attendance.SubmitInput{
		SessionCode: req.SessionCode,
		Email:       req.Email,
		Name:        req.Name,
		Lat:         req.Lat,
		Lon:         req.Lon,
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Attendance recorded for " + rec.RollNumber,
	})
}

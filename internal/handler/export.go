package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ignisight/attendance-server/internal/export"
	"github.com/Ignisight/attendance-server/internal/model"
)

func exportColumns() []string { return export.Columns }

func exportRows(sess model.Session, recs []model.Record) []export.Row {
	rows := make([]export.Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, export.Row{Record: r, Session: sess.Name})
	}
	return rows
}

func (h *Handler) sendCSV(c *gin.Context, filename string, rows []export.Row) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		h.respondErr(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Export downloads one session's sheet, located by name.
func (h *Handler) Export(c *gin.Context) {
	name := c.Query("sessionName")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "sessionName is required"})
		return
	}
	sess, recs, err := h.att.Responses(c.Request.Context(), name)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.sendCSV(c, export.Filename(sess.Name), exportRows(sess, recs))
}

// ExportMulti downloads one combined sheet for several sessions,
// identified by a comma-separated ids parameter.
func (h *Handler) ExportMulti(c *gin.Context) {
	raw := strings.Split(c.Query("ids"), ",")
	var rows []export.Row
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id: " + part})
			return
		}
		sess, recs, err := h.att.SessionRecords(c.Request.Context(), id)
		if err != nil {
			h.respondErr(c, err)
			return
		}
		rows = append(rows, exportRows(sess, recs)...)
	}
	h.sendCSV(c, "attendance_export.csv", rows)
}

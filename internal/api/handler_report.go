package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/sequence"
)

type reportRow struct {
	StudentCode string                  `json:"studentCode"`
	DisplayName string                  `json:"displayName"`
	Department  string                  `json:"department"`
	Program     string                  `json:"program"`
	Morning     *model.AttendanceRecord `json:"morningRecord"`
	Afternoon   *model.AttendanceRecord `json:"afternoonRecord"`
}

var byName = sequence.Then[reportRow](
	func(a, b reportRow) int { return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)) },
	func(a, b reportRow) int { return strings.Compare(a.StudentCode, b.StudentCode) },
)

// GetEventReport handles GET /api/events/:id/report. ?format=csv returns a
// spreadsheet-friendly body instead of JSON.
func (h *Handler) GetEventReport(c *gin.Context) {
	if _, ok := h.require(c, "view reports", func(c access.Capabilities) bool { return c.CanViewReports }); !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	event, err := h.store.GetEvent(ctx, id)
	if err != nil {
		writeError(c, storageFailure("get event", err))
		return
	}
	records, err := h.store.ListAttendanceByEvent(ctx, id)
	if err != nil {
		writeError(c, storageFailure("list attendance", err))
		return
	}
	students, err := h.store.ListStudents(ctx)
	if err != nil {
		writeError(c, storageFailure("list students", err))
		return
	}

	byID := collections.NewKeyedIndex[int64, model.Student](len(students))
	for _, s := range students {
		byID.Set(s.ID, s)
	}

	consolidated := attendance.Consolidate(records, id)
	rows := make([]reportRow, 0, len(consolidated))
	for _, sa := range consolidated {
		s, _ := byID.Get(sa.StudentID)
		rows = append(rows, reportRow{
			StudentCode: s.StudentCode,
			DisplayName: s.DisplayName,
			Department:  s.Department,
			Program:     s.Program,
			Morning:     sa.Morning,
			Afternoon:   sa.Afternoon,
		})
	}
	rows = sequence.StableSort(rows, byName)

	if c.Query("format") == "csv" {
		h.writeCSV(c, event, rows)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event":           event,
		"uniqueAttendees": attendance.UniqueAttendees(records, id),
		"rows":            rows,
	})
}

func (h *Handler) writeCSV(c *gin.Context, event *model.Event, rows []reportRow) {
	var buf bytes.Buffer
	if err := h.encodeCSV(&buf, rows); err != nil {
		log.Printf("report for event %d: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render report"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=event-"+strconv.FormatInt(event.ID, 10)+".csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) encodeCSV(dst io.Writer, rows []reportRow) error {
	w := csv.NewWriter(dst)
	if err := w.Write([]string{"student_code", "name", "department", "program", "am_in", "am_out", "pm_in", "pm_out"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		amIn, amOut := h.times(r.Morning)
		pmIn, pmOut := h.times(r.Afternoon)
		if err := w.Write([]string{r.StudentCode, r.DisplayName, r.Department, r.Program, amIn, amOut, pmIn, pmOut}); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", r.StudentCode, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func (h *Handler) times(rec *model.AttendanceRecord) (in, out string) {
	if rec == nil {
		return "", ""
	}
	in = rec.TimeIn.In(h.loc).Format(time.Kitchen)
	if rec.TimeOut != nil {
		out = rec.TimeOut.In(h.loc).Format(time.Kitchen)
	}
	return in, out
}

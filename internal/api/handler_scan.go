package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/scan"
)

type scanRequest struct {
	Code    string            `json:"code" binding:"required"`
	Period  model.Period      `json:"period" binding:"required"`
	Action  attendance.Action `json:"action" binding:"required"`
	EventID int64             `json:"event_id"`
}

type resolutionResponse struct {
	ScanID  string                 `json:"scan_id,omitempty"`
	Action  attendance.Action      `json:"action"`
	Record  model.AttendanceRecord `json:"record"`
	Student *model.Student         `json:"student,omitempty"`
}

// Scan handles POST /api/scan: one decoded QR payload from an operator's
// camera. Repeats inside the cool-down are acknowledged but ignored.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return
	}

	station := h.stations.For(string(sess.Role) + ":" + sess.Email)
	out, accepted, err := station.Scan(c.Request.Context(), scan.Selection{
		Session: sess,
		EventID: req.EventID,
		Period:  req.Period,
		Action:  req.Action,
	}, req.Code)
	if err != nil {
		if c.Request.Context().Err() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan was not processed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !accepted {
		c.JSON(http.StatusAccepted, gin.H{"status": "duplicate_ignored"})
		return
	}
	if out.Err != nil {
		writeError(c, out.Err)
		return
	}

	c.JSON(statusForAction(out.Result.Action), resolutionResponse{
		ScanID:  out.ID.String(),
		Action:  out.Result.Action,
		Record:  out.Result.Record,
		Student: out.Result.Student,
	})
}

type attendanceRequest struct {
	StudentID int64             `json:"student_id" binding:"required"`
	EventID   int64             `json:"event_id"`
	Period    model.Period      `json:"period" binding:"required"`
	Action    attendance.Action `json:"action" binding:"required"`
}

// RecordAttendance handles POST /api/attendance, a manual time-in or
// time-out for a known student id.
func (h *Handler) RecordAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), sess, attendance.Request{
		StudentID: req.StudentID,
		EventID:   req.EventID,
		Period:    req.Period,
		Action:    req.Action,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(statusForAction(res.Action), resolutionResponse{Action: res.Action, Record: res.Record})
}

func statusForAction(a attendance.Action) int {
	if a == attendance.ActionTimeIn {
		return http.StatusCreated
	}
	return http.StatusOK
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/sequence"
)

const dateLayout = "2006-01-02"

func byDate(a, b model.Event) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return 0, false
	}
	return id, true
}

// eventsBetween narrows date-sorted events to [from, to]. Zero bounds are open.
func eventsBetween(sorted []model.Event, from, to time.Time) []model.Event {
	byDay := func(a, b model.Event) int { return a.Date.Compare(b.Date) }
	lo, hi := 0, len(sorted)
	if !from.IsZero() {
		lo = sequence.InsertionPoint(sorted, model.Event{Date: from}, byDay)
	}
	if !to.IsZero() {
		// The first event strictly after to bounds the range.
		hi = sequence.InsertionPoint(sorted, model.Event{Date: to.Add(time.Nanosecond)}, byDay)
	}
	if lo > hi {
		return nil
	}
	return sorted[lo:hi]
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

type eventResponse struct {
	model.Event
	UniqueAttendees int `json:"uniqueAttendees"`
}

// ListEvents handles GET /api/events, sorted by date, optionally bounded by
// ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) ListEvents(c *gin.Context) {
	from, err := parseDay(c.Query("from"), h.loc)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
		return
	}
	to, err := parseDay(c.Query("to"), h.loc)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
		return
	}

	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		writeError(c, storageFailure("list events", err))
		return
	}
	records, err := h.store.ListAttendance(c.Request.Context())
	if err != nil {
		writeError(c, storageFailure("list attendance", err))
		return
	}
	counts := attendance.EventCounts(records)

	events = eventsBetween(sequence.StableSort(events, byDate), from, to)
	response := make([]eventResponse, 0, len(events))
	for _, e := range events {
		response = append(response, eventResponse{Event: e, UniqueAttendees: counts[e.ID]})
	}
	c.JSON(http.StatusOK, response)
}

type createEventRequest struct {
	Name string `json:"name" binding:"required"`
	Date string `json:"date" binding:"required"`
}

// CreateEvent handles POST /api/events. New events start scheduled.
func (h *Handler) CreateEvent(c *gin.Context) {
	if _, ok := h.require(c, "manage events", func(c access.Capabilities) bool { return c.CanManageEvents }); !ok {
		return
	}
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	event := model.Event{Name: req.Name, Date: date, Status: model.EventScheduled}
	if err := h.store.CreateEvent(c.Request.Context(), &event); err != nil {
		writeError(c, storageFailure("create event", err))
		return
	}
	c.JSON(http.StatusCreated, event)
}

// StartEvent handles POST /api/events/:id/start.
func (h *Handler) StartEvent(c *gin.Context) { h.setStatus(c, model.EventActive) }

// CompleteEvent handles POST /api/events/:id/complete.
func (h *Handler) CompleteEvent(c *gin.Context) { h.setStatus(c, model.EventCompleted) }

func (h *Handler) setStatus(c *gin.Context, status model.EventStatus) {
	if _, ok := h.require(c, "manage events", func(c access.Capabilities) bool { return c.CanManageEvents }); !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.store.SetEventStatus(c.Request.Context(), id, status); err != nil {
		writeError(c, storageFailure("set event status", err))
		return
	}
	h.invalidate(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

// DeleteEvent handles DELETE /api/events/:id, removing its attendance too.
func (h *Handler) DeleteEvent(c *gin.Context) {
	if _, ok := h.require(c, "delete events", func(c access.Capabilities) bool { return c.CanManageEvents }); !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteEventCascade(c.Request.Context(), id); err != nil {
		writeError(c, storageFailure("delete event", err))
		return
	}
	h.invalidate(id)
	c.Status(http.StatusNoContent)
}

// GetEventAttendance handles GET /api/events/:id/attendance: one row per
// student with their latest morning and afternoon records.
func (h *Handler) GetEventAttendance(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	records, err := h.store.ListAttendanceByEvent(c.Request.Context(), id)
	if err != nil {
		writeError(c, storageFailure("list attendance", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eventId":         id,
		"students":        attendance.Consolidate(records, id),
		"uniqueAttendees": attendance.UniqueAttendees(records, id),
	})
}

// GetEventSummary handles GET /api/events/:id/summary.
func (h *Handler) GetEventSummary(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	records, err := h.store.ListAttendanceByEvent(c.Request.Context(), id)
	if err != nil {
		writeError(c, storageFailure("list attendance", err))
		return
	}

	open := 0
	for _, r := range records {
		if r.IsOpen() {
			open++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"eventId":         id,
		"uniqueAttendees": attendance.UniqueAttendees(records, id),
		"records":         len(records),
		"open":            open,
	})
}

package api

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
)

// StreamEventAttendance handles GET /api/events/:id/live. It sends the
// consolidated view as a server-sent event on connect and again after every
// change to the event's attendance, until the client goes away.
func (h *Handler) StreamEventAttendance(c *gin.Context) {
	if _, ok := h.require(c, "view attendance", func(c access.Capabilities) bool { return c.CanViewReports }); !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	if h.broker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are disabled"})
		return
	}

	ctx := c.Request.Context()
	live := attendance.NewLiveView(h.store, id)
	if err := live.Refresh(ctx); err != nil {
		writeError(c, err)
		return
	}

	// Only the newest view matters; a slow client skips intermediate ones.
	views := make(chan attendance.View, 1)
	live.OnChange(func(v attendance.View) {
		for {
			select {
			case views <- v:
				return
			default:
				select {
				case <-views:
				default:
				}
			}
		}
	})
	go func() {
		if err := live.Run(ctx, h.broker); err != nil {
			log.Printf("live view %d stopped: %v", id, err)
		}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v := <-views:
			c.SSEvent("attendance", v)
			return true
		}
	})
}

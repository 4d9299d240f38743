package api

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/scan"
)

var pinRe = regexp.MustCompile(`^[0-9]{4}$`)

type issuePinRequest struct {
	Email     string `json:"email" binding:"required"`
	Pin       string `json:"pin" binding:"required"`
	Role      string `json:"role" binding:"required"`
	ValidDate string `json:"valid_date"`
	EventID   *int64 `json:"event_id"`
}

// IssuePin handles POST /api/pins. valid_date defaults to today.
func (h *Handler) IssuePin(c *gin.Context) {
	if _, ok := h.require(c, "issue pins", func(c access.Capabilities) bool { return c.CanIssuePins }); !ok {
		return
	}
	var req issuePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !pinRe.MatchString(req.Pin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pin must be 4 digits"})
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil || !role.IsOfficer() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pins are issued to officer roles only"})
		return
	}
	date := req.ValidDate
	if date == "" {
		date = scan.PinDate(h.now(), h.loc)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_date must be YYYY-MM-DD"})
		return
	}
	if req.EventID != nil {
		if _, err := h.store.GetEvent(c.Request.Context(), *req.EventID); err != nil {
			writeError(c, storageFailure("get event", err))
			return
		}
	}

	pin := model.DailyPin{
		Email:     req.Email,
		Pin:       req.Pin,
		ValidDate: date,
		Role:      string(role),
		EventID:   req.EventID,
	}
	if err := h.store.IssuePin(c.Request.Context(), &pin); err != nil {
		writeError(c, storageFailure("issue pin", err))
		return
	}
	c.JSON(http.StatusCreated, pin)
}

type validatePinRequest struct {
	Email string `json:"email" binding:"required"`
	Pin   string `json:"pin" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// ValidatePin handles POST /api/pins/validate, the officer sign-in check. It
// also reports the event the PIN binds the officer to, if any.
func (h *Handler) ValidatePin(c *gin.Context) {
	var req validatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil || !role.IsOfficer() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown officer role"})
		return
	}

	sess, err := scan.NewSessionFromPin(c.Request.Context(), h.store, role, req.Email, req.Pin, scan.PinDate(h.now(), h.loc))
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			c.JSON(http.StatusOK, gin.H{"valid": false})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "eventId": sess.BoundEventID})
}

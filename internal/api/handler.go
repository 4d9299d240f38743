package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/mw"
	"qr-attendance-backend/internal/scan"
	"qr-attendance-backend/internal/store"
)

var errUnauthenticated = errors.New("missing or unknown role")

// Deps are the collaborators the HTTP handlers share.
type Deps struct {
	Store    store.Store
	Resolver *attendance.Resolver
	Stations *scan.Registry
	Views    *mw.ViewCache
	Broker   *feed.Broker
	Webpush  *webpush.Options
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	resolver *attendance.Resolver
	stations *scan.Registry
	views    *mw.ViewCache
	broker   *feed.Broker
	webpush  *webpush.Options
	loc      *time.Location
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:    d.Store,
		resolver: d.Resolver,
		stations: d.Stations,
		views:    d.Views,
		broker:   d.Broker,
		webpush:  d.Webpush,
		loc:      d.Location,
		now:      d.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	return h
}

// session builds the caller's session from the identity headers. Identity is
// established upstream; X-Pin is only checked for officer roles.
func (h *Handler) session(c *gin.Context) (attendance.ScanSessionContext, error) {
	role, err := access.ParseRole(c.GetHeader("X-Role"))
	if err != nil {
		return attendance.ScanSessionContext{}, errUnauthenticated
	}
	date := scan.PinDate(h.now(), h.loc)
	return scan.NewSessionFromPin(c.Request.Context(), h.store, role, c.GetHeader("X-Email"), c.GetHeader("X-Pin"), date)
}

// require returns the session if it grants the capability picked by allowed.
func (h *Handler) require(c *gin.Context, action string, allowed func(access.Capabilities) bool) (attendance.ScanSessionContext, bool) {
	sess, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return sess, false
	}
	if !allowed(sess.Capabilities) {
		writeError(c, &access.ErrForbidden{Role: sess.Role, Action: action})
		return sess, false
	}
	return sess, true
}

func (h *Handler) invalidate(eventID int64) {
	if h.views != nil {
		h.views.InvalidateEvent(eventID)
	}
}

// storageFailure marks a store error as a storage outage unless it is a
// plain not-found.
func storageFailure(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &attendance.StorageError{Op: op, Err: err}
}

func statusFor(err error) int {
	var (
		forbidden    *access.ErrForbidden
		alreadyOpen  *attendance.SessionAlreadyOpenError
		missingEvent *attendance.MissingEventSelectionError
	)
	switch {
	case attendance.IsUnknownStudent(err):
		return http.StatusNotFound
	case attendance.IsNoOpenSession(err), errors.As(err, &alreadyOpen):
		return http.StatusConflict
	case errors.As(err, &missingEvent), errors.Is(err, attendance.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.Is(err, errUnauthenticated), errors.Is(err, scan.ErrInvalidPin):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case attendance.IsStorage(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

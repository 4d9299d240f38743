package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
)

// ErrInvalidPin is returned when an officer's daily PIN does not match.
var ErrInvalidPin = errors.New("invalid or expired pin")

// PinStore is the part of the store that checks daily PINs.
type PinStore interface {
	ValidatePin(ctx context.Context, email, pin, role, date string) (bool, error)
	ResolvePinEvent(ctx context.Context, pin, role, date string) (*int64, error)
}

// PinDate formats the day a PIN must be valid for, in the deployment's zone.
func PinDate(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return now.Format("2006-01-02")
}

// NewSessionFromPin builds the session for an operator. Officers must present
// today's PIN, and the event bound to that PIN (if any) is fixed for the
// session. Other roles are not PIN-authenticated and get no bound event.
func NewSessionFromPin(ctx context.Context, pins PinStore, role access.Role, email, pin, date string) (attendance.ScanSessionContext, error) {
	if !role.Capabilities().PinAuthenticated {
		return attendance.NewScanSessionContext(role, email, nil), nil
	}
	if pin == "" {
		return attendance.ScanSessionContext{}, ErrInvalidPin
	}

	ok, err := pins.ValidatePin(ctx, email, pin, string(role), date)
	if err != nil {
		return attendance.ScanSessionContext{}, &attendance.StorageError{Op: "pin validation", Err: err}
	}
	if !ok {
		return attendance.ScanSessionContext{}, fmt.Errorf("%w for %s", ErrInvalidPin, email)
	}

	bound, err := pins.ResolvePinEvent(ctx, pin, string(role), date)
	if err != nil {
		return attendance.ScanSessionContext{}, &attendance.StorageError{Op: "pin event lookup", Err: err}
	}
	return attendance.NewScanSessionContext(role, email, bound), nil
}

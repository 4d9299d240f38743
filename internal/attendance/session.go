package attendance

import (
	"qr-attendance-backend/internal/access"
)

// ScanSessionContext carries who is acting and which event they are bound to.
// It is built once per session and passed explicitly to every call.
type ScanSessionContext struct {
	Role         access.Role
	Email        string
	Capabilities access.Capabilities
	// BoundEventID is set for officers whose daily PIN selects an event.
	BoundEventID *int64
}

// NewScanSessionContext evaluates the role's capabilities once.
func NewScanSessionContext(role access.Role, email string, boundEventID *int64) ScanSessionContext {
	return ScanSessionContext{
		Role:         role,
		Email:        email,
		Capabilities: role.Capabilities(),
		BoundEventID: boundEventID,
	}
}

// EventFor picks the event an action applies to. A PIN-bound event wins over
// whatever the caller selected.
func (s ScanSessionContext) EventFor(requested int64) (int64, error) {
	if s.BoundEventID != nil && *s.BoundEventID > 0 {
		return *s.BoundEventID, nil
	}
	if requested > 0 {
		return requested, nil
	}
	return 0, &MissingEventSelectionError{}
}

package store

import (
	"errors"
	"time"

	"qr-attendance-backend/internal/feed"
)

// ErrNotFound is returned by lookups that must find exactly one row.
var ErrNotFound = errors.New("record not found")

// RosterVersion is a cheap fingerprint of the students table. Two equal
// versions mean the roster has not changed in between.
type RosterVersion struct {
	Count         int64
	LatestUpdated time.Time
}

// Publisher receives a change after every successful event or attendance write.
type Publisher interface {
	Publish(c feed.Change)
}

// Equal compares two versions; timestamps compare by instant.
func (v RosterVersion) Equal(o RosterVersion) bool {
	return v.Count == o.Count && v.LatestUpdated.Equal(o.LatestUpdated)
}

// Package feed is the in-process realtime change feed for the events and
// attendance_records tables. Writers publish after a successful commit;
// views subscribe to keep their snapshots current without polling.
package feed

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"qr-attendance-backend/internal/model"
)

// Table names a table that produces changes.
type Table string

const (
	TableEvents     Table = "events"
	TableAttendance Table = "attendance_records"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one row-level notification.
type Change struct {
	Table   Table
	Op      Op
	EventID int64
	// Record is set for attendance changes on insert and update.
	Record *model.AttendanceRecord
	At     time.Time
}

// Subscription receives changes accepted by its filter.
type Subscription struct {
	C      <-chan Change
	ch     chan Change
	filter func(Change) bool
	lagged atomic.Bool
}

// Lagged reports whether at least one change was dropped because the
// subscriber fell behind, and clears the flag. A lagged subscriber must
// re-read its snapshot from the store.
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// Broker fans changes out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewBroker creates a broker whose subscriptions buffer up to buffer changes.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broker{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. A nil filter accepts everything. The
// returned function unsubscribes and closes the channel.
func (b *Broker) Subscribe(filter func(Change) bool) (*Subscription, func()) {
	ch := make(chan Change, b.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// ForEvent is a filter matching changes that touch eventID.
func ForEvent(eventID int64) func(Change) bool {
	return func(c Change) bool { return c.EventID == eventID }
}

// Publish delivers c to every matching subscriber without blocking.
func (b *Broker) Publish(c Change) {
	if b == nil {
		return
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			sub.lagged.Store(true)
			log.Printf("feed: subscriber lagging, dropped %s %s for event %d", c.Table, c.Op, c.EventID)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

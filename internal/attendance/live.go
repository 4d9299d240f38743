package attendance

import (
	"context"
	"log"
	"sync"

	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
)

// SnapshotSource reads the authoritative attendance rows of an event.
type SnapshotSource interface {
	ListAttendanceByEvent(ctx context.Context, eventID int64) ([]model.AttendanceRecord, error)
}

// View is what a live attendance screen renders.
type View struct {
	EventID         int64                    `json:"eventId"`
	Students        []StudentAttendance      `json:"students"`
	UniqueAttendees int                      `json:"uniqueAttendees"`
	Records         []model.AttendanceRecord `json:"records"`
}

// LiveView keeps one event's snapshot current from feed deltas and recomputes
// the derivations after every change.
type LiveView struct {
	src     SnapshotSource
	eventID int64

	mu       sync.RWMutex
	records  *collections.KeyedIndex[int64, model.AttendanceRecord]
	view     View
	onChange func(View)
}

// NewLiveView creates an empty view; call Refresh or Run to populate it.
func NewLiveView(src SnapshotSource, eventID int64) *LiveView {
	v := &LiveView{src: src, eventID: eventID}
	v.reset(nil)
	return v
}

// Refresh replaces the snapshot with a fresh read from the store.
func (v *LiveView) Refresh(ctx context.Context) error {
	records, err := v.src.ListAttendanceByEvent(ctx, v.eventID)
	if err != nil {
		return storageErr("attendance snapshot", err)
	}
	v.mu.Lock()
	v.reset(records)
	v.mu.Unlock()
	return nil
}

// Apply folds a single change into the snapshot.
func (v *LiveView) Apply(c feed.Change) {
	if c.EventID != v.eventID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case c.Table == feed.TableEvents && c.Op == feed.OpDelete:
		v.reset(nil)
		return
	case c.Table != feed.TableAttendance || c.Record == nil:
		return
	}

	switch c.Op {
	case feed.OpInsert, feed.OpUpdate:
		v.records.Set(c.Record.ID, *c.Record)
	case feed.OpDelete:
		v.records.Delete(c.Record.ID)
	}
	v.recompute()
}

// OnChange registers fn to receive the view after Run loads or changes it.
// fn runs on the Run goroutine and must not block for long.
func (v *LiveView) OnChange(fn func(View)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *LiveView) notify() {
	v.mu.RLock()
	fn, view := v.onChange, v.view
	v.mu.RUnlock()
	if fn != nil {
		fn(view)
	}
}

// Snapshot returns the current derived view.
func (v *LiveView) Snapshot() View {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view
}

// Run loads the snapshot and then follows the broker until ctx ends. When the
// subscription lags it re-reads the snapshot rather than trusting deltas.
func (v *LiveView) Run(ctx context.Context, broker *feed.Broker) error {
	sub, cancel := broker.Subscribe(feed.ForEvent(v.eventID))
	defer cancel()

	if err := v.Refresh(ctx); err != nil {
		return err
	}
	v.notify()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-sub.C:
			if !ok {
				return nil
			}
			if sub.Lagged() {
				if err := v.Refresh(ctx); err != nil {
					log.Printf("live view %d: refresh after lag failed: %v", v.eventID, err)
					continue
				}
			} else {
				v.Apply(c)
			}
			v.notify()
		}
	}
}

// reset must be called with mu held (or before the view is shared).
func (v *LiveView) reset(records []model.AttendanceRecord) {
	v.records = collections.NewKeyedIndex[int64, model.AttendanceRecord](len(records))
	for _, r := range records {
		v.records.Set(r.ID, r)
	}
	v.recompute()
}

func (v *LiveView) recompute() {
	records := ArrivalOrder(v.records.Values()).Drain()
	v.view = View{
		EventID:         v.eventID,
		Students:        Consolidate(records, v.eventID),
		UniqueAttendees: UniqueAttendees(records, v.eventID),
		Records:         records,
	}
}

package attendance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func rec(id, student, event int64, period model.Period, minutes int, open bool) model.AttendanceRecord {
	r := model.AttendanceRecord{
		ID:         id,
		StudentID:  student,
		EventID:    event,
		TimePeriod: period,
		TimeIn:     base.Add(time.Duration(minutes) * time.Minute),
		Status:     model.StatusPresent,
	}
	if !open {
		out := r.TimeIn.Add(30 * time.Minute)
		r.TimeOut = &out
		r.Status = model.StatusLeft
	}
	return r
}

func TestConsolidate(t *testing.T) {
	records := []model.AttendanceRecord{
		rec(1, 1, 1, model.PeriodMorning, 0, false),
		rec(2, 1, 1, model.PeriodMorning, 60, true),
		rec(3, 1, 1, model.PeriodAfternoon, 300, false),
		rec(4, 2, 1, model.PeriodAfternoon, 310, true),
		rec(5, 3, 2, model.PeriodMorning, 0, true), // other event
	}

	rows := Consolidate(records, 1)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0].StudentID)
	assert.Equal(t, int64(2), rows[0].Morning.ID, "latest morning record wins")
	assert.Equal(t, int64(3), rows[0].Afternoon.ID)

	assert.Equal(t, int64(2), rows[1].StudentID)
	assert.Nil(t, rows[1].Morning, "absent period is nil")
	assert.Equal(t, int64(4), rows[1].Afternoon.ID)
}

func TestConsolidate_EmptyAndTies(t *testing.T) {
	assert.Empty(t, Consolidate(nil, 1))

	a := rec(10, 1, 1, model.PeriodMorning, 0, true)
	b := rec(11, 1, 1, model.PeriodMorning, 0, true)
	for _, order := range [][]model.AttendanceRecord{{a, b}, {b, a}} {
		rows := Consolidate(order, 1)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(11), rows[0].Morning.ID)
	}
}

func TestUniqueAttendees(t *testing.T) {
	records := []model.AttendanceRecord{
		rec(1, 1, 1, model.PeriodMorning, 0, false),
		rec(2, 1, 1, model.PeriodMorning, 60, true),
		rec(3, 2, 1, model.PeriodAfternoon, 300, true),
		rec(4, 3, 2, model.PeriodAfternoon, 300, true),
	}

	assert.Equal(t, 2, UniqueAttendees(records, 1), "S1 has two sessions but counts once")
	assert.Equal(t, 1, UniqueAttendees(records, 2))
	assert.Equal(t, 0, UniqueAttendees(records, 99))
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, EventCounts(records))
}

func TestArrivalOrder(t *testing.T) {
	records := []model.AttendanceRecord{
		rec(3, 1, 1, model.PeriodMorning, 20, true),
		rec(1, 2, 1, model.PeriodMorning, 10, true),
		rec(2, 3, 1, model.PeriodMorning, 10, true),
	}
	q := ArrivalOrder(records)

	var ids []int64
	for !q.IsEmpty() {
		r, _ := q.Dequeue()
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

type fakeSource struct {
	records []model.AttendanceRecord
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) ListAttendanceByEvent(ctx context.Context, eventID int64) ([]model.AttendanceRecord, error) {
	f.calls.Add(1)
	return f.records, f.err
}

func TestLiveView_RefreshAndDeltas(t *testing.T) {
	src := &fakeSource{records: []model.AttendanceRecord{rec(1, 1, 1, model.PeriodMorning, 0, true)}}
	v := NewLiveView(src, 1)
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, 1, v.Snapshot().UniqueAttendees)

	r2 := rec(2, 2, 1, model.PeriodMorning, 5, true)
	v.Apply(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: 1, Record: &r2})
	assert.Equal(t, 2, v.Snapshot().UniqueAttendees)

	closed := rec(1, 1, 1, model.PeriodMorning, 0, false)
	v.Apply(feed.Change{Table: feed.TableAttendance, Op: feed.OpUpdate, EventID: 1, Record: &closed})
	snap := v.Snapshot()
	require.Len(t, snap.Students, 2)
	assert.Equal(t, model.StatusLeft, snap.Students[0].Morning.Status)
	assert.Equal(t, []int64{1, 2}, []int64{snap.Records[0].ID, snap.Records[1].ID})

	other := rec(9, 9, 2, model.PeriodMorning, 0, true)
	v.Apply(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: 2, Record: &other})
	assert.Equal(t, 2, v.Snapshot().UniqueAttendees, "changes for other events are ignored")

	v.Apply(feed.Change{Table: feed.TableEvents, Op: feed.OpDelete, EventID: 1})
	assert.Equal(t, 0, v.Snapshot().UniqueAttendees)
}

func TestLiveView_RefreshFailureIsStorageError(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	err := NewLiveView(src, 1).Refresh(context.Background())
	assert.True(t, IsStorage(err))
}

func TestLiveView_RunFollowsBroker(t *testing.T) {
	src := &fakeSource{}
	broker := feed.NewBroker(8)
	v := NewLiveView(src, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, broker) }()

	require.Eventually(t, func() bool { return broker.Subscribers() == 1 && src.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	r := rec(1, 1, 1, model.PeriodAfternoon, 0, true)
	broker.Publish(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: 1, Record: &r})
	require.Eventually(t, func() bool { return v.Snapshot().UniqueAttendees == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestLiveView_OnChangeSeesEveryView(t *testing.T) {
	src := &fakeSource{}
	broker := feed.NewBroker(8)
	v := NewLiveView(src, 1)

	views := make(chan View, 4)
	v.OnChange(func(view View) { views <- view })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go v.Run(ctx, broker)

	select {
	case first := <-views:
		assert.Equal(t, 0, first.UniqueAttendees)
	case <-time.After(time.Second):
		t.Fatal("no view after load")
	}

	r := rec(1, 2, 1, model.PeriodMorning, 0, true)
	broker.Publish(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: 1, Record: &r})
	select {
	case next := <-views:
		assert.Equal(t, 1, next.UniqueAttendees)
		require.Len(t, next.Students, 1)
		assert.Equal(t, int64(2), next.Students[0].StudentID)
	case <-time.After(time.Second):
		t.Fatal("no view after change")
	}
}

package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qr-attendance-backend/config"
	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/db"
	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/parse"
	"qr-attendance-backend/internal/roster"
	"qr-attendance-backend/internal/scan"
	"qr-attendance-backend/internal/store"
)

func openTestStore(t *testing.T, name string, broker *feed.Broker) store.Store {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(testDB))
	return store.NewGormStore(testDB, broker)
}

func addStudent(t *testing.T, s store.Store, code, name string) model.Student {
	t.Helper()
	payload, err := parse.QRPayload(code)
	require.NoError(t, err)
	st := model.Student{StudentCode: code, DisplayName: name, QRPayload: payload}
	require.NoError(t, s.CreateStudent(context.Background(), &st))
	return st
}

func nextOutcome(t *testing.T, st *scan.Station) scan.Outcome {
	t.Helper()
	select {
	case out := <-st.Outcomes():
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan outcome")
		return scan.Outcome{}
	}
}

// TestScanLifecycle drives a station through time-in, time-out and re-entry
// against sqlite and checks that a live view following the feed ends up with
// the same consolidated rows as a fresh read.
func TestScanLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := feed.NewBroker(64)
	s := openTestStore(t, "lifecycle", broker)

	ana := addStudent(t, s, "2021-0001", "Ana Cruz")
	ben := addStudent(t, s, "2021-0002", "Ben Reyes")
	event := model.Event{Name: "Foundation Day", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateEvent(ctx, &event))

	rosterSvc := roster.NewService(&config.RosterConfig{Interval: time.Hour}, s)
	changed, err := rosterSvc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	live := attendance.NewLiveView(s, event.ID)
	go live.Run(ctx, broker)

	resolver := attendance.NewResolver(s)
	station := scan.NewStation(resolver, rosterSvc, 10*time.Millisecond, 16)
	go station.Run(ctx)

	scanCode := func(code string, action attendance.Action) scan.Outcome {
		sel := scan.Selection{
			Session: attendance.NewScanSessionContext(access.RoleSuperAdmin, "admin@example.edu", nil),
			EventID: event.ID,
			Period:  model.PeriodMorning,
			Action:  action,
		}
		station.Select(sel)
		time.Sleep(30 * time.Millisecond) // let the previous cool-down lapse
		require.True(t, station.Submit(code))
		return nextOutcome(t, station)
	}

	// Time in, time out, second time out, re-entry.
	out := scanCode(ana.QRPayload, attendance.ActionTimeIn)
	require.NoError(t, out.Err)
	r1 := out.Result.Record
	assert.Equal(t, ana.ID, out.Result.Student.ID)

	out = scanCode(ana.QRPayload, attendance.ActionTimeOut)
	require.NoError(t, out.Err)
	assert.Equal(t, r1.ID, out.Result.Record.ID)
	assert.Equal(t, model.StatusLeft, out.Result.Record.Status)

	out = scanCode(ana.QRPayload, attendance.ActionTimeOut)
	assert.True(t, attendance.IsNoOpenSession(out.Err))

	out = scanCode(ana.QRPayload, attendance.ActionTimeIn)
	require.NoError(t, out.Err)
	r2 := out.Result.Record
	assert.NotEqual(t, r1.ID, r2.ID)

	out = scanCode(ben.QRPayload, attendance.ActionTimeIn)
	require.NoError(t, out.Err)

	out = scanCode("ATT-2099-0000", attendance.ActionTimeIn)
	assert.True(t, attendance.IsUnknownStudent(out.Err))

	// The authoritative view.
	records, err := s.ListAttendanceByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2, attendance.UniqueAttendees(records, event.ID), "Ana's two sessions count once")
	rows := attendance.Consolidate(records, event.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, r2.ID, rows[0].Morning.ID, "re-entry supersedes the closed record")

	// The live view converges on it from feed deltas.
	require.Eventually(t, func() bool {
		v := live.Snapshot()
		return v.UniqueAttendees == 2 && len(v.Records) == 3
	}, 2*time.Second, 10*time.Millisecond)
	liveRows := live.Snapshot().Students
	require.Len(t, liveRows, 2)
	for i := range rows {
		assert.Equal(t, rows[i].StudentID, liveRows[i].StudentID)
		assert.Equal(t, rows[i].Morning.ID, liveRows[i].Morning.ID)
		assert.Equal(t, rows[i].Morning.Status, liveRows[i].Morning.Status)
	}
}

// TestConcurrentTimeOutClosesOnce races several closes of the same open
// record; exactly one wins and the rest see nothing to close.
func TestConcurrentTimeOutClosesOnce(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "race", nil)
	ana := addStudent(t, s, "2021-0001", "Ana Cruz")

	rec := model.AttendanceRecord{
		StudentID:  ana.ID,
		EventID:    1,
		TimePeriod: model.PeriodAfternoon,
		TimeIn:     time.Now().UTC().Truncate(time.Second),
		Status:     model.StatusPresent,
	}
	require.NoError(t, s.InsertAttendance(ctx, &rec))

	resolver := attendance.NewResolver(s)
	sess := attendance.NewScanSessionContext(access.RoleSuperAdmin, "admin@example.edu", nil)

	const racers = 5
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(ctx, sess, attendance.Request{
				StudentID: ana.ID,
				EventID:   1,
				Period:    model.PeriodAfternoon,
				Action:    attendance.ActionTimeOut,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, attendance.IsNoOpenSession(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

// TestRosterPicksUpNewStudents checks the station resolves a student added
// after start-up once the roster has synced, and via the store before that.
func TestRosterPicksUpNewStudents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "roster", nil)
	rosterSvc := roster.NewService(&config.RosterConfig{Interval: time.Hour}, s)
	_, err := rosterSvc.Sync(ctx)
	require.NoError(t, err)

	late := addStudent(t, s, "2022-0100", "Carla Santos")
	_, ok := rosterSvc.StudentByQR(late.QRPayload)
	assert.False(t, ok)

	resolver := attendance.NewResolver(s)
	sess := attendance.NewScanSessionContext(access.RoleSuperAdmin, "admin@example.edu", nil)
	res, err := resolver.ResolveScan(ctx, sess, rosterSvc, late.QRPayload, 3, model.PeriodMorning, attendance.ActionTimeIn)
	require.NoError(t, err, "store fallback")
	assert.Equal(t, late.ID, res.Student.ID)

	// The new row changes the roster version.
	changed, err := rosterSvc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	_, ok = rosterSvc.StudentByQR(late.QRPayload)
	assert.True(t, ok)
}

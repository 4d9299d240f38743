package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type names map[int64]string

func (n names) StudentByID(id int64) (model.Student, bool) {
	name, ok := n[id]
	return model.Student{ID: id, DisplayName: name}, ok
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

const subscriptionsQuery = `SELECT .* FROM "push_subscriptions".*JOIN subscription_event_mapping sem.*WHERE sem\.event_id = \$1`

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, nil, nil, &webpush.Options{})
	wp.Dispatch(Job{EventID: 123})

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job.EventID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestMessage(t *testing.T) {
	out := time.Now()
	assert.Equal(t, "Ana Cruz timed in (AM)", Message("Ana Cruz", model.AttendanceRecord{TimePeriod: model.PeriodMorning, Status: model.StatusPresent}))
	assert.Equal(t, "Ana Cruz timed out (PM)", Message("Ana Cruz", model.AttendanceRecord{TimePeriod: model.PeriodAfternoon, Status: model.StatusLeft, TimeOut: &out}))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB, nil), names{7: "Ana Cruz"}, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "Ana Cruz timed in (AM)", string(payload))
				wg.Done()
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(int64(101)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", time.Now()))

		wp.Dispatch(Job{EventID: 101, Record: model.AttendanceRecord{StudentID: 7, TimePeriod: model.PeriodMorning, Status: model.StatusPresent}})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(int64(102)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "p", "a", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM subscription_event_mapping WHERE push_subscription_endpoint = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(Job{EventID: 102, Record: model.AttendanceRecord{StudentID: 7, TimePeriod: model.PeriodMorning, Status: model.StatusPresent}})

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("falls back to student id when the name is unknown", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "Student 42 timed in (PM)", string(payload))
				wg.Done()
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(int64(103)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/fallback", "p", "a", time.Now()))

		wp.Dispatch(Job{EventID: 103, Record: model.AttendanceRecord{StudentID: 42, TimePeriod: model.PeriodAfternoon, Status: model.StatusPresent}})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkerPool_FollowsAttendanceChanges(t *testing.T) {
	broker := feed.NewBroker(4)
	wp := NewWorkerPool(1, nil, nil, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wp.Follow(ctx, broker)
	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	broker.Publish(feed.Change{Table: feed.TableEvents, Op: feed.OpInsert, EventID: 9})
	rec := model.AttendanceRecord{ID: 1, StudentID: 2, EventID: 9}
	broker.Publish(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: 9, Record: &rec})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(9), job.EventID)
		assert.Equal(t, int64(1), job.Record.ID)
	case <-time.After(time.Second):
		t.Fatal("attendance change was not dispatched")
	}
}

package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/metrics"
	"qr-attendance-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the part of the store the pool reads and prunes.
type Subscriptions interface {
	SubscriptionsForEvent(ctx context.Context, eventID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// StudentNames resolves a student id to a display name, usually from the roster.
type StudentNames interface {
	StudentByID(id int64) (model.Student, bool)
}

// Job is one attendance change to announce.
type Job struct {
	EventID int64
	Record  model.AttendanceRecord
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	subs    Subscriptions
	names   StudentNames
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. names may be nil.
func NewWorkerPool(size int, subs Subscriptions, names StudentNames, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		subs:    subs,
		names:   names,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.sendNotificationsForEvent(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(job Job) {
	wp.jobs <- job
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// Follow dispatches a job for every attendance insert or update published on
// the broker until ctx is cancelled.
func (wp *WorkerPool) Follow(ctx context.Context, broker *feed.Broker) {
	sub, cancel := broker.Subscribe(func(c feed.Change) bool {
		return c.Table == feed.TableAttendance && c.Record != nil
	})
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			select {
			case wp.jobs <- Job{EventID: c.EventID, Record: *c.Record}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Message renders the notification text, e.g. "Ana Cruz timed in (AM)".
func Message(name string, rec model.AttendanceRecord) string {
	verb := "timed in"
	if !rec.IsOpen() {
		verb = "timed out"
	}
	return fmt.Sprintf("%s %s (%s)", name, verb, rec.TimePeriod.Label())
}

func (wp *WorkerPool) studentLabel(id int64) string {
	if wp.names != nil {
		if s, ok := wp.names.StudentByID(id); ok && s.DisplayName != "" {
			return s.DisplayName
		}
	}
	return fmt.Sprintf("Student %d", id)
}

func (wp *WorkerPool) sendNotificationsForEvent(ctx context.Context, job Job) {
	subscriptions, err := wp.subs.SubscriptionsForEvent(ctx, job.EventID)
	if err != nil {
		log.Printf("Error fetching subscriptions for event %d: %v", job.EventID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	message := Message(wp.studentLabel(job.Record.StudentID), job.Record)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		metrics.NotificationsTotal.WithLabelValues("expired").Inc()
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

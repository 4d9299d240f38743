// Package attendance decides what an attendance scan does to the store and
// derives the consolidated views shown to operators.
package attendance

import (
	"context"
	"fmt"
	"time"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/metrics"
	"qr-attendance-backend/internal/model"
)

// Action is what the operator asked for.
type Action string

const (
	ActionTimeIn  Action = "time_in"
	ActionTimeOut Action = "time_out"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionTimeIn || a == ActionTimeOut
}

// DoubleTimeInPolicy decides what happens to a time-in while a session for
// the same student, event and period is still open.
type DoubleTimeInPolicy string

const (
	// AllowDoubleTimeIn creates a second open record.
	AllowDoubleTimeIn DoubleTimeInPolicy = "permissive"
	// RejectDoubleTimeIn fails with SessionAlreadyOpenError.
	RejectDoubleTimeIn DoubleTimeInPolicy = "reject"
)

// Repository is the slice of the store the resolver writes through.
type Repository interface {
	InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	LatestOpenAttendance(ctx context.Context, studentID, eventID int64, period model.Period) (*model.AttendanceRecord, error)
	CloseAttendance(ctx context.Context, id int64, at time.Time) (*model.AttendanceRecord, error)
	FindStudentByQR(ctx context.Context, payload string) (*model.Student, error)
}

// StudentLookup is the in-memory roster consulted before the store.
type StudentLookup interface {
	StudentByQR(payload string) (model.Student, bool)
}

// Invalidator drops cached views derived from an event's attendance.
type Invalidator interface {
	InvalidateEvent(eventID int64)
}

// Request is one attendance action for a known student.
type Request struct {
	StudentID int64
	EventID   int64
	Period    model.Period
	Action    Action
}

// Result describes the row the resolver wrote.
type Result struct {
	Action  Action
	Record  model.AttendanceRecord
	Student *model.Student
}

// Resolver turns requests into attendance writes.
type Resolver struct {
	repo         Repository
	invalidators []Invalidator
	policy       DoubleTimeInPolicy
	now          func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the double time-in policy.
func WithPolicy(p DoubleTimeInPolicy) Option {
	return func(r *Resolver) {
		if p == RejectDoubleTimeIn {
			r.policy = RejectDoubleTimeIn
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithInvalidator registers a cache that must be dropped after every write.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Resolver) {
		if inv != nil {
			r.invalidators = append(r.invalidators, inv)
		}
	}
}

// NewResolver creates a resolver writing through repo.
func NewResolver(repo Repository, opts ...Option) *Resolver {
	r := &Resolver{
		repo:   repo,
		policy: AllowDoubleTimeIn,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured double time-in policy.
func (r *Resolver) Policy() DoubleTimeInPolicy { return r.policy }

// Resolve applies req on behalf of the session.
func (r *Resolver) Resolve(ctx context.Context, sess ScanSessionContext, req Request) (Result, error) {
	started := time.Now()
	res, err := r.resolve(ctx, sess, req)
	metrics.ObserveResolution(string(req.Action), resultLabel(err), started)
	return res, err
}

// ResolveScan maps a decoded payload to a student and applies the action.
// The session and selection are checked before any lookup, so a caller who
// may not scan learns nothing about the payload. The roster is consulted
// first and the store only on a miss.
func (r *Resolver) ResolveScan(ctx context.Context, sess ScanSessionContext, roster StudentLookup, payload string, eventID int64, period model.Period, action Action) (Result, error) {
	if _, err := admit(sess, Request{EventID: eventID, Period: period, Action: action}); err != nil {
		metrics.ResolutionsTotal.WithLabelValues(string(action), resultLabel(err)).Inc()
		return Result{}, err
	}

	student, err := r.lookupStudent(ctx, roster, payload)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(string(action), resultLabel(err)).Inc()
		return Result{}, err
	}

	res, err := r.Resolve(ctx, sess, Request{
		StudentID: student.ID,
		EventID:   eventID,
		Period:    period,
		Action:    action,
	})
	if err != nil {
		return Result{}, err
	}
	res.Student = student
	return res, nil
}

func (r *Resolver) lookupStudent(ctx context.Context, roster StudentLookup, payload string) (*model.Student, error) {
	if roster != nil {
		if s, ok := roster.StudentByQR(payload); ok {
			return &s, nil
		}
	}
	s, err := r.repo.FindStudentByQR(ctx, payload)
	if err != nil {
		return nil, storageErr("student lookup", err)
	}
	if s == nil {
		return nil, &UnknownStudentError{Code: payload}
	}
	return s, nil
}

// admit checks that sess may perform req and returns the event it applies to.
func admit(sess ScanSessionContext, req Request) (int64, error) {
	if !sess.Capabilities.CanScan {
		return 0, &access.ErrForbidden{Role: sess.Role, Action: "record attendance"}
	}
	eventID, err := sess.EventFor(req.EventID)
	if err != nil {
		return 0, err
	}
	if !req.Period.Valid() {
		return 0, fmt.Errorf("%w: period %q", ErrInvalidRequest, req.Period)
	}
	if !req.Action.Valid() {
		return 0, fmt.Errorf("%w: action %q", ErrInvalidRequest, req.Action)
	}
	return eventID, nil
}

func (r *Resolver) resolve(ctx context.Context, sess ScanSessionContext, req Request) (Result, error) {
	eventID, err := admit(sess, req)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if req.Action == ActionTimeIn {
		res, err = r.timeIn(ctx, req.StudentID, eventID, req.Period)
	} else {
		res, err = r.timeOut(ctx, req.StudentID, eventID, req.Period)
	}
	if err != nil {
		return Result{}, err
	}

	for _, inv := range r.invalidators {
		inv.InvalidateEvent(eventID)
	}
	return res, nil
}

func (r *Resolver) timeIn(ctx context.Context, studentID, eventID int64, period model.Period) (Result, error) {
	if r.policy == RejectDoubleTimeIn {
		open, err := r.repo.LatestOpenAttendance(ctx, studentID, eventID, period)
		if err != nil {
			return Result{}, storageErr("open session lookup", err)
		}
		if open != nil {
			return Result{}, &SessionAlreadyOpenError{RecordID: open.ID, Period: period}
		}
	}

	rec := model.AttendanceRecord{
		StudentID:  studentID,
		EventID:    eventID,
		TimePeriod: period,
		TimeIn:     r.now(),
		Status:     model.StatusPresent,
	}
	if err := r.repo.InsertAttendance(ctx, &rec); err != nil {
		return Result{}, storageErr("time in", err)
	}
	return Result{Action: ActionTimeIn, Record: rec}, nil
}

func (r *Resolver) timeOut(ctx context.Context, studentID, eventID int64, period model.Period) (Result, error) {
	noSession := &NoOpenSessionError{StudentID: studentID, EventID: eventID, Period: period}

	open, err := r.repo.LatestOpenAttendance(ctx, studentID, eventID, period)
	if err != nil {
		return Result{}, storageErr("open session lookup", err)
	}
	if open == nil {
		return Result{}, noSession
	}

	closed, err := r.repo.CloseAttendance(ctx, open.ID, r.now())
	if err != nil {
		return Result{}, storageErr("time out", err)
	}
	if closed == nil {
		// Someone else closed it between our read and write.
		return Result{}, noSession
	}
	return Result{Action: ActionTimeOut, Record: *closed}, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsUnknownStudent(err):
		return "unknown_student"
	case IsNoOpenSession(err):
		return "no_open_session"
	case IsStorage(err):
		return "storage_error"
	default:
		return "rejected"
	}
}

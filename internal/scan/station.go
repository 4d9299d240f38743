// Package scan turns decoded QR text into attendance writes, one code at a
// time per station.
package scan

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/metrics"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/parse"
)

// Resolver resolves a decoded payload into an attendance write.
type Resolver interface {
	ResolveScan(ctx context.Context, sess attendance.ScanSessionContext, roster attendance.StudentLookup, payload string, eventID int64, period model.Period, action attendance.Action) (attendance.Result, error)
}

// Selection is what the operator currently has selected on the station.
type Selection struct {
	Session attendance.ScanSessionContext
	EventID int64
	Period  model.Period
	Action  attendance.Action
}

// Outcome is the feedback for one processed code.
type Outcome struct {
	ID      uuid.UUID
	Payload string
	Result  attendance.Result
	Err     error
	At      time.Time
}

// request is one code waiting in a station's inbox. Codes from Scan carry
// their own selection and a reply channel; codes from Submit use the
// station's current selection and report on Outcomes.
type request struct {
	ctx     context.Context
	payload string
	sel     *Selection
	reply   chan reply
}

type reply struct {
	out      Outcome
	accepted bool
}

// Station is one scanning endpoint. Submit and Scan may be called from any
// goroutine; a single Run loop processes codes in arrival order.
type Station struct {
	resolver Resolver
	roster   attendance.StudentLookup
	gate     *Gate
	cooldown time.Duration

	inbox    chan request
	outcomes chan Outcome
	queue    *collections.OrderedQueue[request]

	mu  sync.RWMutex
	sel Selection
}

// NewStation creates a station. roster may be nil, in which case every code
// is looked up in the store. Nothing is processed until Run is started.
func NewStation(resolver Resolver, roster attendance.StudentLookup, cooldown time.Duration, inboxSize int) *Station {
	if inboxSize <= 0 {
		inboxSize = 64
	}
	return &Station{
		resolver: resolver,
		roster:   roster,
		gate:     &Gate{},
		cooldown: cooldown,
		inbox:    make(chan request, inboxSize),
		outcomes: make(chan Outcome, inboxSize),
		queue:    collections.NewOrderedQueue[request](inboxSize),
	}
}

// Select changes what subsequent scans apply to.
func (s *Station) Select(sel Selection) {
	s.mu.Lock()
	s.sel = sel
	s.mu.Unlock()
}

func (s *Station) selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Outcomes delivers one Outcome per submitted code that passed the gate.
func (s *Station) Outcomes() <-chan Outcome {
	return s.outcomes
}

func decode(decoded string) (string, error) {
	payload, err := parse.DecodedText(decoded)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("unreadable").Inc()
		return "", err
	}
	return payload, nil
}

// Submit hands a decoded string to the station. It never blocks; it returns
// false when the text is not a code or the inbox is full.
func (s *Station) Submit(decoded string) bool {
	payload, err := decode(decoded)
	if err != nil {
		log.Printf("scan station: ignoring unreadable code: %v", err)
		return false
	}
	select {
	case s.inbox <- request{payload: payload}:
		return true
	default:
		metrics.ScansTotal.WithLabelValues("dropped").Inc()
		log.Printf("scan station: inbox full, dropped %s", payload)
		return false
	}
}

// Scan queues one decoded string behind every code that arrived before it and
// waits for its outcome. accepted is false when the gate suppressed the code
// as a duplicate. err is set for text that is not a code at all, or when ctx
// ends before the code was processed.
func (s *Station) Scan(ctx context.Context, sel Selection, decoded string) (out Outcome, accepted bool, err error) {
	payload, err := decode(decoded)
	if err != nil {
		return Outcome{}, false, err
	}

	req := request{ctx: ctx, payload: payload, sel: &sel, reply: make(chan reply, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return Outcome{}, false, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.out, r.accepted, nil
	case <-ctx.Done():
		return Outcome{}, false, ctx.Err()
	}
}

// Run consumes the inbox until ctx is cancelled.
func (s *Station) Run(ctx context.Context) {
	log.Println("Scan station started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Scan station shutting down")
			return
		case req := <-s.inbox:
			s.queue.Enqueue(req)
			s.collect()
			s.drain(ctx)
		}
	}
}

// collect moves whatever else is already waiting into the queue.
func (s *Station) collect() {
	for {
		select {
		case req := <-s.inbox:
			s.queue.Enqueue(req)
		default:
			return
		}
	}
}

func (s *Station) drain(ctx context.Context) {
	for {
		req, ok := s.queue.Dequeue()
		if !ok {
			return
		}
		s.handle(ctx, req)
	}
}

func (s *Station) handle(ctx context.Context, req request) {
	sel := s.selection()
	if req.sel != nil {
		sel = *req.sel
	}
	if req.ctx != nil {
		// The caller gave up waiting; do not spend the gate on it.
		if req.ctx.Err() != nil {
			return
		}
		ctx = req.ctx
	}

	out, accepted := s.process(ctx, sel, req.payload)
	if req.reply != nil {
		req.reply <- reply{out: out, accepted: accepted}
		return
	}
	if !accepted {
		return
	}
	select {
	case s.outcomes <- out:
	default:
		log.Printf("scan %s: no reader for outcome, dropped", out.ID)
	}
}

// process must only be called from the Run goroutine.
func (s *Station) process(ctx context.Context, sel Selection, payload string) (Outcome, bool) {
	if !s.gate.Accept(payload) {
		metrics.ScansTotal.WithLabelValues("duplicate").Inc()
		return Outcome{}, false
	}
	// Released on success and failure alike so the operator can rescan.
	time.AfterFunc(s.cooldown, s.gate.Release)

	res, err := s.resolver.ResolveScan(ctx, sel.Session, s.roster, payload, sel.EventID, sel.Period, sel.Action)

	out := Outcome{
		ID:      uuid.New(),
		Payload: payload,
		Result:  res,
		Err:     err,
		At:      time.Now().UTC(),
	}
	if err != nil {
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		log.Printf("scan %s: %s failed: %v", out.ID, payload, err)
	} else {
		metrics.ScansTotal.WithLabelValues("recorded").Inc()
	}
	return out, true
}

// Package roster keeps the scan stations' in-memory student index in step
// with the students table.
package roster

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"qr-attendance-backend/config"
	"qr-attendance-backend/internal/collections"
	"qr-attendance-backend/internal/metrics"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/store"
)

// Source is the part of the store the roster reads.
type Source interface {
	RosterVersion(ctx context.Context) (store.RosterVersion, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
}

// Snapshot is an immutable roster built from one read of the students table.
type Snapshot struct {
	Version store.RosterVersion
	byQR    *collections.KeyedIndex[string, model.Student]
	byID    *collections.KeyedIndex[int64, model.Student]
}

func newSnapshot(v store.RosterVersion, students []model.Student) *Snapshot {
	s := &Snapshot{
		Version: v,
		byQR:    collections.NewKeyedIndex[string, model.Student](len(students)),
		byID:    collections.NewKeyedIndex[int64, model.Student](len(students)),
	}
	for _, st := range students {
		if st.QRPayload != "" {
			s.byQR.Set(st.QRPayload, st)
		}
		s.byID.Set(st.ID, st)
	}
	return s
}

// Len returns the number of students in the snapshot.
func (s *Snapshot) Len() int { return s.byID.Len() }

// Service periodically reloads the roster when the students table changes.
type Service struct {
	src      Source
	interval time.Duration
	current  atomic.Pointer[Snapshot]
}

// NewService creates a roster service. The roster is empty until the first
// Sync.
func NewService(cfg *config.RosterConfig, src Source) *Service {
	s := &Service{src: src, interval: cfg.Interval}
	s.current.Store(newSnapshot(store.RosterVersion{}, nil))
	return s
}

// Run syncs immediately and then every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Println("Starting roster sync...")
	if _, err := s.Sync(ctx); err != nil {
		log.Printf("Initial roster sync failed: %v", err)
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Roster sync shutting down.")
			return
		case <-timer.C:
			if _, err := s.Sync(ctx); err != nil {
				log.Printf("Roster sync failed, keeping previous roster: %v", err)
			}
			timer.Reset(s.interval)
		}
	}
}

// Sync reloads the roster if its version changed. It reports whether a new
// snapshot was installed.
func (s *Service) Sync(ctx context.Context) (bool, error) {
	v, err := s.src.RosterVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read roster version: %w", err)
	}
	if s.current.Load().Version.Equal(v) {
		return false, nil
	}

	students, err := s.src.ListStudents(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load roster: %w", err)
	}
	snap := newSnapshot(v, students)
	s.current.Store(snap)
	metrics.RosterSize.Set(float64(snap.Len()))
	log.Printf("Roster reloaded: %d students", snap.Len())
	return true, nil
}

// StudentByQR looks a payload up in the current snapshot.
func (s *Service) StudentByQR(payload string) (model.Student, bool) {
	return s.current.Load().byQR.Get(payload)
}

// StudentByID looks a student up by primary key in the current snapshot.
func (s *Service) StudentByID(id int64) (model.Student, bool) {
	return s.current.Load().byID.Get(id)
}

// Snapshot returns the currently installed roster.
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

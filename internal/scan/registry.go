package scan

import (
	"context"
	"sync"
	"time"

	"qr-attendance-backend/internal/attendance"
)

// Registry hands out one Station per operator so each scanning device gets
// its own gate and processing order. Every station it creates runs until the
// registry's context ends.
type Registry struct {
	ctx       context.Context
	resolver  Resolver
	roster    attendance.StudentLookup
	cooldown  time.Duration
	inboxSize int

	mu       sync.Mutex
	stations map[string]*Station
}

// NewRegistry creates an empty registry whose stations share resolver and roster.
func NewRegistry(ctx context.Context, resolver Resolver, roster attendance.StudentLookup, cooldown time.Duration, inboxSize int) *Registry {
	return &Registry{
		ctx:       ctx,
		resolver:  resolver,
		roster:    roster,
		cooldown:  cooldown,
		inboxSize: inboxSize,
		stations:  make(map[string]*Station),
	}
}

// For returns the operator's station, creating it on first use.
func (r *Registry) For(operator string) *Station {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stations[operator]
	if !ok {
		st = NewStation(r.resolver, r.roster, r.cooldown, r.inboxSize)
		r.stations[operator] = st
		go st.Run(r.ctx)
	}
	return st
}

// Len returns the number of stations created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stations)
}

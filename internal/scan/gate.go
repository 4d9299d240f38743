package scan

import "sync"

// Gate suppresses repeated decodes of the same physical code. While busy it
// rejects every code; after Release it accepts anything again.
type Gate struct {
	mu       sync.Mutex
	lastCode string
	busy     bool
}

// Accept reports whether code should be processed. An accepted code marks the
// gate busy until Release.
func (g *Gate) Accept(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy || code == g.lastCode {
		return false
	}
	g.busy = true
	g.lastCode = code
	return true
}

// Release clears the gate. The station calls it once the cool-down elapses.
func (g *Gate) Release() {
	g.mu.Lock()
	g.busy = false
	g.lastCode = ""
	g.mu.Unlock()
}

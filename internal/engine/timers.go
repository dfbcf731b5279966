package engine

import "time"

// Fixed delays for the scheduled transitions.
const (
	EndOfDeckDelay = 1000 * time.Millisecond // Final swipe to endGame
	DustDelay      = 400 * time.Millisecond  // Collapse to dust effect
	CollapseDelay  = 2500 * time.Millisecond // Collapse to endGame(true)
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Callbacks run on their own goroutine and
// must not assume the caller's locks are held.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules with real timers.
type WallClock struct{}

// AfterFunc wraps time.AfterFunc.
func (WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// schedule runs fn under the game lock after d, unless the session that
// scheduled it has since been replaced. Caller must hold g.mu.
func (g *Game) schedule(d time.Duration, fn func()) {
	session := g.session
	t := g.sched.AfterFunc(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.session != session {
			return
		}
		fn()
	})
	g.timers = append(g.timers, t)
}

// cancelTimers stops everything the current session scheduled.
// Caller must hold g.mu.
func (g *Game) cancelTimers() {
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
}

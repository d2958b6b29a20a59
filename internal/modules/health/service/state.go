package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot — последнее состояние трейдера для /healthz.
type Snapshot struct {
	Cycle          int     `json:"cycle"`
	Balance        float64 `json:"balance"`
	Available      float64 `json:"available"`
	Invested       float64 `json:"invested"`
	ExposurePct    float64 `json:"exposure_pct"`
	OpenPositions  int     `json:"open_positions"`
	PendingEntries int     `json:"pending_entries"`
	ClosedTrades   int     `json:"closed_trades"`
	Consistent     bool    `json:"consistent"`
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time
	now       func() time.Time

	lastCycleUnix atomic.Int64 // unix seconds

	mu   sync.RWMutex
	snap Snapshot
}

func NewState() *State {
	s := &State{startedAt: time.Now(), now: time.Now}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// TouchCycle — цикл завершён, снимок обновлён.
func (s *State) TouchCycle(t time.Time, snap Snapshot) {
	s.lastCycleUnix.Store(t.Unix())
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Stale: с последнего цикла прошло больше maxAge; до первого цикла — не stale.
func (s *State) Stale(maxAge time.Duration) bool {
	last := s.LastCycle()
	return !last.IsZero() && maxAge > 0 && s.now().Sub(last) > maxAge
}

func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }

// Package status holds the shared snapshot of daemon health consumed by
// both the REST and gRPC boundaries in internal/api.
package status

import (
	"sync"
	"time"

	"github.com/jbride/mujina/internal/backplane"
)

// Sink is the single source of truth the API layer reads from; it reads
// board state from the backplane on demand and holds per-board hash rates
// recorded through RecordHashRate.
type Sink struct {
	mu        sync.RWMutex
	backplane *backplane.Backplane
	hashRates map[string]float64
	startedAt time.Time
}

func NewSink(bp *backplane.Backplane) *Sink {
	return &Sink{backplane: bp, hashRates: make(map[string]float64), startedAt: time.Now()}
}

// Boards returns the current board map.
func (s *Sink) Boards() map[string]backplane.BoardStatus {
	return s.backplane.Snapshot()
}

// RecordHashRate stores the latest hash-rate estimate for devicePath.
func (s *Sink) RecordHashRate(devicePath string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashRates[devicePath] = rate
}

// HashRate returns the most recently recorded hash-rate for devicePath.
func (s *Sink) HashRate(devicePath string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.hashRates[devicePath]
	return r, ok
}

// Uptime returns how long the daemon has been running.
func (s *Sink) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

package health

import (
	"sync"
	"time"
)

// Result represents the outcome of one probe of a dependency
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Config controls how results turn into a health verdict
type Config struct {
	// FailureThreshold is the number of consecutive failures before marking as unhealthy
	FailureThreshold int

	// StartPeriod is the grace period during which failures are not counted
	StartPeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		StartPeriod:      0,
	}
}

// Status tracks the health of a dependency across probes.
// It is safe for concurrent use.
type Status struct {
	mu sync.RWMutex

	consecutiveFailures  int
	consecutiveSuccesses int
	lastResult           Result
	healthy              bool
	startedAt            time.Time
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		healthy:   true, // Assume healthy until proven otherwise
		startedAt: time.Now(),
	}
}

// Update updates the status based on a new result and reports whether the
// verdict changed
func (s *Status) Update(result Result, config Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.healthy
	s.lastResult = result

	if result.Healthy {
		s.consecutiveSuccesses++
		s.consecutiveFailures = 0

		// Mark as healthy after first success
		s.healthy = true
	} else {
		s.consecutiveSuccesses = 0
		if s.inStartPeriod(config) {
			return false
		}
		s.consecutiveFailures++

		// Mark as unhealthy after reaching the threshold
		threshold := config.FailureThreshold
		if threshold < 1 {
			threshold = 1
		}
		if s.consecutiveFailures >= threshold {
			s.healthy = false
		}
	}
	return before != s.healthy
}

// Healthy reports the current verdict
func (s *Status) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// ConsecutiveFailures returns the length of the current failure streak
func (s *Status) ConsecutiveFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consecutiveFailures
}

// LastResult returns the most recent result
func (s *Status) LastResult() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// InStartPeriod returns true if we're still in the startup grace period
func (s *Status) InStartPeriod(config Config) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inStartPeriod(config)
}

func (s *Status) inStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.startedAt) < config.StartPeriod
}

package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sentinel/pkg/storage"
)

// Waiter provides utilities for waiting on conditions with timeouts
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{
		timeout:  timeout,
		interval: interval,
	}
}

// DefaultWaiter returns a waiter with sensible defaults (5s timeout, 10ms interval)
func DefaultWaiter() *Waiter {
	return NewWaiter(5*time.Second, 10*time.Millisecond)
}

// WaitFor waits for a condition to become true
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForOperations waits until the store holds at least n operations for the appliance
func (w *Waiter) WaitForOperations(ctx context.Context, store storage.Store, applianceID string, n int) error {
	return w.WaitFor(ctx, func() bool {
		page, err := store.ListOperations(storage.OperationQuery{ApplianceID: applianceID, Size: storage.MaxPageSize})
		if err != nil {
			return false
		}
		return page.TotalElements >= n
	}, fmt.Sprintf("%d operations for appliance %s", n, applianceID))
}

// PendingCounter reports how many appliances are claimed
type PendingCounter interface {
	Pending() int
}

// WaitForIdle waits until no appliance is claimed
func (w *Waiter) WaitForIdle(ctx context.Context, q PendingCounter) error {
	return w.WaitFor(ctx, func() bool {
		return q.Pending() == 0
	}, "remediation queue to become idle")
}

package remediation

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Queue is the part of the remediation queue the dispatcher needs
type Queue interface {
	PollOne() (types.Appliance, bool)
	Release(id string)
	Offer(appliances []types.Appliance)
}

// Submitter accepts tasks without blocking
type Submitter interface {
	Submit(a types.Appliance) error
}

// Dispatcher moves queued appliances to the worker pool on a fast tick
type Dispatcher struct {
	queue     Queue
	submitter Submitter
	events    events.Publisher
	interval  time.Duration
	logger    zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher creates a new dispatcher. publisher may be nil.
func NewDispatcher(queue Queue, submitter Submitter, publisher events.Publisher, interval time.Duration) (*Dispatcher, error) {
	if queue == nil || submitter == nil {
		return nil, fmt.Errorf("dispatcher requires a queue and a submitter")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("dispatch interval must be positive, got %s", interval)
	}
	return &Dispatcher{
		queue:     queue,
		submitter: submitter,
		events:    publisher,
		interval:  interval,
		logger:    log.WithComponent("dispatcher"),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins the dispatch loop
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the dispatch loop and waits for it to exit
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.dispatchOnce()
		case <-d.stopCh:
			return
		}
	}
}

// dispatchOnce hands at most one queued appliance to the pool. A rejected
// appliance is released and offered again so it can be retried later.
func (d *Dispatcher) dispatchOnce() bool {
	a, ok := d.queue.PollOne()
	if !ok {
		return false
	}

	err := d.submitter.Submit(a)
	if err == nil {
		d.logger.Debug().Str("appliance_id", a.ID).Msg("Dispatched appliance")
		return true
	}

	d.queue.Release(a.ID)
	d.queue.Offer([]types.Appliance{a})

	metrics.DispatchRejectionsTotal.Inc()
	d.logger.Warn().Err(err).Str("appliance_id", a.ID).Msg("Worker pool rejected appliance, requeued")
	if d.events != nil {
		d.events.Publish(&events.Event{
			Type:        events.EventApplianceRequeued,
			ApplianceID: a.ID,
			Message:     err.Error(),
		})
	}
	return false
}

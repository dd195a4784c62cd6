package queue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Offer outcomes, used as metric labels
const (
	OutcomeAdmitted  = "admitted"
	OutcomeDuplicate = "duplicate"
	OutcomeDropped   = "dropped"
)

// Queue is a capacity-bounded, identity-deduplicating remediation queue.
//
// The pending set holds every claimed appliance id, from the moment it is
// admitted until Release. The backlog holds the claimed appliances that have
// not been dispatched yet, in FIFO order. An id can leave the backlog and stay
// pending while a worker executes it.
type Queue struct {
	pending      sync.Map // appliance id -> struct{}
	pendingCount atomic.Int64
	backlog      chan types.Appliance
	maxSize      int
	logger       zerolog.Logger
}

// New creates a queue whose backlog holds at most maxSize appliances
func New(maxSize int) (*Queue, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max queue size must be positive, got %d", maxSize)
	}

	q := &Queue{
		backlog: make(chan types.Appliance, maxSize),
		maxSize: maxSize,
		logger:  log.WithComponent("queue"),
	}
	q.logger.Info().Int("max_size", maxSize).Msg("Remediation queue initialized")
	return q, nil
}

// Offer claims and enqueues each appliance not already in flight.
// Appliances that are already claimed are skipped. When the backlog is full
// the claim is undone and the appliance is dropped; the next scan cycle
// rediscovers it.
func (q *Queue) Offer(appliances []types.Appliance) {
	var admitted, duplicates, dropped int

	for _, a := range appliances {
		if _, loaded := q.pending.LoadOrStore(a.ID, struct{}{}); loaded {
			duplicates++
			q.logger.Debug().Str("appliance_id", a.ID).Msg("Appliance already in flight, skipping")
			continue
		}
		q.pendingCount.Add(1)

		select {
		case q.backlog <- a:
			admitted++
			q.logger.Debug().Str("appliance_id", a.ID).Msg("Added appliance to remediation queue")
		default:
			q.pending.Delete(a.ID)
			q.pendingCount.Add(-1)
			dropped++
			q.logger.Warn().Str("appliance_id", a.ID).Msg("Queue full, skipping appliance until next cycle")
		}
	}

	metrics.QueueOffersTotal.WithLabelValues(OutcomeAdmitted).Add(float64(admitted))
	metrics.QueueOffersTotal.WithLabelValues(OutcomeDuplicate).Add(float64(duplicates))
	metrics.QueueOffersTotal.WithLabelValues(OutcomeDropped).Add(float64(dropped))

	if len(appliances) > 0 {
		q.logger.Info().
			Int("offered", len(appliances)).
			Int("admitted", admitted).
			Int("duplicates", duplicates).
			Int("dropped", dropped).
			Int("backlog", q.Len()).
			Int("pending", q.Pending()).
			Msg("Offered appliances to queue")
	}
}

// PollOne removes and returns the oldest appliance in the backlog.
// The appliance stays claimed until Release is called for its id.
func (q *Queue) PollOne() (types.Appliance, bool) {
	select {
	case a := <-q.backlog:
		q.logger.Debug().Str("appliance_id", a.ID).Msg("Polled appliance for processing")
		return a, true
	default:
		return types.Appliance{}, false
	}
}

// Release removes the claim on an appliance id. Releasing an id that is not
// claimed is a no-op.
func (q *Queue) Release(id string) {
	if _, ok := q.pending.LoadAndDelete(id); !ok {
		metrics.QueueReleaseUnknownTotal.Inc()
		q.logger.Warn().Str("appliance_id", id).Msg("Attempted to release unclaimed appliance")
		return
	}
	q.pendingCount.Add(-1)
	q.logger.Debug().Str("appliance_id", id).Msg("Released appliance")
}

// Len returns the number of appliances waiting in the backlog
func (q *Queue) Len() int {
	return len(q.backlog)
}

// Pending returns the number of claimed appliance ids
func (q *Queue) Pending() int {
	return int(q.pendingCount.Load())
}

// Capacity returns the backlog bound
func (q *Queue) Capacity() int {
	return q.maxSize
}

// IsPending reports whether an appliance id is currently claimed
func (q *Queue) IsPending(id string) bool {
	_, ok := q.pending.Load(id)
	return ok
}

// Stats returns a snapshot of queue occupancy
func (q *Queue) Stats() metrics.QueueStats {
	return metrics.QueueStats{
		Backlog:  q.Len(),
		Pending:  q.Pending(),
		Capacity: q.maxSize,
	}
}

// Package staleness decides whether an appliance has stopped reporting health.
package staleness

import (
	"fmt"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Classifier applies the staleness rule against a fixed threshold
type Classifier struct {
	threshold time.Duration
	logger    zerolog.Logger
}

// NewClassifier creates a classifier; threshold must be positive
func NewClassifier(threshold time.Duration) (*Classifier, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("stale threshold must be positive, got %v", threshold)
	}
	return &Classifier{
		threshold: threshold,
		logger:    log.WithComponent("classifier"),
	}, nil
}

// Threshold returns the configured staleness threshold
func (c *Classifier) Threshold() time.Duration {
	return c.threshold
}

// NeedsRemediation reports whether the appliance should be drained and remediated.
// Only LIVE appliances are candidates. A missing or malformed last-contact
// timestamp counts as stale; otherwise the appliance is stale once the time
// since last contact strictly exceeds the threshold.
func (c *Classifier) NeedsRemediation(a types.Appliance, now time.Time) bool {
	if a.OpStatus != types.OpStatusLive {
		return false
	}

	if a.LastHeardFromOn == nil {
		c.logger.Debug().Str("appliance_id", a.ID).Msg("Needs remediation: no last contact timestamp")
		return true
	}

	lastContact, err := time.Parse(time.RFC3339Nano, *a.LastHeardFromOn)
	if err != nil {
		c.logger.Warn().
			Str("appliance_id", a.ID).
			Str("last_heard_from_on", *a.LastHeardFromOn).
			Msg("Unparsable last contact timestamp, treating as stale")
		return true
	}

	elapsed := now.Sub(lastContact)
	if elapsed > c.threshold {
		c.logger.Debug().
			Str("appliance_id", a.ID).
			Dur("since_contact", elapsed).
			Msg("Needs remediation: last contact exceeds threshold")
		return true
	}

	return false
}

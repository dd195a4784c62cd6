package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/health"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/staleness"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Lister pages through the appliance inventory
type Lister interface {
	ListAppliances(ctx context.Context, cursor string, pageSize int) (*types.AppliancePage, error)
}

// Offerer accepts stale appliances for remediation
type Offerer interface {
	Offer(appliances []types.Appliance)
}

// Config holds scanner settings
type Config struct {
	PageSize         int
	Interval         time.Duration
	FailureThreshold int
}

// DefaultConfig returns the default scan settings
func DefaultConfig() Config {
	return Config{
		PageSize:         100,
		Interval:         5 * time.Minute,
		FailureThreshold: 3,
	}
}

// Result summarizes one scan cycle
type Result struct {
	TotalSeen  int
	StaleFound int
	Pages      int
	Duration   time.Duration
}

// Scanner periodically walks the inventory and offers stale appliances
type Scanner struct {
	lister     Lister
	offerer    Offerer
	classifier *staleness.Classifier
	events     events.Publisher
	config     Config
	status     *health.Status
	logger     zerolog.Logger
	now        func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewScanner creates a new scanner. publisher may be nil.
func NewScanner(lister Lister, offerer Offerer, classifier *staleness.Classifier, publisher events.Publisher, cfg Config) (*Scanner, error) {
	if lister == nil || offerer == nil || classifier == nil {
		return nil, fmt.Errorf("scanner requires a lister, an offerer and a classifier")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scan interval must be positive, got %s", cfg.Interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		lister:     lister,
		offerer:    offerer,
		classifier: classifier,
		events:     publisher,
		config:     cfg,
		status:     health.NewStatus(),
		logger:     log.WithComponent("scanner"),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start runs a scan immediately and then on every interval
func (s *Scanner) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the in-flight scan and waits for the loop to exit
func (s *Scanner) Stop() {
	s.stopOnce.Do(s.cancel)
	s.wg.Wait()
}

// Healthy reports whether the inventory API is considered reachable
func (s *Scanner) Healthy() bool {
	return s.status.Healthy()
}

// run is the main scan loop
func (s *Scanner) run() {
	defer s.wg.Done()

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("threshold", s.classifier.Threshold()).
		Msg("Scanner started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.cycle()
	for {
		select {
		case <-ticker.C:
			s.cycle()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scanner stopped")
			return
		}
	}
}

// cycle runs one scan and records its outcome
func (s *Scanner) cycle() {
	result, err := s.Scan(s.ctx)
	if err != nil && errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		return
	}

	probe := health.Result{
		Healthy:   err == nil,
		CheckedAt: s.now(),
		Duration:  result.Duration,
	}
	if err != nil {
		probe.Message = err.Error()
	}
	s.status.Update(probe, health.Config{FailureThreshold: s.config.FailureThreshold})
	metrics.UpdateComponent(metrics.ComponentInventory, s.status.Healthy(), probe.Message)

	if err != nil {
		metrics.ScanCyclesTotal.WithLabelValues("failure").Inc()
		s.logger.Error().
			Err(err).
			Int("pages", result.Pages).
			Int("failures", s.status.ConsecutiveFailures()).
			Msg("Scan aborted")
		s.publish(&events.Event{
			Type:    events.EventScanFailed,
			Message: err.Error(),
		})
		return
	}

	metrics.ScanCyclesTotal.WithLabelValues("success").Inc()
	metrics.AppliancesSeen.Set(float64(result.TotalSeen))
	metrics.AppliancesStale.Set(float64(result.StaleFound))
	s.logger.Info().
		Int("seen", result.TotalSeen).
		Int("stale", result.StaleFound).
		Int("pages", result.Pages).
		Dur("duration", result.Duration).
		Msg("Scan completed")
	s.publish(&events.Event{
		Type:    events.EventScanCompleted,
		Message: fmt.Sprintf("%d appliances seen, %d stale", result.TotalSeen, result.StaleFound),
		Metadata: map[string]string{
			"seen":  strconv.Itoa(result.TotalSeen),
			"stale": strconv.Itoa(result.StaleFound),
			"pages": strconv.Itoa(result.Pages),
		},
	})
}

// Scan walks every inventory page once. All appliances are judged against
// the same instant, captured before the first page is requested. Stale
// appliances are offered page by page.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	timer := metrics.NewTimer()
	now := s.now()

	var result Result
	defer timer.ObserveDuration(metrics.ScanDuration)

	cursor := ""
	for {
		page, err := s.lister.ListAppliances(ctx, cursor, s.config.PageSize)
		if err != nil {
			result.Duration = timer.Duration()
			return result, fmt.Errorf("failed to list page %d: %w", result.Pages+1, err)
		}
		if page == nil || page.Data == nil {
			s.logger.Warn().Int("page", result.Pages+1).Msg("Empty page, ending scan")
			break
		}

		result.Pages++
		metrics.ScanPagesTotal.Inc()
		result.TotalSeen += len(page.Data)

		var stale []types.Appliance
		for _, a := range page.Data {
			if s.classifier.NeedsRemediation(a, now) {
				stale = append(stale, a)
			}
		}
		if len(stale) > 0 {
			result.StaleFound += len(stale)
			s.offerer.Offer(stale)
		}

		if page.PageInfo == nil {
			s.logger.Warn().Int("page", result.Pages).Msg("Page without pagination info, ending scan")
			break
		}
		if !page.PageInfo.HasNextPage {
			break
		}
		next := page.PageInfo.NextCursor()
		if next == "" || len(page.Data) == 0 {
			s.logger.Warn().Int("page", result.Pages).Msg("Malformed page, ending scan")
			break
		}
		cursor = next
	}

	result.Duration = timer.Duration()
	return result, nil
}

func (s *Scanner) publish(event *events.Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

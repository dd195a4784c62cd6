package remediation

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/sentinel/pkg/client"
	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Remediator performs the remote drain and remediate steps
type Remediator interface {
	Drain(ctx context.Context, applianceID string) (*types.DrainResult, error)
	Remediate(ctx context.Context, applianceID string) (*types.RemediateResult, error)
}

// Recorder persists completed steps
type Recorder interface {
	SaveOperation(op *types.Operation) error
}

// Releaser gives up the claim on an appliance id
type Releaser interface {
	Release(id string)
}

// Outcome is the terminal state of one remediation attempt
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeDrainFailed     Outcome = "drain_failed"
	OutcomeRemediateFailed Outcome = "remediate_failed"
	OutcomeVanished        Outcome = "vanished"
)

// Processor runs the two-step drain then remediate workflow for one appliance
type Processor struct {
	remediator Remediator
	recorder   Recorder
	releaser   Releaser
	events     events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewProcessor creates a processor. publisher may be nil.
func NewProcessor(remediator Remediator, recorder Recorder, releaser Releaser, publisher events.Publisher) *Processor {
	return &Processor{
		remediator: remediator,
		recorder:   recorder,
		releaser:   releaser,
		events:     publisher,
		logger:     log.WithComponent("processor"),
		now:        time.Now,
	}
}

// Process drains the appliance and, only if the drain succeeded, remediates
// it. Each successful step is recorded. The claim on the appliance id is
// released when Process returns, whatever the outcome.
func (p *Processor) Process(ctx context.Context, a types.Appliance) Outcome {
	defer p.releaser.Release(a.ID)

	logger := log.WithApplianceID(p.logger, a.ID)
	timer := metrics.NewTimer()

	outcome := p.process(ctx, a.ID, logger)

	timer.ObserveDuration(metrics.RemediationDuration)
	metrics.RemediationsTotal.WithLabelValues(string(outcome)).Inc()
	logger.Debug().Str("outcome", string(outcome)).Dur("duration", timer.Duration()).Msg("Remediation finished")
	return outcome
}

func (p *Processor) process(ctx context.Context, id string, logger zerolog.Logger) Outcome {
	drained, err := p.remediator.Drain(ctx, id)
	if err != nil {
		return p.failed(id, logger, err, OutcomeDrainFailed, events.EventApplianceDrainFailed)
	}

	p.record(logger, &types.Operation{
		ApplianceID:          id,
		OperationType:        types.OperationTypeDrain,
		ProcessedAt:          p.now(),
		DrainID:              drained.DrainID.String(),
		EstimatedTimeToDrain: drained.EstimatedTimeToDrain,
	})
	logger.Info().
		Str("drain_id", drained.DrainID.String()).
		Str("estimated_time_to_drain", drained.EstimatedTimeToDrain).
		Msg("Appliance drained")
	p.publish(&events.Event{
		Type:        events.EventApplianceDrained,
		ApplianceID: id,
		Metadata: map[string]string{
			"drainId":              drained.DrainID.String(),
			"estimatedTimeToDrain": drained.EstimatedTimeToDrain,
		},
	})

	remediated, err := p.remediator.Remediate(ctx, id)
	if err != nil {
		return p.failed(id, logger, err, OutcomeRemediateFailed, events.EventApplianceRemediateFailed)
	}

	p.record(logger, &types.Operation{
		ApplianceID:       id,
		OperationType:     types.OperationTypeRemediate,
		ProcessedAt:       p.now(),
		RemediationID:     remediated.RemediationID.String(),
		RemediationResult: remediated.RemediationResult,
	})
	logger.Info().
		Str("remediation_id", remediated.RemediationID.String()).
		Str("remediation_result", remediated.RemediationResult).
		Msg("Appliance remediated")
	p.publish(&events.Event{
		Type:        events.EventApplianceRemediated,
		ApplianceID: id,
		Metadata: map[string]string{
			"remediationId":     remediated.RemediationID.String(),
			"remediationResult": remediated.RemediationResult,
		},
	})

	return OutcomeCompleted
}

// failed classifies a step error. A missing appliance is not a failure.
func (p *Processor) failed(id string, logger zerolog.Logger, err error, outcome Outcome, eventType events.EventType) Outcome {
	if errors.Is(err, client.ErrNotFound) {
		logger.Warn().Err(err).Msg("Appliance no longer exists, skipping")
		p.publish(&events.Event{
			Type:        events.EventApplianceVanished,
			ApplianceID: id,
			Message:     err.Error(),
		})
		return OutcomeVanished
	}

	logger.Error().Err(err).Str("outcome", string(outcome)).Msg("Remediation step failed")
	p.publish(&events.Event{
		Type:        eventType,
		ApplianceID: id,
		Message:     err.Error(),
	})
	return outcome
}

// record saves a completed step. A failed save does not undo the remote step.
func (p *Processor) record(logger zerolog.Logger, op *types.Operation) {
	if err := p.recorder.SaveOperation(op); err != nil {
		metrics.OperationRecordFailuresTotal.WithLabelValues(string(op.OperationType)).Inc()
		logger.Error().Err(err).Str("type", string(op.OperationType)).Msg("Failed to record operation")
		return
	}
	metrics.OperationsRecordedTotal.WithLabelValues(string(op.OperationType)).Inc()
}

func (p *Processor) publish(event *events.Event) {
	if p.events != nil {
		p.events.Publish(event)
	}
}

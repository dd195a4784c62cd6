package remediation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/client"
	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemediator struct {
	mu             sync.Mutex
	drainResult    *types.DrainResult
	drainErr       error
	remediateRes   *types.RemediateResult
	remediateErr   error
	drainCalls     []string
	remediateCalls []string
	panicOnDrain   bool
}

func (f *fakeRemediator) Drain(ctx context.Context, id string) (*types.DrainResult, error) {
	f.mu.Lock()
	f.drainCalls = append(f.drainCalls, id)
	f.mu.Unlock()
	if f.panicOnDrain {
		panic("drain exploded")
	}
	if f.drainErr != nil {
		return nil, f.drainErr
	}
	return f.drainResult, nil
}

func (f *fakeRemediator) Remediate(ctx context.Context, id string) (*types.RemediateResult, error) {
	f.mu.Lock()
	f.remediateCalls = append(f.remediateCalls, id)
	f.mu.Unlock()
	if f.remediateErr != nil {
		return nil, f.remediateErr
	}
	return f.remediateRes, nil
}

func (f *fakeRemediator) calls() (drain, remediate int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drainCalls), len(f.remediateCalls)
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []*types.Operation
	err error
}

func (f *fakeRecorder) SaveOperation(op *types.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	op.ID = uint64(len(f.ops) + 1)
	f.ops = append(f.ops, op)
	return nil
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeReleaser) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
}

func (f *fakeReleaser) Released() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) Publish(event *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) Types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.EventType
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

var processedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(r Remediator, rec Recorder, rel Releaser, pub events.Publisher) *Processor {
	p := NewProcessor(r, rec, rel, pub)
	p.now = func() time.Time { return processedAt }
	return p
}

func TestProcessCompleted(t *testing.T) {
	remediator := &fakeRemediator{
		drainResult:  &types.DrainResult{DrainID: "D1", EstimatedTimeToDrain: "PT1H"},
		remediateRes: &types.RemediateResult{RemediationID: "R1", RemediationResult: "SUCCESS"},
	}
	recorder := &fakeRecorder{}
	releaser := &fakeReleaser{}
	pub := &eventLog{}

	outcome := newTestProcessor(remediator, recorder, releaser, pub).Process(context.Background(), types.Appliance{ID: "a1"})

	assert.Equal(t, OutcomeCompleted, outcome)
	require.Len(t, recorder.ops, 2)

	drain := recorder.ops[0]
	assert.Equal(t, "a1", drain.ApplianceID)
	assert.Equal(t, types.OperationTypeDrain, drain.OperationType)
	assert.Equal(t, "D1", drain.DrainID)
	assert.Equal(t, "PT1H", drain.EstimatedTimeToDrain)
	assert.Equal(t, processedAt, drain.ProcessedAt)

	remediate := recorder.ops[1]
	assert.Equal(t, types.OperationTypeRemediate, remediate.OperationType)
	assert.Equal(t, "R1", remediate.RemediationID)
	assert.Equal(t, "SUCCESS", remediate.RemediationResult)

	assert.Equal(t, []string{"a1"}, releaser.Released())
	assert.Equal(t, []events.EventType{events.EventApplianceDrained, events.EventApplianceRemediated}, pub.Types())
}

func TestProcessRemediateFailsKeepsDrainRecord(t *testing.T) {
	remediator := &fakeRemediator{
		drainResult:  &types.DrainResult{DrainID: "D1", EstimatedTimeToDrain: "PT1H"},
		remediateErr: errors.New("remediation backend down"),
	}
	recorder := &fakeRecorder{}
	releaser := &fakeReleaser{}
	pub := &eventLog{}

	outcome := newTestProcessor(remediator, recorder, releaser, pub).Process(context.Background(), types.Appliance{ID: "a1"})

	assert.Equal(t, OutcomeRemediateFailed, outcome)
	require.Len(t, recorder.ops, 1)
	assert.Equal(t, types.OperationTypeDrain, recorder.ops[0].OperationType)
	assert.Equal(t, "D1", recorder.ops[0].DrainID)
	assert.Empty(t, recorder.ops[0].RemediationID)
	assert.Equal(t, []string{"a1"}, releaser.Released())
	assert.Equal(t, []events.EventType{events.EventApplianceDrained, events.EventApplianceRemediateFailed}, pub.Types())
}

func TestProcessDrainFails(t *testing.T) {
	remediator := &fakeRemediator{drainErr: errors.New("timeout")}
	recorder := &fakeRecorder{}
	releaser := &fakeReleaser{}

	outcome := newTestProcessor(remediator, recorder, releaser, nil).Process(context.Background(), types.Appliance{ID: "a1"})

	assert.Equal(t, OutcomeDrainFailed, outcome)
	assert.Empty(t, recorder.ops)
	drains, remediates := remediator.calls()
	assert.Equal(t, 1, drains)
	assert.Equal(t, 0, remediates)
	assert.Equal(t, []string{"a1"}, releaser.Released())
}

func TestProcessVanished(t *testing.T) {
	tests := []struct {
		name       string
		remediator *fakeRemediator
		wantOps    int
	}{
		{
			name:       "gone before drain",
			remediator: &fakeRemediator{drainErr: fmt.Errorf("drain: %w", client.ErrNotFound)},
			wantOps:    0,
		},
		{
			name: "gone before remediate",
			remediator: &fakeRemediator{
				drainResult:  &types.DrainResult{DrainID: "D1"},
				remediateErr: fmt.Errorf("remediate: %w", client.ErrNotFound),
			},
			wantOps: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			releaser := &fakeReleaser{}
			pub := &eventLog{}

			outcome := newTestProcessor(tt.remediator, recorder, releaser, pub).Process(context.Background(), types.Appliance{ID: "a1"})

			assert.Equal(t, OutcomeVanished, outcome)
			assert.Len(t, recorder.ops, tt.wantOps)
			assert.Equal(t, []string{"a1"}, releaser.Released())
			assert.Contains(t, pub.Types(), events.EventApplianceVanished)
		})
	}
}

func TestProcessRecordFailureDoesNotStopWorkflow(t *testing.T) {
	remediator := &fakeRemediator{
		drainResult:  &types.DrainResult{DrainID: "D1"},
		remediateRes: &types.RemediateResult{RemediationID: "R1"},
	}
	recorder := &fakeRecorder{err: errors.New("disk full")}
	releaser := &fakeReleaser{}

	outcome := newTestProcessor(remediator, recorder, releaser, nil).Process(context.Background(), types.Appliance{ID: "a1"})

	assert.Equal(t, OutcomeCompleted, outcome)
	_, remediates := remediator.calls()
	assert.Equal(t, 1, remediates)
	assert.Equal(t, []string{"a1"}, releaser.Released())
}

func TestProcessReleasesOnPanic(t *testing.T) {
	remediator := &fakeRemediator{panicOnDrain: true}
	releaser := &fakeReleaser{}
	p := newTestProcessor(remediator, &fakeRecorder{}, releaser, nil)

	assert.Panics(t, func() {
		p.Process(context.Background(), types.Appliance{ID: "a1"})
	})
	assert.Equal(t, []string{"a1"}, releaser.Released())
}

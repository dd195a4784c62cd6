package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{}
	for _, driver := range []string{DriverBolt, DriverSQLite} {
		s, err := Open(driver, t.TempDir())
		require.NoError(t, err, driver)
		t.Cleanup(func() { s.Close() })
		stores[driver] = s
	}
	return stores
}

func drainOp(applianceID string, at time.Time) *types.Operation {
	return &types.Operation{
		ApplianceID:          applianceID,
		OperationType:        types.OperationTypeDrain,
		ProcessedAt:          at,
		DrainID:              "D-" + applianceID,
		EstimatedTimeToDrain: "PT1H",
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	assert.Error(t, err)
}

func TestSaveAndGetOperation(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

			op := drainOp("a1", at)
			require.NoError(t, s.SaveOperation(op))
			assert.NotZero(t, op.ID)

			second := &types.Operation{
				ApplianceID:       "a1",
				OperationType:     types.OperationTypeRemediate,
				ProcessedAt:       at.Add(time.Second),
				RemediationID:     "R1",
				RemediationResult: "SUCCESS",
			}
			require.NoError(t, s.SaveOperation(second))
			assert.Greater(t, second.ID, op.ID)

			got, err := s.GetOperation(op.ID)
			require.NoError(t, err)
			assert.Equal(t, "a1", got.ApplianceID)
			assert.Equal(t, types.OperationTypeDrain, got.OperationType)
			assert.Equal(t, "D-a1", got.DrainID)
			assert.Equal(t, "PT1H", got.EstimatedTimeToDrain)
			assert.True(t, at.Equal(got.ProcessedAt))

			got, err = s.GetOperation(second.ID)
			require.NoError(t, err)
			assert.Equal(t, "R1", got.RemediationID)
			assert.Equal(t, "SUCCESS", got.RemediationResult)
		})
	}
}

func TestGetOperationNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetOperation(999)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestListOperationsOrderingAndPaging(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			// a1 at +0, +2m; a2 at +1m, +2m (tie with a1's second)
			require.NoError(t, s.SaveOperation(drainOp("a1", base)))
			require.NoError(t, s.SaveOperation(drainOp("a2", base.Add(time.Minute))))
			require.NoError(t, s.SaveOperation(drainOp("a1", base.Add(2*time.Minute))))
			require.NoError(t, s.SaveOperation(drainOp("a2", base.Add(2*time.Minute))))

			page, err := s.ListOperations(OperationQuery{Size: 3})
			require.NoError(t, err)
			assert.Equal(t, 4, page.TotalElements)
			assert.Equal(t, 2, page.TotalPages)
			require.Len(t, page.Content, 3)
			assert.Equal(t, uint64(4), page.Content[0].ID)
			assert.Equal(t, uint64(3), page.Content[1].ID)
			assert.Equal(t, uint64(2), page.Content[2].ID)

			page, err = s.ListOperations(OperationQuery{Page: 1, Size: 3})
			require.NoError(t, err)
			require.Len(t, page.Content, 1)
			assert.Equal(t, uint64(1), page.Content[0].ID)

			page, err = s.ListOperations(OperationQuery{Page: 5, Size: 3})
			require.NoError(t, err)
			assert.Empty(t, page.Content)
			assert.NotNil(t, page.Content)
			assert.Equal(t, 4, page.TotalElements)
		})
	}
}

func TestListOperationsFilterByAppliance(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveOperation(drainOp("a1", base)))
			require.NoError(t, s.SaveOperation(drainOp("a2", base.Add(time.Minute))))
			require.NoError(t, s.SaveOperation(drainOp("a1", base.Add(2*time.Minute))))

			page, err := s.ListOperations(OperationQuery{ApplianceID: "a1"})
			require.NoError(t, err)
			assert.Equal(t, 2, page.TotalElements)
			assert.Equal(t, 1, page.TotalPages)
			assert.Equal(t, DefaultPageSize, page.Size)
			require.Len(t, page.Content, 2)
			for _, op := range page.Content {
				assert.Equal(t, "a1", op.ApplianceID)
			}
			assert.True(t, page.Content[0].ProcessedAt.After(page.Content[1].ProcessedAt))

			page, err = s.ListOperations(OperationQuery{ApplianceID: "missing"})
			require.NoError(t, err)
			assert.Zero(t, page.TotalElements)
			assert.Zero(t, page.TotalPages)
		})
	}
}

func TestOperationQueryNormalize(t *testing.T) {
	tests := []struct {
		name    string
		query   OperationQuery
		want    OperationQuery
		wantErr bool
	}{
		{name: "defaults", query: OperationQuery{}, want: OperationQuery{Size: DefaultPageSize}},
		{name: "capped", query: OperationQuery{Page: 2, Size: 500}, want: OperationQuery{Page: 2, Size: MaxPageSize}},
		{name: "kept", query: OperationQuery{ApplianceID: "a1", Size: 5}, want: OperationQuery{ApplianceID: "a1", Size: 5}},
		{name: "negative page", query: OperationQuery{Page: -1}, wantErr: true},
		{name: "negative size", query: OperationQuery{Size: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoltStoreReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	op := drainOp("a1", time.Now())
	require.NoError(t, s.SaveOperation(op))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetOperation(op.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ApplianceID)

	next := drainOp("a2", time.Now())
	require.NoError(t, s.SaveOperation(next))
	assert.Greater(t, next.ID, op.ID)
}

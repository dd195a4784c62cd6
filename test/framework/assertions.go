package framework

import (
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/types"
)

// TestingT is the subset of *testing.T the helpers need
type TestingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// Assertions provides test assertion helpers
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

// OperationTypes asserts the recorded operation types for an appliance, oldest first
func (a *Assertions) OperationTypes(store storage.Store, applianceID string, expected ...types.OperationType) {
	a.t.Helper()

	page, err := store.ListOperations(storage.OperationQuery{ApplianceID: applianceID, Size: storage.MaxPageSize})
	if err != nil {
		a.t.Fatalf("Failed to list operations for %s: %v", applianceID, err)
	}

	if len(page.Content) != len(expected) {
		a.t.Fatalf("Appliance %s has %d operations, expected %d", applianceID, len(page.Content), len(expected))
	}

	// Content is newest first
	for i, want := range expected {
		got := page.Content[len(page.Content)-1-i].OperationType
		if got != want {
			a.t.Fatalf("Appliance %s operation %d is %s, expected %s", applianceID, i, got, want)
		}
	}
}

// NoOperations asserts that nothing was recorded for an appliance
func (a *Assertions) NoOperations(store storage.Store, applianceID string) {
	a.t.Helper()
	a.OperationTypes(store, applianceID)
}

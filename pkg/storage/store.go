package storage

import (
	"errors"
	"fmt"

	"github.com/cuemby/sentinel/pkg/types"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"

	// DefaultPageSize is used when a query does not set Size
	DefaultPageSize = 20

	// MaxPageSize caps the number of operations returned in one page
	MaxPageSize = 100
)

// ErrNotFound is returned when an operation does not exist
var ErrNotFound = errors.New("operation not found")

// Store persists the history of completed remediation steps
type Store interface {
	// SaveOperation assigns op.ID and stores the record
	SaveOperation(op *types.Operation) error
	GetOperation(id uint64) (*types.Operation, error)
	ListOperations(q OperationQuery) (*OperationPage, error)

	// Utility
	Close() error
}

// OperationQuery selects one page of operations, newest first
type OperationQuery struct {
	ApplianceID string
	Page        int
	Size        int
}

// OperationPage is a page of operations plus totals for the whole result
type OperationPage struct {
	Content       []*types.Operation `json:"content"`
	Page          int                `json:"page"`
	Size          int                `json:"size"`
	TotalElements int                `json:"totalElements"`
	TotalPages    int                `json:"totalPages"`
}

// Normalize applies the default size and the size cap
func (q OperationQuery) Normalize() (OperationQuery, error) {
	if q.Page < 0 {
		return q, fmt.Errorf("page must not be negative: %d", q.Page)
	}
	if q.Size < 0 {
		return q, fmt.Errorf("size must not be negative: %d", q.Size)
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q, nil
}

func (q OperationQuery) offset() int {
	return q.Page * q.Size
}

func newPage(q OperationQuery, content []*types.Operation, total int) *OperationPage {
	if content == nil {
		content = []*types.Operation{}
	}
	return &OperationPage{
		Content:       content,
		Page:          q.Page,
		Size:          q.Size,
		TotalElements: total,
		TotalPages:    (total + q.Size - 1) / q.Size,
	}
}

// Open creates the store selected by driver under dataDir
func Open(driver, dataDir string) (Store, error) {
	switch driver {
	case DriverBolt, "":
		return NewBoltStore(dataDir)
	case DriverSQLite:
		return NewSQLiteStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

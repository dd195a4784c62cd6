package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/types"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS operations (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	appliance_id            TEXT    NOT NULL,
	operation_type          TEXT    NOT NULL,
	processed_at            INTEGER NOT NULL,
	drain_id                TEXT    NOT NULL DEFAULT '',
	estimated_time_to_drain TEXT    NOT NULL DEFAULT '',
	remediation_id          TEXT    NOT NULL DEFAULT '',
	remediation_result      TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_operations_appliance ON operations (appliance_id);
CREATE INDEX IF NOT EXISTS idx_operations_processed_at ON operations (processed_at);
`

const operationColumns = `id, appliance_id, operation_type, processed_at, drain_id,
	estimated_time_to_drain, remediation_id, remediation_result`

// SQLiteStore implements Store on an embedded SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens <dataDir>/sentinel.sqlite and creates the schema
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return openSQLite(filepath.Join(dataDir, "sentinel.sqlite"))
}

func openSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger := log.WithComponent("storage")
	logger.Info().Str("dsn", dsn).Msg("Opened operation store")

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveOperation(op *types.Operation) error {
	op.ProcessedAt = op.ProcessedAt.UTC()

	res, err := s.db.Exec(`
		INSERT INTO operations (appliance_id, operation_type, processed_at, drain_id,
			estimated_time_to_drain, remediation_id, remediation_result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ApplianceID,
		string(op.OperationType),
		op.ProcessedAt.UnixNano(),
		op.DrainID,
		op.EstimatedTimeToDrain,
		op.RemediationID,
		op.RemediationResult,
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read operation id: %w", err)
	}
	op.ID = uint64(id)

	s.logger.Debug().
		Uint64("id", op.ID).
		Str("appliance_id", op.ApplianceID).
		Str("type", string(op.OperationType)).
		Msg("Saved operation")
	return nil
}

func (s *SQLiteStore) GetOperation(id uint64) (*types.Operation, error) {
	row := s.db.QueryRow(`SELECT `+operationColumns+` FROM operations WHERE id = ?`, int64(id))

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *SQLiteStore) ListOperations(q OperationQuery) (*OperationPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	where := ""
	var args []interface{}
	if q.ApplianceID != "" {
		where = " WHERE appliance_id = ?"
		args = append(args, q.ApplianceID)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM operations`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+operationColumns+` FROM operations`+where+
			` ORDER BY processed_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, q.Size, q.offset())...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var content []*types.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		content = append(content, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return newPage(q, content, total), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*types.Operation, error) {
	var (
		op          types.Operation
		id          int64
		opType      string
		processedAt int64
	)
	err := row.Scan(
		&id,
		&op.ApplianceID,
		&opType,
		&processedAt,
		&op.DrainID,
		&op.EstimatedTimeToDrain,
		&op.RemediationID,
		&op.RemediationResult,
	)
	if err != nil {
		return nil, err
	}
	op.ID = uint64(id)
	op.OperationType = types.OperationType(opType)
	op.ProcessedAt = time.Unix(0, processedAt).UTC()
	return &op, nil
}

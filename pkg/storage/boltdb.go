package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketOperations = []byte("operations")
	bucketByTime     = []byte("operations_by_time")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "sentinel.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketOperations, bucketByTime} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	logger := log.WithComponent("storage")
	logger.Info().Str("path", dbPath).Msg("Opened operation store")

	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveOperation(op *types.Operation) error {
	op.ProcessedAt = op.ProcessedAt.UTC()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperations)
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate operation id: %w", err)
		}
		op.ID = id

		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		if err := b.Put(idKey(id), data); err != nil {
			return err
		}
		return tx.Bucket(bucketByTime).Put(timeKey(op.ProcessedAt, id), idKey(id))
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Uint64("id", op.ID).
		Str("appliance_id", op.ApplianceID).
		Str("type", string(op.OperationType)).
		Msg("Saved operation")
	return nil
}

func (s *BoltStore) GetOperation(id uint64) (*types.Operation, error) {
	var op types.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOperations).Get(idKey(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return json.Unmarshal(data, &op)
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListOperations walks the time index from newest to oldest
func (s *BoltStore) ListOperations(q OperationQuery) (*OperationPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var content []*types.Operation
	total := 0
	offset := q.offset()

	err = s.db.View(func(tx *bolt.Tx) error {
		ops := tx.Bucket(bucketOperations)
		c := tx.Bucket(bucketByTime).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			data := ops.Get(v)
			if data == nil {
				continue
			}
			var op types.Operation
			if err := json.Unmarshal(data, &op); err != nil {
				return fmt.Errorf("failed to decode operation %d: %w", binary.BigEndian.Uint64(v), err)
			}
			if q.ApplianceID != "" && op.ApplianceID != q.ApplianceID {
				continue
			}
			if total >= offset && len(content) < q.Size {
				content = append(content, &op)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newPage(q, content, total), nil
}

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// timeKey orders by processing time, then id
func timeKey(t time.Time, id uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(t.UnixNano()))
	binary.BigEndian.PutUint64(k[8:], id)
	return k
}

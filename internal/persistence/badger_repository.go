package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/jxskiss/base62"

	"futures-roll-backtest/internal/models"
)

var runKeyPrefix = []byte("run:")

// badgerRepository is the BadgerDB implementation of the RunRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected
// to a BadgerDB database.
func NewBadgerRepository(dbPath string) (RunRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

// newRunID returns a short, URL-safe identifier derived from the current
// timestamp in nanoseconds, base62-encoded.
func newRunID() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	return string(base62.Encode(buf[:]))
}

// SaveRun marshals the result into JSON and saves it under a freshly
// generated run ID.
func (r *badgerRepository) SaveRun(result *models.BacktestResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}

	runID := newRunID()
	key := append(append([]byte{}, runKeyPrefix...), runID...)

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// LoadRun loads a saved result by run ID.
// If the run is not found, it returns (nil, nil).
func (r *badgerRepository) LoadRun(runID string) (*models.BacktestResult, error) {
	var result models.BacktestResult
	key := append(append([]byte{}, runKeyPrefix...), runID...)

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("run value is empty in database")
			}
			return json.Unmarshal(val, &result)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns returns the IDs of all saved runs in key order.
func (r *badgerRepository) ListRuns() ([]string, error) {
	var runIDs []string

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(runKeyPrefix); it.ValidForPrefix(runKeyPrefix); it.Next() {
			key := it.Item().Key()
			runIDs = append(runIDs, string(key[len(runKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runIDs, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}

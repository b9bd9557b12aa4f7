package cache

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
)

// Store is the key-value store holding cached payloads.
// Entries never expire and are never evicted: freshness is tracked
// separately by FetchTimes, and an entry lives until the process exits.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the payload stored under key.
	// The boolean is false if the key is unknown; that is not an error.
	Get(key string) ([]byte, bool, error)
	// Put stores value under key, overwriting any previous value.
	Put(key string, value []byte) error
	// Len returns the number of stored entries.
	Len() int
}

// MemoryDSN is the SQLite data source for a process-private in-memory db.
const MemoryDSN = "file::memory:?cache=shared"

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a store with the given filename as the db.
// If file name is empty, a shared in-memory db is opened.
// Payloads left in the db by an earlier process are deleted:
// fetch times are not persisted, and entries must not outlive the process.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = MemoryDSN
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %s", filename)
	}
	// all connections must see the same in-memory db
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS payloads (
		key TEXT PRIMARY KEY,
		bytes BLOB
	)`)
	if err != nil {
		return nil, errors.Wrap(err, "create payloads table")
	}
	if _, err = db.Exec("DELETE FROM payloads"); err != nil {
		return nil, errors.Wrap(err, "clear payloads table")
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "set journal mode")
	}
	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow("SELECT bytes FROM payloads WHERE key = ?", key).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", key)
	}
	return bytes, true, nil
}

func (s *SQLiteStore) Put(key string, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO payloads (key, bytes) VALUES (?, ?)", key, value)
	return errors.Wrapf(err, "put %s", key)
}

func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM payloads").Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the underlying db.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

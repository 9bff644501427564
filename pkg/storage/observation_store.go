// Package storage persists classified PLCF observations in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/logging"
)

// DefaultDatabasePath is used when no path is configured.
const DefaultDatabasePath = "./nrfd.db"

// Observations waiting for the writer; Observe drops beyond this.
const writeQueueSize = 256

// ObservationStore handles persistent storage of observations
type ObservationStore struct {
	db              *sql.DB
	dbPath          string
	maxObservations int

	// guards queue against sends after Close
	mu      sync.RWMutex
	closed  bool
	queue   chan firmware.Observation
	written chan struct{}
	dropped uint64
}

// NewObservationStore creates a new observation store with SQLite backend
func NewObservationStore(dbPath string, maxObservations int) (*ObservationStore, error) {
	store := &ObservationStore{
		dbPath:          dbPath,
		maxObservations: maxObservations,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize observation store: %w", err)
	}

	store.queue = make(chan firmware.Observation, writeQueueSize)
	store.written = make(chan struct{})
	go store.writer()

	return store, nil
}

// initialize sets up the database connection and creates tables
func (s *ObservationStore) initialize() error {
	if s.dbPath == "" {
		s.dbPath = DefaultDatabasePath
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Info("storage", "observation store initialized", map[string]interface{}{
		"path":             s.dbPath,
		"max_observations": s.maxObservations,
	})
	return nil
}

// createTables creates the database schema
func (s *ObservationStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		firmware TEXT NOT NULL DEFAULT '',
		plcf_type TEXT NOT NULL CHECK (plcf_type IN ('10', '20', '21')),
		transmitter_identity INTEGER NOT NULL,
		short_network_id INTEGER NOT NULL,
		receiver_identity INTEGER,
		stf_time INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transmitters (
		transmitter_identity INTEGER PRIMARY KEY,
		short_network_id INTEGER NOT NULL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		observation_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS observation_stats (
		id INTEGER PRIMARY KEY,
		total_observations INTEGER NOT NULL DEFAULT 0,
		total_type10 INTEGER NOT NULL DEFAULT 0,
		total_type20 INTEGER NOT NULL DEFAULT 0,
		total_type21 INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO observation_stats (id) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// createIndexes creates database indexes for performance
func (s *ObservationStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON observations(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_observations_plcf_type ON observations(plcf_type)",
		"CREATE INDEX IF NOT EXISTS idx_observations_transmitter ON observations(transmitter_identity)",
		"CREATE INDEX IF NOT EXISTS idx_observations_network ON observations(short_network_id)",
		"CREATE INDEX IF NOT EXISTS idx_transmitters_last_seen ON transmitters(last_seen DESC)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// StoreObservation stores an observation and returns its row id.
func (s *ObservationStore) StoreObservation(obs firmware.Observation) (int64, error) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	// stored as text; a single zone keeps range filters ordered
	obs.Timestamp = obs.Timestamp.UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rx interface{}
	if obs.ReceiverIdentity != nil {
		rx = int64(*obs.ReceiverIdentity)
	}

	result, err := tx.Exec(`
		INSERT INTO observations (
			timestamp, firmware, plcf_type, transmitter_identity,
			short_network_id, receiver_identity, stf_time
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, obs.Timestamp, obs.Firmware, obs.Type, obs.TransmitterIdentity,
		obs.ShortNetworkID, rx, obs.STFTime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get observation ID: %w", err)
	}

	if err := s.updateTransmitter(tx, obs); err != nil {
		return 0, fmt.Errorf("failed to update transmitter: %w", err)
	}

	if err := s.updateStats(tx, obs.Type); err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := s.cleanupOldObservations(tx); err != nil {
		logging.Warnf("storage", "failed to cleanup old observations: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Observe queues obs for the writer goroutine and never blocks. When the
// queue is full or the store is closed the observation is dropped and
// counted.
func (s *ObservationStore) Observe(obs firmware.Observation) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.queue == nil {
		atomic.AddUint64(&s.dropped, 1)
		return
	}

	select {
	case s.queue <- obs:
	default:
		if n := atomic.AddUint64(&s.dropped, 1); n == 1 || n%100 == 0 {
			logging.Warnf("storage", "write queue full, %d observations dropped", n)
		}
	}
}

// Dropped returns how many observations Observe discarded.
func (s *ObservationStore) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *ObservationStore) writer() {
	defer close(s.written)
	for obs := range s.queue {
		if _, err := s.StoreObservation(obs); err != nil {
			logging.Errorf("storage", "failed to store observation: %v", err)
		}
	}
}

// updateTransmitter upserts the per-transmitter summary
func (s *ObservationStore) updateTransmitter(tx *sql.Tx, obs firmware.Observation) error {
	_, err := tx.Exec(`
		INSERT INTO transmitters (transmitter_identity, short_network_id, first_seen, last_seen, observation_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(transmitter_identity) DO UPDATE SET
			short_network_id = excluded.short_network_id,
			last_seen = excluded.last_seen,
			observation_count = observation_count + 1
	`, obs.TransmitterIdentity, obs.ShortNetworkID, obs.Timestamp, obs.Timestamp)
	return err
}

// updateStats updates observation statistics
func (s *ObservationStore) updateStats(tx *sql.Tx, plcfType string) error {
	_, err := tx.Exec(`
		UPDATE observation_stats SET
			total_observations = total_observations + 1,
			total_type10 = CASE WHEN ? = '10' THEN total_type10 + 1 ELSE total_type10 END,
			total_type20 = CASE WHEN ? = '20' THEN total_type20 + 1 ELSE total_type20 END,
			total_type21 = CASE WHEN ? = '21' THEN total_type21 + 1 ELSE total_type21 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, plcfType, plcfType, plcfType)
	return err
}

// CleanupOldObservations removes observations beyond the maximum limit
func (s *ObservationStore) CleanupOldObservations() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.cleanupOldObservations(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *ObservationStore) cleanupOldObservations(tx *sql.Tx) error {
	if s.maxObservations <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxObservations {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM observations
		WHERE id IN (
			SELECT id FROM observations
			ORDER BY id ASC
			LIMIT ?
		)
	`, count-s.maxObservations)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE observation_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close writes every queued observation, then closes the database
// connection.
func (s *ObservationStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	s.mu.Unlock()

	if s.written != nil {
		<-s.written
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

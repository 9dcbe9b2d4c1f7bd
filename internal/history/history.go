package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/logging"
)

// Store is the local journal of device property snapshots. Every successful
// property fetch can be recorded here, giving the CLI a history of device
// state without any server-side support.
type Store struct {
	conn   *sql.DB
	logger *logrus.Entry
}

// Snapshot is one recorded property value.
type Snapshot struct {
	ID         int64
	DSN        string
	Property   string
	Value      string // JSON-encoded
	RecordedAt time.Time
}

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS property_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dsn TEXT NOT NULL,
    property TEXT NOT NULL,
    value TEXT NOT NULL,
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createSnapshotsIndex = `
CREATE INDEX IF NOT EXISTS idx_snapshots_dsn_property
    ON property_snapshots(dsn, property, recorded_at);`

// NewStore opens (or creates) the snapshot database at path.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		conn:   conn,
		logger: logging.NewComponentLogger(logger, "history"),
	}

	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		createSnapshotsTable,
		createSnapshotsIndex,
	}

	for i, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Record journals one snapshot of a device's property values. All properties
// share a single transaction so a snapshot is recorded whole or not at all.
func (s *Store) Record(dsn string, properties map[string]interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO property_snapshots (dsn, property, value)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, value := range properties {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode value for %s: %w", name, err)
		}
		if _, err := stmt.Exec(dsn, name, string(encoded)); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"dsn":        dsn,
		"properties": len(properties),
	}).Debug("Snapshot recorded")
	return nil
}

// List returns the most recent snapshots for one device property, newest
// first.
func (s *Store) List(dsn, property string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
		SELECT id, dsn, property, value, recorded_at
		FROM property_snapshots
		WHERE dsn = ? AND property = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, dsn, property, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.DSN, &snap.Property, &snap.Value, &snap.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return snapshots, nil
}

// Latest returns the newest recorded value per property for one device.
func (s *Store) Latest(dsn string) (map[string]Snapshot, error) {
	rows, err := s.conn.Query(`
		SELECT id, dsn, property, value, recorded_at
		FROM property_snapshots
		WHERE dsn = ? AND id IN (
			SELECT MAX(id) FROM property_snapshots WHERE dsn = ? GROUP BY property
		)
	`, dsn, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]Snapshot)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.DSN, &snap.Property, &snap.Value, &snap.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		latest[snap.Property] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return latest, nil
}

// Prune deletes snapshots recorded before the cutoff and returns how many
// were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.conn.Exec(`
		DELETE FROM property_snapshots WHERE recorded_at < ?
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("Snapshots pruned")
	}
	return removed, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-bg-daemon/internal/models"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a history entry does not exist.
var ErrNotFound = errors.New("history entry not found")

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("database is closed")

// DB wraps the SQLite history database.
type DB struct {
	db *sql.DB
	sync.RWMutex
	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// Open initializes and returns a DB instance.
func Open(path string) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database at %s: %w", path, err)
	}

	dbWrapper := &DB{db: db}
	if err := dbWrapper.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Debugf("History database opened at %s", path)
	return dbWrapper, nil
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		image_id TEXT NOT NULL,
		title TEXT,
		link TEXT,
		path TEXT,
		backup_path TEXT,
		status TEXT NOT NULL CHECK (status IN ('Applied', 'Restored', 'Failed')),
		error_details TEXT,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_updates_image_id ON updates(image_id);
	CREATE INDEX IF NOT EXISTS idx_updates_timestamp ON updates(timestamp);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close safely closes the database connection.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.Lock()
		defer d.Unlock()

		d.closeErr = d.db.Close()
		d.closed = true

		if d.closeErr != nil {
			log.Errorf("Error during database close operation: %v", d.closeErr)
		} else {
			log.Debug("History database closed.")
		}
	})

	return d.closeErr
}

// RecordUpdate appends entry and returns its id. A zero Timestamp is set to now.
func (d *DB) RecordUpdate(entry models.HistoryEntry) (int64, error) {
	if entry.ImageID == "" {
		return 0, errors.New("history entry needs an image id")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	d.Lock()
	defer d.Unlock()
	if d.closed {
		return 0, ErrClosed
	}

	res, err := d.db.Exec(`
		INSERT INTO updates (run_id, image_id, title, link, path, backup_path, status, error_details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RunID, entry.ImageID, entry.Title, entry.Link, entry.Path, entry.BackupPath, entry.Status, entry.ErrorDetails, entry.Timestamp.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert history entry for %s: %w", entry.ImageID, err)
	}
	return res.LastInsertId()
}

// Get returns the entry with the given id.
func (d *DB) Get(id int64) (models.HistoryEntry, error) {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return models.HistoryEntry{}, ErrClosed
	}

	row := d.db.QueryRow(selectColumns+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryEntry{}, ErrNotFound
	}
	return entry, err
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (d *DB) Recent(limit int) ([]models.HistoryEntry, error) {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	query := selectColumns + " ORDER BY timestamp DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// HasImage reports whether imageID was ever applied successfully.
func (d *DB) HasImage(imageID string) bool {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return false
	}

	var exists bool
	err := d.db.QueryRow("SELECT EXISTS(SELECT 1 FROM updates WHERE image_id = ? AND status = ?)", imageID, models.StatusApplied).Scan(&exists)
	return err == nil && exists
}

const selectColumns = `SELECT id, run_id, image_id, title, link, path, backup_path, status, error_details, timestamp FROM updates`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.HistoryEntry, error) {
	var (
		entry                                              models.HistoryEntry
		runID, title, link, path, backupPath, errorDetails sql.NullString
		ts                                                 int64
	)
	if err := s.Scan(&entry.ID, &runID, &entry.ImageID, &title, &link, &path, &backupPath, &entry.Status, &errorDetails, &ts); err != nil {
		return models.HistoryEntry{}, err
	}
	entry.RunID = runID.String
	entry.Title = title.String
	entry.Link = link.String
	entry.Path = path.String
	entry.BackupPath = backupPath.String
	entry.ErrorDetails = errorDetails.String
	entry.Timestamp = time.Unix(ts, 0)
	return entry, nil
}

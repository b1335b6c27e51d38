// Package store provides the SQLite storage layer for extracted tasks.
//
// All state lives in a single SQLite database file: the persisted tasks
// (with optional embedding vectors for similarity lookups) and the
// processed-message markers that make reruns idempotent.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/embed"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.taskagent/tasks.db"

// Priority levels as stored. Lower number = more urgent.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// TaskRecord is a persisted task.
type TaskRecord struct {
	ID           int64
	Name         string
	Priority     int    // 1=HIGH, 2=MEDIUM, 3=LOW
	DueDate      string // free-form deadline text, "None" when absent
	CreatedAt    string // RFC 3339 UTC
	EmailContext string // normalized source message, for auditing
}

// SimilarTask is a near-match returned by FindSimilar.
type SimilarTask struct {
	Name     string
	Priority int
	DueDate  string
	Distance float64 // 0 = identical, 1 = unrelated
}

// StoreStats summarizes database contents.
type StoreStats struct {
	DBPath            string `json:"db_path"`
	TaskCount         int    `json:"task_count"`
	HighCount         int    `json:"high_count"`
	MediumCount       int    `json:"medium_count"`
	LowCount          int    `json:"low_count"`
	ProcessedMessages int    `json:"processed_messages"`
}

// Store is the persistence interface for tasks.
type Store interface {
	AddTask(ctx context.Context, t *TaskRecord) error
	FindSimilar(ctx context.Context, name string, limit int) ([]SimilarTask, error)
	RecentTasks(ctx context.Context, limit int) ([]*TaskRecord, error)
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// ProcessedTracker is an optional store capability for marking messages as
// handled. Callers probe for it with a type assertion; stores without it
// simply reprocess on every run.
type ProcessedTracker interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// StoreConfig holds store construction options.
type StoreConfig struct {
	DBPath string
	// Embedder enables vector similarity for FindSimilar. Nil falls back
	// to lexical similarity.
	Embedder embed.Embedder
}

// SQLiteStore implements Store and ProcessedTracker using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	embedder embed.Embedder
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:       db,
		dbPath:   cfg.DBPath,
		embedder: cfg.Embedder,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 2,
			due_date TEXT NOT NULL DEFAULT 'None',
			created_at TEXT NOT NULL,
			email_context TEXT NOT NULL DEFAULT '',
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
		`CREATE TABLE IF NOT EXISTS processed_messages (
			message_id TEXT PRIMARY KEY,
			processed_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddTask inserts a task, embedding its name when an embedder is configured.
// An embedding failure degrades to a plain insert; similarity lookups for
// that row fall back to lexical matching.
func (s *SQLiteStore) AddTask(ctx context.Context, t *TaskRecord) error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if t.Priority < PriorityHigh || t.Priority > PriorityLow {
		t.Priority = PriorityMedium
	}
	if t.DueDate == "" {
		t.DueDate = "None"
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	var embedding []byte
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, t.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: embedding task %q failed: %v\n", t.Name, err)
		} else {
			embedding = float32ToBytes(vec)
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (name, priority, due_date, created_at, email_context, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Priority, t.DueDate, t.CreatedAt, t.EmailContext, embedding)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	t.ID = id
	return nil
}

// RecentTasks returns the newest tasks, most recent first.
func (s *SQLiteStore) RecentTasks(ctx context.Context, limit int) ([]*TaskRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, priority, due_date, created_at, email_context
		 FROM tasks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TaskRecord
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.ID, &t.Name, &t.Priority, &t.DueDate, &t.CreatedAt, &t.EmailContext); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// IsProcessed reports whether a message marker exists.
func (s *SQLiteStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = ?`, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking processed marker: %w", err)
	}
	return true, nil
}

// MarkProcessed records a message marker. Marking twice is a no-op.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (message_id, processed_at) VALUES (?, ?)`,
		messageID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("marking message processed: %w", err)
	}
	return nil
}

// Stats summarizes the database contents.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{DBPath: s.dbPath}

	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN priority = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN priority = 2 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN priority = 3 THEN 1 ELSE 0 END), 0)
		FROM tasks`)
	if err := row.Scan(&stats.TaskCount, &stats.HighCount, &stats.MediumCount, &stats.LowCount); err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_messages`)
	if err := row.Scan(&stats.ProcessedMessages); err != nil {
		return nil, fmt.Errorf("counting processed messages: %w", err)
	}

	return stats, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

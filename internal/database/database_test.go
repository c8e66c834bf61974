package database

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
}

func TestNew_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "journal.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("Expected parent directories to be created: %v", err)
	}
	db.Close()
}

func TestInitialize(t *testing.T) {
	db := newTestDB(t)

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	// Verify tables were created
	tables := []string{
		"sessions",
		"session_logs",
		"session_turns",
	}

	for _, table := range tables {
		var name string
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		err := db.QueryRow(query, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	var index string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", "idx_sessions_status").Scan(&index)
	if err != nil {
		t.Errorf("Index idx_sessions_status was not created: %v", err)
	}
}

func TestInitialize_ForeignKeys(t *testing.T) {
	db := newTestDB(t)

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	// Verify foreign keys are enabled
	var fkEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}

	if fkEnabled != 1 {
		t.Error("Foreign keys are not enabled")
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	db := newTestDB(t)

	// Initialize multiple times - should not error
	if err := db.Initialize(); err != nil {
		t.Fatalf("First initialization failed: %v", err)
	}

	if err := db.Initialize(); err != nil {
		t.Fatalf("Second initialization failed: %v", err)
	}
}

func TestDatabase_ForeignKeyConstraints(t *testing.T) {
	db := newTestDB(t)

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	// A log row referencing a session that does not exist should fail
	_, err := db.Exec(`INSERT INTO session_logs (session_id, seq, created_at, record_json) VALUES (?, ?, CURRENT_TIMESTAMP, ?)`,
		"ghost-session", 1, "{}")

	if err == nil {
		t.Error("Expected foreign key constraint error, got nil")
	}
}

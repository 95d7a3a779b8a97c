package db

import (
	"path/filepath"
	"testing"
)

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test_pragmas.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	// Verify journal_mode is WAL
	var journalMode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	// Verify busy_timeout is 5000
	var busyTimeout int
	err = db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout)
	if err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	// Verify synchronous is NORMAL (1)
	var synchronous int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronous)
	if err != nil {
		t.Fatalf("Failed to query synchronous: %v", err)
	}
	if synchronous != 1 {
		t.Errorf("Expected synchronous=1 (NORMAL), got %d", synchronous)
	}

	// Verify temp_store is MEMORY (2)
	var tempStore int
	err = db.QueryRow("PRAGMA temp_store").Scan(&tempStore)
	if err != nil {
		t.Fatalf("Failed to query temp_store: %v", err)
	}
	if tempStore != 2 {
		t.Errorf("Expected temp_store=2 (MEMORY), got %d", tempStore)
	}

	// Verify foreign_keys is ON
	var foreignKeys int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys)
	if err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

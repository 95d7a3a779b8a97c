package db

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	empty, err := db.hasNoTables()
	if err != nil {
		t.Fatalf("hasNoTables failed: %v", err)
	}
	if !empty {
		t.Error("Expected OpenDB to create no tables")
	}
}

func TestNewDBProvisionsFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"sessions", "sightings"} {
		if !tableExists(t, db, table) {
			t.Errorf("Expected table %s after NewDB on fresh path", table)
		}
	}

	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if version != latest {
		t.Errorf("Expected fresh database at latest version %d, got %d", latest, version)
	}
	if dirty {
		t.Error("Expected clean state after provisioning")
	}
}

func TestNewDBReopensCurrentDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO sessions (id, started_at_ns, source, note)
		VALUES ('ses_reopen', 1, 'test', '')
	`); err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}
	db.Close()

	db2, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB on existing database failed: %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected existing data to survive reopen, got %d sessions", count)
	}
}

func TestNewDBRejectsOutdatedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outdated.db")

	// Build a database stuck at version 1
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	if err := db.MigrateTo(fsys, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	db.Close()

	_, err = NewDB(path)
	if err == nil {
		t.Fatal("Expected NewDB to reject an outdated database")
	}
	if !strings.Contains(err.Error(), "out of date") {
		t.Errorf("Expected out-of-date error, got: %v", err)
	}
}

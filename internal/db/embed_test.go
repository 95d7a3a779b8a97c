package db

import (
	"io/fs"
	"strings"
	"testing"
)

// TestEmbeddedMigrationsFS verifies the embedded migrations filesystem
// structure: every up migration has a matching down migration and the
// version numbers count up from 1 without gaps.
func TestEmbeddedMigrationsFS(t *testing.T) {
	origDevMode := DevMode
	DevMode = false
	defer func() { DevMode = origDevMode }()

	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("Failed to read migrations filesystem: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Expected embedded migration files, found none")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("Unexpected file in migrations: %s", name)
		}
	}

	for stem := range ups {
		if !downs[stem] {
			t.Errorf("Migration %s has no down file", stem)
		}
	}
	for stem := range downs {
		if !ups[stem] {
			t.Errorf("Migration %s has no up file", stem)
		}
	}

	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if int(latest) != len(ups) {
		t.Errorf("Expected %d sequential versions, latest is %d", len(ups), latest)
	}
}

// TestEmbeddedMigrationsApply runs the real embedded migrations against a
// fresh database and verifies the resulting schema.
func TestEmbeddedMigrationsApply(t *testing.T) {
	origDevMode := DevMode
	DevMode = false
	defer func() { DevMode = origDevMode }()

	db := setupMigrationTestDB(t)

	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp with embedded migrations failed: %v", err)
	}

	for _, table := range []string{"sessions", "sightings"} {
		if !tableExists(t, db, table) {
			t.Errorf("Expected table %s after migrations", table)
		}
	}

	// Migration 3 adds the properties column
	var count int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('sightings') WHERE name='properties'
	`).Scan(&count)
	if err != nil {
		t.Fatalf("failed to inspect sightings columns: %v", err)
	}
	if count != 1 {
		t.Error("Expected properties column on sightings")
	}

	// Roll all the way back down
	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	for i := uint(0); i < latest; i++ {
		if err := db.MigrateDown(fsys); err != nil {
			t.Fatalf("MigrateDown step %d failed: %v", i+1, err)
		}
	}
	if tableExists(t, db, "sessions") || tableExists(t, db, "sightings") {
		t.Error("Expected all tables dropped after full rollback")
	}
}

package db

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// TestAttachAdminRoutes verifies the debug endpoints are registered.
// tsweb may answer 403 for non-local callers, so the checks only reject
// 404 unless the request succeeds.
func TestAttachAdminRoutes(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	httpMux := http.NewServeMux()
	db.AttachAdminRoutes(httpMux)

	t.Run("db-stats endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/db-stats", nil)
		w := httptest.NewRecorder()

		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Error("Route /debug/db-stats should be registered, got 404")
		}

		if w.Code == http.StatusOK {
			var stats DatabaseStats
			if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
				t.Errorf("Failed to decode stats response: %v", err)
			}
			if stats.TotalSizeMB <= 0 {
				t.Error("Expected positive total size")
			}
			if len(stats.Tables) == 0 {
				t.Error("Expected at least one table in stats")
			}
			if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got %s", contentType)
			}
		}
	})

	t.Run("backup endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
		w := httptest.NewRecorder()

		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Error("Route /debug/backup should be registered, got 404")
		}

		if w.Code == http.StatusOK {
			if w.Header().Get("Content-Disposition") == "" {
				t.Error("Expected Content-Disposition header for backup download")
			}
			if contentType := w.Header().Get("Content-Type"); contentType != "application/octet-stream" {
				t.Logf("Expected Content-Type 'application/octet-stream', got %s", contentType)
			}
		}
	})

	t.Run("tailsql endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
		w := httptest.NewRecorder()

		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Error("Route /debug/tailsql/ should be registered, got 404")
		}
	})
}

// TestBackupEndpointFileCleanup verifies backup files do not accumulate in
// the working directory.
func TestBackupEndpointFileCleanup(t *testing.T) {
	tmpDir := t.TempDir()

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWd); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	db, err := NewDB(filepath.Join(tmpDir, "backup_cleanup.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	httpMux := http.NewServeMux()
	db.AttachAdminRoutes(httpMux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	w := httptest.NewRecorder()

	httpMux.ServeHTTP(w, req)

	afterFiles, err := filepath.Glob("pattern-backup-*.db")
	if err != nil {
		t.Fatalf("Failed to list files after backup: %v", err)
	}
	if len(afterFiles) != 0 {
		t.Errorf("Expected backup files to be removed after sending, found %d", len(afterFiles))
	}
}

func TestGetDatabaseStats(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		INSERT INTO sessions (id, started_at_ns, source, note)
		VALUES ('ses_stats', 1, 'test', '')
	`); err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}

	stats, err := db.GetDatabaseStats()
	if err != nil {
		t.Fatalf("GetDatabaseStats failed: %v", err)
	}

	if stats.TotalSizeMB <= 0 {
		t.Error("Expected positive total size")
	}

	foundSessions := false
	prevSize := -1.0
	for i, table := range stats.Tables {
		if table.Name == "sessions" {
			foundSessions = true
			if table.RowCount != 1 {
				t.Errorf("Expected 1 row in sessions, got %d", table.RowCount)
			}
		}
		if i > 0 && table.SizeMB > prevSize {
			t.Errorf("Tables not sorted by size descending: %s (%.2f MB) after %.2f MB",
				table.Name, table.SizeMB, prevSize)
		}
		prevSize = table.SizeMB
	}

	if !foundSessions {
		t.Error("Expected sessions table in stats")
	}
}

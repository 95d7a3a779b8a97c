package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB wraps the pattern database. Schema changes go through the numbered
// migrations under migrations/; OpenDB never creates tables itself.
type DB struct {
	*sql.DB
}

// connectionPragmas are applied to every new handle. WAL keeps readers
// from blocking the sighting recorder; busy_timeout covers migration
// contention on startup.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database at path and applies connection pragmas
// without touching the schema. Use NewDB unless you are running
// migration commands.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// Pragmas are per-connection, so hold the pool to one.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range connectionPragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}

// NewDB opens the database and ensures its schema is current. A brand
// new database is migrated to the latest version automatically; an
// existing database that is behind is left untouched and the returned
// error tells the operator to run the migrate subcommand.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}

	fresh, err := db.hasNoTables()
	if err != nil {
		db.Close()
		return nil, err
	}

	if fresh {
		if err := db.MigrateUp(migrationsFS); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to provision fresh database: %w", err)
		}
		return db, nil
	}

	if _, err := db.CheckAndPromptMigrations(migrationsFS); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// hasNoTables reports whether the database contains no user tables yet.
func (db *DB) hasNoTables() (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
	`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return count == 0, nil
}

// AttachAdminRoutes mounts the tsweb debug index, a live tailSQL console
// over the pattern database, and a backup download endpoint on mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// create a tailSQL instance and point it at our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://pattern_data.db", db.DB, &tailsql.DBOptions{
		Label: "Pattern DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Database size and row counts", http.HandlerFunc(db.handleDBStats))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("pattern-backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}

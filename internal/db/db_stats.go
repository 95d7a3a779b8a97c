package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// TableStats describes one table's footprint.
type TableStats struct {
	Name     string  `json:"name"`
	RowCount int64   `json:"row_count"`
	SizeMB   float64 `json:"size_mb"`
}

// DatabaseStats summarizes the database footprint for the debug page.
type DatabaseStats struct {
	TotalSizeMB float64      `json:"total_size_mb"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports the total database size and per-table row
// counts, sorted by on-disk size descending. Per-table sizes come from
// the dbstat virtual table and read as zero if it is unavailable.
func (db *DB) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to read page_size: %w", err)
	}

	stats := &DatabaseStats{
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
		Tables:      []TableStats{},
	}

	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}

	for _, name := range names {
		table := TableStats{Name: name}

		if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&table.RowCount); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}

		var sizeBytes sql.NullInt64
		_ = db.QueryRow("SELECT SUM(pgsize) FROM dbstat WHERE name = ?", name).Scan(&sizeBytes)
		if sizeBytes.Valid {
			table.SizeMB = float64(sizeBytes.Int64) / (1024 * 1024)
		}

		stats.Tables = append(stats.Tables, table)
	}

	sort.Slice(stats.Tables, func(i, j int) bool {
		if stats.Tables[i].SizeMB != stats.Tables[j].SizeMB {
			return stats.Tables[i].SizeMB > stats.Tables[j].SizeMB
		}
		if stats.Tables[i].RowCount != stats.Tables[j].RowCount {
			return stats.Tables[i].RowCount > stats.Tables[j].RowCount
		}
		return stats.Tables[i].Name < stats.Tables[j].Name
	})

	return stats, nil
}

// handleDBStats serves GetDatabaseStats as JSON.
func (db *DB) handleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := db.GetDatabaseStats()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to gather database stats: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode stats: %v", err), http.StatusInternalServerError)
	}
}

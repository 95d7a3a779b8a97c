package vision

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aperture-data/phi.vision/internal/security"
)

// defaultExportDir anchors all sighting exports under the OS temp directory.
// Export handlers never accept caller-supplied paths; they ask for an export
// and are told where it landed.
var defaultExportDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		log.Printf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// sightingExportPath builds the output path for a session export. The session
// id is sanitized before it touches the filename, and the UTC timestamp keeps
// repeated exports from clobbering each other.
func sightingExportPath(sessionID string, now time.Time) string {
	name := fmt.Sprintf("export_sightings_%s_%s.csv",
		security.SanitizeFilename(sessionID), now.UTC().Format("20060102T150405Z"))
	return filepath.Join(defaultExportDir, name)
}

// ExportSightingsCSV writes records as CSV under the export directory and
// returns the path written. Column order matches the sightings table; the
// math properties land JSON-encoded in the final column.
func ExportSightingsCSV(records []SightingRecord, sessionID string) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no sightings to export")
	}

	outPath := sightingExportPath(sessionID, time.Now())
	if err := security.ValidateExportPath(outPath); err != nil {
		return "", fmt.Errorf("invalid export path: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "session_id", "class", "confidence",
		"center_x", "center_y", "box_x", "box_y", "box_w", "box_h",
		"bucket_x", "bucket_y", "observations",
		"first_seen_ns", "last_seen_ns", "properties",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, rec := range records {
		props, err := json.Marshal(rec.Math)
		if err != nil {
			return "", fmt.Errorf("encode properties for %s: %w", rec.ID, err)
		}
		row := []string{
			rec.ID,
			rec.SessionID,
			string(rec.Class),
			fmt.Sprintf("%.4f", rec.Confidence),
			fmt.Sprintf("%.2f", rec.Center.X),
			fmt.Sprintf("%.2f", rec.Center.Y),
			fmt.Sprintf("%.2f", rec.Box.X),
			fmt.Sprintf("%.2f", rec.Box.Y),
			fmt.Sprintf("%.2f", rec.Box.W),
			fmt.Sprintf("%.2f", rec.Box.H),
			fmt.Sprintf("%d", rec.BucketX),
			fmt.Sprintf("%d", rec.BucketY),
			fmt.Sprintf("%d", rec.Observations),
			fmt.Sprintf("%d", rec.FirstSeenNanos),
			fmt.Sprintf("%d", rec.LastSeenNanos),
			string(props),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	log.Printf("Exported %d sightings to %s", len(records), outPath)
	return outPath, nil
}

package vision

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aperture-data/phi.vision/internal/geometry"
)

// SightingStore persists recognition sessions and promoted patterns. It
// implements SightingSink: RecordStable folds repeat sightings of one
// pattern into a single row keyed by session, class, and history bucket,
// so a pattern that stays in view for an hour is one row, not thousands.
type SightingStore struct {
	db       *sql.DB
	bucketPx float64
}

var _ SightingSink = (*SightingStore)(nil)

// NewSightingStore wraps an open pattern database handle.
func NewSightingStore(db *sql.DB) *SightingStore {
	return &SightingStore{db: db, bucketPx: DefaultBucketSize}
}

// SetBucketSize aligns the store's center quantization with the tracker's
// bucket size so rows merge on the same grid. Non-positive values are
// ignored.
func (s *SightingStore) SetBucketSize(px float64) {
	if px > 0 {
		s.bucketPx = px
	}
}

// InsertSession opens a recognition session and returns its id.
func (s *SightingStore) InsertSession(startedAt time.Time, source, note string) (string, error) {
	id := "ses_" + uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, started_at_ns, source, note)
		VALUES (?, ?, ?, ?)
	`, id, startedAt.UnixNano(), source, note)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (s *SightingStore) EndSession(sessionID string, endedAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at_ns = ? WHERE id = ?
	`, endedAt.UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// RecordStable upserts every pattern in set. A pattern re-promoted in the
// same bucket extends its existing row: latest confidence, box, and
// last-seen time win while the original id and first-seen time stay.
func (s *SightingStore) RecordStable(sessionID string, set *StableSet) error {
	if sessionID == "" || set == nil {
		return nil
	}
	for i := range set.Patterns {
		if err := s.recordPattern(sessionID, &set.Patterns[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SightingStore) recordPattern(sessionID string, p *StablePattern) error {
	props, err := json.Marshal(p.Math)
	if err != nil {
		return fmt.Errorf("failed to encode properties for %s: %w", p.Class, err)
	}
	bx, by := BucketFor(p.Center, s.bucketPx)

	_, err = s.db.Exec(`
		INSERT INTO sightings (
			id, session_id, class, confidence,
			center_x, center_y, box_x, box_y, box_w, box_h,
			bucket_x, bucket_y, observations,
			first_seen_ns, last_seen_ns, properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, class, bucket_x, bucket_y) DO UPDATE SET
			confidence   = excluded.confidence,
			center_x     = excluded.center_x,
			center_y     = excluded.center_y,
			box_x        = excluded.box_x,
			box_y        = excluded.box_y,
			box_w        = excluded.box_w,
			box_h        = excluded.box_h,
			observations = excluded.observations,
			last_seen_ns = excluded.last_seen_ns,
			properties   = excluded.properties
	`, "sig_"+uuid.NewString(), sessionID, string(p.Class), p.Confidence,
		p.Center.X, p.Center.Y, p.Box.X, p.Box.Y, p.Box.W, p.Box.H,
		bx, by, p.Observations, p.FirstSeenNanos, p.LastSeenNanos, string(props))
	if err != nil {
		return fmt.Errorf("failed to record sighting for %s: %w", p.Class, err)
	}
	return nil
}

// SightingQuery filters GetSightings. Zero fields are ignored.
type SightingQuery struct {
	SessionID  string
	Class      PatternClass
	SinceNanos int64 // keep rows last seen at or after this
	UntilNanos int64 // keep rows first seen at or before this
	Limit      int   // defaults to 200
}

// SightingRecord is one persisted pattern row.
type SightingRecord struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Class          PatternClass   `json:"class"`
	Confidence     float64        `json:"confidence"`
	Center         geometry.Point `json:"center"`
	Box            geometry.Rect  `json:"box"`
	BucketX        int            `json:"bucket_x"`
	BucketY        int            `json:"bucket_y"`
	Observations   int            `json:"observations"`
	FirstSeenNanos int64          `json:"first_seen_unix_nanos"`
	LastSeenNanos  int64          `json:"last_seen_unix_nanos"`
	Math           MathProperties `json:"math,omitempty"`
}

// GetSightings returns persisted sightings matching q, most recently seen
// first.
func (s *SightingStore) GetSightings(q SightingQuery) ([]SightingRecord, error) {
	query := `
		SELECT id, session_id, class, confidence,
			center_x, center_y, box_x, box_y, box_w, box_h,
			bucket_x, bucket_y, observations,
			first_seen_ns, last_seen_ns, properties
		FROM sightings
		WHERE 1=1`
	var args []interface{}

	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Class != "" {
		query += " AND class = ?"
		args = append(args, string(q.Class))
	}
	if q.SinceNanos > 0 {
		query += " AND last_seen_ns >= ?"
		args = append(args, q.SinceNanos)
	}
	if q.UntilNanos > 0 {
		query += " AND first_seen_ns <= ?"
		args = append(args, q.UntilNanos)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " ORDER BY last_seen_ns DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var records []SightingRecord
	for rows.Next() {
		var rec SightingRecord
		var class, props string
		err := rows.Scan(&rec.ID, &rec.SessionID, &class, &rec.Confidence,
			&rec.Center.X, &rec.Center.Y, &rec.Box.X, &rec.Box.Y, &rec.Box.W, &rec.Box.H,
			&rec.BucketX, &rec.BucketY, &rec.Observations,
			&rec.FirstSeenNanos, &rec.LastSeenNanos, &props)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		rec.Class = PatternClass(class)
		if props != "" {
			if err := json.Unmarshal([]byte(props), &rec.Math); err != nil {
				return nil, fmt.Errorf("failed to decode properties for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sightings: %w", err)
	}

	return records, nil
}

// ClassSummary aggregates one class within a session.
type ClassSummary struct {
	Class             PatternClass `json:"class"`
	Count             int          `json:"count"`
	MeanConfidence    float64      `json:"mean_confidence"`
	MaxConfidence     float64      `json:"max_confidence"`
	TotalObservations int          `json:"total_observations"`
}

// SessionSummary describes a recognition session and its sightings.
type SessionSummary struct {
	SessionID    string         `json:"session_id"`
	StartedNanos int64          `json:"started_at_unix_nanos"`
	EndedNanos   int64          `json:"ended_at_unix_nanos,omitempty"`
	Source       string         `json:"source,omitempty"`
	Note         string         `json:"note,omitempty"`
	Sightings    int            `json:"sightings"`
	Classes      []ClassSummary `json:"classes"`
}

// GetSessionSummary aggregates a session's sightings per class.
func (s *SightingStore) GetSessionSummary(sessionID string) (*SessionSummary, error) {
	summary := &SessionSummary{SessionID: sessionID, Classes: []ClassSummary{}}

	var endedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT started_at_ns, ended_at_ns, source, note
		FROM sessions WHERE id = ?
	`, sessionID).Scan(&summary.StartedNanos, &endedAt, &summary.Source, &summary.Note)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if endedAt.Valid {
		summary.EndedNanos = endedAt.Int64
	}

	rows, err := s.db.Query(`
		SELECT class, COUNT(*), AVG(confidence), MAX(confidence), SUM(observations)
		FROM sightings
		WHERE session_id = ?
		GROUP BY class
		ORDER BY COUNT(*) DESC, class ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session %s: %w", sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cs ClassSummary
		var class string
		if err := rows.Scan(&class, &cs.Count, &cs.MeanConfidence, &cs.MaxConfidence, &cs.TotalObservations); err != nil {
			return nil, fmt.Errorf("failed to scan class summary: %w", err)
		}
		cs.Class = PatternClass(class)
		summary.Sightings += cs.Count
		summary.Classes = append(summary.Classes, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate class summaries: %w", err)
	}

	return summary, nil
}

// Package store persists tracking sessions and their per-frame estimates
// to a SQLite database so runs can be compared after the fact.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pongvision/condense"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	started_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS estimates (
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	frame_index   INTEGER NOT NULL,
	pts_ns        INTEGER NOT NULL,
	x             REAL NOT NULL,
	y             REAL NOT NULL,
	vx            REAL NOT NULL,
	vy            REAL NOT NULL,
	uncertainty   REAL NOT NULL,
	ess           REAL NOT NULL,
	degraded      INTEGER NOT NULL,
	reinitialized INTEGER NOT NULL,
	track_lost    INTEGER NOT NULL,
	PRIMARY KEY (session_id, frame_index)
);
`

// Store records tracking sessions in a SQLite database
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file and ensures the schema exists
func Open(path string) (*Store, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSession registers a new tracking session for the given source and
// returns its id
func (s *Store) BeginSession(source string) (string, error) {

	id := uuid.NewString()

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)`,
		id, source, time.Now().UnixNano())

	if err != nil {
		return "", fmt.Errorf("error creating session: %w", err)
	}

	return id, nil
}

// RecordEstimate stores one per-frame estimate under the session
func (s *Store) RecordEstimate(sessionID string, est condense.TrackEstimate) error {

	_, err := s.db.Exec(
		`INSERT INTO estimates (session_id, frame_index, pts_ns,
			x, y, vx, vy, uncertainty, ess,
			degraded, reinitialized, track_lost)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, est.FrameIndex, est.PTS.Nanoseconds(),
		est.X, est.Y, est.VX, est.VY, est.Uncertainty, est.ESS,
		boolToInt(est.Degraded), boolToInt(est.Reinitialized),
		boolToInt(est.TrackLost))

	if err != nil {
		return fmt.Errorf("error recording estimate for frame %d: %w",
			est.FrameIndex, err)
	}

	return nil
}

// Estimates loads all estimates of a session ordered by frame index
func (s *Store) Estimates(sessionID string) ([]condense.TrackEstimate, error) {

	rows, err := s.db.Query(
		`SELECT frame_index, pts_ns, x, y, vx, vy, uncertainty, ess,
			degraded, reinitialized, track_lost
		 FROM estimates WHERE session_id = ? ORDER BY frame_index`,
		sessionID)

	if err != nil {
		return nil, fmt.Errorf("error querying estimates: %w", err)
	}

	defer rows.Close()

	var estimates []condense.TrackEstimate

	for rows.Next() {
		var est condense.TrackEstimate
		var ptsNS int64
		var degraded, reinit, lost int

		err = rows.Scan(&est.FrameIndex, &ptsNS,
			&est.X, &est.Y, &est.VX, &est.VY, &est.Uncertainty, &est.ESS,
			&degraded, &reinit, &lost)

		if err != nil {
			return nil, fmt.Errorf("error scanning estimate: %w", err)
		}

		est.PTS = time.Duration(ptsNS)
		est.Degraded = degraded != 0
		est.Reinitialized = reinit != 0
		est.TrackLost = lost != 0

		estimates = append(estimates, est)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading estimates: %w", err)
	}

	return estimates, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package persistence provides SQLite-based storage for fetched entry pools
// and per-condition stability results.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
)

// DB wraps a SQLite connection for entry caching and result persistence.
type DB struct {
	conn *sqlx.DB
}

// ResultRow is one persisted per-condition outcome. Err is empty on success.
type ResultRow struct {
	RunID         string  `db:"run_id"`
	Condition     string  `db:"condition_label"`
	Description   string  `db:"description"`
	Target        string  `db:"target"`
	EAboveHull    float64 `db:"e_above_hull"`
	TargetEPA     float64 `db:"target_epa"`
	GrandEPA      float64 `db:"grand_epa"`
	Decomposition string  `db:"decomposition_json"`
	Err           string  `db:"error"`
	CreatedAt     string  `db:"created_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		chemsys TEXT NOT NULL,
		source_id TEXT NOT NULL,
		kind INTEGER NOT NULL,
		composition_json TEXT NOT NULL,
		energy REAL NOT NULL,
		correction REAL NOT NULL,
		corrected INTEGER NOT NULL,
		run_type TEXT NOT NULL,
		PRIMARY KEY (chemsys, source_id)
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		condition_label TEXT NOT NULL,
		description TEXT NOT NULL,
		target TEXT NOT NULL,
		e_above_hull REAL NOT NULL,
		target_epa REAL NOT NULL,
		grand_epa REAL NOT NULL,
		decomposition_json TEXT NOT NULL,
		error TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_chemsys ON entries(chemsys);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEntries replaces the cached pool for one chemical system.
func (db *DB) SaveEntries(chemsys string, entries []entry.Entry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries WHERE chemsys = ?", chemsys); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO entries
		(chemsys, source_id, kind, composition_json, energy, correction, corrected, run_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		compJSON, err := json.Marshal(e.Composition)
		if err != nil {
			return fmt.Errorf("marshal composition %s: %w", e.SourceID, err)
		}
		corrected := 0
		if e.Corrected {
			corrected = 1
		}
		if _, err := stmt.Exec(
			chemsys, e.SourceID, int(e.Kind), string(compJSON),
			e.EnergyRaw, e.Correction, corrected, e.RunType,
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("entry pool cached", "chemsys", chemsys, "count", len(entries))
	return nil
}

// LoadEntries returns the cached pool for a chemical system, or (nil, nil)
// when the system has never been cached.
func (db *DB) LoadEntries(chemsys string) ([]entry.Entry, error) {
	type row struct {
		SourceID   string  `db:"source_id"`
		Kind       int     `db:"kind"`
		CompJSON   string  `db:"composition_json"`
		Energy     float64 `db:"energy"`
		Correction float64 `db:"correction"`
		Corrected  int     `db:"corrected"`
		RunType    string  `db:"run_type"`
	}
	var rows []row
	err := db.conn.Select(&rows,
		`SELECT source_id, kind, composition_json, energy, correction, corrected, run_type
		 FROM entries WHERE chemsys = ? ORDER BY source_id`, chemsys)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]entry.Entry, 0, len(rows))
	for _, r := range rows {
		var comp chem.Composition
		if err := json.Unmarshal([]byte(r.CompJSON), &comp); err != nil {
			return nil, fmt.Errorf("unmarshal composition %s: %w", r.SourceID, err)
		}
		out = append(out, entry.Entry{
			Kind:        entry.Kind(r.Kind),
			Composition: comp,
			EnergyRaw:   r.Energy,
			Correction:  r.Correction,
			Corrected:   r.Corrected != 0,
			RunType:     r.RunType,
			SourceID:    r.SourceID,
		})
	}
	return out, nil
}

// SaveResults appends per-condition rows for one run.
func (db *DB) SaveResults(rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rows {
		if r.CreatedAt == "" {
			r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		}
		if _, err := tx.Exec(`INSERT INTO results
			(run_id, condition_label, description, target, e_above_hull,
			 target_epa, grand_epa, decomposition_json, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Condition, r.Description, r.Target, r.EAboveHull,
			r.TargetEPA, r.GrandEPA, r.Decomposition, r.Err, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert result %s/%s: %w", r.RunID, r.Condition, err)
		}
	}

	return tx.Commit()
}

// ResultsForRun returns the persisted rows for one run, ordered by condition.
func (db *DB) ResultsForRun(runID string) ([]ResultRow, error) {
	var rows []ResultRow
	err := db.conn.Select(&rows,
		`SELECT run_id, condition_label, description, target, e_above_hull,
		        target_epa, grand_epa, decomposition_json, error, created_at
		 FROM results WHERE run_id = ? ORDER BY condition_label`, runID)
	return rows, err
}

// SaveMeta stores a key-value pair (used for the correction scheme version of
// the cached pool).
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value; empty string if absent.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

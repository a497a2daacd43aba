package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// schema holds the single table mapping slots to running servers. Timestamps
// are stored as unix milliseconds; health paths as a JSON array.
const schema = `
CREATE TABLE IF NOT EXISTS slots (
	slot         TEXT PRIMARY KEY,
	launch_id    TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	pid          INTEGER NOT NULL,
	base_url     TEXT NOT NULL,
	health_paths TEXT NOT NULL,
	started_at   INTEGER NOT NULL,
	checked_at   INTEGER NOT NULL
)`

// openStore opens (creating if necessary) the registry database and ensures
// the schema exists. The schema statement doubles as the integrity probe: a
// corrupt or non-SQLite file fails here rather than on first real use.
func openStore(path string) (*sql.DB, error) {
	// Open with WAL mode so concurrent runs can read while one writes, a
	// generous busy timeout to ride out a writer in another process, and
	// relaxed synchronous mode. NORMAL is safe because the registry is
	// reconstructible bookkeeping - losing it costs a redundant server
	// start, not data.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single connection - the registry sees a handful of statements per
	// run, not query traffic worth pooling.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}
	return db, nil
}

// upsertSlot writes d as the current descriptor for its slot. Insert and
// replace are a single statement, so a concurrent reader sees either the
// previous descriptor or this one, never a mixture.
func upsertSlot(ctx context.Context, db *sql.DB, d Descriptor) error {
	paths, err := json.Marshal(d.HealthPaths)
	if err != nil {
		return fmt.Errorf("encode health paths: %w", err)
	}

	const stmt = `
INSERT INTO slots (slot, launch_id, fingerprint, pid, base_url, health_paths, started_at, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
	launch_id    = excluded.launch_id,
	fingerprint  = excluded.fingerprint,
	pid          = excluded.pid,
	base_url     = excluded.base_url,
	health_paths = excluded.health_paths,
	started_at   = excluded.started_at,
	checked_at   = excluded.checked_at`

	_, err = db.ExecContext(ctx, stmt,
		d.Slot, d.LaunchID, d.Fingerprint, d.PID, d.BaseURL, string(paths),
		d.StartedAt.UnixMilli(), d.CheckedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", d.Slot, err)
	}
	return nil
}

// getSlot loads the descriptor for slot. The second return value is false
// when no descriptor exists.
func getSlot(ctx context.Context, db *sql.DB, slot string) (Descriptor, bool, error) {
	const query = `
SELECT slot, launch_id, fingerprint, pid, base_url, health_paths, started_at, checked_at
FROM slots WHERE slot = ?`

	row := db.QueryRowContext(ctx, query, slot)
	d, err := scanDescriptor(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Descriptor{}, false, nil
	}
	if err != nil {
		return Descriptor{}, false, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return d, true, nil
}

// deleteSlot removes the descriptor for slot. Deleting an absent slot is
// not an error.
func deleteSlot(ctx context.Context, db *sql.DB, slot string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	return nil
}

// touchSlot updates the last-verified timestamp for slot.
func touchSlot(ctx context.Context, db *sql.DB, slot string, at time.Time) error {
	if _, err := db.ExecContext(ctx,
		`UPDATE slots SET checked_at = ? WHERE slot = ?`, at.UnixMilli(), slot); err != nil {
		return fmt.Errorf("touch slot %s: %w", slot, err)
	}
	return nil
}

// listSlots returns all recorded descriptors ordered by slot name.
func listSlots(ctx context.Context, db *sql.DB) ([]Descriptor, error) {
	const query = `
SELECT slot, launch_id, fingerprint, pid, base_url, health_paths, started_at, checked_at
FROM slots ORDER BY slot`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors; Close error is redundant

	var out []Descriptor
	for rows.Next() {
		d, err := scanDescriptor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan slot row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot rows: %w", err)
	}
	return out, nil
}

// scanDescriptor reads one descriptor from a row scan function, decoding
// the JSON health paths and millisecond timestamps.
func scanDescriptor(scan func(dest ...any) error) (Descriptor, error) {
	var (
		d         Descriptor
		paths     string
		startedMs int64
		checkedMs int64
	)
	if err := scan(&d.Slot, &d.LaunchID, &d.Fingerprint, &d.PID, &d.BaseURL,
		&paths, &startedMs, &checkedMs); err != nil {
		return Descriptor{}, err
	}
	if err := json.Unmarshal([]byte(paths), &d.HealthPaths); err != nil {
		return Descriptor{}, fmt.Errorf("decode health paths: %w", err)
	}
	d.StartedAt = time.UnixMilli(startedMs)
	d.CheckedAt = time.UnixMilli(checkedMs)
	return d, nil
}

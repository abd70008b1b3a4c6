// Package statsdb keeps dispatcher statistics snapshots in SQLite and
// exports them as JSON.
package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"qmgr/dispatcher"
	"qmgr/interrupts"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at    INTEGER NOT NULL,
	loop_runs   INTEGER NOT NULL,
	table_walks INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS queue_stats (
	run_id               INTEGER NOT NULL REFERENCES runs(id),
	queue                INTEGER NOT NULL,
	callbacks            INTEGER NOT NULL,
	priority_changes     INTEGER NOT NULL,
	unclaimed            INTEGER NOT NULL,
	lost_interrupts      INTEGER NOT NULL,
	enables              INTEGER NOT NULL,
	disables             INTEGER NOT NULL,
	notification_enabled INTEGER NOT NULL,
	source               INTEGER NOT NULL,
	PRIMARY KEY (run_id, queue)
);`

// ErrNoSnapshot is returned by Latest on an empty database
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot is one saved set of dispatcher counters
type Snapshot struct {
	ID    int64            `json:"id"`
	Taken time.Time        `json:"taken"`
	Stats dispatcher.Stats `json:"stats"`
}

// DB stores snapshots
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases intact
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &DB{db: db, now: time.Now}, nil
}

// Close the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Save stores a snapshot: one run row plus one row per queue
func (d *DB) Save(ctx context.Context, st dispatcher.Stats) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO runs (taken_at, loop_runs, table_walks) VALUES (?, ?, ?)",
		d.now().UnixNano(), int64(st.LoopRuns), int64(st.TableWalks))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO queue_stats
		(run_id, queue, callbacks, priority_changes, unclaimed, lost_interrupts,
		 enables, disables, notification_enabled, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, q := range st.Queues {
		_, err := stmt.ExecContext(ctx, id, i,
			int64(q.Callbacks), int64(q.PriorityChanges), int64(q.Unclaimed),
			int64(q.LostInterrupts), int64(q.Enables), int64(q.Disables),
			q.NotificationEnabled, int(q.Source))
		if err != nil {
			return 0, fmt.Errorf("insert queue %d: %w", i, err)
		}
	}
	return id, tx.Commit()
}

// Latest loads the most recent snapshot
func (d *DB) Latest(ctx context.Context) (Snapshot, error) {
	var (
		s          Snapshot
		taken      int64
		runs, walk int64
	)
	err := d.db.QueryRowContext(ctx,
		"SELECT id, taken_at, loop_runs, table_walks FROM runs ORDER BY id DESC LIMIT 1").
		Scan(&s.ID, &taken, &runs, &walk)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNoSnapshot
	}
	if err != nil {
		return s, err
	}
	s.Taken = time.Unix(0, taken)
	s.Stats.LoopRuns = uint64(runs)
	s.Stats.TableWalks = uint64(walk)

	rows, err := d.db.QueryContext(ctx, `SELECT queue, callbacks, priority_changes,
		unclaimed, lost_interrupts, enables, disables, notification_enabled, source
		FROM queue_stats WHERE run_id = ?`, s.ID)
	if err != nil {
		return s, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			queue, src                                   int
			cb, prio, unclaimed, lost, enables, disables int64
			enabled                                      bool
		)
		if err := rows.Scan(&queue, &cb, &prio, &unclaimed, &lost, &enables, &disables, &enabled, &src); err != nil {
			return s, err
		}
		if !interrupts.QueueID(queue).Valid() {
			return s, fmt.Errorf("snapshot %d: bad queue %d", s.ID, queue)
		}
		s.Stats.Queues[queue] = dispatcher.QueueStats{
			Callbacks:           uint64(cb),
			PriorityChanges:     uint64(prio),
			Unclaimed:           uint64(unclaimed),
			LostInterrupts:      uint64(lost),
			Enables:             uint64(enables),
			Disables:            uint64(disables),
			NotificationEnabled: enabled,
			Source:              interrupts.SourceID(src),
		}
	}
	return s, rows.Err()
}

// ExportJSON writes the counters as a single JSON document
func ExportJSON(w io.Writer, st dispatcher.Stats) error {
	b, err := sonnet.Marshal(st)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// ReadJSON parses a document written by ExportJSON
func ReadJSON(b []byte) (dispatcher.Stats, error) {
	var st dispatcher.Stats
	err := sonnet.Unmarshal(b, &st)
	return st, err
}

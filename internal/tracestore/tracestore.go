// Package tracestore records round evaluation traces to SQLite for
// post-hoc diagnosis (the loom trace command). It implements
// engine.Recorder; the engine treats it as write-only and its failures
// as log-and-continue, so correctness never depends on the database.
package tracestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomworks/loom/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed trace recorder.
type Store struct {
	db *sql.DB
}

// Open creates or opens the trace database at path (":memory:" works).
// Applies pragmas and the schema idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect trace database: %w", err)
	}

	// SQLite supports one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trace schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordEvent implements engine.Recorder.
// Idempotent: re-recording an event id is a no-op.
func (s *Store) RecordEvent(ctx context.Context, ev *ir.ActionEvent) error {
	input, err := ev.Input.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal event input: %w", err)
	}
	output, err := ev.Output.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal event output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, round, action, input, output, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		ev.ID, ev.Round, string(ev.Action), string(input), string(output), ev.Seq,
	)
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.ID, err)
	}
	return nil
}

// RecordFiring implements engine.Recorder.
// Idempotent on (round, sync, binding hash).
func (s *Store) RecordFiring(ctx context.Context, round, sync, bindingHash string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (round, sync, binding_hash, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(round, sync, binding_hash) DO NOTHING`,
		round, sync, bindingHash, seq,
	)
	if err != nil {
		return fmt.Errorf("record firing %s/%s: %w", round, sync, err)
	}
	return nil
}

// TracedEvent is one recorded event, payloads decoded from JSON.
type TracedEvent struct {
	ID     string    `json:"id"`
	Round  string    `json:"round"`
	Action string    `json:"action"`
	Input  ir.Object `json:"input"`
	Output ir.Object `json:"output"`
	Seq    int64     `json:"seq"`
}

// TracedFiring is one recorded sync firing.
type TracedFiring struct {
	Round       string `json:"round"`
	Sync        string `json:"sync"`
	BindingHash string `json:"binding_hash"`
	Seq         int64  `json:"seq"`
}

// Events returns the recorded events of a round, ordered by seq then id.
func (s *Store) Events(ctx context.Context, round string) ([]TracedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round, action, input, output, seq
		FROM events WHERE round = ?
		ORDER BY seq, id`, round)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []TracedEvent
	for rows.Next() {
		var ev TracedEvent
		var input, output string
		if err := rows.Scan(&ev.ID, &ev.Round, &ev.Action, &input, &output, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &ev.Input); err != nil {
			return nil, fmt.Errorf("decode input for %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal([]byte(output), &ev.Output); err != nil {
			return nil, fmt.Errorf("decode output for %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Firings returns the recorded firings of a round, ordered by seq.
func (s *Store) Firings(ctx context.Context, round string) ([]TracedFiring, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, sync, binding_hash, seq
		FROM firings WHERE round = ?
		ORDER BY seq, sync`, round)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	var firings []TracedFiring
	for rows.Next() {
		var f TracedFiring
		if err := rows.Scan(&f.Round, &f.Sync, &f.BindingHash, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// Rounds lists every recorded round token in insertion order.
func (s *Store) Rounds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round FROM events
		GROUP BY round ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

// Package auditlog persists the audit stream to SQLite. Replaying the latest
// snapshot row plus every update row after it reconstructs engine history,
// in the manner of snapshot+WAL log replay.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"tradecore/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id      INTEGER PRIMARY KEY,
	time    TEXT NOT NULL,
	kind    TEXT NOT NULL,
	payload TEXT NOT NULL
);
`

// Record is one persisted audit row.
type Record struct {
	ID      uint64          `json:"id"`
	Time    time.Time       `json:"time"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Journal batches audit events into SQLite. Writes are buffered and flushed
// on size or interval, so journal latency never sits on the consumption of
// the audit channel.
type Journal struct {
	db  *sql.DB
	log *zap.Logger

	mu     sync.Mutex
	buffer []Record

	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
}

// Open creates (if needed) and opens the journal database at path.
func Open(log *zap.Logger, path string, batchSize int, flushInterval time.Duration) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers a single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	j := &Journal{
		db:            db,
		log:           log,
		buffer:        make([]Record, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	j.wg.Add(1)
	go j.backgroundFlush()

	return j, nil
}

// Run consumes the audit channel until it closes, appending every event.
func (j *Journal) Run(rx <-chan engine.AuditEvent) {
	for event := range rx {
		j.Append(event)
	}
}

// Append encodes and buffers one audit event for persistence.
func (j *Journal) Append(event engine.AuditEvent) {
	record, err := Encode(event)
	if err != nil {
		j.log.Error("audit journal failed to encode event",
			zap.Uint64("id", event.ID),
			zap.Error(err),
		)
		return
	}
	j.AppendRecord(record)
}

// AppendRecord buffers an already-encoded row.
func (j *Journal) AppendRecord(record Record) {
	j.mu.Lock()
	j.buffer = append(j.buffer, record)
	shouldFlush := len(j.buffer) >= j.batchSize
	j.mu.Unlock()

	if shouldFlush {
		if err := j.Flush(); err != nil {
			j.log.Error("audit journal flush failed", zap.Error(err))
		}
	}
}

// Encode serialises an audit event into its persisted row form. Snapshot
// events carry the serialisable state snapshot, update events the raw update.
func Encode(event engine.AuditEvent) (Record, error) {
	record := Record{
		ID:   event.ID,
		Time: event.Time,
		Kind: string(event.Kind),
	}

	var payload any
	switch event.Kind {
	case engine.AuditSnapshot:
		payload = event.State.Snapshot()
	case engine.AuditKindUpdate:
		payload = event.Update
	default:
		return record, fmt.Errorf("unknown audit kind %q", event.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return record, err
	}
	record.Payload = raw
	return record, nil
}

// Flush writes all buffered rows in one transaction.
func (j *Journal) Flush() error {
	j.mu.Lock()
	if len(j.buffer) == 0 {
		j.mu.Unlock()
		return nil
	}
	batch := j.buffer
	j.buffer = make([]Record, 0, j.batchSize)
	j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for _, record := range batch {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO audit_events (id, time, kind, payload) VALUES (?, ?, ?, ?)`,
			record.ID, record.Time.UTC().Format(time.RFC3339Nano), record.Kind, string(record.Payload),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert audit event %d: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.log.Debug("audit journal flushed", zap.Int("rows", len(batch)))
	return nil
}

func (j *Journal) backgroundFlush() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Flush(); err != nil {
				j.log.Error("audit journal background flush failed", zap.Error(err))
			}
		case <-j.done:
			if err := j.Flush(); err != nil {
				j.log.Error("audit journal final flush failed", zap.Error(err))
			}
			return
		}
	}
}

// EventsSince returns up to limit rows with id > since, in id order.
func (j *Journal) EventsSince(ctx context.Context, since uint64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, time, kind, payload FROM audit_events WHERE id > ? ORDER BY id ASC LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record  Record
			ts      string
			payload string
		)
		if err := rows.Scan(&record.ID, &ts, &record.Kind, &payload); err != nil {
			return nil, err
		}
		if record.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse time for audit event %d: %w", record.ID, err)
		}
		record.Payload = json.RawMessage(payload)
		records = append(records, record)
	}
	return records, rows.Err()
}

// LatestSnapshotID returns the id of the most recent snapshot row, or 0.
func (j *Journal) LatestSnapshotID(ctx context.Context) (uint64, error) {
	var id uint64
	err := j.db.QueryRowContext(ctx,
		`SELECT id FROM audit_events WHERE kind = ? ORDER BY id DESC LIMIT 1`,
		string(engine.AuditSnapshot),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// LastID returns the highest persisted audit id, or 0.
func (j *Journal) LastID(ctx context.Context) (uint64, error) {
	var id uint64
	err := j.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM audit_events`).Scan(&id)
	return id, err
}

// Close flushes and releases the database handle.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()
	return j.db.Close()
}

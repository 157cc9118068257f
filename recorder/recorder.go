// Package recorder journals every newly merged contact to SQLite so the log
// can be inspected after the event. The journal is write-only: the live
// aggregate is always rebuilt from N3FJP, never from this file.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"scoreboard/aggregate"
	"scoreboard/n3fjp"
	"scoreboard/poller"
	"scoreboard/sqliteutil"

	_ "modernc.org/sqlite"
)

const (
	defaultQueueSize = 1024
	preflightTimeout = 5 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder owns the SQLite handle and a single writer goroutine. It
// implements poller.Observer.
type Recorder struct {
	db      *sql.DB
	queue   chan []n3fjp.Contact
	onDrop  func(int)
	dropped atomic.Uint64
	written atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Options configures Open.
type Options struct {
	Path      string
	QueueSize int
	// OnDrop is called with the number of contacts discarded when the queue
	// is full. Optional.
	OnDrop func(int)
}

// Open prepares the database at opts.Path and starts the writer.
func Open(opts Options) (*Recorder, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("recorder: empty path")
	}
	if _, err := sqliteutil.Preflight(opts.Path, preflightTimeout); err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: schema: %w", err)
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	r := &Recorder{
		db:     db,
		queue:  make(chan []n3fjp.Contact, size),
		onDrop: opts.OnDrop,
		done:   make(chan struct{}),
	}
	go r.writer()
	return r, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS contacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    primary_key TEXT UNIQUE,
    call TEXT,
    operator TEXT,
    station TEXT,
    band TEXT,
    mode TEXT,
    mode_test TEXT,
    points INTEGER,
    section TEXT,
    state TEXT,
    country TEXT,
    continent TEXT,
    qso_date TEXT,
    time_on TEXT,
    extra TEXT,
    recorded_at INTEGER
);
CREATE INDEX IF NOT EXISTS contacts_operator ON contacts(operator);`
	_, err := db.Exec(schema)
	return err
}

// ObserveFetch queues the contacts a fetch added. It never blocks; when the
// queue is full the batch is dropped and counted.
func (r *Recorder) ObserveFetch(o poller.FetchOutcome) {
	if len(o.Contacts) > 0 {
		r.Enqueue(o.Contacts)
	}
}

// Enqueue hands a batch to the writer. It reports false when the batch was
// dropped because the queue is full or the recorder is closed.
func (r *Recorder) Enqueue(contacts []n3fjp.Contact) bool {
	if r == nil || len(contacts) == 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(len(contacts))
		return false
	}
	select {
	case r.queue <- contacts:
		return true
	default:
		r.drop(len(contacts))
		return false
	}
}

func (r *Recorder) drop(n int) {
	total := r.dropped.Add(uint64(n))
	if r.onDrop != nil {
		r.onDrop(n)
	}
	if total == uint64(n) {
		log.Printf("Recorder: queue full, dropping contacts (further drops are counted silently)")
	}
}

func (r *Recorder) writer() {
	defer close(r.done)
	for batch := range r.queue {
		if err := r.insert(context.Background(), batch); err != nil {
			log.Printf("Recorder: failed to insert %d contacts: %v", len(batch), err)
		}
	}
}

func (r *Recorder) insert(ctx context.Context, batch []n3fjp.Contact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO contacts (
    primary_key, call, operator, station, band, mode, mode_test, points,
    section, state, country, continent, qso_date, time_on, extra, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC().Unix()
	var inserted int64
	for _, c := range batch {
		extra, err := encodeExtra(c.Extra)
		if err != nil {
			tx.Rollback()
			return err
		}
		res, err := stmt.ExecContext(ctx,
			nullIfEmpty(c.PrimaryKey),
			c.Call,
			c.Operator,
			c.Station,
			c.Band,
			c.Mode,
			c.ModeTest,
			aggregate.PointsFromMode(c.ModeTest),
			c.Section,
			c.State,
			c.Country,
			c.Continent,
			c.Date,
			c.TimeOn,
			extra,
			now,
		)
		if err != nil {
			tx.Rollback()
			return err
		}
		// OR IGNORE skips repeated primary keys; only count real inserts.
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.written.Add(uint64(inserted))
	return nil
}

func encodeExtra(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullIfEmpty stores keyless contacts as NULL so the UNIQUE constraint does
// not collapse them.
func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Written returns how many contacts have been inserted. Rows skipped for a
// repeated primary key are not counted.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns how many contacts were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Count returns the number of rows in the journal.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts").Scan(&n)
	return n, err
}

// Close drains the queue, waits up to timeout for the writer, and closes the
// database.
func (r *Recorder) Close(timeout time.Duration) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-r.done:
	case <-time.After(timeout):
		log.Printf("Recorder: writer still busy after %s; closing anyway", timeout)
	}
	return r.db.Close()
}

package storage

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresBatch is the number of outcomes sent per batch
const DefaultPostgresBatch = 200

// DefaultPostgresTable receives the outcomes unless configured otherwise
const DefaultPostgresTable = "crawl_results"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name can be used unquoted as a table name
func ValidTableName(name string) bool {
	return tableName.MatchString(name)
}

// pgConn is the part of *pgxpool.Pool the writer uses
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PostgresWriter implements repository.ResultWriter on a PostgreSQL table.
// Outcomes are buffered and inserted in batches. A batch is sent without
// holding the buffer lock, so other writers keep buffering meanwhile.
type PostgresWriter struct {
	conn    pgConn
	table   string
	batch   int
	timeout time.Duration

	pending []*entity.Outcome
	mu      sync.Mutex
	sending sync.WaitGroup
}

// NewPostgresWriter connects to dsn and creates the table if needed
func NewPostgresWriter(ctx context.Context, dsn, table string, batch int) (*PostgresWriter, error) {
	if !ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	w := newPostgresWriter(pool, table, batch)
	if err := w.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

func newPostgresWriter(conn pgConn, table string, batch int) *PostgresWriter {
	if batch <= 0 {
		batch = DefaultPostgresBatch
	}
	return &PostgresWriter{
		conn:    conn,
		table:   table,
		batch:   batch,
		timeout: 30 * time.Second,
	}
}

func (w *PostgresWriter) ensureTable(ctx context.Context) error {
	_, err := w.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+w.table+` (
		domain         text        NOT NULL,
		status_code    integer,
		verdict        text,
		generator      text,
		bytes          bigint,
		expected_bytes bigint,
		truncated      boolean,
		error          text,
		reason         text,
		duration_ms    bigint      NOT NULL,
		fetched_at     timestamptz NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", w.table, err)
	}
	return nil
}

// Write buffers an outcome and sends the batch once it is full
func (w *PostgresWriter) Write(outcome *entity.Outcome) error {
	w.mu.Lock()
	w.pending = append(w.pending, outcome)
	var rows []*entity.Outcome
	if len(w.pending) >= w.batch {
		rows = w.takeLocked()
	}
	w.mu.Unlock()

	return w.send(rows)
}

// Flush sends the buffered outcomes
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	rows := w.takeLocked()
	w.mu.Unlock()

	return w.send(rows)
}

// Close flushes, waits for batches still being sent and closes the pool
func (w *PostgresWriter) Close() error {
	err := w.Flush()
	w.sending.Wait()
	w.conn.Close()
	return err
}

// takeLocked detaches the buffered outcomes. A non-empty result must be
// passed to send.
func (w *PostgresWriter) takeLocked() []*entity.Outcome {
	rows := w.pending
	w.pending = nil
	if len(rows) > 0 {
		w.sending.Add(1)
	}
	return rows
}

func (w *PostgresWriter) send(rows []*entity.Outcome) error {
	if len(rows) == 0 {
		return nil
	}
	defer w.sending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	b := &pgx.Batch{}
	for _, outcome := range rows {
		b.Queue(`INSERT INTO `+w.table+`
			(domain, status_code, verdict, generator, bytes, expected_bytes, truncated,
			 error, reason, duration_ms, fetched_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			outcomeArgs(outcome)...,
		)
	}

	br := w.conn.SendBatch(ctx, b)
	for range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert %d outcomes: %w", len(rows), err)
		}
	}
	return br.Close()
}

// outcomeArgs maps an outcome onto the insert columns; absent values are NULL
func outcomeArgs(o *entity.Outcome) []any {
	var (
		statusCode, verdict, generator  any
		bytes, expectedBytes, truncated any
		message, reason                 any
	)
	if r := o.Result; r != nil {
		statusCode = r.StatusCode
		verdict = string(r.Verdict)
		generator = r.Generator
		bytes = r.Bytes
		expectedBytes = r.ExpectedBytes
		truncated = r.Truncated
	}
	if f := o.Failure; f != nil {
		message = f.Message
		if f.HasReason() {
			reason = f.Reason
		}
		if f.HasStatusCode() {
			statusCode = f.StatusCode
		}
	}
	return []any{
		o.Domain, statusCode, verdict, generator, bytes, expectedBytes, truncated,
		message, reason, o.Duration, o.Timestamp,
	}
}

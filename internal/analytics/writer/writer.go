// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/Hynox-org/aharraa-server/internal/analytics/types"
	pkgbigquery "github.com/Hynox-org/aharraa-server/pkg/bigquery"
)

// Config controls the analytics writer behavior.
type Config struct {
	OrderEventsTable string
	// BatchSize rows are buffered before an insert. One means write-through.
	BatchSize   int
	RetryPolicy RetryPolicy
}

// RetryPolicy bounds retries of transient insert failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers order event rows and inserts them with the event id
// as insert id, so redelivered events are dropped by BigQuery.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy
	sleep     func(context.Context, time.Duration) error

	mu     sync.Mutex
	buffer []types.OrderEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.RetryPolicy.withDefaults(),
		sleep:     sleepCtx,
	}, nil
}

// InsertOrderEvent buffers a row and flushes once the batch is full.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes any buffered rows immediately.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked inserts the buffer. After a partial failure only the rejected
// rows are retried; rows still failing stay buffered.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	pending := w.buffer
	delay := w.retry.InitialBackoff
	for attempt := 1; len(pending) > 0; attempt++ {
		err := w.client.InsertRows(ctx, w.table, savers(pending))
		if err == nil {
			break
		}
		if failed := pkgbigquery.FailedRows(err); failed != nil {
			pending = pick(pending, failed)
		}
		if attempt >= w.retry.MaxAttempts || !pkgbigquery.IsRetryable(err) {
			w.buffer = pending
			return fmt.Errorf("insert %d rows into %s after %d attempts: %w", len(pending), w.table, attempt, err)
		}
		if err := w.sleep(ctx, delay); err != nil {
			w.buffer = pending
			return err
		}
		delay = min(delay*2, w.retry.MaximumBackoff)
	}
	w.buffer = nil
	return nil
}

func savers(rows []types.OrderEventRow) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].EventID}
	}
	return out
}

func pick(rows []types.OrderEventRow, idx []int) []types.OrderEventRow {
	out := make([]types.OrderEventRow, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(rows) {
			out = append(out, rows[i])
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

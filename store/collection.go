package store

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/observability"
	"github.com/kbukum/smokedb/query"
	"github.com/kbukum/smokedb/resilience"
)

// Collection is a typed view of one object store. Insert, Update and Delete
// queue mutations in memory; Submit writes them. Query reads the store
// through the query engine.
type Collection[T any] struct {
	db   *Database
	name string

	// submitMu serializes Submit so committed prefixes can be trimmed from
	// the queues while new mutations are appended.
	submitMu sync.Mutex
	mu       sync.Mutex
	inserts  []Record[T]
	updates  []Record[T]
	deletes  []string
}

// NewCollection returns the collection for the named store of db.
func NewCollection[T any](db *Database, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

// Name returns the store name.
func (c *Collection[T]) Name() string { return c.name }

// Insert queues values for insertion under fresh keys.
func (c *Collection[T]) Insert(values ...T) *Collection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		c.inserts = append(c.inserts, Record[T]{Key: c.db.CreateKey(), Value: v})
	}
	return c
}

// InsertRecords queues records for insertion. Records without a key get a
// fresh one.
func (c *Collection[T]) InsertRecords(records ...Record[T]) *Collection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserts = append(c.inserts, c.withKeys(records)...)
	return c
}

// Update queues records to replace the stored values under their keys.
func (c *Collection[T]) Update(records ...Record[T]) *Collection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, records...)
	return c
}

// Delete queues records for deletion by key.
func (c *Collection[T]) Delete(records ...Record[T]) *Collection[T] {
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	return c.DeleteKeys(keys...)
}

// DeleteKeys queues keys for deletion.
func (c *Collection[T]) DeleteKeys(keys ...string) *Collection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, keys...)
	return c
}

// Pending returns the number of queued mutations.
func (c *Collection[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inserts) + len(c.updates) + len(c.deletes)
}

// Submit writes the queued inserts, then updates, then deletes. Each group is
// one atomic driver batch, retried while the driver reports a retryable
// failure. A group leaves the queue once it is committed, so a failed Submit
// can be called again without repeating earlier groups.
func (c *Collection[T]) Submit(ctx context.Context) error {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	inserts, updates, deletes := c.inserts, c.updates, c.deletes
	c.mu.Unlock()

	total := len(inserts) + len(updates) + len(deletes)
	if total == 0 {
		return nil
	}

	drv, err := c.db.DB(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	ctx, op := observability.StartOperation(ctx, c.db.metrics, observability.SpanStoreSubmit, c.name)
	err = c.submit(ctx, drv, inserts, updates, deletes, op)
	op.End(err)

	fields := logger.MergeWithDuration(logger.StoreFields("submit", c.name), time.Since(start))
	fields[logger.FieldCount] = total
	if err != nil {
		c.db.log.WithContext(ctx).WithError(err).Warn("submit failed", fields)
		return err
	}
	c.db.log.WithContext(ctx).Debug("submitted", fields)
	return nil
}

func (c *Collection[T]) submit(ctx context.Context, drv Driver, inserts, updates []Record[T], deletes []string, op *observability.Operation) error {
	if len(inserts) > 0 {
		if err := c.writeRecords(ctx, drv.Insert, inserts); err != nil {
			return err
		}
		op.AddRecords(len(inserts))
		c.mu.Lock()
		c.inserts = c.inserts[len(inserts):]
		c.mu.Unlock()
	}
	if len(updates) > 0 {
		if err := c.writeRecords(ctx, drv.Update, updates); err != nil {
			return err
		}
		op.AddRecords(len(updates))
		c.mu.Lock()
		c.updates = c.updates[len(updates):]
		c.mu.Unlock()
	}
	if len(deletes) > 0 {
		if err := c.retry(ctx, func(ctx context.Context) error { return drv.Delete(ctx, c.name, deletes) }); err != nil {
			return err
		}
		op.AddRecords(len(deletes))
		c.mu.Lock()
		c.deletes = c.deletes[len(deletes):]
		c.mu.Unlock()
	}
	return nil
}

func (c *Collection[T]) writeRecords(ctx context.Context, write func(context.Context, string, []RawRecord) error, records []Record[T]) error {
	raw, err := encodeRecords(c.codec(), records)
	if err != nil {
		return err
	}
	return c.retry(ctx, func(ctx context.Context) error { return write(ctx, c.name, raw) })
}

func (c *Collection[T]) codec() codec {
	return codec{store: c.name, sealer: c.db.sealer}
}

func (c *Collection[T]) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	cfg := c.db.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.db.log.WithContext(ctx).Warn("retrying store write", logger.Fields(
			logger.FieldStore, c.name,
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}
	return resilience.RetryFunc(ctx, cfg, fn)
}

func (c *Collection[T]) withKeys(records []Record[T]) []Record[T] {
	out := make([]Record[T], len(records))
	for i, rec := range records {
		if rec.Key == "" {
			rec.Key = c.db.CreateKey()
		}
		out[i] = rec
	}
	return out
}

// Get returns the record stored under key.
func (c *Collection[T]) Get(ctx context.Context, key string) (Record[T], error) {
	drv, err := c.db.DB(ctx)
	if err != nil {
		return Record[T]{}, err
	}
	ctx, op := observability.StartOperation(ctx, c.db.metrics, observability.SpanStoreGet, c.name)
	rec, err := c.get(ctx, drv, key)
	op.End(err)
	return rec, err
}

func (c *Collection[T]) get(ctx context.Context, drv Driver, key string) (Record[T], error) {
	raw, ok, err := drv.Get(ctx, c.name, key)
	if err != nil {
		return Record[T]{}, err
	}
	if !ok {
		return Record[T]{}, apperrors.RecordNotFound(c.name, key)
	}
	return decodeRecord[T](c.codec(), raw)
}

// Count returns the number of stored records without scanning them.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	drv, err := c.db.DB(ctx)
	if err != nil {
		return 0, err
	}
	ctx, op := observability.StartOperation(ctx, c.db.metrics, observability.SpanStoreCount, c.name)
	n, err := drv.Count(ctx, c.name)
	op.End(err)
	return n, err
}

// Query returns a deferred query over the store. Every read of the query
// scans the store again.
func (c *Collection[T]) Query() *query.Queryable[Record[T]] {
	return query.New(query.NewSource(c.scan))
}

func (c *Collection[T]) scan(e *query.Emitter[Record[T]]) {
	ctx, cancel := context.WithCancel(e.Context())
	defer cancel()

	drv, err := c.db.DB(ctx)
	if err != nil {
		e.Error(err)
		return
	}

	ctx, op := observability.StartOperation(ctx, c.db.metrics, observability.SpanStoreScan, c.name)
	cd := c.codec()
	var scanErr error
	drv.Scan(ctx, c.name, func(ev ScanEvent) {
		if e.Done() {
			return
		}
		switch ev.Type {
		case ScanData:
			rec, err := decodeRecord[T](cd, ev.Record)
			if err != nil {
				scanErr = err
				cancel()
				e.Error(err)
				return
			}
			op.AddRecords(1)
			e.Next(rec)
		case ScanError:
			// A read cancelled by a satisfied downstream stage is a clean stop.
			if !stoppedEarly(e.Context(), ev.Err) {
				scanErr = ev.Err
			}
			e.Error(ev.Err)
		case ScanEnd:
			e.End()
		}
	})
	op.End(scanErr)
}

// stoppedEarly reports whether err is the context error of a read whose
// context has ended.
func stoppedEarly(readCtx context.Context, err error) bool {
	return readCtx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// RecordSource produces the records for a direct write.
type RecordSource[T any] func(ctx context.Context) ([]Record[T], error)

// Records is a RecordSource of fixed records.
func Records[T any](records ...Record[T]) RecordSource[T] {
	return func(context.Context) ([]Record[T], error) { return records, nil }
}

// FromQuery is a RecordSource that collects q.
func FromQuery[T any](q *query.Queryable[Record[T]]) RecordSource[T] {
	return q.Collect
}

// InsertFrom inserts the records of src in one batch, bypassing the queue.
// Records without a key get a fresh one.
func (c *Collection[T]) InsertFrom(ctx context.Context, src RecordSource[T]) error {
	return c.direct(ctx, "insert", src, func(ctx context.Context, drv Driver, records []Record[T]) error {
		return c.writeRecords(ctx, drv.Insert, c.withKeys(records))
	})
}

// UpdateFrom updates the records of src in one batch, bypassing the queue.
func (c *Collection[T]) UpdateFrom(ctx context.Context, src RecordSource[T]) error {
	return c.direct(ctx, "update", src, func(ctx context.Context, drv Driver, records []Record[T]) error {
		return c.writeRecords(ctx, drv.Update, records)
	})
}

// DeleteFrom deletes the records of src by key in one batch, bypassing the
// queue. A query source is fully read before anything is deleted.
func (c *Collection[T]) DeleteFrom(ctx context.Context, src RecordSource[T]) error {
	return c.direct(ctx, "delete", src, func(ctx context.Context, drv Driver, records []Record[T]) error {
		keys := make([]string, len(records))
		for i, rec := range records {
			keys[i] = rec.Key
		}
		return c.retry(ctx, func(ctx context.Context) error { return drv.Delete(ctx, c.name, keys) })
	})
}

func (c *Collection[T]) direct(ctx context.Context, name string, src RecordSource[T], write func(context.Context, Driver, []Record[T]) error) error {
	records, err := src(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	drv, err := c.db.DB(ctx)
	if err != nil {
		return err
	}
	ctx, op := observability.StartOperation(ctx, c.db.metrics, observability.SpanStoreSubmit, c.name)
	op.AddRecords(len(records))
	err = write(ctx, drv, records)
	op.End(err)
	if err != nil {
		return err
	}
	c.db.log.WithContext(ctx).Debug("direct write", logger.Fields(
		logger.FieldOperation, name,
		logger.FieldStore, c.name,
		logger.FieldCount, len(records),
	))
	return nil
}

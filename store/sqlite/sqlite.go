// Package sqlite is a store driver on SQLite through mattn/go-sqlite3.
//
// All stores share one records table keyed by (store, key). The store list
// and schema version live in the stores and meta tables. The database runs
// in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/store"
)

func init() {
	store.RegisterDriver(config.DriverSQLite, func(cfg config.DatabaseConfig, log *logger.Logger) (store.Driver, error) {
		if cfg.Path == "" {
			return nil, apperrors.MissingField("path")
		}
		return New(cfg.Path, log), nil
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stores (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS records (
	store TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (store, key)
) WITHOUT ROWID;`

// Driver stores records in a SQLite file.
type Driver struct {
	path string
	log  *logger.Logger

	mu sync.RWMutex
	db *sql.DB
}

// ensure Driver satisfies store.Driver.
var _ store.Driver = (*Driver)(nil)

// New returns a closed driver for the database file at path.
func New(path string, log *logger.Logger) *Driver {
	if log == nil {
		log = logger.Get("store.sqlite")
	}
	return &Driver{path: path, log: log}
}

func (d *Driver) Name() string { return config.DriverSQLite }

func (d *Driver) dsn() string {
	return "file:" + d.path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_synchronous=NORMAL"
}

// Open opens the file, creating it and the tables if needed.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return nil
	}
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create sqlite directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", d.dsn())
	if err != nil {
		return apperrors.DatabaseError(fmt.Errorf("open sqlite: %w", err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return apperrors.DatabaseError(fmt.Errorf("create sqlite schema: %w", err))
	}
	d.db = db
	d.log.Info("sqlite opened", logger.Fields("path", d.path))
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *Driver) handle() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, store.ErrDriverClosed
	}
	return d.db, nil
}

func (d *Driver) Stores(ctx context.Context) ([]string, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM stores ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	stores := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err)
		}
		stores = append(stores, name)
	}
	return stores, mapError(rows.Err())
}

func (d *Driver) Version(ctx context.Context) (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.Schema(fmt.Sprintf("invalid schema version %q", value))
	}
	return version, nil
}

func (d *Driver) Upgrade(ctx context.Context, version int, delta store.Delta) error {
	return d.tx(ctx, func(tx *sql.Tx) error {
		for _, name := range delta.Creates {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO stores (name) VALUES (?)`, name); err != nil {
				return err
			}
		}
		for _, name := range delta.Removes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE store = ?`, name); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meta (name, value) VALUES ('version', ?)
			 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, strconv.Itoa(version))
		return err
	})
}

func (d *Driver) Drop(ctx context.Context) error {
	return d.tx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{`DELETE FROM records`, `DELETE FROM stores`, `DELETE FROM meta`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Insert(ctx context.Context, name string, records []store.RawRecord) error {
	return d.storeTx(ctx, name, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (store, key, value) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, name, r.Key, r.Value); err != nil {
				if isConstraint(err) {
					return apperrors.DuplicateKey(name, r.Key)
				}
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Update(ctx context.Context, name string, records []store.RawRecord) error {
	return d.storeTx(ctx, name, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE records SET value = ? WHERE store = ? AND key = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.Value, name, r.Key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Delete(ctx context.Context, name string, keys []string) error {
	return d.storeTx(ctx, name, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM records WHERE store = ? AND key = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, key := range keys {
			if _, err := stmt.ExecContext(ctx, name, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Get(ctx context.Context, name, key string) (store.RawRecord, bool, error) {
	db, err := d.handle()
	if err != nil {
		return store.RawRecord{}, false, err
	}
	if err := requireStore(ctx, db, name); err != nil {
		return store.RawRecord{}, false, err
	}
	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM records WHERE store = ? AND key = ?`, name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RawRecord{}, false, nil
	}
	if err != nil {
		return store.RawRecord{}, false, mapError(err)
	}
	return store.RawRecord{Key: key, Value: value}, true, nil
}

func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	if err := requireStore(ctx, db, name); err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE store = ?`, name).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Scan streams the store in key order from a single query.
func (d *Driver) Scan(ctx context.Context, name string, fn func(store.ScanEvent)) {
	if err := d.scan(ctx, name, fn); err != nil {
		fn(store.ErrorEvent(err))
		return
	}
	fn(store.EndEvent())
}

func (d *Driver) scan(ctx context.Context, name string, fn func(store.ScanEvent)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := d.handle()
	if err != nil {
		return err
	}
	if err := requireStore(ctx, db, name); err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM records WHERE store = ? ORDER BY key`, name)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec store.RawRecord
		if err := rows.Scan(&rec.Key, &rec.Value); err != nil {
			return mapError(err)
		}
		fn(store.DataEvent(rec))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(rows.Err())
}

// storeTx runs fn in a transaction after checking that the store exists.
func (d *Driver) storeTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	return d.tx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM stores WHERE name = ?`, name).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.StoreNotFound(name)
		}
		if err != nil {
			return err
		}
		return fn(tx)
	})
}

func (d *Driver) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapError(err)
	}
	return mapError(tx.Commit())
}

func requireStore(ctx context.Context, db *sql.DB, name string) error {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM stores WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.StoreNotFound(name)
	}
	return mapError(err)
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// mapError marks lock contention retryable and wraps other SQLite failures.
// AppErrors and context errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return apperrors.Conflict(err)
	}
	return apperrors.DatabaseError(err)
}

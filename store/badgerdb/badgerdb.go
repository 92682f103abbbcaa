// Package badgerdb is a store driver on BadgerDB.
//
// Records live under "r/<store>/<key>". The store list is a JSON array under
// "m/stores" and the schema version a decimal under "m/version". An empty
// path runs badger in memory.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/store"
)

func init() {
	store.RegisterDriver(config.DriverBadger, func(cfg config.DatabaseConfig, log *logger.Logger) (store.Driver, error) {
		return New(Config{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
			GCInterval: cfg.GCInterval,
		}, log), nil
	})
}

var (
	storesKey    = []byte("m/stores")
	versionKey   = []byte("m/version")
	recordPrefix = "r/"
)

// Config configures the badger driver.
type Config struct {
	// Path is the data directory. Empty runs in memory.
	Path       string
	SyncWrites bool
	// GCInterval runs value log GC periodically; zero disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a value log rewrite.
	GCDiscardRatio float64
}

// Driver stores records in a badger database.
type Driver struct {
	cfg Config
	log *logger.Logger

	mu sync.RWMutex
	db *badger.DB
	gc *gcRunner
}

// ensure Driver satisfies store.Driver.
var _ store.Driver = (*Driver)(nil)

// New returns a closed driver for cfg.
func New(cfg Config, log *logger.Logger) *Driver {
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = 0.5
	}
	if log == nil {
		log = logger.Get("store.badger")
	}
	return &Driver{cfg: cfg, log: log}
}

func (d *Driver) Name() string { return config.DriverBadger }

// Open opens the badger database and starts value log GC when configured
// for an on-disk database.
func (d *Driver) Open(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return nil
	}

	var opts badger.Options
	if d.cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(d.cfg.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", d.cfg.Path, err)
		}
		opts = badger.DefaultOptions(d.cfg.Path)
	}
	opts = opts.WithSyncWrites(d.cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: d.log})

	db, err := badger.Open(opts)
	if err != nil {
		return apperrors.DatabaseError(fmt.Errorf("open badger: %w", err))
	}
	d.db = db

	if d.cfg.GCInterval > 0 && d.cfg.Path != "" {
		d.gc = newGCRunner(db, d.cfg.GCInterval, d.cfg.GCDiscardRatio, d.log)
		d.gc.start()
	}
	d.log.Info("badger opened", logger.Fields("path", d.cfg.Path, "in_memory", d.cfg.Path == ""))
	return nil
}

// Close stops GC and closes the database.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	if d.gc != nil {
		d.gc.stop()
		d.gc = nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *Driver) handle() (*badger.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, store.ErrDriverClosed
	}
	return d.db, nil
}

func (d *Driver) Stores(context.Context) ([]string, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	var stores []string
	err = db.View(func(txn *badger.Txn) error {
		stores, err = readStores(txn)
		return err
	})
	return stores, mapError(err)
}

func (d *Driver) Version(context.Context) (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	var version int
	err = db.View(func(txn *badger.Txn) error {
		version, err = readVersion(txn)
		return err
	})
	return version, mapError(err)
}

func (d *Driver) Upgrade(_ context.Context, version int, delta store.Delta) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	err = db.Update(func(txn *badger.Txn) error {
		stores, err := readStores(txn)
		if err != nil {
			return err
		}
		for _, name := range delta.Creates {
			if !slices.Contains(stores, name) {
				stores = append(stores, name)
			}
		}
		stores = slices.DeleteFunc(stores, func(name string) bool { return slices.Contains(delta.Removes, name) })
		slices.Sort(stores)

		data, err := json.Marshal(stores)
		if err != nil {
			return err
		}
		if err := txn.Set(storesKey, data); err != nil {
			return err
		}
		return txn.Set(versionKey, []byte(strconv.Itoa(version)))
	})
	if err != nil {
		return mapError(err)
	}
	for _, name := range delta.Removes {
		if err := db.DropPrefix(storePrefix(name)); err != nil {
			return apperrors.Schema(fmt.Sprintf("drop records of store %q: %v", name, err))
		}
	}
	return nil
}

func (d *Driver) Drop(context.Context) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	return mapError(db.DropAll())
}

func (d *Driver) Insert(_ context.Context, name string, records []store.RawRecord) error {
	return d.update(name, func(txn *badger.Txn) error {
		for _, r := range records {
			key := recordKey(name, r.Key)
			_, err := txn.Get(key)
			if err == nil {
				return apperrors.DuplicateKey(name, r.Key)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, r.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Update(_ context.Context, name string, records []store.RawRecord) error {
	return d.update(name, func(txn *badger.Txn) error {
		for _, r := range records {
			key := recordKey(name, r.Key)
			if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}
			if err := txn.Set(key, r.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Delete(_ context.Context, name string, keys []string) error {
	return d.update(name, func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(recordKey(name, key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// update runs fn in a read-write transaction after checking that the store
// exists.
func (d *Driver) update(name string, fn func(txn *badger.Txn) error) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	return mapError(db.Update(func(txn *badger.Txn) error {
		if err := requireStore(txn, name); err != nil {
			return err
		}
		return fn(txn)
	}))
}

func (d *Driver) view(name string, fn func(txn *badger.Txn) error) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	return mapError(db.View(func(txn *badger.Txn) error {
		if err := requireStore(txn, name); err != nil {
			return err
		}
		return fn(txn)
	}))
}

func (d *Driver) Get(_ context.Context, name, key string) (store.RawRecord, bool, error) {
	var rec store.RawRecord
	found := false
	err := d.view(name, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(name, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec = store.RawRecord{Key: key, Value: value}
		found = true
		return nil
	})
	return rec, found, err
}

func (d *Driver) Count(_ context.Context, name string) (int, error) {
	n := 0
	err := d.view(name, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = storePrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Scan iterates the store prefix inside one read transaction, so the scan
// sees a consistent snapshot.
func (d *Driver) Scan(ctx context.Context, name string, fn func(store.ScanEvent)) {
	prefix := storePrefix(name)
	err := d.view(name, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			fn(store.DataEvent(store.RawRecord{Key: string(item.Key()[len(prefix):]), Value: value}))
		}
		return ctx.Err()
	})
	if err != nil {
		fn(store.ErrorEvent(err))
		return
	}
	fn(store.EndEvent())
}

func storePrefix(name string) []byte {
	return []byte(recordPrefix + name + "/")
}

func recordKey(name, key string) []byte {
	return []byte(recordPrefix + name + "/" + key)
}

func readStores(txn *badger.Txn) ([]string, error) {
	item, err := txn.Get(storesKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var stores []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stores)
	})
	return stores, err
}

func readVersion(txn *badger.Txn) (int, error) {
	item, err := txn.Get(versionKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	err = item.Value(func(val []byte) error {
		version, err = strconv.Atoi(string(val))
		return err
	})
	return version, err
}

func requireStore(txn *badger.Txn, name string) error {
	stores, err := readStores(txn)
	if err != nil {
		return err
	}
	if !slices.Contains(stores, name) {
		return apperrors.StoreNotFound(name)
	}
	return nil
}

// mapError marks transaction conflicts retryable and wraps other badger
// failures. AppErrors and context errors pass through unchanged.
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
	if errors.Is(err, badger.ErrConflict) {
		return apperrors.Conflict(err)
	}
	appErr := apperrors.DatabaseError(err)
	if errors.Is(err, badger.ErrTxnTooBig) {
		appErr.Retryable = false
	}
	return appErr
}

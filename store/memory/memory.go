// Package memory is an in-process store driver. Data lives in maps and
// survives Close, so a closed driver can be reopened within the process.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/store"
)

func init() {
	store.RegisterDriver(config.DriverMemory, func(config.DatabaseConfig, *logger.Logger) (store.Driver, error) {
		return New(), nil
	})
}

// Driver keeps every store in memory.
type Driver struct {
	mu      sync.RWMutex
	open    bool
	version int
	stores  map[string]map[string][]byte
}

// ensure Driver satisfies store.Driver.
var _ store.Driver = (*Driver)(nil)

// New returns an empty, closed driver.
func New() *Driver {
	return &Driver{stores: make(map[string]map[string][]byte)}
}

func (d *Driver) Name() string { return config.DriverMemory }

func (d *Driver) Open(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *Driver) Stores(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.open {
		return nil, store.ErrDriverClosed
	}
	return slices.Sorted(maps.Keys(d.stores)), nil
}

func (d *Driver) Version(context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.open {
		return 0, store.ErrDriverClosed
	}
	return d.version, nil
}

func (d *Driver) Upgrade(_ context.Context, version int, delta store.Delta) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return store.ErrDriverClosed
	}
	for _, name := range delta.Creates {
		if _, ok := d.stores[name]; !ok {
			d.stores[name] = make(map[string][]byte)
		}
	}
	for _, name := range delta.Removes {
		delete(d.stores, name)
	}
	d.version = version
	return nil
}

func (d *Driver) Drop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return store.ErrDriverClosed
	}
	d.stores = make(map[string]map[string][]byte)
	d.version = 0
	return nil
}

// records returns the named store. The caller holds d.mu.
func (d *Driver) records(name string) (map[string][]byte, error) {
	if !d.open {
		return nil, store.ErrDriverClosed
	}
	recs, ok := d.stores[name]
	if !ok {
		return nil, apperrors.StoreNotFound(name)
	}
	return recs, nil
}

func (d *Driver) Insert(_ context.Context, name string, records []store.RawRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if _, ok := recs[r.Key]; ok || seen[r.Key] {
			return apperrors.DuplicateKey(name, r.Key)
		}
		seen[r.Key] = true
	}
	for _, r := range records {
		recs[r.Key] = slices.Clone(r.Value)
	}
	return nil
}

func (d *Driver) Update(_ context.Context, name string, records []store.RawRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return err
	}
	for _, r := range records {
		if _, ok := recs[r.Key]; ok {
			recs[r.Key] = slices.Clone(r.Value)
		}
	}
	return nil
}

func (d *Driver) Delete(_ context.Context, name string, keys []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(recs, key)
	}
	return nil
}

func (d *Driver) Get(_ context.Context, name, key string) (store.RawRecord, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, err := d.records(name)
	if err != nil {
		return store.RawRecord{}, false, err
	}
	value, ok := recs[key]
	if !ok {
		return store.RawRecord{}, false, nil
	}
	return store.RawRecord{Key: key, Value: slices.Clone(value)}, true, nil
}

func (d *Driver) Count(_ context.Context, name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, err := d.records(name)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Scan emits a snapshot of the store taken when the scan starts. The lock is
// not held while fn runs, so fn may write to the same driver.
func (d *Driver) Scan(ctx context.Context, name string, fn func(store.ScanEvent)) {
	d.mu.RLock()
	recs, err := d.records(name)
	if err != nil {
		d.mu.RUnlock()
		fn(store.ErrorEvent(err))
		return
	}
	keys := slices.Sorted(maps.Keys(recs))
	snapshot := make([]store.RawRecord, len(keys))
	for i, key := range keys {
		snapshot[i] = store.RawRecord{Key: key, Value: slices.Clone(recs[key])}
	}
	d.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			fn(store.ErrorEvent(err))
			return
		}
		fn(store.DataEvent(rec))
	}
	fn(store.EndEvent())
}

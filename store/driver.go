package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/smokedb/config"
	"github.com/kbukum/smokedb/logger"
)

// ErrDriverClosed is returned by drivers used before Open or after Close.
var ErrDriverClosed = errors.New("store: driver is closed")

// Driver is the storage backend behind a Database.
//
// Each of Insert, Update and Delete applies its whole batch atomically.
// Insert fails with DUPLICATE_KEY if any key exists. Update ignores keys that
// do not exist and Delete ignores missing keys. Operations on a store that
// was never created fail with STORE_NOT_FOUND. Errors worth retrying, such as
// transaction conflicts, are returned as retryable AppErrors.
type Driver interface {
	// Name identifies the driver, for example "badger".
	Name() string
	Open(ctx context.Context) error
	Close() error

	// Stores lists the object stores in name order.
	Stores(ctx context.Context) ([]string, error)
	// Version is the schema version, zero for a new database.
	Version(ctx context.Context) (int, error)
	// Upgrade applies delta and sets the schema version. Removing a store
	// removes its records.
	Upgrade(ctx context.Context, version int, delta Delta) error
	// Drop removes every store, record and the schema version.
	Drop(ctx context.Context) error

	Insert(ctx context.Context, store string, records []RawRecord) error
	Update(ctx context.Context, store string, records []RawRecord) error
	Delete(ctx context.Context, store string, keys []string) error
	Get(ctx context.Context, store, key string) (RawRecord, bool, error)
	Count(ctx context.Context, store string) (int, error)

	// Scan calls fn with every record of store in key order, then exactly
	// one ScanError or ScanEnd. It returns after the terminal event. A
	// cancelled ctx ends the scan with a ScanError carrying ctx.Err().
	Scan(ctx context.Context, store string, fn func(ScanEvent))
}

// ScanEventType tags a ScanEvent.
type ScanEventType string

const (
	ScanData  ScanEventType = "data"
	ScanError ScanEventType = "error"
	ScanEnd   ScanEventType = "end"
)

// ScanEvent is one step of a driver scan.
type ScanEvent struct {
	Type   ScanEventType
	Record RawRecord
	Err    error
}

// DataEvent wraps a scanned record.
func DataEvent(rec RawRecord) ScanEvent { return ScanEvent{Type: ScanData, Record: rec} }

// ErrorEvent ends a scan with err.
func ErrorEvent(err error) ScanEvent { return ScanEvent{Type: ScanError, Err: err} }

// EndEvent ends a scan successfully.
func EndEvent() ScanEvent { return ScanEvent{Type: ScanEnd} }

// Delta is the schema change between the stores a database has and the
// stores it declares.
type Delta struct {
	Creates []string
	Removes []string
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Creates) == 0 && len(d.Removes) == 0
}

// ComputeDelta returns the stores in wanted missing from existing, and the
// stores in existing no longer wanted. Both lists keep their input order.
func ComputeDelta(existing, wanted []string) Delta {
	var d Delta
	for _, name := range wanted {
		if !slices.Contains(existing, name) && !slices.Contains(d.Creates, name) {
			d.Creates = append(d.Creates, name)
		}
	}
	for _, name := range existing {
		if !slices.Contains(wanted, name) {
			d.Removes = append(d.Removes, name)
		}
	}
	return d
}

// DriverFactory builds a driver from the database configuration.
type DriverFactory func(cfg config.DatabaseConfig, log *logger.Logger) (Driver, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]DriverFactory)
)

// RegisterDriver makes a driver available to NewDriver under name. Driver
// packages call it from init, so importing one for side effects registers it:
//
//	import _ "github.com/kbukum/smokedb/store/badgerdb"
func RegisterDriver(name string, f DriverFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Drivers returns the registered driver names in order.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewDriver builds the driver named by cfg.Driver. The driver is not opened.
func NewDriver(cfg config.DatabaseConfig, log *logger.Logger) (Driver, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q (not registered)", cfg.Driver)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return f(cfg, log.WithComponent("store."+cfg.Driver))
}

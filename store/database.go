package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/smokedb/component"
	"github.com/kbukum/smokedb/config"
	"github.com/kbukum/smokedb/encryption"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/observability"
	"github.com/kbukum/smokedb/resilience"
)

// Database owns one driver and the object stores declared for it. The driver
// is opened on first use and the declared stores are reconciled with the
// stored schema at that point.
type Database struct {
	name    string
	driver  Driver
	stores  []string
	conn    *component.Lazy[Driver]
	retry   resilience.RetryConfig
	metrics *observability.Metrics
	log     *logger.Logger
	newKey  func() string
	sealer  Sealer
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(db *Database) { db.log = l.WithComponent("store") }
}

// WithMetrics records scan and submit metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(db *Database) { db.metrics = m }
}

// WithRetry sets the retry policy for write batches.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(db *Database) { db.retry = cfg }
}

// WithKeyFunc replaces the key generator used for inserted values.
func WithKeyFunc(fn func() string) Option {
	return func(db *Database) { db.newKey = fn }
}

// WithSealer encrypts every stored value with s.
func WithSealer(s Sealer) Option {
	return func(db *Database) { db.sealer = s }
}

// ensure Database satisfies the component interfaces.
var (
	_ component.Component   = (*Database)(nil)
	_ component.Describable = (*Database)(nil)
)

// NewDatabase creates a database over driver that declares stores. Nothing is
// opened until the database is first used or started.
func NewDatabase(name string, driver Driver, stores []string, opts ...Option) *Database {
	db := &Database{
		name:   name,
		driver: driver,
		stores: stores,
		retry:  resilience.DefaultRetryConfig(),
		log:    logger.Get("store"),
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(db)
	}
	db.conn = component.NewLazy(name, db.open)
	return db
}

// Open builds the configured driver and wraps it in a Database whose retry
// policy follows cfg.
func Open(cfg config.DatabaseConfig, log *logger.Logger, opts ...Option) (*Database, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, err := NewDriver(cfg, log)
	if err != nil {
		return nil, err
	}
	base := []Option{WithRetry(resilience.SubmitRetryConfig(cfg.SubmitRetries, cfg.RetryBackoff))}
	if log != nil {
		base = append(base, WithLogger(log))
	}
	if cfg.EncryptionKey != "" {
		sealer, err := encryption.New(cfg.EncryptionKey, encryption.WithAlgorithm(encryption.Algorithm(cfg.Encryption)))
		if err != nil {
			return nil, err
		}
		base = append(base, WithSealer(sealer))
	}
	return NewDatabase(cfg.Name, driver, cfg.Stores, append(base, opts...)...), nil
}

func (db *Database) open(ctx context.Context) (Driver, error) {
	ctx, op := observability.StartOperation(ctx, db.metrics, observability.SpanStoreOpen, "",
		attribute.String(observability.AttrDatabase, db.name),
		attribute.String(observability.AttrDriver, db.driver.Name()))

	err := db.openAndMigrate(ctx)
	op.End(err)
	if err != nil {
		return nil, err
	}
	db.log.Info("database opened", logger.MergeWithDuration(logger.Fields(
		logger.FieldDatabase, db.name,
		logger.FieldDriver, db.driver.Name(),
		logger.FieldCount, len(db.stores),
	), op.Duration()))
	return db.driver, nil
}

func (db *Database) openAndMigrate(ctx context.Context) error {
	if err := db.driver.Open(ctx); err != nil {
		return fmt.Errorf("open %s driver: %w", db.driver.Name(), err)
	}
	if err := db.migrate(ctx); err != nil {
		_ = db.driver.Close()
		return err
	}
	return nil
}

// migrate creates declared stores that are missing and removes stores that
// are no longer declared, bumping the schema version once per change.
func (db *Database) migrate(ctx context.Context) error {
	existing, err := db.driver.Stores(ctx)
	if err != nil {
		return err
	}
	delta := ComputeDelta(existing, db.stores)
	if delta.Empty() {
		return nil
	}
	version, err := db.driver.Version(ctx)
	if err != nil {
		return err
	}
	if err := db.driver.Upgrade(ctx, version+1, delta); err != nil {
		return err
	}
	db.log.Info("schema upgraded", logger.Fields(
		logger.FieldDatabase, db.name,
		logger.FieldVersion, version+1,
		"creates", strings.Join(delta.Creates, ","),
		"removes", strings.Join(delta.Removes, ","),
	))
	return nil
}

// DB returns the opened driver, opening it on first call.
func (db *Database) DB(ctx context.Context) (Driver, error) {
	return db.conn.Get(ctx)
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// DeclaredStores returns the stores this database was declared with.
func (db *Database) DeclaredStores() []string { return db.stores }

// Stores lists the stores that exist in the opened database.
func (db *Database) Stores(ctx context.Context) ([]string, error) {
	drv, err := db.DB(ctx)
	if err != nil {
		return nil, err
	}
	return drv.Stores(ctx)
}

// Version returns the schema version of the opened database.
func (db *Database) Version(ctx context.Context) (int, error) {
	drv, err := db.DB(ctx)
	if err != nil {
		return 0, err
	}
	return drv.Version(ctx)
}

// CreateKey returns a new random record key.
func (db *Database) CreateKey() string { return db.newKey() }

// Drop deletes every store and record, then closes the driver. The next use
// opens it again and recreates the declared stores empty.
func (db *Database) Drop(ctx context.Context) error {
	drv, err := db.DB(ctx)
	if err != nil {
		return err
	}
	ctx, op := observability.StartOperation(ctx, db.metrics, observability.SpanStoreDrop, "",
		attribute.String(observability.AttrDatabase, db.name))
	err = drv.Drop(ctx)
	op.End(err)
	if err != nil {
		return err
	}
	db.log.Warn("database dropped", logger.Fields(logger.FieldDatabase, db.name))
	return db.conn.Reset(func(d Driver) error { return d.Close() })
}

// Start opens the database.
func (db *Database) Start(ctx context.Context) error {
	_, err := db.DB(ctx)
	return err
}

// Stop closes the driver if it is open.
func (db *Database) Stop(_ context.Context) error {
	start := time.Now()
	err := db.conn.Reset(func(d Driver) error { return d.Close() })
	if err != nil {
		db.log.Error("failed to close database", logger.ErrorFields("close", err))
		return err
	}
	db.log.Info("database closed", logger.MergeWithDuration(logger.Fields(logger.FieldDatabase, db.name), time.Since(start)))
	return nil
}

// Health reports unhealthy until the driver is open and answering.
func (db *Database) Health(ctx context.Context) component.Health {
	if !db.conn.Loaded() {
		return component.Health{Name: db.name, Status: component.StatusUnhealthy, Message: "not opened"}
	}
	if _, err := db.driver.Version(ctx); err != nil {
		return component.Health{Name: db.name, Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: db.name, Status: component.StatusHealthy}
}

// Describe summarizes the database for the startup log.
func (db *Database) Describe() component.Description {
	return component.Description{
		Type:    "database",
		Details: fmt.Sprintf("name=%s driver=%s stores=%s", db.name, db.driver.Name(), strings.Join(db.stores, ",")),
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/store"
	"github.com/kbukum/smokedb/store/storetest"
)

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "smoke.db")
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Driver { return New(tempPath(t), logger.Nop()) })
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := tempPath(t)
	ctx := context.Background()

	d := New(path, logger.Nop())
	storetest.Open(t, d, "users")
	if err := d.Insert(ctx, "users", storetest.Raw("b", "a")); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := New(path, logger.Nop())
	storetest.Open(t, reopened)
	if v, _ := reopened.Version(ctx); v != 1 {
		t.Errorf("expected persisted version 1, got %d", v)
	}
	keys, err := storetest.ScanKeys(ctx, reopened, "users")
	if err != nil || len(keys) != 2 || keys[0] != "a" {
		t.Errorf("expected [a b], got %v, %v", keys, err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "smoke.db")
	d := New(path, logger.Nop())
	if err := d.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if v, err := d.Version(context.Background()); err != nil || v != 0 {
		t.Errorf("expected version 0 for a new file, got %d, %v", v, err)
	}
}

func TestClosedDriver(t *testing.T) {
	d := New(tempPath(t), logger.Nop())
	if _, err := d.Stores(context.Background()); !errors.Is(err, store.ErrDriverClosed) {
		t.Errorf("expected ErrDriverClosed, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("closing an unopened driver should be a no-op, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      apperrors.ErrorCode
		retryable bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, apperrors.ErrCodeConflict, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, apperrors.ErrCodeConflict, true},
		{"other", errors.New("disk"), apperrors.ErrCodeDatabaseError, true},
		{"app error", apperrors.StoreNotFound("x"), apperrors.ErrCodeStoreNotFound, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			appErr, ok := apperrors.AsAppError(mapError(tc.err))
			if !ok {
				t.Fatalf("expected an AppError")
			}
			if appErr.Code != tc.code {
				t.Errorf("expected %s, got %s", tc.code, appErr.Code)
			}
			if appErr.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v", tc.retryable)
			}
		})
	}

	if err := mapError(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("context errors must pass through, got %v", err)
	}
	if mapError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := store.NewDriver(config.DatabaseConfig{Driver: config.DriverSQLite}, logger.Nop()); err == nil {
		t.Error("expected an error without a path")
	}
	d, err := store.NewDriver(config.DatabaseConfig{Driver: config.DriverSQLite, Path: tempPath(t)}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if d.Name() != config.DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", d.Name())
	}
}

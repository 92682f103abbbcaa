// Package storetest checks that a store.Driver honours the driver contract.
// Every driver package runs the same suite:
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.Driver { return memory.New() })
//	}
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/store"
)

// Factory returns a new, unopened, empty driver for one subtest.
type Factory func(t *testing.T) store.Driver

// Run executes the conformance suite against drivers built by newDriver.
func Run(t *testing.T, newDriver Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, d store.Driver)
	}{
		{"Schema", testSchema},
		{"InsertGetCount", testInsertGetCount},
		{"InsertDuplicateIsAtomic", testInsertDuplicateIsAtomic},
		{"UpdateIgnoresMissing", testUpdateIgnoresMissing},
		{"Delete", testDelete},
		{"ScanOrder", testScanOrder},
		{"ScanCancelled", testScanCancelled},
		{"UnknownStore", testUnknownStore},
		{"RemoveStoreDropsRecords", testRemoveStoreDropsRecords},
		{"Drop", testDrop},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, Open(t, newDriver(t), "users", "orders"))
		})
	}
}

// Open opens d, creates stores at version 1 and closes d when the test ends.
func Open(t *testing.T, d store.Driver, stores ...string) store.Driver {
	t.Helper()
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if len(stores) > 0 {
		if err := d.Upgrade(ctx, 1, store.Delta{Creates: stores}); err != nil {
			t.Fatalf("upgrade: %v", err)
		}
	}
	return d
}

// Raw builds raw records whose values are the JSON string of their key.
func Raw(keys ...string) []store.RawRecord {
	out := make([]store.RawRecord, len(keys))
	for i, key := range keys {
		out[i] = store.RawRecord{Key: key, Value: []byte(fmt.Sprintf("%q", key))}
	}
	return out
}

// ScanKeys scans a store and returns the keys seen and the terminal error.
func ScanKeys(ctx context.Context, d store.Driver, name string) ([]string, error) {
	var keys []string
	var scanErr error
	terminals := 0
	d.Scan(ctx, name, func(ev store.ScanEvent) {
		switch ev.Type {
		case store.ScanData:
			keys = append(keys, ev.Record.Key)
		case store.ScanError:
			terminals++
			scanErr = ev.Err
		case store.ScanEnd:
			terminals++
		}
	})
	if terminals != 1 {
		return keys, fmt.Errorf("expected exactly one terminal event, got %d", terminals)
	}
	return keys, scanErr
}

func testSchema(t *testing.T, d store.Driver) {
	ctx := context.Background()
	stores, err := d.Stores(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(stores, []string{"orders", "users"}) {
		t.Errorf("expected sorted stores [orders users], got %v", stores)
	}
	version, err := d.Version(ctx)
	if err != nil || version != 1 {
		t.Errorf("expected version 1, got %d, %v", version, err)
	}

	if err := d.Upgrade(ctx, 2, store.Delta{Creates: []string{"audit"}, Removes: []string{"orders"}}); err != nil {
		t.Fatal(err)
	}
	stores, _ = d.Stores(ctx)
	if !slices.Equal(stores, []string{"audit", "users"}) {
		t.Errorf("expected [audit users], got %v", stores)
	}
	if version, _ := d.Version(ctx); version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func testInsertGetCount(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("a", "b", "c")); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := d.Get(ctx, "users", "b")
	if err != nil || !ok {
		t.Fatalf("expected record b, got ok=%v err=%v", ok, err)
	}
	if rec.Key != "b" || string(rec.Value) != `"b"` {
		t.Errorf("unexpected record %q=%s", rec.Key, rec.Value)
	}

	if _, ok, err := d.Get(ctx, "users", "zz"); ok || err != nil {
		t.Errorf("expected missing record, got ok=%v err=%v", ok, err)
	}

	n, err := d.Count(ctx, "users")
	if err != nil || n != 3 {
		t.Errorf("expected 3 records, got %d, %v", n, err)
	}
	if n, _ := d.Count(ctx, "orders"); n != 0 {
		t.Errorf("expected empty orders, got %d", n)
	}
}

func testInsertDuplicateIsAtomic(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("a")); err != nil {
		t.Fatal(err)
	}

	err := d.Insert(ctx, "users", Raw("b", "a", "c"))
	if !errors.Is(err, apperrors.DuplicateKey("", "")) {
		t.Fatalf("expected DUPLICATE_KEY, got %v", err)
	}
	if apperrors.IsRetryable(err) {
		t.Error("duplicate key must not be retryable")
	}
	if n, _ := d.Count(ctx, "users"); n != 1 {
		t.Errorf("failed batch must write nothing, found %d records", n)
	}

	if err := d.Insert(ctx, "users", Raw("x", "x")); !errors.Is(err, apperrors.DuplicateKey("", "")) {
		t.Errorf("expected DUPLICATE_KEY for a repeated key within a batch, got %v", err)
	}
}

func testUpdateIgnoresMissing(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("a")); err != nil {
		t.Fatal(err)
	}
	err := d.Update(ctx, "users", []store.RawRecord{
		{Key: "a", Value: []byte(`{"n":1}`)},
		{Key: "ghost", Value: []byte(`{"n":2}`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec, _, _ := d.Get(ctx, "users", "a")
	if string(rec.Value) != `{"n":1}` {
		t.Errorf("expected updated value, got %s", rec.Value)
	}
	if _, ok, _ := d.Get(ctx, "users", "ghost"); ok {
		t.Error("update must not create records")
	}
}

func testDelete(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, "users", []string{"a", "c", "missing"}); err != nil {
		t.Fatal(err)
	}
	keys, err := ScanKeys(ctx, d, "users")
	if err != nil || !slices.Equal(keys, []string{"b"}) {
		t.Errorf("expected [b], got %v, %v", keys, err)
	}
}

func testScanOrder(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("m", "a", "z", "c")); err != nil {
		t.Fatal(err)
	}
	if err := d.Insert(ctx, "orders", Raw("o1")); err != nil {
		t.Fatal(err)
	}
	keys, err := ScanKeys(ctx, d, "users")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"a", "c", "m", "z"}) {
		t.Errorf("expected key order, got %v", keys)
	}

	keys, err = ScanKeys(ctx, d, "orders")
	if err != nil || !slices.Equal(keys, []string{"o1"}) {
		t.Errorf("stores must not leak into each other, got %v, %v", keys, err)
	}
}

func testScanCancelled(t *testing.T, d store.Driver) {
	if err := d.Insert(context.Background(), "users", Raw("a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	keys, err := ScanKeys(ctx, d, "users")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no records from a cancelled scan, got %v", keys)
	}
}

func testUnknownStore(t *testing.T, d store.Driver) {
	ctx := context.Background()
	notFound := apperrors.StoreNotFound("")

	if err := d.Insert(ctx, "ghosts", Raw("a")); !errors.Is(err, notFound) {
		t.Errorf("insert: expected STORE_NOT_FOUND, got %v", err)
	}
	if err := d.Update(ctx, "ghosts", Raw("a")); !errors.Is(err, notFound) {
		t.Errorf("update: expected STORE_NOT_FOUND, got %v", err)
	}
	if err := d.Delete(ctx, "ghosts", []string{"a"}); !errors.Is(err, notFound) {
		t.Errorf("delete: expected STORE_NOT_FOUND, got %v", err)
	}
	if _, _, err := d.Get(ctx, "ghosts", "a"); !errors.Is(err, notFound) {
		t.Errorf("get: expected STORE_NOT_FOUND, got %v", err)
	}
	if _, err := d.Count(ctx, "ghosts"); !errors.Is(err, notFound) {
		t.Errorf("count: expected STORE_NOT_FOUND, got %v", err)
	}
	if _, err := ScanKeys(ctx, d, "ghosts"); !errors.Is(err, notFound) {
		t.Errorf("scan: expected STORE_NOT_FOUND, got %v", err)
	}
}

func testRemoveStoreDropsRecords(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "orders", Raw("o1", "o2")); err != nil {
		t.Fatal(err)
	}
	if err := d.Upgrade(ctx, 2, store.Delta{Removes: []string{"orders"}}); err != nil {
		t.Fatal(err)
	}
	if err := d.Upgrade(ctx, 3, store.Delta{Creates: []string{"orders"}}); err != nil {
		t.Fatal(err)
	}
	if n, err := d.Count(ctx, "orders"); err != nil || n != 0 {
		t.Errorf("expected a recreated store to be empty, got %d, %v", n, err)
	}
}

func testDrop(t *testing.T, d store.Driver) {
	ctx := context.Background()
	if err := d.Insert(ctx, "users", Raw("a")); err != nil {
		t.Fatal(err)
	}
	if err := d.Drop(ctx); err != nil {
		t.Fatal(err)
	}
	stores, err := d.Stores(ctx)
	if err != nil || len(stores) != 0 {
		t.Errorf("expected no stores after drop, got %v, %v", stores, err)
	}
	if version, _ := d.Version(ctx); version != 0 {
		t.Errorf("expected version 0 after drop, got %d", version)
	}
}

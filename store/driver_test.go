package store

import (
	"slices"
	"testing"

	"github.com/kbukum/smokedb/config"
	"github.com/kbukum/smokedb/logger"
)

func TestComputeDelta(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		wanted   []string
		creates  []string
		removes  []string
	}{
		{"fresh", nil, []string{"users", "orders"}, []string{"users", "orders"}, nil},
		{"unchanged", []string{"orders", "users"}, []string{"users", "orders"}, nil, nil},
		{"add and remove", []string{"users", "legacy"}, []string{"users", "audit"}, []string{"audit"}, []string{"legacy"}},
		{"remove all", []string{"users"}, nil, nil, []string{"users"}},
		{"duplicate wanted", nil, []string{"a", "a"}, []string{"a"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := ComputeDelta(tc.existing, tc.wanted)
			if !slices.Equal(d.Creates, tc.creates) || !slices.Equal(d.Removes, tc.removes) {
				t.Errorf("expected +%v -%v, got +%v -%v", tc.creates, tc.removes, d.Creates, d.Removes)
			}
			if d.Empty() != (len(tc.creates) == 0 && len(tc.removes) == 0) {
				t.Errorf("Empty() disagrees with delta %+v", d)
			}
		})
	}
}

func TestNewDriver_Unregistered(t *testing.T) {
	if _, err := NewDriver(config.DatabaseConfig{Driver: "nope"}, logger.Nop()); err == nil {
		t.Fatal("expected an error for an unregistered driver")
	}
}

func TestRegisterDriver(t *testing.T) {
	var got config.DatabaseConfig
	RegisterDriver("test-driver", func(cfg config.DatabaseConfig, _ *logger.Logger) (Driver, error) {
		got = cfg
		return nil, nil
	})
	t.Cleanup(func() {
		factoriesMu.Lock()
		delete(factories, "test-driver")
		factoriesMu.Unlock()
	})

	if !slices.Contains(Drivers(), "test-driver") {
		t.Errorf("expected test-driver in %v", Drivers())
	}
	if _, err := NewDriver(config.DatabaseConfig{Driver: "test-driver", Path: "/data"}, nil); err != nil {
		t.Fatal(err)
	}
	if got.Path != "/data" {
		t.Errorf("factory did not receive the config, got %+v", got)
	}
}

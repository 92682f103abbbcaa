package validation

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/kbukum/smokedb/errors"
)

func TestValidatorRequired(t *testing.T) {
	if New().Required("name", "users").HasErrors() {
		t.Error("expected no errors for valid input")
	}
	if !New().Required("name", "").HasErrors() {
		t.Error("expected error for empty required field")
	}
	if !New().Required("name", "   ").HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorStoreName(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"simple", "users", true},
		{"underscore start", "_audit", true},
		{"dotted", "app.events-v2", true},
		{"empty", "", false},
		{"digit start", "1users", false},
		{"slash", "a/b", false},
		{"space", "my store", false},
		{"too long", "s" + strings.Repeat("x", 64), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().StoreName("store", tc.value)
			if v.HasErrors() == tc.valid {
				t.Errorf("StoreName(%q) errors=%v, want valid=%v", tc.value, v.Errors(), tc.valid)
			}
		})
	}
}

func TestValidatorRecordKey(t *testing.T) {
	if New().RecordKey("key", "4f1c-9a").HasErrors() {
		t.Error("expected valid key")
	}
	if !New().RecordKey("key", "").HasErrors() {
		t.Error("expected empty key to fail")
	}
	if !New().RecordKey("key", strings.Repeat("k", MaxKeyLength+1)).HasErrors() {
		t.Error("expected oversize key to fail")
	}
}

func TestValidatorMinAndOneOf(t *testing.T) {
	v := New().
		Min("take", -1, 0).
		OneOf("driver", "postgres", []string{"memory", "badger", "sqlite"}).
		OneOf("format", "", []string{"json"})

	errs := v.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs[0].Field != "take" || errs[1].Field != "driver" {
		t.Errorf("unexpected fields %v", errs)
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New().Custom(false, "order", "unknown direction").Custom(true, "skip", "never")
	if len(v.Errors()) != 1 || v.Errors()[0].Message != "unknown direction" {
		t.Errorf("unexpected errors %v", v.Errors())
	}
}

func TestValidatorValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	err := New().Required("store", "").Min("take", -2, 0).Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Errorf("unexpected code %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "store: is required") || !strings.Contains(appErr.Message, "take: must be at least 0") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected field details, got %v", appErr.Details)
	}
}

type dbSettings struct {
	Name    string   `mapstructure:"name" validate:"required,storename"`
	Driver  string   `mapstructure:"driver" validate:"oneof=memory badger sqlite"`
	Stores  []string `mapstructure:"stores" validate:"dive,storename"`
	Retries int      `mapstructure:"submit_retries" validate:"gte=0,lte=10"`
}

type request struct {
	Key   string `json:"key" validate:"recordkey"`
	Label string `json:"label" validate:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	valid := dbSettings{Name: "app", Driver: "badger", Stores: []string{"users", "orders"}, Retries: 3}
	if err := Validate(valid); err != nil {
		t.Errorf("expected valid struct, got %v", err)
	}

	invalid := dbSettings{Name: "", Driver: "mongo", Stores: []string{"users", "bad/name"}, Retries: 11}
	err := Validate(invalid)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"name: is required",
		"driver: must be one of: memory badger sqlite",
		"stores[1]: must be a valid store name",
		"submit_retries: must be less than or equal to 10",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestValidateStruct_JSONNames(t *testing.T) {
	err := Validate(request{Key: "", Label: "too long"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "key: must be a valid record key") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "label: must be at most 5 characters") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Name":          "name",
		"SubmitRetries": "submit_retries",
		"already":       "already",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

package httpapi

import (
	"context"
	"slices"
	"testing"

	"github.com/kbukum/smokedb/query"
	"github.com/kbukum/smokedb/store"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		value any
		want  string
		match bool
	}{
		{"ada", "ada", true},
		{"ada", "bob", false},
		{float64(17), "17", true},
		{float64(17), "17.0", true},
		{float64(17), "seventeen", false},
		{true, "true", true},
		{true, "1", true},
		{false, "true", false},
		{nil, "null", true},
		{nil, "", false},
		{[]any{"a"}, "[a]", true},
	}
	for _, tc := range tests {
		if got := matches(tc.value, tc.want); got != tc.match {
			t.Errorf("matches(%v, %q) = %v, want %v", tc.value, tc.want, got, tc.match)
		}
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b any
		want int
	}{
		{nil, nil, 0},
		{nil, false, -1},
		{true, false, 1},
		{false, float64(0), -1},
		{float64(2), float64(10), -1},
		{float64(10), "1", -1},
		{"b", "a", 1},
		{"z", map[string]any{}, -1},
		{[]any{1}, []any{1}, 0},
	}
	for _, tc := range tests {
		if got := compareValues(tc.a, tc.b); got != tc.want {
			t.Errorf("compareValues(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("url:http://x")
	if err != nil || c.Field != "url" || c.Value != "http://x" {
		t.Errorf("expected the value to keep later colons, got %+v, %v", c, err)
	}
	for _, bad := range []string{"", "field", ":value"} {
		if _, err := ParseCondition(bad); err == nil {
			t.Errorf("expected %q to fail", bad)
		}
	}
}

func TestListOptions_Apply(t *testing.T) {
	records := []store.Record[Document]{
		{Key: "1", Value: Document{"n": float64(3), "tag": "a"}},
		{Key: "2", Value: Document{"n": float64(1), "tag": "b"}},
		{Key: "3", Value: Document{"n": float64(2), "tag": "a"}},
		{Key: "4", Value: Document{"n": float64(2), "tag": "a"}},
	}
	keys := func(o ListOptions) []string {
		t.Helper()
		got, err := query.Select(o.Apply(query.FromSlice(records)), func(r store.Record[Document], _ int) string {
			return r.Key
		}).Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	var desc ListOptions
	desc.Take = -1
	if err := desc.SetOrder("-n"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"unbounded", ListOptions{Take: -1}, []string{"1", "2", "3", "4"}},
		{"take zero", ListOptions{Take: 0}, nil},
		{"where", ListOptions{Take: -1, Where: []Condition{{Field: "tag", Value: "a"}}}, []string{"1", "3", "4"}},
		{"distinct keeps first", ListOptions{Take: -1, Distinct: true}, []string{"1", "2", "3"}},
		{"descending is stable", desc, []string{"1", "3", "4", "2"}},
		{"order then page", ListOptions{Order: "n", Skip: 1, Take: 2}, []string{"3", "4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := keys(tc.opts); !slices.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

package query

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type item struct {
	name  string
	group int
}

func names(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

func TestOrderBy(t *testing.T) {
	got, err := OrderBy(From(3, 1, 2), func(n int) int { return n }).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestOrderBy_Stable(t *testing.T) {
	src := []item{{"a", 2}, {"b", 1}, {"c", 2}, {"d", 1}}
	got, err := OrderBy(FromSlice(src), func(it item) int { return it.group }).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "d", "a", "c"}
	if !strSliceEqual(names(got), want) {
		t.Errorf("got %v, want %v", names(got), want)
	}
}

func TestOrderByDescending_Stable(t *testing.T) {
	src := []item{{"a", 2}, {"b", 1}, {"c", 2}, {"d", 1}}
	got, err := OrderByDescending(FromSlice(src), func(it item) int { return it.group }).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "c", "b", "d"}
	if !strSliceEqual(names(got), want) {
		t.Errorf("got %v, want %v", names(got), want)
	}
}

func TestOrderByFunc(t *testing.T) {
	got, err := OrderByFunc(From("pear", "Apple", "fig"), func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"Apple", "fig", "pear"}) {
		t.Errorf("got %v, want [Apple fig pear]", got)
	}
}

func TestOrderBy_DoesNotMutateSource(t *testing.T) {
	src := []int{3, 1, 2}
	if _, err := OrderBy(FromSlice(src), func(n int) int { return n }).Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(src, []int{3, 1, 2}) {
		t.Errorf("expected source slice untouched, got %v", src)
	}
}

func TestReverse(t *testing.T) {
	got, err := From(1, 2, 3).Reverse().Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{3, 2, 1}) {
		t.Errorf("got %v, want [3 2 1]", got)
	}

	empty, err := Empty[int]().Reverse().Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if empty != 0 {
		t.Errorf("expected 0, got %d", empty)
	}
}

func TestIntersect(t *testing.T) {
	got, err := From(1, 2, 3).Intersect(From(2, 3, 4)).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{2, 3}) {
		t.Errorf("got %v, want [2 3]", got)
	}
}

func TestIntersect_FollowsOtherOrder(t *testing.T) {
	got, err := From(1, 2, 3).Intersect(From(3, 9, 1, 1)).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{3, 1, 1}) {
		t.Errorf("got %v, want [3 1 1]", got)
	}
}

func TestIntersectBy(t *testing.T) {
	got, err := From("Go", "Rust").
		IntersectBy(From("go", "zig", "RUST"), strings.EqualFold).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"go", "RUST"}) {
		t.Errorf("got %v, want [go RUST]", got)
	}
}

func TestIntersect_FailingReceiverSkipsOther(t *testing.T) {
	boom := errors.New("boom")
	otherRead := false
	other := New(NewSource(func(e *Emitter[int]) {
		otherRead = true
		e.End()
	}))

	_, err := failAfter([]int{1}, boom).Intersect(other).Collect(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if otherRead {
		t.Error("expected other not to be read")
	}
}

func TestBuffering_CollectFailureEmitsNothing(t *testing.T) {
	boom := errors.New("boom")
	stages := map[string]*Queryable[int]{
		"orderBy":           OrderBy(failAfter([]int{2, 1}, boom), func(n int) int { return n }),
		"orderByDescending": OrderByDescending(failAfter([]int{2, 1}, boom), func(n int) int { return n }),
		"reverse":           failAfter([]int{2, 1}, boom).Reverse(),
	}
	for name, q := range stages {
		t.Run(name, func(t *testing.T) {
			values := 0
			var gotErr error
			q.Source().Read(context.Background(), func(ev Event[int]) {
				switch ev.Kind {
				case EventValue:
					values++
				case EventError:
					gotErr = ev.Err
				}
			})
			if values != 0 {
				t.Errorf("expected no values, got %d", values)
			}
			if !errors.Is(gotErr, boom) {
				t.Errorf("expected boom, got %v", gotErr)
			}
		})
	}
}

func TestBuffering_AsyncUpstream(t *testing.T) {
	got, err := OrderBy(asyncSlice([]int{5, 3, 4}), func(n int) int { return n }).
		Take(2).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{3, 4}) {
		t.Errorf("got %v, want [3 4]", got)
	}
}

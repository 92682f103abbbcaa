package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWhere(t *testing.T) {
	src := []int{1, 2, 3, 4, 5, 6}
	got, err := FromSlice(src).
		Where(func(n, _ int) bool { return n%2 == 0 }).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var want []int
	for _, n := range src {
		if n%2 == 0 {
			want = append(want, n)
		}
	}
	if !intSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWhere_IndexCountsUpstream(t *testing.T) {
	var indexes []int
	_, err := From("a", "b", "c", "d").
		Where(func(_ string, i int) bool {
			indexes = append(indexes, i)
			return i%2 == 1
		}).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(indexes, []int{0, 1, 2, 3}) {
		t.Errorf("got indexes %v, want [0 1 2 3]", indexes)
	}
}

func TestSelect(t *testing.T) {
	src := []int{1, 2, 3}
	got, err := Select(FromSlice(src), func(n, i int) string {
		return fmt.Sprintf("%d#%d", n, i)
	}).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1#0", "2#1", "3#2"}
	if !strSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectMany(t *testing.T) {
	var indexes []int
	got, err := SelectMany(From(1, 2, 3), func(n, i int) []int {
		indexes = append(indexes, i)
		if n == 2 {
			return nil
		}
		return []int{n, n * 10}
	}).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 10, 3, 30}) {
		t.Errorf("got %v, want [1 10 3 30]", got)
	}
	if !intSliceEqual(indexes, []int{0, 1, 2}) {
		t.Errorf("expected one index per upstream value, got %v", indexes)
	}
}

func TestSkip(t *testing.T) {
	got, err := Range(0, 6).Skip(4).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{4, 5}) {
		t.Errorf("got %v, want [4 5]", got)
	}

	none, err := Range(0, 3).Skip(10).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if none != 0 {
		t.Errorf("expected 0 values, got %d", none)
	}
}

func TestTake(t *testing.T) {
	got, err := Range(0, 10).Take(3).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{0, 1, 2}) {
		t.Errorf("got %v, want [0 1 2]", got)
	}

	all, err := Range(0, 2).Take(5).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(all, []int{0, 1}) {
		t.Errorf("got %v, want [0 1]", all)
	}

	zero, err := Range(0, 2).Take(0).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if zero != 0 {
		t.Errorf("expected 0, got %d", zero)
	}
}

func TestTake_CancelsUpstream(t *testing.T) {
	produced := 0
	got, err := Range(0, 1_000_000).
		Tap(func(int, int) { produced++ }).
		Take(3).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{0, 1, 2}) {
		t.Errorf("got %v, want [0 1 2]", got)
	}
	if produced != 3 {
		t.Errorf("expected upstream to stop after 3 values, produced %d", produced)
	}
}

func TestTake_IgnoresLaterUpstreamError(t *testing.T) {
	got, err := failAfter([]int{1, 2, 3}, errors.New("late")).Take(2).Collect(context.Background())
	if err != nil {
		t.Fatalf("expected no error once take is satisfied, got %v", err)
	}
	if !intSliceEqual(got, []int{1, 2}) {
		t.Errorf("got %v, want [1 2]", got)
	}
}

func TestTake_NonPositiveNeverReadsUpstream(t *testing.T) {
	got, err := Fail[int](errors.New("boom")).Take(0).Collect(context.Background())
	if err != nil {
		t.Fatalf("expected an empty result without reading upstream, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}

	produced := 0
	n, err := Range(0, 5).Tap(func(int, int) { produced++ }).Take(-1).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || produced != 0 {
		t.Errorf("got count %d after %d upstream values, want 0 and 0", n, produced)
	}
}

func TestDistinct(t *testing.T) {
	got, err := From(1, 2, 2, 3, 1).Distinct().Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestDistinct_ReferenceEqualityForSlices(t *testing.T) {
	shared := []int{1}
	other := []int{1}
	got, err := From(shared, other, shared).Distinct().Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("expected 2 distinct slices by reference, got %d", got)
	}
}

func TestDistinct_PointersByIdentity(t *testing.T) {
	type rec struct{ id int }
	a, b := &rec{1}, &rec{1}
	got, err := From(a, b, a).Distinct().Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("expected 2 distinct pointers, got %d", got)
	}
}

func TestDistinctBy(t *testing.T) {
	got, err := From("Go", "go", "GO", "rust").
		DistinctBy(strings.EqualFold).
		Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"Go", "rust"}) {
		t.Errorf("got %v, want [Go rust]", got)
	}
}

func TestDistinct_RerunStartsFresh(t *testing.T) {
	q := From(1, 1, 2).Distinct()
	for run := 0; run < 2; run++ {
		got, err := q.Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !intSliceEqual(got, []int{1, 2}) {
			t.Errorf("run %d: got %v, want [1 2]", run, got)
		}
	}
}

func TestConcat(t *testing.T) {
	got, err := From(1, 2).Concat(From(3, 4)).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3, 4}) {
		t.Errorf("got %v, want [1 2 3 4]", got)
	}
}

func TestConcat_ErrorSkipsSecond(t *testing.T) {
	secondRead := false
	second := New(NewSource(func(e *Emitter[int]) {
		secondRead = true
		e.Next(9)
		e.End()
	}))
	boom := errors.New("boom")

	var ends, errs int
	failAfter([]int{1}, boom).Concat(second).Source().Read(context.Background(), func(ev Event[int]) {
		switch ev.Kind {
		case EventError:
			errs++
		case EventEnd:
			ends++
		}
	})

	if secondRead {
		t.Error("second operand must not be read after an error")
	}
	if errs != 1 || ends != 0 {
		t.Errorf("expected exactly one error and no end, got errors=%d ends=%d", errs, ends)
	}
}

func TestConcat_Async(t *testing.T) {
	got, err := asyncSlice([]int{1, 2}).Concat(asyncSlice([]int{3})).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestCast(t *testing.T) {
	got, err := Cast[string](From[any]("a", "b")).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestCast_Invalid(t *testing.T) {
	_, err := Cast[string](From[any]("a", 2, "c")).Collect(context.Background())
	if !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("expected ErrInvalidCast, got %v", err)
	}
	if !strings.Contains(err.Error(), "int") {
		t.Errorf("expected source type in message, got %q", err.Error())
	}
}

func TestStreaming_ErrorPropagates(t *testing.T) {
	boom := errors.New("storage fault")
	src := failAfter([]int{1, 2, 3}, boom)

	stages := map[string]*Queryable[int]{
		"where":    src.Where(func(int, int) bool { return true }),
		"select":   Select(src, func(n, _ int) int { return n }),
		"skip":     src.Skip(1),
		"take":     src.Take(10),
		"distinct": src.Distinct(),
		"concat":   src.Concat(From(4)),
		"tap":      src.Tap(func(int, int) {}),
	}
	for name, q := range stages {
		t.Run(name, func(t *testing.T) {
			_, err := q.Collect(context.Background())
			if !errors.Is(err, boom) {
				t.Errorf("expected storage fault, got %v", err)
			}
		})
	}
}

func TestPipeline_IsImmutable(t *testing.T) {
	base := Range(0, 5)
	evens := base.Where(func(n, _ int) bool { return n%2 == 0 })
	_ = evens.Take(1)

	got, err := base.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("expected base unchanged with 5 values, got %d", got)
	}
	n, err := evens.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 evens, got %d", n)
	}
}

package numeric

import (
	"math"
	"testing"
)

func TestSumAndAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if got := Sum(values); got != 10 {
		t.Fatalf("expected sum 10, got %v", got)
	}
	if got := Average(values); got != 2.5 {
		t.Fatalf("expected average 2.5, got %v", got)
	}
	if got := Average(nil); got != 0 {
		t.Fatalf("expected average 0 for empty input, got %v", got)
	}
}

func TestMedian(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}
	for _, tc := range cases {
		if got := Median(tc.values); got != tc.want {
			t.Fatalf("%s: expected median %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Fatalf("input slice was reordered: %v", values)
	}
}

func TestFibonacci(t *testing.T) {
	want := []int{0, 1, 1, 2, 3, 5, 8, 13, 21}
	for n, expected := range want {
		if got := Fibonacci(n); got != expected {
			t.Fatalf("fibonacci(%d): expected %d, got %d", n, expected, got)
		}
	}
}

func TestCumulate(t *testing.T) {
	if got := Cumulate(20, 3, 1.5); got != 45 {
		t.Fatalf("expected 45, got %v", got)
	}
	if got := Cumulate(20, 1, 1.5); got != 20 {
		t.Fatalf("expected base back for length 1, got %v", got)
	}
}

func TestExtremesBy(t *testing.T) {
	type deal struct {
		name  string
		price float64
	}
	deals := []deal{
		{"a", 620},
		{"b", 580},
		{"c", 600},
	}
	min, max, ok := ExtremesBy(deals, func(d deal) float64 { return d.price })
	if !ok {
		t.Fatalf("expected ok for populated slice")
	}
	if min.name != "b" || max.name != "a" {
		t.Fatalf("expected extremes b/a, got %s/%s", min.name, max.name)
	}

	_, _, ok = ExtremesBy(nil, func(d deal) float64 { return d.price })
	if ok {
		t.Fatalf("expected ok=false for empty slice")
	}

	min, max, _ = ExtremesBy(deals[:1], func(d deal) float64 { return d.price })
	if min.name != "a" || max.name != "a" {
		t.Fatalf("single member should be both extremes, got %s/%s", min.name, max.name)
	}
}

func TestLadderRatioFitsUnderCap(t *testing.T) {
	ratio := LadderRatio(200, 3, 3.0, 20)
	if ratio < 1.1 {
		t.Fatalf("ratio below minimum: %v", ratio)
	}
	total := 20.0
	for level := 2; level >= 0; level-- {
		total += 20 * math.Pow(ratio, float64(level))
	}
	if total >= 200 {
		t.Fatalf("projected ladder %v exceeds cap", total)
	}
}

func TestLadderRatioFallsBackToMinimum(t *testing.T) {
	// Cap so tight that no ladder fits.
	if ratio := LadderRatio(10, 3, 3.0, 20); ratio != 1.1 {
		t.Fatalf("expected minimum ratio 1.1, got %v", ratio)
	}
}

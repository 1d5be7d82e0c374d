package numeric

import "sort"

// Sum adds up all values.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Average returns the arithmetic mean, or 0 for an empty slice.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Median returns the middle value (average of the two middle values for even
// lengths). The input slice is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	half := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[half]
	}
	return (sorted[half-1] + sorted[half]) / 2
}

// Fibonacci returns the n-th fibonacci number (0, 1, 1, 2, 3, 5, ...).
func Fibonacci(n int) int {
	if n < 2 {
		if n < 1 {
			return 0
		}
		return 1
	}
	prev, cur := 0, 1
	for i := 2; i <= n; i++ {
		prev, cur = cur, prev+cur
	}
	return cur
}

// Cumulate compounds base by ratio over length-1 steps.
func Cumulate(base float64, length int, ratio float64) float64 {
	result := base
	for i := 0; i < length-1; i++ {
		result *= ratio
	}
	return result
}

// ExtremesBy returns the members with the lowest and highest key. ok is false
// for an empty slice. For a single member both extremes are that member.
func ExtremesBy[T any](items []T, key func(T) float64) (min, max T, ok bool) {
	if len(items) == 0 {
		return min, max, false
	}
	min, max = items[0], items[0]
	for _, item := range items[1:] {
		if key(item) < key(min) {
			min = item
		}
		if key(item) > key(max) {
			max = item
		}
	}
	return min, max, true
}

// AverageBy averages the extracted key across members, or 0 for an empty slice.
func AverageBy[T any](items []T, key func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		sum += key(item)
	}
	return sum / float64(len(items))
}

const (
	ladderMinRatio = 1.1
	ladderStep     = 0.1
)

// LadderRatio searches for the largest escalation ratio whose compounded
// altitude ladder still fits under maxSum. levels is the number of rungs,
// base the capital for the first rung. Falls back to the minimum ratio when
// nothing fits.
func LadderRatio(maxSum float64, levels int, maxRatio, base float64) float64 {
	ratio := ladderMinRatio
	projected := ladderTotal(ladderMinRatio, levels, base)

	for cur := ladderMinRatio; cur < maxRatio; cur += ladderStep {
		total := ladderTotal(cur, levels, base)
		if total < maxSum && total > projected {
			ratio = cur
			projected = total
		}
	}
	return ratio
}

func ladderTotal(ratio float64, levels int, base float64) float64 {
	total := base
	for level := levels - 1; level >= 0; level-- {
		total += Cumulate(base, level+1, ratio)
	}
	return total
}

package pricecache

import (
	"math"
	"sort"
)

// Average returns the arithmetic mean of prices, or 0 for an empty list.
func Average(prices []int64) float64 {
	if len(prices) == 0 {
		return 0
	}
	var sum int64
	for _, p := range prices {
		sum += p
	}
	return float64(sum) / float64(len(prices))
}

// Median returns the median price: the middle element for odd lengths, the
// mean of the two middle elements for even lengths, 0 for an empty list.
func Median(prices []int64) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}

	sorted := make([]int64, n)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// StdDev returns the population standard deviation of prices. Fewer than two
// samples yield 0.
func StdDev(prices []int64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}

	mean := Average(prices)
	var sumSq float64
	for _, p := range prices {
		d := float64(p) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

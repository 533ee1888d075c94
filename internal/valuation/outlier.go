package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/solren/marketledger/internal/pricecache"
)

// ChartReference computes the reference price used by the outlier filter:
// the configured statistic (average or median) over the cached lowest
// listings plus recent sales for the item on the home world. Returns zero
// when nothing is cached.
func (e *Engine) ChartReference(itemID uint32) float64 {
	var combined []int64

	if snap, ok := e.listings.Get(itemID, e.cfg.HomeWorldID); ok {
		combined = append(combined, snap.Prices(false)...)
		combined = append(combined, snap.Prices(true)...)
	}
	if snap, ok := e.sales.Get(itemID, e.cfg.HomeWorldID); ok {
		combined = append(combined, snap.Prices(false)...)
		combined = append(combined, snap.Prices(true)...)
	}

	if len(combined) == 0 {
		return 0
	}
	if e.cfg.BlendMode == BlendMedian {
		return pricecache.Median(combined)
	}
	return pricecache.Average(combined)
}

// FilterSales returns the sale prices accepted for charting. Rejected sales
// are only hidden from display; history is never mutated. A zero reference
// disables filtering.
func (e *Engine) FilterSales(prices []int64, reference float64) []int64 {
	if len(prices) == 0 {
		return nil
	}

	switch e.cfg.OutlierMode {
	case OutlierStdDev:
		return filterByStdDev(prices, e.cfg.OutlierStdDevs)
	default:
		return filterByPercent(prices, reference, e.cfg.OutlierPercent)
	}
}

// filterByPercent accepts prices within [ref*(1-t), ref*(1+t)], bounds
// inclusive. Decimal bounds keep the boundary comparison exact.
func filterByPercent(prices []int64, reference, tolerance float64) []int64 {
	if reference <= 0 {
		return append([]int64(nil), prices...)
	}

	ref := decimal.NewFromFloat(reference)
	tol := decimal.NewFromFloat(tolerance)
	one := decimal.NewFromInt(1)
	low := ref.Mul(one.Sub(tol))
	high := ref.Mul(one.Add(tol))

	var out []int64
	for _, p := range prices {
		d := decimal.NewFromInt(p)
		if d.GreaterThanOrEqual(low) && d.LessThanOrEqual(high) {
			out = append(out, p)
		}
	}
	return out
}

// filterByStdDev accepts prices within k standard deviations of the sample
// mean. Under two samples there is no deviation to measure, so everything
// passes.
func filterByStdDev(prices []int64, k float64) []int64 {
	sd := pricecache.StdDev(prices)
	if sd == 0 {
		return append([]int64(nil), prices...)
	}

	mean := pricecache.Average(prices)
	bound := k * sd

	var out []int64
	for _, p := range prices {
		diff := float64(p) - mean
		if diff < 0 {
			diff = -diff
		}
		if diff <= bound {
			out = append(out, p)
		}
	}
	return out
}

// Package valuation turns inventory quantities and cached market prices into
// gil totals: per-entity inventory value, whole-roster fan-out, and the
// outlier filter applied to raw sales before they are charted.
package valuation

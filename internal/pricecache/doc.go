// Package pricecache holds bounded rolling price knowledge per (item, world)
// pair: the lowest active listings and the most recent sales, split by
// quality. Entries are updated in place by both the live feed and batch
// refreshes; staleness is advisory and never blocks a read.
package pricecache

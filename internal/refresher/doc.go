// Package refresher keeps the price caches warm over REST: a periodic pass
// fetches current prices and recent sales for every tracked item in every
// active scope, chunked to the backend's batch cap and fetched with bounded
// concurrency.
package refresher

// Package timeseries implements the durable append-only sample store.
//
// Samples are best-effort telemetry: Append enqueues and returns immediately,
// a background writer batches inserts, and storage failures are logged rather
// than surfaced to callers. Reads aggregate raw samples into fixed time
// buckets so noisy per-tick data degrades into a readable series.
package timeseries

// Package feed maintains the live WebSocket market feed: a single managed
// connection with keepalive and stale detection, capped exponential backoff
// on reconnect, scope subscription replay, and listener fan-out decoupled
// from the read loop.
package feed

// Package api provides the REST client for the market data backend.
//
// Endpoints used:
//   - GET /{scope}/{itemIds}: current listings and recent sales
//   - GET /history/{scope}/{itemIds}: sale history
//   - GET /data-centers, GET /worlds: market topology
//   - GET /tax-rates?world=N: per-city market tax
//
// Batch endpoints accept at most MaxIDsPerRequest item IDs per call.
package api

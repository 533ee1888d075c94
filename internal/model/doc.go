// Package model defines shared data types used across marketledger.
//
// Conventions:
//   - Prices: integer gil per unit
//   - Timestamps: time.Time in UTC
//   - IDs: uint32 for item and world IDs, uint64 for entity (character) IDs
package model

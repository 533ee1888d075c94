package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxIDsPerRequest is the backend's cap on item IDs per batch request.
// Callers with larger lists must chunk.
const MaxIDsPerRequest = 100

// GetCurrentPrices fetches current listings and recent sales for up to
// MaxIDsPerRequest items in one scope (world, data center, or region name).
// listingLimit caps the listings returned per item; 0 means backend default.
func (c *Client) GetCurrentPrices(ctx context.Context, scope string, itemIDs []uint32, listingLimit int) (map[uint32]ItemPriceData, error) {
	if len(itemIDs) == 0 {
		return map[uint32]ItemPriceData{}, nil
	}
	if len(itemIDs) > MaxIDsPerRequest {
		return nil, fmt.Errorf("too many item ids: %d > %d", len(itemIDs), MaxIDsPerRequest)
	}

	query := url.Values{}
	if listingLimit > 0 {
		query.Set("listings", strconv.Itoa(listingLimit))
	}

	path := "/" + url.PathEscape(scope) + "/" + joinIDs(itemIDs)
	body, err := c.doWithRetry(ctx, "GET", path, query)
	if err != nil {
		return nil, fmt.Errorf("get current prices: %w", err)
	}

	// The backend returns a bare item object for single-item queries and an
	// {items: {...}} envelope for multi-item queries.
	if len(itemIDs) == 1 {
		var item ItemPriceData
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("unmarshal price response: %w", err)
		}
		if item.ItemID == 0 {
			item.ItemID = itemIDs[0]
		}
		return map[uint32]ItemPriceData{item.ItemID: item}, nil
	}

	var resp multiItemPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal price response: %w", err)
	}

	out := make(map[uint32]ItemPriceData, len(resp.Items))
	for key, item := range resp.Items {
		if item.ItemID == 0 {
			id, err := strconv.ParseUint(key, 10, 32)
			if err != nil {
				c.logger.Warn("unparseable item key in price response", "key", key)
				continue
			}
			item.ItemID = uint32(id)
		}
		out[item.ItemID] = item
	}
	return out, nil
}

// joinIDs renders item IDs as a comma-separated path segment.
func joinIDs(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

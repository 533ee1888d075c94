package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// GetSaleHistory fetches recent sale history for up to MaxIDsPerRequest
// items in one scope. maxEntries caps entries per item; 0 means backend
// default.
func (c *Client) GetSaleHistory(ctx context.Context, scope string, itemIDs []uint32, maxEntries int) (map[uint32]ItemHistory, error) {
	if len(itemIDs) == 0 {
		return map[uint32]ItemHistory{}, nil
	}
	if len(itemIDs) > MaxIDsPerRequest {
		return nil, fmt.Errorf("too many item ids: %d > %d", len(itemIDs), MaxIDsPerRequest)
	}

	query := url.Values{}
	if maxEntries > 0 {
		query.Set("entriesToReturn", strconv.Itoa(maxEntries))
	}

	path := "/history/" + url.PathEscape(scope) + "/" + joinIDs(itemIDs)
	body, err := c.doWithRetry(ctx, "GET", path, query)
	if err != nil {
		return nil, fmt.Errorf("get sale history: %w", err)
	}

	if len(itemIDs) == 1 {
		var item ItemHistory
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("unmarshal history response: %w", err)
		}
		if item.ItemID == 0 {
			item.ItemID = itemIDs[0]
		}
		return map[uint32]ItemHistory{item.ItemID: item}, nil
	}

	var resp multiItemHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal history response: %w", err)
	}

	out := make(map[uint32]ItemHistory, len(resp.Items))
	for key, item := range resp.Items {
		if item.ItemID == 0 {
			id, err := strconv.ParseUint(key, 10, 32)
			if err != nil {
				c.logger.Warn("unparseable item key in history response", "key", key)
				continue
			}
			item.ItemID = uint32(id)
		}
		out[item.ItemID] = item
	}
	return out, nil
}

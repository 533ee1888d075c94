package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetDataCenters fetches the data center list.
func (c *Client) GetDataCenters(ctx context.Context) ([]APIDataCenter, error) {
	var dcs []APIDataCenter
	if err := c.get(ctx, "/data-centers", nil, &dcs); err != nil {
		return nil, fmt.Errorf("get data centers: %w", err)
	}
	return dcs, nil
}

// GetWorlds fetches the world list.
func (c *Client) GetWorlds(ctx context.Context) ([]APIWorld, error) {
	var worlds []APIWorld
	if err := c.get(ctx, "/worlds", nil, &worlds); err != nil {
		return nil, fmt.Errorf("get worlds: %w", err)
	}
	return worlds, nil
}

// GetTaxRates fetches per-city market tax rates for a world.
func (c *Client) GetTaxRates(ctx context.Context, worldID uint32) (*TaxRates, error) {
	query := url.Values{}
	query.Set("world", strconv.FormatUint(uint64(worldID), 10))

	var rates TaxRates
	if err := c.get(ctx, "/tax-rates", query, &rates); err != nil {
		return nil, fmt.Errorf("get tax rates: %w", err)
	}
	return &rates, nil
}

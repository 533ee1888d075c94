package api

import (
	"time"

	"github.com/solren/marketledger/internal/model"
	"github.com/solren/marketledger/internal/topology"
)

// ToTopology converts API data center and world payloads into topology
// inputs.
func ToTopology(dcs []APIDataCenter, worlds []APIWorld) ([]topology.DataCenter, []topology.World) {
	outDCs := make([]topology.DataCenter, len(dcs))
	for i, dc := range dcs {
		outDCs[i] = topology.DataCenter{
			Name:   dc.Name,
			Region: dc.Region,
			Worlds: dc.Worlds,
		}
	}

	outWorlds := make([]topology.World, len(worlds))
	for i, w := range worlds {
		outWorlds[i] = topology.World{
			ID:   w.ID,
			Name: w.Name,
		}
	}
	return outDCs, outWorlds
}

// ToListing converts an API listing to the shared model. worldID is the
// fallback for single-world scope responses that omit per-listing world IDs.
func ToListing(itemID uint32, worldID uint32, l APIListing) model.Listing {
	if l.WorldID != 0 {
		worldID = l.WorldID
	}
	return model.Listing{
		ItemID:       itemID,
		WorldID:      worldID,
		PricePerUnit: l.PricePerUnit,
		Quantity:     l.Quantity,
		HQ:           l.HQ,
		RetainerName: l.RetainerName,
		SellerID:     l.SellerID,
	}
}

// ToSale converts an API sale to the shared model.
func ToSale(itemID uint32, worldID uint32, s APISale) model.Sale {
	if s.WorldID != 0 {
		worldID = s.WorldID
	}
	return model.Sale{
		ItemID:       itemID,
		WorldID:      worldID,
		PricePerUnit: s.PricePerUnit,
		Quantity:     s.Quantity,
		HQ:           s.HQ,
		BuyerName:    s.BuyerName,
		Timestamp:    time.Unix(s.Timestamp, 0).UTC(),
	}
}

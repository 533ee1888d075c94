package api

// APIDataCenter is a data center from GET /data-centers.
type APIDataCenter struct {
	Name   string   `json:"name"`
	Region string   `json:"region"`
	Worlds []uint32 `json:"worlds"`
}

// APIWorld is a world from GET /worlds.
type APIWorld struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// APIListing is one active listing in a price response.
type APIListing struct {
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int64  `json:"quantity"`
	HQ           bool   `json:"hq"`
	WorldID      uint32 `json:"worldID"` // Present on data-center/region scope queries
	RetainerName string `json:"retainerName"`
	SellerID     string `json:"sellerID"`
}

// APISale is one completed sale in a price or history response.
type APISale struct {
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int64  `json:"quantity"`
	HQ           bool   `json:"hq"`
	WorldID      uint32 `json:"worldID"`
	BuyerName    string `json:"buyerName"`
	Timestamp    int64  `json:"timestamp"` // Unix seconds
}

// ItemPriceData is the per-item payload of a current-price query.
type ItemPriceData struct {
	ItemID         uint32       `json:"itemID"`
	WorldID        uint32       `json:"worldID"`        // Zero when queried at data-center/region scope
	LastUploadTime int64        `json:"lastUploadTime"` // Unix milliseconds
	Listings       []APIListing `json:"listings"`
	RecentHistory  []APISale    `json:"recentHistory"`
}

// multiItemPriceResponse is the envelope returned for multi-item queries.
type multiItemPriceResponse struct {
	Items      map[string]ItemPriceData `json:"items"`
	Unresolved []uint32                 `json:"unresolvedItems"`
}

// ItemHistory is the per-item payload of a sale-history query.
type ItemHistory struct {
	ItemID  uint32    `json:"itemID"`
	Entries []APISale `json:"entries"`
}

// multiItemHistoryResponse is the envelope returned for multi-item history queries.
type multiItemHistoryResponse struct {
	Items      map[string]ItemHistory `json:"items"`
	Unresolved []uint32               `json:"unresolvedItems"`
}

// TaxRates holds per-city market tax percentages from GET /tax-rates.
type TaxRates struct {
	LimsaLominsa int `json:"Limsa Lominsa"`
	Gridania     int `json:"Gridania"`
	Uldah        int `json:"Ul'dah"`
	Ishgard      int `json:"Ishgard"`
	Kugane       int `json:"Kugane"`
	Crystarium   int `json:"Crystarium"`
	OldSharlayan int `json:"Old Sharlayan"`
	Tuliyollal   int `json:"Tuliyollal"`
}

// Lowest returns the cheapest city tax percentage.
func (t TaxRates) Lowest() int {
	lowest := t.LimsaLominsa
	for _, pct := range []int{t.Gridania, t.Uldah, t.Ishgard, t.Kugane, t.Crystarium, t.OldSharlayan, t.Tuliyollal} {
		if pct < lowest {
			lowest = pct
		}
	}
	return lowest
}

package api

import (
	"testing"
	"time"
)

func TestToListingWorldFallback(t *testing.T) {
	tests := []struct {
		name      string
		fallback  uint32
		wire      APIListing
		wantWorld uint32
	}{
		{
			name:      "listing carries its own world",
			fallback:  73,
			wire:      APIListing{PricePerUnit: 100, WorldID: 66},
			wantWorld: 66,
		},
		{
			name:      "single-world response omits per-listing world",
			fallback:  73,
			wire:      APIListing{PricePerUnit: 100},
			wantWorld: 73,
		},
		{
			name:      "scope response without any world attribution",
			fallback:  0,
			wire:      APIListing{PricePerUnit: 100},
			wantWorld: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToListing(5057, tt.fallback, tt.wire)
			if got.WorldID != tt.wantWorld {
				t.Errorf("WorldID = %d, want %d", got.WorldID, tt.wantWorld)
			}
			if got.ItemID != 5057 {
				t.Errorf("ItemID = %d, want 5057", got.ItemID)
			}
		})
	}
}

func TestToListingFields(t *testing.T) {
	got := ToListing(5057, 73, APIListing{
		PricePerUnit: 250,
		Quantity:     3,
		HQ:           true,
		RetainerName: "Moogle",
		SellerID:     "abc123",
	})
	if got.PricePerUnit != 250 || got.Quantity != 3 || !got.HQ {
		t.Errorf("ToListing = %+v, want price 250 qty 3 HQ", got)
	}
	if got.RetainerName != "Moogle" || got.SellerID != "abc123" {
		t.Errorf("ToListing = %+v, want retainer/seller carried over", got)
	}
}

func TestToSale(t *testing.T) {
	got := ToSale(5057, 73, APISale{
		PricePerUnit: 95,
		Quantity:     2,
		HQ:           false,
		BuyerName:    "Alphinaud",
		Timestamp:    1700000000,
	})
	if got.WorldID != 73 {
		t.Errorf("WorldID = %d, want fallback 73", got.WorldID)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !got.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want)
	}
	if got.PricePerUnit != 95 || got.Quantity != 2 || got.BuyerName != "Alphinaud" {
		t.Errorf("ToSale = %+v, want price 95 qty 2 buyer Alphinaud", got)
	}

	got = ToSale(5057, 73, APISale{PricePerUnit: 95, WorldID: 66})
	if got.WorldID != 66 {
		t.Errorf("WorldID = %d, want sale's own world 66", got.WorldID)
	}
}

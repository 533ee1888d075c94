package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solren/marketledger/internal/model"
)

// ParseEntries decodes one raw feed event into display entries, one per
// payload element. A malformed envelope or payload returns an error and the
// whole event is discarded; there is no partial decode.
func ParseEntries(data []byte, receivedAt time.Time) ([]model.PriceFeedEntry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	kind := model.FeedEventKind(env.Event)
	switch kind {
	case model.EventListingsAdd, model.EventListingsRemove:
		var listings []wireListing
		if err := json.Unmarshal(env.Payload, &listings); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		entries := make([]model.PriceFeedEntry, 0, len(listings))
		for _, l := range listings {
			entries = append(entries, model.PriceFeedEntry{
				ID:           uuid.New(),
				Kind:         kind,
				ItemID:       env.Item,
				WorldID:      env.World,
				PricePerUnit: l.PricePerUnit,
				Quantity:     l.Quantity,
				HQ:           l.HQ,
				ReceivedAt:   receivedAt,
			})
		}
		return entries, nil

	case model.EventSalesAdd:
		var sales []wireSale
		if err := json.Unmarshal(env.Payload, &sales); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		entries := make([]model.PriceFeedEntry, 0, len(sales))
		for _, s := range sales {
			entries = append(entries, model.PriceFeedEntry{
				ID:           uuid.New(),
				Kind:         kind,
				ItemID:       env.Item,
				WorldID:      env.World,
				PricePerUnit: s.PricePerUnit,
				Quantity:     s.Quantity,
				HQ:           s.HQ,
				ReceivedAt:   receivedAt,
			})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("unknown feed event %q", env.Event)
	}
}

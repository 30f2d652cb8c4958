// Package market fetches regional order books from ESI and reduces them to a hub quote.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nexis84/Eve-Market-Bot/esi"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// PLEXTypeID is traded on the global PLEX market, not in regional order books.
const PLEXTypeID int64 = 44992

var (
	// ErrSpecialItem is returned for items that have no regional market.
	ErrSpecialItem = errors.New("market: item is not traded on regional markets")
	// ErrUnavailable means ESI stayed unavailable after all retries.
	ErrUnavailable = esi.ErrUnavailable
)

// HubConfig identifies a trade hub by region and solar system.
type HubConfig struct {
	Name     string
	RegionID int64
	SystemID int64
}

// Hubs are the built-in trade hubs keyed by lowercase name.
var Hubs = map[string]HubConfig{
	"jita":    {Name: "Jita", RegionID: 10000002, SystemID: 30000142},
	"amarr":   {Name: "Amarr", RegionID: 10000043, SystemID: 30002187},
	"dodixie": {Name: "Dodixie", RegionID: 10000032, SystemID: 30002659},
	"rens":    {Name: "Rens", RegionID: 10000030, SystemID: 30002510},
	"hek":     {Name: "Hek", RegionID: 10000042, SystemID: 30002053},
}

// LookupHub returns the hub for a case-insensitive name.
func LookupHub(name string) (HubConfig, error) {
	h, ok := Hubs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return HubConfig{}, fmt.Errorf("unknown market hub %q (known: %s)", name, strings.Join(HubNames(), ", "))
	}
	return h, nil
}

// HubNames returns the built-in hub keys in sorted order.
func HubNames() []string {
	names := make([]string, 0, len(Hubs))
	for k := range Hubs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Quote is the best price on each side of a hub's book. A nil price means no orders.
type Quote struct {
	Hub        HubConfig
	LowestSell *float64
	HighestBuy *float64
	SellVolume int64
	BuyVolume  int64
}

// OrderSource lists every order of one type in one region.
type OrderSource interface {
	MarketOrders(ctx context.Context, regionID, typeID int64, orderType string) ([]esi.Order, error)
}

// Fetcher turns type IDs into quotes.
type Fetcher struct {
	Source OrderSource
}

// NewFetcher returns a Fetcher reading from src.
func NewFetcher(src OrderSource) *Fetcher {
	return &Fetcher{Source: src}
}

// FetchOrders fetches and reduces the order book for typeID at hub.
func (f *Fetcher) FetchOrders(ctx context.Context, typeID int64, hub HubConfig) (Quote, error) {
	if typeID == PLEXTypeID {
		return Quote{Hub: hub}, ErrSpecialItem
	}
	ctx, span := telemetry.StartSpan(ctx, "market", "fetch-orders", telemetry.TypeIDAttr(typeID))
	defer span.End()

	orders, err := f.Source.MarketOrders(ctx, hub.RegionID, typeID, "all")
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, esi.ErrUnavailable) {
			return Quote{Hub: hub}, ErrUnavailable
		}
		return Quote{Hub: hub}, fmt.Errorf("market orders for type %d in %s: %w", typeID, hub.Name, err)
	}
	q := Reduce(orders, hub.SystemID)
	q.Hub = hub
	telemetry.LoggerWithCorr(ctx).Debug("market quote",
		slog.String("component", "market"),
		slog.Int64("type_id", typeID),
		slog.String("hub", hub.Name),
		slog.Int("orders", len(orders)))
	telemetry.SetSpanSuccess(span)
	return q, nil
}

// Reduce keeps orders in systemID and returns the lowest sell, highest buy and the
// remaining volume on each side.
func Reduce(orders []esi.Order, systemID int64) Quote {
	var q Quote
	for _, o := range orders {
		if o.SystemID != systemID {
			continue
		}
		price := o.Price
		if o.IsBuyOrder {
			q.BuyVolume += o.VolumeRemain
			if q.HighestBuy == nil || price > *q.HighestBuy {
				q.HighestBuy = &price
			}
			continue
		}
		q.SellVolume += o.VolumeRemain
		if q.LowestSell == nil || price < *q.LowestSell {
			q.LowestSell = &price
		}
	}
	return q
}

package esi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// maxOrderPages bounds pagination for a single type in a single region.
const maxOrderPages = 20

// Name is one entry of the /universe/names/ response.
type Name struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Order is one outstanding market order.
type Order struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int64   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int64   `json:"system_id"`
	Price        float64 `json:"price"`
	VolumeRemain int64   `json:"volume_remain"`
	IsBuyOrder   bool    `json:"is_buy_order"`
}

// Search looks up inventory type IDs by name. strict requires an exact name match.
func (c *Client) Search(ctx context.Context, term string, strict bool) ([]int64, error) {
	if term == "" {
		return nil, fmt.Errorf("search term empty")
	}
	endpoint := "search_fuzzy"
	if strict {
		endpoint = "search_strict"
	}
	q := url.Values{}
	q.Set("categories", "inventory_type")
	q.Set("datasource", "tranquility")
	q.Set("language", "en")
	q.Set("search", term)
	q.Set("strict", strconv.FormatBool(strict))

	var body struct {
		InventoryType []int64 `json:"inventory_type"`
	}
	_, err := c.do(ctx, request{
		endpoint: endpoint,
		build: func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/search/?"+q.Encode(), nil)
		},
		out: &body,
	})
	if err != nil {
		return nil, err
	}
	return body.InventoryType, nil
}

// Names resolves IDs to names in one POST.
func (c *Client) Names(ctx context.Context, ids []int64) ([]Name, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	var out []Name
	_, err = c.do(ctx, request{
		endpoint: "universe_names",
		build: func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/universe/names/?datasource=tranquility", bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/json")
			return r, nil
		},
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarketOrders returns all orders of orderType ("buy", "sell" or "all") for typeID in
// regionID, following the X-Pages header.
func (c *Client) MarketOrders(ctx context.Context, regionID, typeID int64, orderType string) ([]Order, error) {
	if typeID <= 0 || regionID <= 0 {
		return nil, fmt.Errorf("invalid region %d or type %d", regionID, typeID)
	}
	if orderType == "" {
		orderType = "all"
	}
	var all []Order
	for page, pages := 1, 1; page <= pages && page <= maxOrderPages; page++ {
		q := url.Values{}
		q.Set("datasource", "tranquility")
		q.Set("order_type", orderType)
		q.Set("type_id", strconv.FormatInt(typeID, 10))
		q.Set("page", strconv.Itoa(page))
		u := fmt.Sprintf("%s/markets/%d/orders/?%s", c.BaseURL, regionID, q.Encode())

		var orders []Order
		hdr, err := c.do(ctx, request{
			endpoint: "market_orders",
			build: func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			},
			out: &orders,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
		if n, err := strconv.Atoi(hdr.Get("X-Pages")); err == nil && n > pages {
			pages = n
		}
	}
	return all, nil
}

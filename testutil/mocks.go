package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// MockESIServer creates a test server that mocks ESI and fuzzwork responses keyed by path.
type MockESIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
	requests atomic.Int64
}

// NewMockESIServer creates a new mock upstream server. Unregistered paths return 404.
func NewMockESIServer(t *testing.T) *MockESIServer {
	t.Helper()
	m := &MockESIServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns the number of requests served so far.
func (m *MockESIServer) Requests() int { return int(m.requests.Load()) }

// MockSearch answers /search/ with strictIDs when strict=true and fuzzyIDs otherwise.
func (m *MockESIServer) MockSearch(strictIDs, fuzzyIDs []int64) {
	m.Handlers["/search/"] = func(w http.ResponseWriter, r *http.Request) {
		ids := fuzzyIDs
		if r.URL.Query().Get("strict") == "true" {
			ids = strictIDs
		}
		body := map[string]interface{}{}
		if len(ids) > 0 {
			body["inventory_type"] = ids
		}
		writeJSON(w, body)
	}
}

// MockNames answers POST /universe/names/ from the given id to name table.
func (m *MockESIServer) MockNames(names map[int64]string) {
	m.Handlers["/universe/names/"] = func(w http.ResponseWriter, r *http.Request) {
		var ids []int64
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := []map[string]interface{}{}
		for _, id := range ids {
			if n, ok := names[id]; ok {
				out = append(out, map[string]interface{}{"id": id, "name": n, "category": "inventory_type"})
			}
		}
		writeJSON(w, out)
	}
}

// MockOrders answers /markets/{region}/orders/ with orders, ignoring the type filter.
func (m *MockESIServer) MockOrders(regionID int64, orders []map[string]interface{}) {
	m.Handlers[fmt.Sprintf("/markets/%d/orders/", regionID)] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pages", strconv.Itoa(1))
		writeJSON(w, orders)
	}
}

// MockStatusSequence answers path with each status in turn and with 200 afterwards.
// A 200 response writes body.
func (m *MockESIServer) MockStatusSequence(path string, statuses []int, body interface{}) {
	var n atomic.Int64
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		status := http.StatusOK
		if i < len(statuses) {
			status = statuses[i]
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, body)
	}
}

// MockFuzzwork answers /api/typeid.php with a raw body.
func (m *MockESIServer) MockFuzzwork(raw string) {
	m.Handlers["/api/typeid.php"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw)) //nolint:errcheck // test mock response
	}
}

// Order builds a mock ESI order object.
func Order(price float64, isBuy bool, systemID int64, volume int64) map[string]interface{} {
	return map[string]interface{}{
		"order_id":      int64(price * 1000),
		"type_id":       34,
		"location_id":   60003760,
		"system_id":     systemID,
		"price":         price,
		"volume_remain": volume,
		"is_buy_order":  isBuy,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

package fuzzwork

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/nexis84/Eve-Market-Bot/testutil"
)

func TestParseMatch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind MatchKind
		wantIDs  []int64
		wantErr  bool
	}{
		{name: "bare number", body: "34", wantKind: MatchSingle, wantIDs: []int64{34}},
		{name: "quoted number", body: `"34"`, wantKind: MatchSingle, wantIDs: []int64{34}},
		{name: "object", body: `{"typeID":34,"typeName":"Tritanium"}`, wantKind: MatchSingle, wantIDs: []int64{34}},
		{name: "object with string id", body: `{"typeID":"1230","typeName":"Veldspar"}`, wantKind: MatchSingle, wantIDs: []int64{1230}},
		{name: "unknown name", body: `{"typeID":0,"typeName":"bad item"}`, wantKind: MatchEmpty},
		{name: "array", body: `[{"typeID":34,"typeName":"Tritanium"},{"typeID":35,"typeName":"Pyerite"}]`, wantKind: MatchMultiple, wantIDs: []int64{34, 35}},
		{name: "array with duplicates", body: `[{"typeID":34},{"typeID":34}]`, wantKind: MatchSingle, wantIDs: []int64{34}},
		{name: "array of numbers", body: `[34, 0, 35]`, wantKind: MatchMultiple, wantIDs: []int64{34, 35}},
		{name: "empty array", body: `[]`, wantKind: MatchEmpty},
		{name: "empty body", body: "  \n", wantKind: MatchEmpty},
		{name: "null", body: "null", wantKind: MatchEmpty},
		{name: "html error page", body: "<html>oops</html>", wantErr: true},
		{name: "broken json", body: `{"typeID":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMatch([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMatch(%q) error = nil, want error", tt.body)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMatch(%q) unexpected error = %v", tt.body, err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if len(tt.wantIDs) > 0 && !reflect.DeepEqual(got.IDs, tt.wantIDs) {
				t.Errorf("IDs = %v, want %v", got.IDs, tt.wantIDs)
			}
		})
	}
}

func TestSingle(t *testing.T) {
	if _, ok := (ParsedMatch{Kind: MatchMultiple, IDs: []int64{1, 2}}).Single(); ok {
		t.Error("Single() on multiple match returned ok")
	}
	if id, ok := (ParsedMatch{Kind: MatchSingle, IDs: []int64{7}}).Single(); !ok || id != 7 {
		t.Errorf("Single() = %d, %v", id, ok)
	}
}

func TestClientLookup(t *testing.T) {
	m := testutil.NewMockESIServer(t)
	var typename string
	m.Handlers["/api/typeid.php"] = func(w http.ResponseWriter, r *http.Request) {
		typename = r.URL.Query().Get("typename")
		_, _ = w.Write([]byte(`{"typeID":16274,"typeName":"Helium Isotopes"}`))
	}
	c := &Client{BaseURL: m.URL}
	got, err := c.Lookup(context.Background(), "helium isotopes")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if id, ok := got.Single(); !ok || id != 16274 {
		t.Errorf("Lookup() = %+v, want single 16274", got)
	}
	if typename != "helium isotopes" {
		t.Errorf("typename = %q", typename)
	}
}

func TestClientLookupHTTPError(t *testing.T) {
	m := testutil.NewMockESIServer(t)
	m.Handlers["/api/typeid.php"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	c := &Client{BaseURL: m.URL}
	if _, err := c.Lookup(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 502")
	}
}

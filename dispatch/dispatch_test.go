package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nexis84/Eve-Market-Bot/market"
	"github.com/nexis84/Eve-Market-Bot/resolver"
)

type stubResolver struct {
	out   resolver.Outcome
	err   error
	calls []string
}

func (s *stubResolver) Resolve(_ context.Context, name string) (resolver.Outcome, error) {
	s.calls = append(s.calls, name)
	return s.out, s.err
}

type stubQuoter struct {
	quote market.Quote
	err   error
	ids   []int64
}

func (s *stubQuoter) FetchOrders(_ context.Context, id int64, hub market.HubConfig) (market.Quote, error) {
	s.ids = append(s.ids, id)
	s.quote.Hub = hub
	return s.quote, s.err
}

func price(v float64) *float64 { return &v }

func names(m map[int64]string) NameFunc {
	return func(id int64) (string, bool) {
		n, ok := m[id]
		return n, ok
	}
}

func newTestDispatcher(t *testing.T, r Resolver, q Quoter) *Dispatcher {
	t.Helper()
	sites, err := DefaultSites()
	if err != nil {
		t.Fatalf("DefaultSites() error = %v", err)
	}
	return New(r, q, market.Hubs["jita"], names(map[int64]string{34: "Tritanium", 90041: "Dragonite Ore"}), sites)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		cmd     string
		arg     string
		wantCmd bool
	}{
		{"!market Tritanium", "market", "Tritanium", true},
		{"  !MARKET   dragonite    ore  x50 ", "market", "dragonite ore x50", true},
		{"!ping", "ping", "", true},
		{"hello !market", "", "", false},
		{"!", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		cmd, arg, ok := ParseCommand(tt.line)
		if ok != tt.wantCmd || cmd != tt.cmd || arg != tt.arg {
			t.Errorf("ParseCommand(%q) = %q, %q, %v; want %q, %q, %v", tt.line, cmd, arg, ok, tt.cmd, tt.arg, tt.wantCmd)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		arg  string
		item string
		qty  int64
	}{
		{"dragonite ore x50", "dragonite ore", 50},
		{"Tritanium X1000", "Tritanium", 1000},
		{"Tritanium", "Tritanium", 1},
		{"Tritanium x0", "Tritanium x0", 1},
		{"Tritanium x-2", "Tritanium x-2", 1},
		{"Tritanium x+2", "Tritanium x+2", 1},
		{"Tritanium xl", "Tritanium xl", 1},
		{"x50", "x50", 1},
		{"", "", 1},
	}
	for _, tt := range tests {
		item, qty := ParseQuantity(tt.arg)
		if item != tt.item || qty != tt.qty {
			t.Errorf("ParseQuantity(%q) = %q, %d; want %q, %d", tt.arg, item, qty, tt.item, tt.qty)
		}
	}
}

func TestMarketEndToEnd(t *testing.T) {
	r := &stubResolver{out: resolver.Outcome{Kind: resolver.Resolved, ID: 34}}
	q := &stubQuoter{quote: market.Quote{LowestSell: price(4.21), HighestBuy: price(4.05), SellVolume: 1000, BuyVolume: 500}}
	d := newTestDispatcher(t, r, q)

	reply, ok := d.Handle(context.Background(), Message{Channel: "ne_x_is", User: "pilot", Text: "!market Tritanium"})
	if !ok {
		t.Fatal("Handle() ok = false")
	}
	want := "Tritanium in Jita: Sell 4.21 ISK (vol 1,000) | Buy 4.05 ISK (vol 500)"
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
	if strings.Contains(reply, errGlyph) {
		t.Error("successful reply contains the error glyph")
	}
	if len(q.ids) != 1 || q.ids[0] != 34 {
		t.Errorf("quoter ids = %v, want [34]", q.ids)
	}
}

func TestMarketQuantityMultipliesPrice(t *testing.T) {
	r := &stubResolver{out: resolver.Outcome{Kind: resolver.Resolved, ID: 90041}}
	q := &stubQuoter{quote: market.Quote{LowestSell: price(1234.5), SellVolume: 20}}
	d := newTestDispatcher(t, r, q)

	reply, _ := d.Handle(context.Background(), Message{Text: "!market dragonite ore x50"})
	if len(r.calls) != 1 || r.calls[0] != "dragonite ore" {
		t.Errorf("resolver calls = %v, want [dragonite ore]", r.calls)
	}
	want := fmt.Sprintf("50 x Dragonite Ore in Jita: Sell %s ISK (vol 20) | Buy Unavailable", FormatISK(1234.5*50))
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
	if !strings.Contains(reply, "61,725.00") {
		t.Errorf("reply %q does not contain the multiplied price", reply)
	}
}

func TestMarketFailureReplies(t *testing.T) {
	tests := []struct {
		name    string
		outcome resolver.Outcome
		resErr  error
		quoteEr error
		want    string
	}{
		{
			name:    "not found with suggestions",
			outcome: resolver.Outcome{Kind: resolver.NotFound, Suggestions: []string{"Tritanium", "Pyerite"}},
			want:    `❌ No item found for "foo". Did you mean: Tritanium, Pyerite? ❌`,
		},
		{
			name:    "not found without suggestions",
			outcome: resolver.Outcome{Kind: resolver.NotFound},
			want:    `❌ No item found for "foo". ❌`,
		},
		{
			name:    "ambiguous",
			outcome: resolver.Outcome{Kind: resolver.Ambiguous, Candidates: []int64{1, 2}},
			want:    `❌ "foo" matches several items, please be more specific. ❌`,
		},
		{
			name:    "unavailable",
			outcome: resolver.Outcome{Kind: resolver.Resolved, ID: 7},
			quoteEr: market.ErrUnavailable,
			want:    `❌ Market data for "foo" is temporarily unavailable, try again shortly. ❌`,
		},
		{
			name:    "other upstream error",
			outcome: resolver.Outcome{Kind: resolver.Resolved, ID: 7},
			quoteEr: errors.New("esi market_orders: status 500"),
			want:    `❌ Error fetching market data for "foo". ❌`,
		},
		{
			name:   "resolution aborted",
			resErr: context.Canceled,
			want:   `❌ Error fetching market data for "foo". ❌`,
		},
		{
			name:    "plex",
			outcome: resolver.Outcome{Kind: resolver.Resolved, ID: market.PLEXTypeID},
			quoteEr: market.ErrSpecialItem,
			want:    plexReply,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, &stubResolver{out: tt.outcome, err: tt.resErr}, &stubQuoter{err: tt.quoteEr})
			reply, ok := d.Handle(context.Background(), Message{Text: "!market foo"})
			if !ok {
				t.Fatal("Handle() ok = false")
			}
			if reply != tt.want {
				t.Errorf("reply = %q, want %q", reply, tt.want)
			}
			if strings.Contains(reply, "500") || strings.Contains(reply, "canceled") {
				t.Errorf("reply leaks internal detail: %q", reply)
			}
		})
	}
}

func TestUsageHintsSkipDownstream(t *testing.T) {
	r := &stubResolver{}
	q := &stubQuoter{}
	d := newTestDispatcher(t, r, q)
	for _, line := range []string{"!market", "!market   ", "!info", "!link", "!site"} {
		reply, ok := d.Handle(context.Background(), Message{Text: line})
		if !ok || !strings.HasPrefix(reply, "Please specify") {
			t.Errorf("Handle(%q) = %q, %v; want usage hint", line, reply, ok)
		}
	}
	if len(r.calls) != 0 || len(q.ids) != 0 {
		t.Errorf("usage hints reached downstream: resolver=%v quoter=%v", r.calls, q.ids)
	}
}

func TestIgnoredLines(t *testing.T) {
	d := newTestDispatcher(t, &stubResolver{}, &stubQuoter{})
	for _, line := range []string{"hello chat", "!unknowncommand foo", "market Tritanium", ""} {
		if reply, ok := d.Handle(context.Background(), Message{Text: line}); ok {
			t.Errorf("Handle(%q) replied %q, want ignored", line, reply)
		}
	}
}

func TestInfoAndLink(t *testing.T) {
	r := &stubResolver{out: resolver.Outcome{Kind: resolver.Resolved, ID: 34}}
	d := newTestDispatcher(t, r, &stubQuoter{})
	for _, line := range []string{"!info tritanium", "!LINK tritanium"} {
		reply, _ := d.Handle(context.Background(), Message{Text: line})
		if want := "Tritanium: https://everef.net/type/34"; reply != want {
			t.Errorf("Handle(%q) = %q, want %q", line, reply, want)
		}
	}
}

func TestPingAndHelp(t *testing.T) {
	d := newTestDispatcher(t, &stubResolver{}, &stubQuoter{})
	if reply, _ := d.Handle(context.Background(), Message{Text: "!PING"}); reply != "pong" {
		t.Errorf("ping reply = %q", reply)
	}
	if reply, _ := d.Handle(context.Background(), Message{Text: "!help"}); !strings.Contains(reply, "!market") {
		t.Errorf("help reply = %q", reply)
	}
}

func TestSiteLookup(t *testing.T) {
	d := newTestDispatcher(t, &stubResolver{}, &stubQuoter{})
	tests := []struct {
		line   string
		prefix string
	}{
		{"!site angel hideaway", "Angel Hideaway (combat anomaly, Angel Cartel, high-sec)"},
		{"!site ruined", "Ruined Angel Monument Site (relic site"},
		{"!site angel", `❌ "angel" matches several sites: Angel Haven, Angel Hideaway. ❌`},
		{"!site nowhere", `❌ No site found for "nowhere". ❌`},
	}
	for _, tt := range tests {
		reply, ok := d.Handle(context.Background(), Message{Text: tt.line})
		if !ok || !strings.HasPrefix(reply, tt.prefix) {
			t.Errorf("Handle(%q) = %q, want prefix %q", tt.line, reply, tt.prefix)
		}
	}
}

func TestParseSitesRejectsDuplicates(t *testing.T) {
	_, err := ParseSites([]byte("sites:\n  - name: A\n  - name: a\n"))
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := ParseSites([]byte("sites: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatISK(1234567.891); got != "1,234,567.89" {
		t.Errorf("FormatISK = %q", got)
	}
	if got := FormatCount(1000); got != "1,000" {
		t.Errorf("FormatCount = %q", got)
	}
	q := market.Quote{}
	if got := FormatQuote("Tritanium", "Jita", 1, q); got != "Tritanium in Jita: Sell Unavailable | Buy Unavailable" {
		t.Errorf("FormatQuote(empty) = %q", got)
	}
}

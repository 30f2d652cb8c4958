// Package dispatch maps chat lines to bot commands and renders their replies.
//
// Handle is stateless per message. Lines that are not commands, and unknown commands, are
// ignored. Every failure reply is a single line framed by the error glyph; the detail is logged.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nexis84/Eve-Market-Bot/market"
	"github.com/nexis84/Eve-Market-Bot/resolver"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// Resolver turns item names into type IDs.
type Resolver interface {
	Resolve(ctx context.Context, name string) (resolver.Outcome, error)
}

// Quoter fetches a hub quote for a type ID.
type Quoter interface {
	FetchOrders(ctx context.Context, typeID int64, hub market.HubConfig) (market.Quote, error)
}

// NameFunc returns the display name of a type ID.
type NameFunc func(id int64) (string, bool)

// Reference link base for !info.
const everefTypeURL = "https://everef.net/type/"

const (
	marketUsage = "Please specify an item to search for, e.g. !market Tritanium or !market Dragonite Ore x50."
	infoUsage   = "Please specify an item, e.g. !info Tritanium."
	siteUsage   = "Please specify a site name, e.g. !site Angel Hideaway."
	plexReply   = "PLEX is traded on the global PLEX market, not in regional order books. Check the PLEX Vault in game."
	helpReply   = "Commands: !market <item> [xN], !info <item>, !site <name>, !ping"
)

// Result labels for bot_commands_total.
const (
	resultOK          = "ok"
	resultUsage       = "usage"
	resultNotFound    = "not_found"
	resultAmbiguous   = "ambiguous"
	resultUnavailable = "unavailable"
	resultSpecial     = "special"
	resultError       = "error"
)

type handler func(ctx context.Context, arg string) (reply, result string)

// Dispatcher routes commands to the resolver, the market fetcher and static tables.
type Dispatcher struct {
	resolver Resolver
	quoter   Quoter
	hub      market.HubConfig
	names    NameFunc
	sites    *SiteTable

	handlers map[string]handler
	aliases  map[string]string
}

// New returns a dispatcher quoting prices at hub. names and sites may be nil.
func New(res Resolver, q Quoter, hub market.HubConfig, names NameFunc, sites *SiteTable) *Dispatcher {
	d := &Dispatcher{resolver: res, quoter: q, hub: hub, names: names, sites: sites}
	d.handlers = map[string]handler{
		"market": d.handleMarket,
		"info":   d.handleInfo,
		"site":   d.handleSite,
		"ping":   func(context.Context, string) (string, string) { return "pong", resultOK },
		"help":   func(context.Context, string) (string, string) { return helpReply, resultOK },
	}
	d.aliases = map[string]string{"link": "info", "price": "market"}
	return d
}

// Handle processes one chat line. ok is false when the line needs no reply.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (reply string, ok bool) {
	cmd, arg, isCmd := ParseCommand(msg.Text)
	if !isCmd {
		return "", false
	}
	if canonical, alias := d.aliases[cmd]; alias {
		cmd = canonical
	}
	h, known := d.handlers[cmd]
	if !known {
		return "", false
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "dispatch", "command."+cmd,
		telemetry.CommandAttr(cmd), telemetry.ItemAttr(arg))
	defer span.End()

	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "dispatch"),
		slog.String("channel", msg.Channel),
		slog.String("user", msg.User),
		slog.String("command", cmd))
	logger.Info("command received", slog.String("arg", arg))

	reply, result := h(ctx, arg)
	telemetry.IncCommand(cmd, result)
	if result == resultError {
		telemetry.RecordError(span, errors.New("command failed"))
	} else {
		telemetry.SetSpanSuccess(span)
	}
	logger.Debug("command handled", slog.String("result", result))
	return reply, true
}

// lookup resolves item and returns its ID and display name, or the failure reply.
func (d *Dispatcher) lookup(ctx context.Context, item string) (id int64, name, reply, result string) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "dispatch"), slog.String("item", item))
	out, err := d.resolver.Resolve(ctx, item)
	if err != nil {
		logger.Warn("resolution aborted", slog.Any("err", err))
		return 0, "", fetchErrorReply(item), resultError
	}
	switch out.Kind {
	case resolver.Resolved:
		return out.ID, d.displayName(out.ID, item), "", ""
	case resolver.Ambiguous:
		logger.Info("ambiguous item", slog.Any("candidates", out.Candidates), slog.String("source", out.Source))
		return 0, "", ambiguousReply(item), resultAmbiguous
	default:
		return 0, "", notFoundReply(item, out.Suggestions), resultNotFound
	}
}

func (d *Dispatcher) displayName(id int64, fallback string) string {
	if d.names != nil {
		if n, ok := d.names(id); ok {
			return n
		}
	}
	return fallback
}

func (d *Dispatcher) handleMarket(ctx context.Context, arg string) (string, string) {
	item, qty := ParseQuantity(arg)
	if item == "" {
		return marketUsage, resultUsage
	}
	id, name, reply, result := d.lookup(ctx, item)
	if reply != "" {
		return reply, result
	}

	q, err := d.quoter.FetchOrders(ctx, id, d.hub)
	if err != nil {
		logger := telemetry.LoggerWithCorr(ctx).With(
			slog.String("component", "dispatch"),
			slog.String("item", item),
			slog.Int64("type_id", id),
			slog.String("hub", d.hub.Name))
		switch {
		case errors.Is(err, market.ErrSpecialItem):
			return plexReply, resultSpecial
		case errors.Is(err, market.ErrUnavailable):
			logger.Warn("market data unavailable", slog.Any("err", err))
			return unavailableReply(item), resultUnavailable
		default:
			logger.Error("market fetch failed", slog.Any("err", err))
			return fetchErrorReply(item), resultError
		}
	}
	return FormatQuote(name, d.hub.Name, qty, q), resultOK
}

func (d *Dispatcher) handleInfo(ctx context.Context, arg string) (string, string) {
	if arg == "" {
		return infoUsage, resultUsage
	}
	id, name, reply, result := d.lookup(ctx, arg)
	if reply != "" {
		return reply, result
	}
	return fmt.Sprintf("%s: %s%d", name, everefTypeURL, id), resultOK
}

func (d *Dispatcher) handleSite(_ context.Context, arg string) (string, string) {
	if arg == "" {
		return siteUsage, resultUsage
	}
	matches := d.sites.Lookup(arg)
	switch len(matches) {
	case 0:
		return errorf("No site found for %q.", arg), resultNotFound
	case 1:
		return matches[0].String(), resultOK
	default:
		names := make([]string, 0, len(matches))
		for _, s := range matches {
			names = append(names, s.Name)
		}
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return errorf("%q matches several sites: %s.", arg, strings.Join(names, ", ")), resultAmbiguous
	}
}

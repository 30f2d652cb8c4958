// Package resolver turns free-text item names into EVE type IDs.
//
// Resolution runs an ordered cascade: the resolution cache, the static catalog, ESI
// strict search, ESI fuzzy search, then the fuzzwork lookup. The first strategy that
// returns anything other than a miss decides the outcome. A strategy that errors counts
// as a miss. More than one candidate is reported as Ambiguous and never collapsed to one.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// Kind classifies an Outcome.
type Kind int

const (
	// Miss means a strategy had no opinion; the cascade moves on.
	Miss Kind = iota
	Resolved
	Ambiguous
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	case NotFound:
		return "not_found"
	default:
		return "miss"
	}
}

// Source names, also used as metric labels.
const (
	SourceCache    = "cache"
	SourceCatalog  = "catalog"
	SourceStrict   = "esi_strict"
	SourceFuzzy    = "esi_fuzzy"
	SourceFuzzwork = "fuzzwork"
)

// maxCandidates caps Candidates and Suggestions.
const maxCandidates = 5

// Outcome is the result of a resolution. ID is set only for Resolved.
type Outcome struct {
	Kind        Kind
	ID          int64
	Source      string
	Candidates  []int64
	Suggestions []string
}

// Strategy is one stage of the cascade. Lookup receives the normalized query.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, query string) (Outcome, error)
}

// Suggester produces spelling suggestions once every strategy has missed.
type Suggester interface {
	Suggest(ctx context.Context, query string) []string
}

// Resolver owns its cache and runs the cascade.
type Resolver struct {
	cache      Cache
	strategies []Strategy
	suggester  Suggester
}

// New returns a resolver. cache and suggester may be nil.
func New(cache Cache, strategies []Strategy, suggester Suggester) *Resolver {
	if cache == nil {
		cache = noCache{}
	}
	return &Resolver{cache: cache, strategies: strategies, suggester: suggester}
}

// Normalize lowercases, trims and collapses internal whitespace.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Resolve runs the cascade for name. It returns an error only if ctx ends.
func (r *Resolver) Resolve(ctx context.Context, name string) (Outcome, error) {
	q := Normalize(name)
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "resolver"), slog.String("query", q))
	if q == "" {
		return Outcome{Kind: NotFound}, nil
	}

	if id, ok := r.cache.Get(ctx, q); ok {
		telemetry.IncResolution(SourceCache, Resolved.String())
		logger.Debug("resolved from cache", slog.Int64("type_id", id))
		return Outcome{Kind: Resolved, ID: id, Source: SourceCache}, nil
	}

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		o, err := s.Lookup(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			telemetry.IncResolution(s.Name(), "error")
			logger.Warn("resolution source failed", slog.String("source", s.Name()), slog.Any("err", err))
			continue
		}
		if o.Kind == Miss {
			continue
		}
		o.Source = s.Name()
		if len(o.Candidates) > maxCandidates {
			o.Candidates = o.Candidates[:maxCandidates]
		}
		if o.Kind == Resolved && o.Source != SourceCatalog {
			r.cache.Put(ctx, q, o.ID)
		}
		telemetry.IncResolution(o.Source, o.Kind.String())
		logger.Debug("resolution decided", slog.String("source", o.Source), slog.String("outcome", o.Kind.String()), slog.Int64("type_id", o.ID))
		return o, nil
	}

	out := Outcome{Kind: NotFound}
	if r.suggester != nil {
		out.Suggestions = r.suggester.Suggest(ctx, q)
		if len(out.Suggestions) > maxCandidates {
			out.Suggestions = out.Suggestions[:maxCandidates]
		}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	telemetry.IncResolution("none", NotFound.String())
	logger.Info("no item found", slog.Int("suggestions", len(out.Suggestions)))
	return out, nil
}

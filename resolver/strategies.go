package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/nexis84/Eve-Market-Bot/catalog"
	"github.com/nexis84/Eve-Market-Bot/esi"
	"github.com/nexis84/Eve-Market-Bot/fuzzwork"
)

// Searcher is the subset of the ESI client used for name lookups.
type Searcher interface {
	Search(ctx context.Context, term string, strict bool) ([]int64, error)
	Names(ctx context.Context, ids []int64) ([]esi.Name, error)
}

// Matcher is the third-party fuzzy lookup.
type Matcher interface {
	Lookup(ctx context.Context, name string) (fuzzwork.ParsedMatch, error)
}

// Func adapts a function into a Strategy.
func Func(name string, fn func(ctx context.Context, query string) (Outcome, error)) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, query string) (Outcome, error)
}

func (f funcStrategy) Name() string { return f.name }
func (f funcStrategy) Lookup(ctx context.Context, q string) (Outcome, error) {
	return f.fn(ctx, q)
}

// CatalogStrategy matches exact names in the static catalog without any network call.
func CatalogStrategy(c *catalog.Catalog) Strategy {
	return Func(SourceCatalog, func(_ context.Context, q string) (Outcome, error) {
		if id, ok := c.ID(q); ok {
			return Outcome{Kind: Resolved, ID: id}, nil
		}
		return Outcome{}, nil
	})
}

// StrictSearchStrategy accepts exactly one strict ESI search hit.
func StrictSearchStrategy(s Searcher) Strategy {
	return Func(SourceStrict, func(ctx context.Context, q string) (Outcome, error) {
		ids, err := s.Search(ctx, q, true)
		if err != nil {
			return Outcome{}, err
		}
		if len(ids) == 1 {
			return Outcome{Kind: Resolved, ID: ids[0]}, nil
		}
		return Outcome{}, nil
	})
}

// FuzzySearchStrategy accepts one fuzzy ESI hit and reports several as Ambiguous.
func FuzzySearchStrategy(s Searcher) Strategy {
	return Func(SourceFuzzy, func(ctx context.Context, q string) (Outcome, error) {
		ids, err := s.Search(ctx, q, false)
		if err != nil {
			return Outcome{}, err
		}
		switch len(ids) {
		case 0:
			return Outcome{}, nil
		case 1:
			return Outcome{Kind: Resolved, ID: ids[0]}, nil
		default:
			return Outcome{Kind: Ambiguous, Candidates: ids}, nil
		}
	})
}

// FuzzworkStrategy accepts a single fuzzwork match and reports several as Ambiguous.
func FuzzworkStrategy(m Matcher) Strategy {
	return Func(SourceFuzzwork, func(ctx context.Context, q string) (Outcome, error) {
		pm, err := m.Lookup(ctx, q)
		if err != nil {
			return Outcome{}, err
		}
		if id, ok := pm.Single(); ok {
			return Outcome{Kind: Resolved, ID: id}, nil
		}
		if pm.Kind == fuzzwork.MatchMultiple {
			return Outcome{Kind: Ambiguous, Candidates: pm.IDs}, nil
		}
		return Outcome{}, nil
	})
}

// DefaultStrategies returns the standard cascade after the cache. Nil sources are skipped.
func DefaultStrategies(c *catalog.Catalog, s Searcher, m Matcher) []Strategy {
	out := []Strategy{CatalogStrategy(c)}
	if s != nil {
		out = append(out, StrictSearchStrategy(s), FuzzySearchStrategy(s))
	}
	if m != nil {
		out = append(out, FuzzworkStrategy(m))
	}
	return out
}

// NameSuggester offers catalog names containing the query, then fills up with ESI fuzzy
// hits for the longest word of the query. Upstream failures reduce the list silently.
type NameSuggester struct {
	Catalog  *catalog.Catalog
	Searcher Searcher
}

// Suggest implements Suggester.
func (n NameSuggester) Suggest(ctx context.Context, query string) []string {
	out := n.Catalog.Suggest(query, maxCandidates)
	if len(out) >= maxCandidates || n.Searcher == nil {
		return out
	}
	word := longestWord(query)
	if len(word) < 3 {
		return out
	}
	ids, err := n.Searcher.Search(ctx, word, false)
	if err != nil || len(ids) == 0 {
		return out
	}
	if len(ids) > maxCandidates {
		ids = ids[:maxCandidates]
	}
	names, err := n.Searcher.Names(ctx, ids)
	if err != nil {
		return out
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i].Name) < len(names[j].Name) })
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[strings.ToLower(s)] = true
	}
	for _, nm := range names {
		if len(out) >= maxCandidates {
			break
		}
		if key := strings.ToLower(nm.Name); nm.Name != "" && !seen[key] {
			seen[key] = true
			out = append(out, nm.Name)
		}
	}
	return out
}

func longestWord(q string) string {
	var best string
	for _, w := range strings.Fields(q) {
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

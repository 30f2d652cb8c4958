// Package fuzzwork queries the fuzzwork.co.uk type-name lookup, used as the last network
// source when ESI search finds nothing.
//
// The endpoint answers in several shapes depending on the input: a JSON object, a JSON
// array of objects, or occasionally a bare number. ParseMatch folds all of them into a
// ParsedMatch before callers look at the result.
package fuzzwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nexis84/Eve-Market-Bot/ratelimit"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// MatchKind tags a ParsedMatch.
type MatchKind int

const (
	MatchEmpty MatchKind = iota
	MatchSingle
	MatchMultiple
)

func (k MatchKind) String() string {
	switch k {
	case MatchSingle:
		return "single"
	case MatchMultiple:
		return "multiple"
	default:
		return "empty"
	}
}

// ParsedMatch is the normalized lookup result. IDs holds one entry for MatchSingle and
// two or more for MatchMultiple.
type ParsedMatch struct {
	Kind MatchKind
	IDs  []int64
}

// Single returns the ID of a single match.
func (p ParsedMatch) Single() (int64, bool) {
	if p.Kind != MatchSingle {
		return 0, false
	}
	return p.IDs[0], true
}

// ParseMatch normalizes every observed response shape. IDs <= 0 (fuzzwork reports
// unknown names as typeID 0) are dropped and duplicates collapsed.
func ParseMatch(body []byte) (ParsedMatch, error) {
	ids, err := collectIDs(bytes.TrimSpace(body))
	if err != nil {
		return ParsedMatch{}, err
	}
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	switch len(out) {
	case 0:
		return ParsedMatch{Kind: MatchEmpty}, nil
	case 1:
		return ParsedMatch{Kind: MatchSingle, IDs: out}, nil
	default:
		return ParsedMatch{Kind: MatchMultiple, IDs: out}, nil
	}
}

func collectIDs(b []byte) ([]int64, error) {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	switch b[0] {
	case '{':
		var obj struct {
			TypeID json.RawMessage `json:"typeID"`
			ID     json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, fmt.Errorf("fuzzwork: decode object: %w", err)
		}
		raw := obj.TypeID
		if len(raw) == 0 {
			raw = obj.ID
		}
		return collectIDs(bytes.TrimSpace(raw))
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("fuzzwork: decode array: %w", err)
		}
		var ids []int64
		for _, it := range items {
			sub, err := collectIDs(bytes.TrimSpace(it))
			if err != nil {
				return nil, err
			}
			ids = append(ids, sub...)
		}
		return ids, nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("fuzzwork: decode string: %w", err)
		}
		return collectIDs([]byte(strings.TrimSpace(s)))
	default:
		id, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fuzzwork: unexpected response %q", truncate(string(b), 64))
		}
		return []int64{id}, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

const fuzzworkEndpoint = "fuzzwork_typeid"

// Client calls the fuzzwork typeid endpoint through the shared API limiter.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Lookup resolves a type name. Non-2xx responses and undecodable bodies are errors.
func (c *Client) Lookup(ctx context.Context, name string) (ParsedMatch, error) {
	if name == "" {
		return ParsedMatch{}, fmt.Errorf("typename empty")
	}
	ctx, span := telemetry.StartSpan(ctx, "fuzzwork", "typeid", telemetry.ItemAttr(name))
	defer span.End()

	body, err := ratelimit.Schedule(ctx, c.Limiter, func(ctx context.Context) ([]byte, error) {
		u := c.BaseURL + "/api/typeid.php?" + url.Values{"typename": {name}}.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		var resp *http.Response
		telemetry.TimeFunc(telemetry.UpstreamLatency(fuzzworkEndpoint), func() {
			resp, err = c.http().Do(req)
		})
		if err != nil {
			telemetry.IncUpstream(fuzzworkEndpoint, 0)
			return nil, err
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close response body", slog.Any("err", err))
			}
		}()
		telemetry.IncUpstream(fuzzworkEndpoint, resp.StatusCode)
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fuzzwork typeid: %s: %s", resp.Status, truncate(string(b), 128))
		}
		return b, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return ParsedMatch{}, err
	}
	m, err := ParseMatch(body)
	if err != nil {
		telemetry.RecordError(span, err)
		return ParsedMatch{}, err
	}
	return m, nil
}

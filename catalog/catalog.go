// Package catalog holds the static item name <-> type ID index loaded once at startup
// from a whitespace-delimited flat file. The index is read-only after Load returns.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Entry is one catalog line.
type Entry struct {
	Name string
	ID   int64
}

// Catalog is a bidirectional name/ID index. The zero value and a nil *Catalog are empty.
type Catalog struct {
	byName map[string]int64
	byID   map[int64]string
}

// New builds a catalog from entries. Later duplicates of a name are ignored.
func New(entries []Entry) *Catalog {
	c := &Catalog{
		byName: make(map[string]int64, len(entries)),
		byID:   make(map[int64]string, len(entries)),
	}
	for _, e := range entries {
		key := normalize(e.Name)
		if key == "" || e.ID <= 0 {
			continue
		}
		if _, dup := c.byName[key]; dup {
			continue
		}
		c.byName[key] = e.ID
		if _, ok := c.byID[e.ID]; !ok {
			c.byID[e.ID] = strings.TrimSpace(e.Name)
		}
	}
	return c
}

// Parse reads lines of "<id> <name...>" (or "<name...> <id>"). Blank lines and lines
// starting with '#' are skipped, as are lines without a numeric ID at either end.
func Parse(r io.Reader) (*Catalog, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if id, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			entries = append(entries, Entry{ID: id, Name: strings.Join(fields[1:], " ")})
			continue
		}
		last := len(fields) - 1
		if id, err := strconv.ParseInt(fields[last], 10, 64); err == nil {
			entries = append(entries, Entry{ID: id, Name: strings.Join(fields[:last], " ")})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return New(entries), nil
}

//go:embed items.txt
var seedItems []byte

// Default returns the embedded seed catalog of common minerals, ores and hulls.
func Default() *Catalog {
	c, err := Parse(bytes.NewReader(seedItems))
	if err != nil {
		return New(nil)
	}
	return c
}

// Load fetches source (an http(s) URL or a local path) and parses it.
func Load(ctx context.Context, source string, hc *http.Client, userAgent string) (*Catalog, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
		if hc == nil {
			hc = http.DefaultClient
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch catalog: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close response body", slog.Any("err", err))
			}
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch catalog: %s", resp.Status)
		}
		return Parse(resp.Body)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ID returns the type ID for an exact, case-insensitive name match.
func (c *Catalog) ID(name string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	id, ok := c.byName[normalize(name)]
	return id, ok
}

// Name returns the display name for id.
func (c *Catalog) Name(id int64) (string, bool) {
	if c == nil {
		return "", false
	}
	n, ok := c.byID[id]
	return n, ok
}

// Len returns the number of indexed names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byName)
}

// Suggest returns up to limit display names containing query, shortest first.
func (c *Catalog) Suggest(query string, limit int) []string {
	q := normalize(query)
	if c == nil || q == "" || limit <= 0 {
		return nil
	}
	var keys []string
	for k := range c.byName {
		if strings.Contains(k, q) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.byID[c.byName[k]])
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

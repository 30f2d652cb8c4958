package dispatch

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var defaultSitesYAML []byte

// Site is one entry of the site encyclopedia.
type Site struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Faction  string `yaml:"faction"`
	Security string `yaml:"security"`
	Notes    string `yaml:"notes"`
}

// String renders the chat reply for a site.
func (s Site) String() string {
	var tags []string
	for _, t := range []string{s.Kind, s.Faction, s.Security} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	out := s.Name
	if len(tags) > 0 {
		out += " (" + strings.Join(tags, ", ") + ")"
	}
	if s.Notes != "" {
		out += ": " + s.Notes
	}
	return out
}

// SiteTable is a read-only, case-insensitive site index.
type SiteTable struct {
	byName map[string]Site
	keys   []string
}

// ParseSites decodes a YAML document of the form `sites: [{name, kind, ...}]`.
func ParseSites(b []byte) (*SiteTable, error) {
	var doc struct {
		Sites []Site `yaml:"sites"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse sites: %w", err)
	}
	t := &SiteTable{byName: make(map[string]Site, len(doc.Sites))}
	for _, s := range doc.Sites {
		key := strings.ToLower(strings.Join(strings.Fields(s.Name), " "))
		if key == "" {
			continue
		}
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("parse sites: duplicate site %q", s.Name)
		}
		t.byName[key] = s
		t.keys = append(t.keys, key)
	}
	sort.Strings(t.keys)
	return t, nil
}

// DefaultSites returns the embedded site table.
func DefaultSites() (*SiteTable, error) {
	return ParseSites(defaultSitesYAML)
}

// Len returns the number of sites.
func (t *SiteTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Lookup returns the exact match for name or, failing that, the sites whose names start
// with it. Exactly one returned site means a unique match.
func (t *SiteTable) Lookup(name string) []Site {
	if t == nil {
		return nil
	}
	q := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if q == "" {
		return nil
	}
	if s, ok := t.byName[q]; ok {
		return []Site{s}
	}
	var out []Site
	for _, k := range t.keys {
		if strings.HasPrefix(k, q) {
			out = append(out, t.byName[k])
		}
	}
	return out
}

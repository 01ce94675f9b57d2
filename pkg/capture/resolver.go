package capture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity for a mistyped
// browser name to produce a "did you mean" hint in the resolve error.
const suggestionThreshold = 0.80

// Browser describes one supported browser in the resolver table.
type Browser struct {
	// Name is the canonical display name (e.g., "Google Chrome").
	Name string

	// TargetID is the stable identifier capture backends filter on. It
	// follows the platform bundle-identifier convention.
	TargetID string
}

// browsers is the built-in table of capturable browsers. Keys are
// lower-cased lookup aliases; multiple aliases may map to the same target.
var browsers = map[string]Browser{
	"safari":         {Name: "Safari", TargetID: "com.apple.Safari"},
	"google chrome":  {Name: "Google Chrome", TargetID: "com.google.Chrome"},
	"chrome":         {Name: "Google Chrome", TargetID: "com.google.Chrome"},
	"firefox":        {Name: "Firefox", TargetID: "org.mozilla.firefox"},
	"microsoft edge": {Name: "Microsoft Edge", TargetID: "com.microsoft.edgemac"},
	"edge":           {Name: "Microsoft Edge", TargetID: "com.microsoft.edgemac"},
	"arc":            {Name: "Arc", TargetID: "company.thebrowser.Browser"},
	"brave browser":  {Name: "Brave Browser", TargetID: "com.brave.Browser"},
	"brave":          {Name: "Brave Browser", TargetID: "com.brave.Browser"},
	"opera":          {Name: "Opera", TargetID: "com.operasoftware.Opera"},
	"vivaldi":        {Name: "Vivaldi", TargetID: "com.vivaldi.Vivaldi"},
}

// TableResolver resolves browser names against the built-in table. Lookup
// is case-insensitive; near-miss names produce a suggestion in the error.
// The zero value is ready to use and safe for concurrent use (the table is
// read-only).
type TableResolver struct{}

// Compile-time interface assertion.
var _ Resolver = TableResolver{}

// Resolve implements [Resolver]. The returned target identifier is the
// browser's bundle-style ID; backends interpret it according to their own
// source model.
func (TableResolver) Resolve(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if b, ok := browsers[key]; ok {
		return b.TargetID, nil
	}

	if hint := closestAlias(key); hint != "" {
		return "", fmt.Errorf("unknown browser %q (did you mean %q?): %w", name, hint, ErrTargetNotFound)
	}
	return "", fmt.Errorf("unknown browser %q: %w", name, ErrTargetNotFound)
}

// Lookup returns the table entry for name, for callers that need the
// canonical display name alongside the target ID.
func (TableResolver) Lookup(name string) (Browser, bool) {
	b, ok := browsers[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Known returns the canonical names of all supported browsers, sorted and
// de-duplicated. Used by the CLI's browser listing and by config validation.
func (TableResolver) Known() []string {
	seen := make(map[string]bool, len(browsers))
	var names []string
	for _, b := range browsers {
		if !seen[b.Name] {
			seen[b.Name] = true
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names
}

// closestAlias returns the best-matching alias for a mistyped name, or ""
// when nothing scores above the suggestion threshold.
func closestAlias(key string) string {
	var best string
	var bestScore float64
	for alias := range browsers {
		if s := matchr.JaroWinkler(key, alias, false); s > bestScore {
			best, bestScore = alias, s
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}

// Package naming reconciles country names between data sources.
package naming

import (
	"sort"

	"github.com/antzucaro/matchr"
)

// Alias renames a key used by one source to the spelling used by the rest
// of the system.
type Alias struct {
	From string
	To   string
}

// HistoryAliases maps the time-series feed's country keys onto the
// statistics page's spelling.
var HistoryAliases = []Alias{
	{From: "Taiwan*", To: "Taiwan"},
	{From: "Korea, South", To: "S. Korea"},
	{From: "US", To: "USA"},
	{From: "United Kingdom", To: "UK"},
}

// Rename applies aliases to m in order. An alias whose From key is missing
// does nothing; otherwise the value moves to To, replacing anything there.
// It returns the aliases that were applied.
func Rename[V any](m map[string]V, aliases []Alias) []Alias {
	var applied []Alias
	for _, a := range aliases {
		v, ok := m[a.From]
		if !ok {
			continue
		}
		delete(m, a.From)
		m[a.To] = v
		applied = append(applied, a)
	}
	return applied
}

// NearMiss is a pair of names that differ but probably mean the same country.
type NearMiss struct {
	A     string
	B     string
	Score float64
}

// DefaultThreshold is the Jaro-Winkler similarity at which two different
// names are reported as a near miss.
const DefaultThreshold = 0.92

// NearMisses compares every name in as with every name in bs and returns
// the pairs scoring at least threshold, best first.
func NearMisses(as, bs []string, threshold float64) []NearMiss {
	var out []NearMiss
	for _, a := range as {
		for _, b := range bs {
			if a == b {
				continue
			}
			score := matchr.JaroWinkler(a, b, false)
			if score >= threshold {
				out = append(out, NearMiss{A: a, B: b, Score: score})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

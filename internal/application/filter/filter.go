// Package filter narrows a fetched catalog down to the items a FilterState selects.
//
// Every criterion is an independent predicate over a single item, so criteria
// commute and Apply is order preserving.
package filter

import (
	"sort"
	"strconv"
	"strings"

	"catalog/internal/domain/item"
	"catalog/internal/domain/preference"
)

// DefaultOlderThreshold is the inclusive upper year of the "older" range bucket.
const DefaultOlderThreshold = 2020

// Options carries site-specific filter settings.
type Options struct {
	OlderThreshold int
}

// DefaultOptions returns the options used when a site configures none.
func DefaultOptions() Options {
	return Options{OlderThreshold: DefaultOlderThreshold}
}

// Apply returns the items of full that satisfy every criterion in state.
// PRE: none
// POST: result is a subsequence of full; empty (not nil) when nothing matches
// INVARIANT: full is not modified
func Apply(full []item.Item, state preference.FilterState, opts Options) []item.Item {
	state = state.Normalize()
	out := make([]item.Item, 0, len(full))
	for _, it := range full {
		if Matches(it, state, opts) {
			out = append(out, it)
		}
	}
	return out
}

// Matches reports whether it satisfies every criterion in state.
func Matches(it item.Item, state preference.FilterState, opts Options) bool {
	return MatchCategory(it, state.Category) &&
		MatchRange(it, state.Range, opts.OlderThreshold) &&
		MatchQuery(it, state.Query) &&
		MatchTier(it, state.Tier)
}

// MatchCategory keeps it when category is "all"/empty or equals the item's category.
func MatchCategory(it item.Item, category string) bool {
	if isAll(category) {
		return true
	}
	return it.Category == category
}

// MatchRange keeps it when rng is "all"/empty, when rng is "older" and the item's
// year is at or before threshold, or when rng is a year equal to the item's year.
// Any other value matches nothing.
func MatchRange(it item.Item, rng string, threshold int) bool {
	if isAll(rng) {
		return true
	}
	if rng == preference.RangeOlder {
		if threshold == 0 {
			threshold = DefaultOlderThreshold
		}
		return it.Year <= threshold
	}
	year, err := strconv.Atoi(strings.TrimSpace(rng))
	if err != nil {
		return false
	}
	return it.Year == year
}

// MatchQuery keeps it when query is blank or is a case-insensitive substring of
// one of the item's searchable fields.
func MatchQuery(it item.Item, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range it.SearchFields() {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// MatchTier keeps it when tier is "all"/empty or names the item's rank.
// Non-numeric tiers match nothing.
func MatchTier(it item.Item, tier string) bool {
	if isAll(tier) {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSpace(tier))
	if err != nil {
		return false
	}
	return it.Tier == item.Tier(n)
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == preference.All
}

// Categories returns the distinct non-empty categories of full in first-seen order.
func Categories(full []item.Item) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range full {
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	return out
}

// Years returns the distinct non-zero years of full, newest first.
func Years(full []item.Item) []int {
	seen := make(map[int]bool)
	var out []int
	for _, it := range full {
		if it.Year == 0 || seen[it.Year] {
			continue
		}
		seen[it.Year] = true
		out = append(out, it.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// TotalCredits sums the credits of items.
func TotalCredits(items []item.Item) int {
	total := 0
	for _, it := range items {
		total += it.Credits
	}
	return total
}

// ShelfSize is the number of books on each home page shelf.
const ShelfSize = 6

// Featured returns the first n items of full.
func Featured(full []item.Item, n int) []item.Item {
	return head(full, n)
}

// NewArrivals returns the first n items published in or after since, in source order.
// PRE: none
// POST: result is a subsequence of full with at most n items
func NewArrivals(full []item.Item, since, n int) []item.Item {
	var recent []item.Item
	for _, it := range full {
		if it.Year >= since {
			recent = append(recent, it)
		}
	}
	return head(recent, n)
}

func head(items []item.Item, n int) []item.Item {
	if n < 0 {
		n = 0
	}
	out := make([]item.Item, 0, min(n, len(items)))
	for i := 0; i < len(items) && i < n; i++ {
		out = append(out, items[i])
	}
	return out
}

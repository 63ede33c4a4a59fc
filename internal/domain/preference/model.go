package preference

import (
	"encoding/json"
	"strings"
	"time"
)

// All is the filter value that disables a criterion.
const All = "all"

// RangeOlder selects items at or before the site's threshold year.
const RangeOlder = "older"

// Layout is the display arrangement of the catalog region.
type Layout string

// Layout modes.
const (
	LayoutGrid Layout = "grid"
	LayoutList Layout = "list"
)

// DefaultLayout is used when nothing was persisted.
const DefaultLayout = LayoutGrid

// ParseLayout returns the layout named by s, falling back to DefaultLayout.
// PRE: none
// POST: Returns a valid Layout
func ParseLayout(s string) Layout {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutList:
		return LayoutList
	case LayoutGrid:
		return LayoutGrid
	}
	return DefaultLayout
}

// Valid reports whether l is one of the known layouts.
func (l Layout) Valid() bool {
	return l == LayoutGrid || l == LayoutList
}

// Class returns the CSS class applied to the display region.
func (l Layout) Class() string {
	return string(l) + "-view"
}

// FilterState is the current filter selection of one page.
type FilterState struct {
	Category string `json:"category"`
	Range    string `json:"range"`
	Query    string `json:"query"`
	Tier     string `json:"tier"`
}

// DefaultFilterState returns the selection that matches everything.
func DefaultFilterState() FilterState {
	return FilterState{Category: All, Range: All, Tier: All}
}

// Normalize maps empty selector values to All and trims the query.
// INVARIANT: the normalized state selects the same items as f
func (f FilterState) Normalize() FilterState {
	f.Category = orAll(f.Category)
	f.Range = orAll(f.Range)
	f.Tier = orAll(f.Tier)
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// IsDefault reports whether no criterion is active.
func (f FilterState) IsDefault() bool {
	return f.Normalize() == DefaultFilterState()
}

func orAll(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return All
	}
	return s
}

// Record is the persisted snapshot of a page's preferences.
// It is always written in full, never merged field by field.
type Record struct {
	Filter    FilterState `json:"filter"`
	Layout    Layout      `json:"layout"`
	Timestamp time.Time   `json:"timestamp"`
}

// DefaultRecord returns the record used when nothing is persisted.
func DefaultRecord() Record {
	return Record{Filter: DefaultFilterState(), Layout: DefaultLayout}
}

// Encode serializes the record.
// PRE: none
// POST: Returns the JSON form of r
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses a serialized record.
// PRE: none
// POST: Returns an error if data is not a JSON object or names an unknown layout
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	if r.Layout == "" {
		r.Layout = DefaultLayout
	}
	if !r.Layout.Valid() {
		return Record{}, &json.UnsupportedValueError{Str: string(r.Layout)}
	}
	return r, nil
}

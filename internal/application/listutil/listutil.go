package listutil

import (
	"net/url"
	"strings"

	"catalog/internal/domain/preference"
)

// MaxQueryLen caps the search text taken from a request, in runes.
const MaxQueryLen = 200

// Interactions carries the control values present in a request.
// A nil field means the control was not touched.
type Interactions struct {
	Category *string
	Range    *string
	Query    *string
	Tier     *string
	Layout   *preference.Layout
}

// ParseInteractions extracts category, range, q, tier and layout from URL query values.
// PRE: none
// POST: only keys present in q are set; an empty value is kept (it resets that control)
func ParseInteractions(q url.Values) Interactions {
	var in Interactions
	in.Category = param(q, "category")
	in.Range = param(q, "range")
	in.Tier = param(q, "tier")
	if v := param(q, "q"); v != nil {
		s := clip(*v, MaxQueryLen)
		in.Query = &s
	}
	if v := param(q, "layout"); v != nil {
		l := preference.ParseLayout(*v)
		in.Layout = &l
	}
	return in
}

// Empty reports whether no control was touched.
func (in Interactions) Empty() bool {
	return in.Category == nil && in.Range == nil && in.Query == nil && in.Tier == nil && in.Layout == nil
}

// Apply overlays the touched controls onto state.
// POST: untouched fields keep their value; the result is normalized
func (in Interactions) Apply(state preference.FilterState) preference.FilterState {
	if in.Category != nil {
		state.Category = *in.Category
	}
	if in.Range != nil {
		state.Range = *in.Range
	}
	if in.Query != nil {
		state.Query = *in.Query
	}
	if in.Tier != nil {
		state.Tier = *in.Tier
	}
	return state.Normalize()
}

// Encode returns the query values that reproduce state. Default criteria are omitted.
func Encode(state preference.FilterState) url.Values {
	state = state.Normalize()
	q := url.Values{}
	if state.Category != preference.All {
		q.Set("category", state.Category)
	}
	if state.Range != preference.All {
		q.Set("range", state.Range)
	}
	if state.Query != "" {
		q.Set("q", state.Query)
	}
	if state.Tier != preference.All {
		q.Set("tier", state.Tier)
	}
	return q
}

func param(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := strings.TrimSpace(q.Get(key))
	return &v
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"catalog/internal/domain/item"
	"catalog/internal/domain/preference"
)

func ids(items []item.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func fixture() []item.Item {
	return []item.Item{
		{ID: "1", Kind: item.KindBook, Title: "The Lord of the Rings", Byline: "J.R.R. Tolkien", Category: "fantasy", Year: 1954},
		{ID: "2", Kind: item.KindBook, Title: "Dune", Byline: "Frank Herbert", Category: "scifi", Year: 1965},
		{ID: "3", Kind: item.KindBook, Title: "Project Hail Mary", Byline: "Andy Weir", Category: "scifi", Year: 2021},
		{ID: "4", Kind: item.KindBook, Title: "The Midnight Library", Byline: "Matt Haig", Category: "fiction", Year: 2020},
		{ID: "5", Kind: item.KindBook, Title: "Klara and the Sun", Byline: "Kazuo Ishiguro", Category: "fiction", Year: 2021},
		{ID: "6", Kind: item.KindBook, Title: "Lords and Ladies", Byline: "Terry Pratchett", Category: "fantasy", Year: 2020},
	}
}

func allStates() []preference.FilterState {
	var states []preference.FilterState
	for _, cat := range []string{"all", "", "fantasy", "scifi", "fiction", "horror"} {
		for _, rng := range []string{"all", "older", "2020", "2021", "1954", "bogus"} {
			for _, q := range []string{"", "lord", "  THE ", "zzz"} {
				states = append(states, preference.FilterState{Category: cat, Range: rng, Query: q, Tier: "all"})
			}
		}
	}
	return states
}

// TestApply_SubsetPreservesOrder verifies every result is an order-preserving subsequence of the input.
func TestApply_SubsetPreservesOrder(t *testing.T) {
	full := fixture()
	for _, st := range allStates() {
		got := Apply(full, st, DefaultOptions())
		j := 0
		for _, g := range got {
			for j < len(full) && full[j].ID != g.ID {
				j++
			}
			if j == len(full) {
				t.Fatalf("state %+v: result %v is not a subsequence of the input", st, ids(got))
			}
			j++
		}
	}
}

// TestApply_Idempotent verifies applying the same state twice gives the same result.
func TestApply_Idempotent(t *testing.T) {
	full := fixture()
	for _, st := range allStates() {
		once := Apply(full, st, DefaultOptions())
		twice := Apply(once, st, DefaultOptions())
		if diff := cmp.Diff(ids(once), ids(twice)); diff != "" {
			t.Errorf("state %+v not idempotent (-once +twice):\n%s", st, diff)
		}
	}
}

// TestApply_Commutative verifies category-then-text equals text-then-category.
func TestApply_Commutative(t *testing.T) {
	full := fixture()
	opts := DefaultOptions()
	for _, st := range allStates() {
		catOnly := preference.FilterState{Category: st.Category}
		textOnly := preference.FilterState{Query: st.Query}

		a := Apply(Apply(full, catOnly, opts), textOnly, opts)
		b := Apply(Apply(full, textOnly, opts), catOnly, opts)
		if diff := cmp.Diff(ids(a), ids(b)); diff != "" {
			t.Errorf("state %+v order dependent (-cat,text +text,cat):\n%s", st, diff)
		}
	}
}

// TestApply_DoesNotMutateInput verifies the full list is untouched.
func TestApply_DoesNotMutateInput(t *testing.T) {
	full := fixture()
	before := ids(full)
	Apply(full, preference.FilterState{Category: "scifi"}, DefaultOptions())
	if diff := cmp.Diff(before, ids(full)); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

// TestApply_CategoryScenario verifies filtering {A,A,B,B,C} on B yields both B items in order.
func TestApply_CategoryScenario(t *testing.T) {
	full := []item.Item{
		{ID: "a1", Title: "a1", Category: "A"},
		{ID: "a2", Title: "a2", Category: "A"},
		{ID: "b1", Title: "b1", Category: "B"},
		{ID: "b2", Title: "b2", Category: "B"},
		{ID: "c1", Title: "c1", Category: "C"},
	}
	got := Apply(full, preference.FilterState{Category: "B"}, DefaultOptions())
	if diff := cmp.Diff([]string{"b1", "b2"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestApply_TextScenario verifies "lord" matches only the first title.
func TestApply_TextScenario(t *testing.T) {
	full := []item.Item{
		{ID: "1", Kind: item.KindBook, Title: "The Lord of the Rings"},
		{ID: "2", Kind: item.KindBook, Title: "Dune"},
	}
	got := Apply(full, preference.FilterState{Query: "lord"}, DefaultOptions())
	if diff := cmp.Diff([]string{"1"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestApply_YearScenarios verifies exact-year and inclusive "older" buckets.
func TestApply_YearScenarios(t *testing.T) {
	full := []item.Item{
		{ID: "y2019", Title: "a", Year: 2019},
		{ID: "y2020a", Title: "b", Year: 2020},
		{ID: "y2020b", Title: "c", Year: 2020},
		{ID: "y2021", Title: "d", Year: 2021},
	}
	exact := Apply(full, preference.FilterState{Range: "2020"}, DefaultOptions())
	if diff := cmp.Diff([]string{"y2020a", "y2020b"}, ids(exact)); diff != "" {
		t.Errorf("exact mismatch (-want +got):\n%s", diff)
	}
	older := Apply(full, preference.FilterState{Range: preference.RangeOlder}, Options{OlderThreshold: 2020})
	if diff := cmp.Diff([]string{"y2019", "y2020a", "y2020b"}, ids(older)); diff != "" {
		t.Errorf("older mismatch (-want +got):\n%s", diff)
	}
}

// TestApply_NoMatches verifies an empty, non-nil result.
func TestApply_NoMatches(t *testing.T) {
	got := Apply(fixture(), preference.FilterState{Category: "horror"}, DefaultOptions())
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

// TestMatchQuery verifies case-insensitive search over the kind's fields only.
func TestMatchQuery(t *testing.T) {
	book := item.Item{Kind: item.KindBook, Title: "Dune", Byline: "Frank Herbert", Description: "desert planet"}
	member := item.Item{Kind: item.KindMember, Title: "Acme Hardware", Byline: "Retail", Description: "Tools and paint"}
	tests := []struct {
		name  string
		it    item.Item
		query string
		want  bool
	}{
		{"blank", book, "   ", true},
		{"titleUpper", book, "DUNE", true},
		{"author", book, "herb", true},
		{"bookDescriptionNotSearched", book, "desert", false},
		{"memberDescription", member, "PAINT", true},
		{"memberCategoryNotSearched", member, "retail", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchQuery(tt.it, tt.query); got != tt.want {
				t.Errorf("MatchQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

// TestMatchTier verifies the directory rank filter.
func TestMatchTier(t *testing.T) {
	gold := item.Item{Kind: item.KindMember, Tier: item.TierGold}
	if !MatchTier(gold, "all") || !MatchTier(gold, "") || !MatchTier(gold, "3") {
		t.Error("gold should match all, empty and 3")
	}
	if MatchTier(gold, "2") || MatchTier(gold, "gold") {
		t.Error("gold should not match 2 or a non-numeric tier")
	}
}

// TestApply_TierExcludesUnrankedMembers verifies a decoded level-0 member is not listed under tier 1.
func TestApply_TierExcludesUnrankedMembers(t *testing.T) {
	full, err := item.Decode(item.KindMember, []byte(`{"members":[
		{"name":"Acme Co","membershipLevel":1},
		{"name":"Corner Shop","membershipLevel":0},
		{"name":"Big Corp","membershipLevel":7}
	]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	state := preference.FilterState{Category: "all", Range: "all", Tier: "1"}
	if diff := cmp.Diff([]string{"acme-co"}, ids(Apply(full, state, DefaultOptions()))); diff != "" {
		t.Errorf("tier 1 mismatch (-want +got):\n%s", diff)
	}
}

// TestMatchRange_Invalid verifies unparseable ranges match nothing.
func TestMatchRange_Invalid(t *testing.T) {
	if MatchRange(item.Item{Year: 2020}, "twenty", 2020) {
		t.Error("non-numeric range should not match")
	}
	if !MatchRange(item.Item{Year: 2020}, "older", 0) {
		t.Error("zero threshold should fall back to the default")
	}
}

// TestCategoriesAndYears verifies control option lists.
func TestCategoriesAndYears(t *testing.T) {
	if diff := cmp.Diff([]string{"fantasy", "scifi", "fiction"}, Categories(fixture())); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2021, 2020, 1965, 1954}, Years(fixture())); diff != "" {
		t.Errorf("Years mismatch (-want +got):\n%s", diff)
	}
}

// TestTotalCredits verifies credit totals for the course tracker.
func TestTotalCredits(t *testing.T) {
	items := []item.Item{{Credits: 2}, {Credits: 3}, {Credits: 0}}
	if got := TotalCredits(items); got != 5 {
		t.Errorf("TotalCredits = %d, want 5", got)
	}
}

// TestFeatured verifies the featured shelf is the head of the list.
func TestFeatured(t *testing.T) {
	full := fixture()
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids(Featured(full, 3))); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := Featured(full, ShelfSize); len(got) != 6 {
		t.Errorf("len = %d, want 6", len(got))
	}
	if got := Featured(nil, ShelfSize); got == nil || len(got) != 0 {
		t.Errorf("Featured(nil) = %#v, want empty", got)
	}
}

// TestNewArrivals verifies the since year is inclusive and the shelf is capped.
func TestNewArrivals(t *testing.T) {
	full := fixture()
	if diff := cmp.Diff([]string{"3", "4", "5", "6"}, ids(NewArrivals(full, 2020, ShelfSize))); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3", "4"}, ids(NewArrivals(full, 2020, 2))); diff != "" {
		t.Errorf("capped mismatch (-want +got):\n%s", diff)
	}
	if got := NewArrivals(full, 2030, ShelfSize); len(got) != 0 {
		t.Errorf("future since = %v, want none", ids(got))
	}
}

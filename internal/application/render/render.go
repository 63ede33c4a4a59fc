// Package render turns catalog items into HTML and writes it into a document region.
//
// The region is replaced in one step per call; nothing is appended piecemeal.
// Text from catalog payloads is escaped by html/template, and descriptions
// pass through goldmark without raw HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog/internal/domain/item"
	"catalog/internal/domain/preference"
)

//go:embed templates/*.html
var templateFS embed.FS

var fragments = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DefaultErrorMessage is shown when a source cannot be loaded.
const DefaultErrorMessage = "Unable to load the catalog right now. Please try again later."

// Renderer writes items into a region. DetailBase, when set, links each card
// to DetailBase + "/" + escaped item id.
type Renderer struct {
	DetailBase string
}

func (r Renderer) views(items []item.Item) []CardView {
	views := make([]CardView, len(items))
	for i, it := range items {
		views[i] = NewCardView(it)
		if r.DetailBase != "" {
			views[i].DetailHref = strings.TrimRight(r.DetailBase, "/") + "/" + url.PathEscape(it.ID)
		}
	}
	return views
}

// Render replaces the region's contents with one card per item, in order, and applies layout.
// PRE: items share one Kind
// POST: region holds exactly len(items) cards, or the no-results placeholder when items is empty;
// region carries exactly one of the layout classes. A missing region is a no-op.
func (r Renderer) Render(items []item.Item, region *goquery.Selection, layout preference.Layout) error {
	if region == nil || region.Length() == 0 {
		return nil
	}
	var html string
	var err error
	if len(items) == 0 {
		html, err = execute("no-results", kindOf(region, items).Plural())
	} else {
		html, err = execute("cards", r.views(items))
	}
	if err != nil {
		return err
	}
	region.SetHtml(html)
	SetLayout(region, layout)
	return nil
}

// kindOf infers the item kind for the placeholder from the region's data-kind attribute.
func kindOf(region *goquery.Selection, items []item.Item) item.Kind {
	if len(items) > 0 {
		return items[0].Kind
	}
	if k, err := item.ParseKind(region.AttrOr("data-kind", "")); err == nil {
		return k
	}
	return "item"
}

// RenderDetail replaces region with the full card of one item.
func (r Renderer) RenderDetail(it item.Item, region *goquery.Selection) error {
	if region == nil || region.Length() == 0 {
		return nil
	}
	html, err := execute("detail", r.views([]item.Item{it})[0])
	if err != nil {
		return err
	}
	region.SetHtml(html)
	return nil
}

// RenderSpotlights replaces region with spotlight cards, or a placeholder when members is empty.
func (r Renderer) RenderSpotlights(members []item.Item, region *goquery.Selection) error {
	if region == nil || region.Length() == 0 {
		return nil
	}
	html, err := execute("spotlights", r.views(members))
	if err != nil {
		return err
	}
	region.SetHtml(html)
	return nil
}

// RenderLoading replaces region with the loading placeholder.
func RenderLoading(region *goquery.Selection) {
	if region == nil || region.Length() == 0 {
		return
	}
	html, err := execute("loading", nil)
	if err != nil {
		return
	}
	region.SetHtml(html)
}

// RenderError replaces region with an inline error message. An empty msg uses DefaultErrorMessage.
func RenderError(region *goquery.Selection, msg string) {
	if region == nil || region.Length() == 0 {
		return
	}
	if msg == "" {
		msg = DefaultErrorMessage
	}
	html, err := execute("error", msg)
	if err != nil {
		region.SetText(msg)
		return
	}
	region.SetHtml(html)
}

// SetLayout makes layout's class the only layout class on region.
// INVARIANT: afterwards region has exactly one of grid-view and list-view
func SetLayout(region *goquery.Selection, layout preference.Layout) {
	if region == nil {
		return
	}
	if !layout.Valid() {
		layout = preference.DefaultLayout
	}
	region.RemoveClass(preference.LayoutGrid.Class(), preference.LayoutList.Class())
	region.AddClass(layout.Class())
}

// ApplyImageFallback swaps every card image whose src is empty or listed in failed
// for an initials placeholder. It returns the number of images replaced.
func ApplyImageFallback(region *goquery.Selection, failed map[string]bool) int {
	if region == nil {
		return 0
	}
	replaced := 0
	region.Find("img.card-image").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src != "" && !failed[src] {
			return
		}
		html, err := execute("placeholder", img.AttrOr("data-initials", ""))
		if err != nil {
			return
		}
		img.ReplaceWithHtml(html)
		replaced++
	})
	return replaced
}

// ImageSources returns the distinct image URLs referenced by cards in region.
func ImageSources(region *goquery.Selection) []string {
	if region == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	region.Find("img.card-image").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		out = append(out, src)
	})
	return out
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

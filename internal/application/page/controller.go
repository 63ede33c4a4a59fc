// Package page drives one catalog page: it restores preferences, loads the
// source, runs the filter pipeline and renders into the page's document.
//
// A Controller is used by one request at a time. Interactions before Load
// has succeeded are inert.
package page

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"catalog/internal/application/filter"
	"catalog/internal/application/listutil"
	"catalog/internal/application/prefs"
	"catalog/internal/application/render"
	"catalog/internal/domain/item"
	"catalog/internal/domain/preference"
)

// ErrNotLoaded is returned by interactions made before the source has loaded.
var ErrNotLoaded = errors.New("catalog not loaded")

// Loader supplies the full item list of a source.
type Loader interface {
	Load(ctx context.Context, src string, kind item.Kind) ([]item.Item, error)
}

// ImageChecker reports which image URLs fail to load.
type ImageChecker interface {
	Failed(ctx context.Context, urls []string) map[string]bool
}

// Site is what the controller needs to know about the page it drives.
type Site struct {
	Kind        item.Kind
	Source      string
	Options     filter.Options
	ProbeImages bool
	DetailBase  string
}

// Selectors locate the page's controls. An empty selector or a selector that
// matches nothing disables that control.
type Selectors struct {
	Region     string
	Loading    string
	Count      string
	Category   string
	Range      string
	Search     string
	Tier       string
	GridButton string
	ListButton string
}

// DefaultSelectors returns the element ids used by the catalog page shell.
func DefaultSelectors() Selectors {
	return Selectors{
		Region:     "#catalog",
		Loading:    "#loading",
		Count:      "#results-count",
		Category:   "#category-filter",
		Range:      "#range-filter",
		Search:     "#search-input",
		Tier:       "#tier-filter",
		GridButton: "#grid-view-btn",
		ListButton: "#list-view-btn",
	}
}

// Deps are the collaborators of a Controller. Prefs and Images may be nil.
type Deps struct {
	Source    Loader
	Prefs     prefs.Store
	Images    ImageChecker
	Selectors Selectors
	Now       func() time.Time
}

// Controller owns the full list, the filter state and the layout of one page.
type Controller struct {
	site     Site
	doc      *goquery.Document
	deps     Deps
	renderer render.Renderer

	full    []item.Item
	visible []item.Item
	state   preference.FilterState
	layout  preference.Layout
	loaded  bool
}

// New creates a controller for doc.
// PRE: deps.Source is non-nil
// POST: the controller is not loaded; state and layout are the defaults
func New(site Site, doc *goquery.Document, deps Deps) *Controller {
	if deps.Prefs == nil {
		deps.Prefs = prefs.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Selectors == (Selectors{}) {
		deps.Selectors = DefaultSelectors()
	}
	return &Controller{
		site:     site,
		doc:      doc,
		deps:     deps,
		renderer: render.Renderer{DetailBase: site.DetailBase},
		state:    preference.DefaultFilterState(),
		layout:   preference.DefaultLayout,
	}
}

// Load restores preferences, fetches the source and renders the first view.
// PRE: none
// POST: on success the controller is loaded and the region shows the filtered list;
// on failure the region shows an inline error, the loading indicator is hidden and
// the source error is returned
func (c *Controller) Load(ctx context.Context) error {
	if rec, ok := c.deps.Prefs.Load(ctx); ok {
		c.state = rec.Filter.Normalize()
		c.layout = rec.Layout
	}

	region := c.find(c.deps.Selectors.Region)
	c.showLoading(true)
	render.RenderLoading(region)

	full, err := c.deps.Source.Load(ctx, c.site.Source, c.site.Kind)
	c.showLoading(false)
	if err != nil {
		slog.Warn("catalog_load_failed", "source", c.site.Source, "error", err)
		render.RenderError(region, "")
		c.setCount("")
		return err
	}

	c.full = full
	c.loaded = true
	c.populateOptions()
	return c.refresh(ctx)
}

// Loaded reports whether Load has succeeded.
func (c *Controller) Loaded() bool {
	return c.loaded
}

// Visible returns the currently displayed items in source order.
func (c *Controller) Visible() []item.Item {
	out := make([]item.Item, len(c.visible))
	copy(out, c.visible)
	return out
}

// State returns the current filter selection.
func (c *Controller) State() preference.FilterState {
	return c.state
}

// Layout returns the current layout.
func (c *Controller) Layout() preference.Layout {
	return c.layout
}

// SetCategory selects a category; "all" or empty clears it.
func (c *Controller) SetCategory(ctx context.Context, v string) error {
	return c.interact(ctx, func() { c.state.Category = v })
}

// SetRange selects a year, the older bucket, or "all".
func (c *Controller) SetRange(ctx context.Context, v string) error {
	return c.interact(ctx, func() { c.state.Range = v })
}

// SetQuery sets the free-text search.
func (c *Controller) SetQuery(ctx context.Context, v string) error {
	return c.interact(ctx, func() { c.state.Query = v })
}

// SetTier selects a membership tier; "all" or empty clears it.
func (c *Controller) SetTier(ctx context.Context, v string) error {
	return c.interact(ctx, func() { c.state.Tier = v })
}

// SetLayout switches between grid and list.
func (c *Controller) SetLayout(ctx context.Context, l preference.Layout) error {
	return c.interact(ctx, func() {
		if l.Valid() {
			c.layout = l
		}
	})
}

// Apply performs every interaction present in in as one change.
// An empty in leaves the page untouched and persists nothing.
func (c *Controller) Apply(ctx context.Context, in listutil.Interactions) error {
	if in.Empty() {
		if !c.loaded {
			return ErrNotLoaded
		}
		return nil
	}
	return c.interact(ctx, func() {
		c.state = in.Apply(c.state)
		if in.Layout != nil {
			c.layout = *in.Layout
		}
	})
}

// interact applies change, persists the full record and re-renders.
func (c *Controller) interact(ctx context.Context, change func()) error {
	if !c.loaded {
		return ErrNotLoaded
	}
	change()
	c.state = c.state.Normalize()
	c.deps.Prefs.Save(ctx, preference.Record{
		Filter:    c.state,
		Layout:    c.layout,
		Timestamp: c.deps.Now().UTC(),
	})
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) error {
	c.visible = filter.Apply(c.full, c.state, c.site.Options)
	region := c.find(c.deps.Selectors.Region)
	if err := c.renderer.Render(c.visible, region, c.layout); err != nil {
		return err
	}
	failed := map[string]bool{}
	if c.site.ProbeImages && c.deps.Images != nil {
		failed = c.deps.Images.Failed(ctx, render.ImageSources(region))
	}
	render.ApplyImageFallback(region, failed)
	c.setCount(render.Summary(c.site.Kind, c.visible))
	c.syncControls()
	return nil
}

// find returns the selection for sel, or an empty selection when sel is blank.
func (c *Controller) find(sel string) *goquery.Selection {
	if c.doc == nil || strings.TrimSpace(sel) == "" {
		return &goquery.Selection{}
	}
	return c.doc.Find(sel)
}

func (c *Controller) showLoading(on bool) {
	s := c.find(c.deps.Selectors.Loading)
	if on {
		s.RemoveClass("hidden").RemoveAttr("hidden")
		return
	}
	s.AddClass("hidden").SetAttr("hidden", "")
}

func (c *Controller) setCount(text string) {
	c.find(c.deps.Selectors.Count).SetText(text)
}

type option struct {
	Value string
	Label string
}

var optionsTemplate = template.Must(template.New("options").Parse(
	`{{range .}}<option value="{{.Value}}">{{.Label}}</option>{{end}}`))

// populateOptions rebuilds the category and range selectors from the loaded list.
// The leading "all" option of each selector is kept.
func (c *Controller) populateOptions() {
	var cats []option
	for _, cat := range filter.Categories(c.full) {
		cats = append(cats, option{Value: cat, Label: label(cat)})
	}
	c.fillSelect(c.deps.Selectors.Category, cats)

	threshold := c.site.Options.OlderThreshold
	if threshold == 0 {
		threshold = filter.DefaultOlderThreshold
	}
	var years []option
	older := false
	for _, y := range filter.Years(c.full) {
		if y <= threshold {
			older = true
			continue
		}
		s := strconv.Itoa(y)
		years = append(years, option{Value: s, Label: s})
	}
	if older {
		years = append(years, option{Value: preference.RangeOlder, Label: strconv.Itoa(threshold) + " & older"})
	}
	c.fillSelect(c.deps.Selectors.Range, years)
}

func (c *Controller) fillSelect(sel string, opts []option) {
	s := c.find(sel)
	if s.Length() == 0 {
		return
	}
	s.Find("option").Not(`[value="all"]`).Remove()
	var b strings.Builder
	if err := optionsTemplate.Execute(&b, opts); err != nil {
		slog.Error("options_render_failed", "selector", sel, "error", err.Error())
		return
	}
	s.AppendHtml(b.String())
}

// syncControls makes the controls display the current state and layout.
func (c *Controller) syncControls() {
	sel := c.deps.Selectors
	selectValue(c.find(sel.Category), c.state.Category)
	selectValue(c.find(sel.Range), c.state.Range)
	selectValue(c.find(sel.Tier), c.state.Tier)
	c.find(sel.Search).SetAttr("value", c.state.Query)

	grid, list := c.find(sel.GridButton), c.find(sel.ListButton)
	pressed(grid, c.layout == preference.LayoutGrid)
	pressed(list, c.layout == preference.LayoutList)
}

func selectValue(s *goquery.Selection, value string) {
	s.Find("option").Each(func(_ int, o *goquery.Selection) {
		if o.AttrOr("value", "") == value {
			o.SetAttr("selected", "selected")
		} else {
			o.RemoveAttr("selected")
		}
	})
}

func pressed(s *goquery.Selection, on bool) {
	if on {
		s.AddClass("active").SetAttr("aria-pressed", "true")
		return
	}
	s.RemoveClass("active").SetAttr("aria-pressed", "false")
}

// label capitalizes the first letter of a category for display.
func label(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
